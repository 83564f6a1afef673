package twilio

import (
	"fmt"
	"sync"

	"github.com/Daskott/relief/server/logger"
	"github.com/Daskott/relief/shared"
	"github.com/Daskott/relief/utils"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

var logg = logger.NewLogger()

// Messenger delivers text messages to phone numbers.
type Messenger interface {
	SendMessage(to, msg string) error
}

type ClientWrapper struct {
	client *twilio.RestClient
	config shared.TwilioConfig
}

// NewMessenger returns a Twilio backed Messenger, or a LogMessenger when no
// Twilio account is configured.
func NewMessenger(config shared.TwilioConfig) Messenger {
	if config.AccountSid == "" || config.AuthToken == "" {
		logg.Warn("twilio is not configured, text messages will only be logged")
		return &LogMessenger{}
	}
	return NewClient(config)
}

func NewClient(config shared.TwilioConfig) *ClientWrapper {
	client := twilio.NewRestClientWithParams(twilio.RestClientParams{
		Username: config.AccountSid,
		Password: config.AuthToken,
	})

	return &ClientWrapper{
		client: client,
		config: config,
	}
}

func (cw *ClientWrapper) SendMessage(to, msg string) error {
	params := &openapi.CreateMessageParams{}
	params.SetMessagingServiceSid(cw.config.MessagingServiceSid)
	params.SetTo(to)
	params.SetBody(msg)

	resp, err := cw.client.ApiV2010.CreateMessage(params)
	if err != nil {
		return err
	}

	if resp.ErrorMessage != nil && *resp.ErrorMessage != "" {
		return fmt.Errorf("twilio: %v", *resp.ErrorMessage)
	}

	logg.Debugf("message sent to %v", utils.MaskPhone(to))
	return nil
}

// LogMessenger logs messages instead of sending them; it also remembers them,
// which is what tests and local development read codes from.
type LogMessenger struct {
	mu   sync.Mutex
	sent []SentMessage
}

type SentMessage struct {
	To   string
	Body string
}

func (lm *LogMessenger) SendMessage(to, msg string) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	lm.sent = append(lm.sent, SentMessage{To: to, Body: msg})
	logg.Infof("[sms to %v] %v", to, msg)
	return nil
}

func (lm *LogMessenger) Sent() []SentMessage {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return append([]SentMessage(nil), lm.sent...)
}
