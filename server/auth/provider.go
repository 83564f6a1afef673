package auth

import (
	"context"
	"sync"
	"time"

	"github.com/Daskott/relief/session"
)

// SESSION_STORAGE_KEY is where the self-hosted session (tokens + user) is kept.
const SESSION_STORAGE_KEY = "relief-session"

// OTPProvider is a session.AuthProvider over an in-process OTPService, for
// running relief without a hosted auth service.
type OTPProvider struct {
	session.Emitter

	service *OTPService
	storage session.Storage
	mu      sync.Mutex
}

func NewOTPProvider(service *OTPService, storage session.Storage) *OTPProvider {
	return &OTPProvider{service: service, storage: storage}
}

func (p *OTPProvider) SendOTP(ctx context.Context, phone string) error {
	return p.service.RequestCode(ctx, phone)
}

func (p *OTPProvider) VerifyOTP(ctx context.Context, phone string, code string, channel string) (*session.Session, error) {
	if channel != session.CHANNEL_SMS {
		return nil, &session.AuthError{Code: "unsupported_channel", Message: "only sms codes are supported"}
	}

	s, err := p.service.VerifyCode(ctx, phone, code)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	err = session.SaveSession(p.storage, SESSION_STORAGE_KEY, s)
	p.mu.Unlock()
	if err != nil {
		logg.Warnf("failed to persist session: %v", err)
	}

	p.Emit(session.SIGNED_IN, s)
	return s, nil
}

// CurrentSession returns the stored session, refreshed when its access token
// is about to expire. A failed refresh forgets the session.
func (p *OTPProvider) CurrentSession(ctx context.Context) (*session.Session, error) {
	p.mu.Lock()

	s, err := session.LoadSession(p.storage, SESSION_STORAGE_KEY)
	if err != nil || s == nil || !s.Expired(time.Minute) {
		p.mu.Unlock()
		return s, err
	}

	refreshed, err := p.service.Refresh(ctx, s.RefreshToken)
	if err != nil {
		if delErr := p.storage.Delete(SESSION_STORAGE_KEY); delErr != nil {
			logg.Warnf("failed to forget session after refresh error: %v", delErr)
		}
		p.mu.Unlock()
		return nil, err
	}

	if err := session.SaveSession(p.storage, SESSION_STORAGE_KEY, refreshed); err != nil {
		logg.Warnf("failed to persist session: %v", err)
	}
	p.mu.Unlock()

	p.Emit(session.TOKEN_REFRESHED, refreshed)
	return refreshed, nil
}

// SignOut forgets the local session; tokens are stateless and simply expire.
func (p *OTPProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	err := p.storage.Delete(SESSION_STORAGE_KEY)
	p.mu.Unlock()

	p.Emit(session.SIGNED_OUT, nil)
	return err
}
