// Package session owns the process wide authentication state: who is signed in,
// whether an OTP is outstanding, and the copy of {user, isAuthenticated} kept in
// local storage across restarts.
package session

import (
	"context"
	"fmt"
	"time"
)

// CHANNEL_SMS is the only OTP channel relief uses.
const CHANNEL_SMS = "sms"

// Event is pushed by an AuthProvider when its session changes.
type Event string

const (
	SIGNED_IN       Event = "SIGNED_IN"
	SIGNED_OUT      Event = "SIGNED_OUT"
	TOKEN_REFRESHED Event = "TOKEN_REFRESHED"
)

// ProviderUser is the identity as reported by the auth provider.
type ProviderUser struct {
	ID           string                 `json:"id"`
	Phone        string                 `json:"phone"`
	Email        string                 `json:"email"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// Session is an authenticated provider session.
type Session struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresAt    time.Time    `json:"expires_at"`
	User         ProviderUser `json:"user"`
}

// Expired reports whether the access token expires within leeway.
func (s *Session) Expired(leeway time.Duration) bool {
	return !s.ExpiresAt.IsZero() && time.Now().Add(leeway).After(s.ExpiresAt)
}

// AuthProvider is the phone/OTP identity service a Manager delegates to.
type AuthProvider interface {
	SendOTP(ctx context.Context, phone string) error
	VerifyOTP(ctx context.Context, phone string, code string, channel string) (*Session, error)

	// CurrentSession returns nil, nil when nobody is signed in.
	CurrentSession(ctx context.Context) (*Session, error)
	SignOut(ctx context.Context) error

	// OnSessionEvent registers fn for session events and returns a function that
	// removes it.
	OnSessionEvent(fn func(event Event, session *Session)) (unsubscribe func())
}

// AuthError is an auth provider failure. Managers propagate it unmodified.
type AuthError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *AuthError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("auth: %v", e.Message)
	}
	return fmt.Sprintf("auth: %v (%v)", e.Message, e.Code)
}
