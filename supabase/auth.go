package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/Daskott/relief/session"
	"github.com/tidwall/gjson"
)

// SESSION_STORAGE_KEY is where the GoTrue session (tokens + user) is kept.
const SESSION_STORAGE_KEY = "supabase-session"

// refresh this long before the access token actually expires
const expiryLeeway = 30 * time.Second

// AuthClient is a session.AuthProvider over GoTrue's phone OTP flow.
type AuthClient struct {
	session.Emitter

	client  *Client
	storage session.Storage

	// serializes reads and refreshes of the stored session
	mu sync.Mutex
}

func NewAuthClient(client *Client, storage session.Storage) *AuthClient {
	return &AuthClient{client: client, storage: storage}
}

func (a *AuthClient) SendOTP(ctx context.Context, phone string) error {
	body, _ := json.Marshal(map[string]interface{}{"phone": phone})

	resp, err := a.client.do(ctx, http.MethodPost, a.client.authURL+"/otp", body, nil, "")
	if err != nil {
		return err
	}

	if resp.status >= 400 {
		return parseAuthError(resp.body, resp.status)
	}
	return nil
}

func (a *AuthClient) VerifyOTP(ctx context.Context, phone string, code string, channel string) (*session.Session, error) {
	body, _ := json.Marshal(map[string]string{"type": channel, "phone": phone, "token": code})

	resp, err := a.client.do(ctx, http.MethodPost, a.client.authURL+"/verify", body, nil, "")
	if err != nil {
		return nil, err
	}

	if resp.status >= 400 {
		return nil, parseAuthError(resp.body, resp.status)
	}

	s := parseSession(resp.body)
	if s.AccessToken == "" {
		return nil, &session.AuthError{Status: resp.status, Message: "verify response carried no session"}
	}

	a.mu.Lock()
	err = session.SaveSession(a.storage, SESSION_STORAGE_KEY, s)
	a.mu.Unlock()
	if err != nil {
		logg.Warnf("failed to persist supabase session: %v", err)
	}

	a.Emit(session.SIGNED_IN, s)
	return s, nil
}

// CurrentSession returns the stored session, refreshing it first when its
// access token is about to expire. A failed refresh forgets the session.
func (a *AuthClient) CurrentSession(ctx context.Context) (*session.Session, error) {
	a.mu.Lock()

	s, err := session.LoadSession(a.storage, SESSION_STORAGE_KEY)
	if err != nil || s == nil || !s.Expired(expiryLeeway) {
		a.mu.Unlock()
		return s, err
	}

	refreshed, err := a.refresh(ctx, s.RefreshToken)
	if err != nil {
		if delErr := a.storage.Delete(SESSION_STORAGE_KEY); delErr != nil {
			logg.Warnf("failed to forget session after refresh error: %v", delErr)
		}
		a.mu.Unlock()
		return nil, err
	}

	if err := session.SaveSession(a.storage, SESSION_STORAGE_KEY, refreshed); err != nil {
		logg.Warnf("failed to persist supabase session: %v", err)
	}
	a.mu.Unlock()

	a.Emit(session.TOKEN_REFRESHED, refreshed)
	return refreshed, nil
}

// SignOut revokes the session remotely and always forgets it locally.
func (a *AuthClient) SignOut(ctx context.Context) error {
	a.mu.Lock()
	s, err := session.LoadSession(a.storage, SESSION_STORAGE_KEY)
	if err == nil && s != nil {
		var resp *response
		resp, err = a.client.do(ctx, http.MethodPost, a.client.authURL+"/logout", nil, nil, s.AccessToken)
		if err == nil && resp.status >= 400 {
			err = parseAuthError(resp.body, resp.status)
		}
	}

	if delErr := a.storage.Delete(SESSION_STORAGE_KEY); delErr != nil && err == nil {
		err = delErr
	}
	a.mu.Unlock()

	a.Emit(session.SIGNED_OUT, nil)
	return err
}

// AccessToken returns the signed in user's access token, "" when nobody is.
func (a *AuthClient) AccessToken(ctx context.Context) string {
	s, err := a.CurrentSession(ctx)
	if err != nil || s == nil {
		return ""
	}
	return s.AccessToken
}

// VerifyToken resolves an access token to its user through GoTrue.
func (a *AuthClient) VerifyToken(ctx context.Context, accessToken string) (*session.ProviderUser, error) {
	resp, err := a.client.do(ctx, http.MethodGet, a.client.authURL+"/user", nil, nil, accessToken)
	if err != nil {
		return nil, err
	}

	if resp.status >= 400 {
		return nil, parseAuthError(resp.body, resp.status)
	}

	user := parseUser(gjson.ParseBytes(resp.body))
	return &user, nil
}

func (a *AuthClient) refresh(ctx context.Context, refreshToken string) (*session.Session, error) {
	if refreshToken == "" {
		return nil, &session.AuthError{Message: "session has no refresh token"}
	}

	body, _ := json.Marshal(map[string]string{"refresh_token": refreshToken})
	resp, err := a.client.do(ctx, http.MethodPost, a.client.authURL+"/token?grant_type=refresh_token", body, nil, "")
	if err != nil {
		return nil, err
	}

	if resp.status >= 400 {
		return nil, parseAuthError(resp.body, resp.status)
	}
	return parseSession(resp.body), nil
}

func parseSession(body []byte) *session.Session {
	result := gjson.ParseBytes(body)

	s := &session.Session{
		AccessToken:  result.Get("access_token").String(),
		RefreshToken: result.Get("refresh_token").String(),
		TokenType:    result.Get("token_type").String(),
		User:         parseUser(result.Get("user")),
	}

	switch {
	case result.Get("expires_at").Exists():
		s.ExpiresAt = time.Unix(result.Get("expires_at").Int(), 0)
	case result.Get("expires_in").Exists():
		s.ExpiresAt = time.Now().Add(time.Duration(result.Get("expires_in").Int()) * time.Second)
	}
	return s
}

func parseUser(result gjson.Result) session.ProviderUser {
	user := session.ProviderUser{
		ID:           result.Get("id").String(),
		Phone:        result.Get("phone").String(),
		Email:        result.Get("email").String(),
		UserMetadata: map[string]interface{}{},
		CreatedAt:    result.Get("created_at").Time(),
		UpdatedAt:    result.Get("updated_at").Time(),
	}

	if metadata, ok := result.Get("user_metadata").Value().(map[string]interface{}); ok {
		user.UserMetadata = metadata
	}
	return user
}

func parseAuthError(body []byte, status int) *session.AuthError {
	if !gjson.ValidBytes(body) {
		return &session.AuthError{Status: status, Message: string(body)}
	}

	result := gjson.ParseBytes(body)
	return &session.AuthError{
		Status:  status,
		Code:    firstString(result, "error_code", "code", "error"),
		Message: firstString(result, "msg", "message", "error_description", "error"),
	}
}
