package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Daskott/relief/models"
	"github.com/Daskott/relief/records"
	"github.com/Daskott/relief/server/logger"
	"github.com/Daskott/relief/utils"
)

// STORAGE_KEY is where {user, isAuthenticated} is persisted.
const STORAGE_KEY = "auth-storage"

var logg = logger.NewLogger()

type Phase string

const (
	PHASE_UNKNOWN         Phase = "unknown"
	PHASE_UNAUTHENTICATED Phase = "unauthenticated"
	PHASE_OTP_SENT        Phase = "otpSent"
	PHASE_AUTHENTICATED   Phase = "authenticated"
)

// State is a snapshot of the authentication state. Only User and
// IsAuthenticated survive a restart.
type State struct {
	User            *models.User `json:"user"`
	IsAuthenticated bool         `json:"isAuthenticated"`
	IsOTPSent       bool         `json:"-"`
	IsLoading       bool         `json:"-"`
}

// Manager owns the authentication state of one process. Construct one with
// NewManager and hand it to whatever needs identity.
type Manager struct {
	provider AuthProvider
	storage  Storage
	phone    records.PhoneFormatter

	mu          sync.RWMutex
	state       State
	restored    bool
	initOnce    sync.Once
	unsubscribe func()
}

// NewManager hydrates the persisted state from storage. The state stays in the
// unknown phase until Initialize or RestoreSession has asked the provider.
func NewManager(provider AuthProvider, storage Storage, phone records.PhoneFormatter) *Manager {
	m := &Manager{
		provider: provider,
		storage:  storage,
		phone:    phone,
		state:    State{IsLoading: true},
	}

	raw, err := storage.Get(STORAGE_KEY)
	if err != nil {
		logg.Warnf("failed to read persisted auth state: %v", err)
		return m
	}

	if raw != nil {
		persisted := State{}
		if err := json.Unmarshal(raw, &persisted); err != nil {
			logg.Warnf("ignoring corrupt persisted auth state: %v", err)
			return m
		}
		m.state.User = persisted.User
		m.state.IsAuthenticated = persisted.IsAuthenticated
	}
	return m
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state := m.state
	if state.User != nil {
		user := *state.User
		state.User = &user
	}
	return state
}

func (m *Manager) Phase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()

	switch {
	case !m.restored:
		return PHASE_UNKNOWN
	case m.state.IsAuthenticated:
		return PHASE_AUTHENTICATED
	case m.state.IsOTPSent:
		return PHASE_OTP_SENT
	}
	return PHASE_UNAUTHENTICATED
}

// Initialize restores the session and subscribes to provider session events.
// Only the first call has any effect.
func (m *Manager) Initialize(ctx context.Context) {
	m.initOnce.Do(func() {
		m.RestoreSession(ctx)

		unsubscribe := m.provider.OnSessionEvent(m.handleEvent)

		m.mu.Lock()
		m.unsubscribe = unsubscribe
		m.mu.Unlock()
	})
}

// RestoreSession asks the provider for its current session. Any failure leaves
// the manager logged out, it is never returned.
func (m *Manager) RestoreSession(ctx context.Context) {
	m.setLoading(true)

	s, err := m.provider.CurrentSession(ctx)
	if err != nil {
		logg.Warnf("failed to restore session: %v", err)
		s = nil
	}

	if s == nil {
		m.update(func(state *State) {
			state.User = nil
			state.IsAuthenticated = false
			state.IsLoading = false
		})
		return
	}

	user := UserFromProvider(s.User, "")
	m.update(func(state *State) {
		state.User = user
		state.IsAuthenticated = true
		state.IsLoading = false
	})
	logg.Debugf("session restored for user %v", utils.MaskPhone(user.PhoneNumber))
}

// SendOTP asks the provider to text a code to phone, normalized first.
func (m *Manager) SendOTP(ctx context.Context, phone string) error {
	if err := records.ValidatePhone(phone); err != nil {
		return err
	}

	m.setLoading(true)
	err := m.provider.SendOTP(ctx, m.phone.Normalize(phone))
	if err != nil {
		m.setLoading(false)
		return err
	}

	m.update(func(state *State) {
		state.IsOTPSent = true
		state.IsLoading = false
	})
	return nil
}

// VerifyOTP checks code with the provider. On failure the manager returns to
// unauthenticated and the provider error is returned unmodified.
func (m *Manager) VerifyOTP(ctx context.Context, phone string, code string) error {
	normalized := m.phone.Normalize(phone)

	m.setLoading(true)
	s, err := m.provider.VerifyOTP(ctx, normalized, code, CHANNEL_SMS)
	if err == nil && s == nil {
		err = &AuthError{Message: "OTP verification failed"}
	}

	if err != nil {
		m.update(func(state *State) {
			state.IsOTPSent = false
			state.IsLoading = false
		})
		return err
	}

	user := UserFromProvider(s.User, normalized)
	m.update(func(state *State) {
		state.User = user
		state.IsAuthenticated = true
		state.IsOTPSent = false
		state.IsLoading = false
	})
	return nil
}

// Login validates and normalizes phone, then verifies code for it.
func (m *Manager) Login(ctx context.Context, phone string, code string) error {
	if err := records.ValidatePhone(phone); err != nil {
		return err
	}
	return m.VerifyOTP(ctx, phone, code)
}

// Logout signs out of the provider. A provider failure is logged; local state
// is cleared regardless.
func (m *Manager) Logout(ctx context.Context) {
	if err := m.provider.SignOut(ctx); err != nil {
		logg.Warnf("error signing out: %v", err)
	}

	m.update(func(state *State) {
		state.User = nil
		state.IsAuthenticated = false
		state.IsOTPSent = false
	})
}

// SetUser replaces the current user; a nil user logs the manager out locally.
func (m *Manager) SetUser(user *models.User) {
	m.update(func(state *State) {
		state.User = user
		state.IsAuthenticated = user != nil
	})
}

// Close stops listening to provider session events.
func (m *Manager) Close() {
	m.mu.Lock()
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (m *Manager) handleEvent(event Event, s *Session) {
	logg.Debugf("auth state changed: %v", event)

	switch event {
	case SIGNED_IN, TOKEN_REFRESHED:
		if s == nil {
			return
		}

		user := UserFromProvider(s.User, "")
		m.update(func(state *State) {
			state.User = user
			state.IsAuthenticated = true
		})
	case SIGNED_OUT:
		m.update(func(state *State) {
			state.User = nil
			state.IsAuthenticated = false
		})
	}
}

func (m *Manager) setLoading(loading bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.IsLoading = loading
}

// update applies fn and persists the result. Persisting failures are logged;
// the in-memory state stays authoritative.
func (m *Manager) update(fn func(state *State)) {
	m.mu.Lock()
	fn(&m.state)
	m.restored = true
	raw, err := json.Marshal(m.state)
	m.mu.Unlock()

	if err == nil {
		err = m.storage.Set(STORAGE_KEY, raw)
	}

	if err != nil {
		logg.Warnf("failed to persist auth state: %v", err)
	}
}

// UserFromProvider mirrors a provider identity into a models.User. phone is
// used when the provider did not report one.
func UserFromProvider(pu ProviderUser, phone string) *models.User {
	phone = utils.FirstNonBlank(pu.Phone, metadataString(pu.UserMetadata, "phone"), phone)

	createdAt := pu.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	return &models.User{
		ID: pu.ID,
		Email: utils.FirstNonBlank(
			pu.Email,
			metadataString(pu.UserMetadata, "email"),
			fmt.Sprintf("%v@example.com", phone),
		),
		Name: utils.FirstNonBlank(
			metadataString(pu.UserMetadata, "full_name"),
			metadataString(pu.UserMetadata, "name"),
			phone,
			"User",
		),
		PhoneNumber: phone,
		CreatedAt:   createdAt,
		UpdatedAt:   time.Now().UTC(),
	}
}

func metadataString(metadata map[string]interface{}, key string) string {
	value, _ := metadata[key].(string)
	return value
}
