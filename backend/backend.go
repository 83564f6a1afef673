// Package backend assembles the store, record services and identity provider
// selected by a relief config.
package backend

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"

	"github.com/Daskott/relief/models"
	"github.com/Daskott/relief/records"
	"github.com/Daskott/relief/server/auth"
	"github.com/Daskott/relief/server/auth/key"
	"github.com/Daskott/relief/server/logger"
	"github.com/Daskott/relief/server/twilio"
	"github.com/Daskott/relief/session"
	"github.com/Daskott/relief/shared"
	"github.com/Daskott/relief/store"
	"github.com/Daskott/relief/store/gormstore"
	"github.com/Daskott/relief/store/memstore"
	"github.com/Daskott/relief/supabase"
	"github.com/Daskott/relief/support"
	"github.com/Daskott/relief/utils"
	"github.com/pkg/errors"
)

const KEY_FILE_NAME = "relief_key.pem"

var logg = logger.NewLogger()

// TokenVerifier resolves a bearer access token to the identity it was issued
// for.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, accessToken string) (*session.ProviderUser, error)
}

type Backend struct {
	Store    store.Store
	Phone    records.PhoneFormatter
	Records  *records.Records
	Supports *support.Manager
	Verifier TokenVerifier

	// OTP and KeyPair are only set when relief issues its own sessions, i.e.
	// for every backend except supabase.
	OTP     *auth.OTPService
	KeyPair *key.KeyPair

	// Supabase is only set for the supabase backend.
	Supabase *supabase.Lazy

	// SqlitePath is only set for the sqlite backend.
	SqlitePath string

	closers []func() error
}

// New builds the backend cfg.Store.Backend names. dataDir holds the sqlite db
// and the generated signing key; it may be empty for the memory backend.
func New(cfg *shared.Config, dataDir string, messenger twilio.Messenger) (*Backend, error) {
	phone := records.PhoneFormatter{CountryCode: cfg.Relief.CountryCode}
	b := &Backend{Phone: phone}

	switch cfg.Store.Backend {
	case shared.SUPABASE_BACKEND:
		supabaseCfg := supabase.Config{URL: cfg.Supabase.URL, AnonKey: cfg.Supabase.AnonKey}
		b.Supabase = supabase.NewLazy(func() (*supabase.Client, error) {
			return supabase.New(supabaseCfg)
		})
		b.Store = b.Supabase
		b.Verifier = &supabaseVerifier{lazy: b.Supabase}

	case shared.SQLITE_BACKEND:
		dbRootDir := utils.FirstNonBlank(cfg.Sqlite.Dir, dataDir)
		gs, err := gormstore.Open(cfg.Sqlite.PassPhrase, dbRootDir)
		if err != nil {
			return nil, errors.Wrap(err, "unable to open sqlite store")
		}
		b.Store = gs
		b.SqlitePath = gs.Path()
		b.closers = append(b.closers, gs.Close)

	case shared.MEMORY_BACKEND:
		b.Store = memstore.New(models.UniqueKeys)

	default:
		return nil, errors.Errorf("unknown store backend '%v'", cfg.Store.Backend)
	}

	if b.Supabase == nil {
		keyPair, err := loadKeyPair(cfg.Relief.PrivateKeyPem, dataDir)
		if err != nil {
			b.Close()
			return nil, err
		}

		b.KeyPair = keyPair
		b.OTP = auth.NewOTPService(b.Store, messenger, keyPair)
		b.Verifier = b.OTP
	}

	b.Records = records.New(b.Store, phone)
	b.Supports = support.NewManager(b.Store, phone)
	return b, nil
}

// AuthProvider returns the identity provider a session.Manager should use,
// persisting its tokens in storage.
func (b *Backend) AuthProvider(storage session.Storage) (session.AuthProvider, error) {
	if b.Supabase == nil {
		return auth.NewOTPProvider(b.OTP, storage), nil
	}

	client, err := b.Supabase.Client()
	if err != nil {
		return nil, err
	}

	authClient := supabase.NewAuthClient(client, storage)
	client.SetAccessTokenSource(authClient.AccessToken)
	return authClient, nil
}

func (b *Backend) Close() error {
	var firstErr error
	for _, closeFn := range b.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type supabaseVerifier struct {
	lazy *supabase.Lazy
}

func (v *supabaseVerifier) VerifyToken(ctx context.Context, accessToken string) (*session.ProviderUser, error) {
	client, err := v.lazy.Client()
	if err != nil {
		return nil, err
	}
	return supabase.NewAuthClient(client, session.NewMemoryStorage()).VerifyToken(ctx, accessToken)
}

// loadKeyPair parses privateKeyPem when set. Otherwise it reuses the key
// generated on a previous run under dataDir, generating one if needed. With
// neither the key only lives as long as the process.
func loadKeyPair(privateKeyPem string, dataDir string) (*key.KeyPair, error) {
	if privateKeyPem != "" {
		return key.NewKeyPairFromPEM(privateKeyPem)
	}

	if dataDir == "" {
		logg.Warn("no 'relief.privateKeyPem' configured, sessions will not survive a restart")
		return generateKeyPair()
	}

	keyPath := filepath.Join(dataDir, KEY_FILE_NAME)
	if utils.FileExist(keyPath) {
		raw, err := os.ReadFile(keyPath)
		if err != nil {
			return nil, errors.Wrap(err, "unable to read signing key")
		}
		return key.NewKeyPairFromPEM(string(raw))
	}

	keyPair, err := generateKeyPair()
	if err != nil {
		return nil, err
	}

	if err := utils.CreateDirIfNotExist(dataDir); err != nil {
		return nil, err
	}

	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(keyPair.PrivateKey)}
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(block), 0600); err != nil {
		return nil, errors.Wrap(err, "unable to save signing key")
	}

	logg.Infof("generated a signing key at %v", keyPath)
	return keyPair, nil
}

func generateKeyPair() (*key.KeyPair, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, errors.Wrap(err, "unable to generate signing key")
	}
	return key.NewKeyPair(privateKey), nil
}
