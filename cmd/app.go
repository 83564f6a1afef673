package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/Daskott/relief/backend"
	"github.com/Daskott/relief/server/twilio"
	"github.com/Daskott/relief/session"
	"github.com/Daskott/relief/shared"
	"github.com/Daskott/relief/utils"
	"github.com/pkg/errors"
)

// SESSION_FILE_NAME holds the CLI's persisted auth state under the data dir.
const SESSION_FILE_NAME = "session.yaml"

// cliApp is what the record commands work against: the configured backend and
// the signed in user.
type cliApp struct {
	backend   *backend.Backend
	session   *session.Manager
	messenger twilio.Messenger
}

var (
	cli *cliApp

	// newCLIApp builds the cliApp on first use. Tests replace it.
	newCLIApp = buildCLIApp
)

// currentApp returns the cliApp, building it the first time it's needed so
// commands like --help never touch the store.
func currentApp() (*cliApp, error) {
	if cli != nil {
		return cli, nil
	}

	app, err := newCLIApp()
	if err != nil {
		return nil, err
	}

	cli = app
	return cli, nil
}

func closeCLIApp() {
	if cli == nil {
		return
	}

	cli.session.Close()
	if err := cli.backend.Close(); err != nil {
		logg.Warnf("failed to close store: %v", err)
	}
	cli = nil
}

func buildCLIApp() (*cliApp, error) {
	cfg := &shared.Config{}
	if err := config.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "unable to decode config")
	}

	if err := shared.ValidateConfig(cfg); err != nil {
		return nil, formattedError("%v (config: %v)", err, config.ConfigFileUsed())
	}

	dataDir, err := dataDirectory()
	if err != nil {
		return nil, err
	}

	messenger := twilio.NewMessenger(cfg.Twilio)
	b, err := backend.New(cfg, dataDir, messenger)
	if err != nil {
		return nil, err
	}

	storage, err := newFileStorage(filepath.Join(dataDir, SESSION_FILE_NAME))
	if err != nil {
		b.Close()
		return nil, err
	}

	app, err := newCLIAppWith(b, storage, messenger)
	if err != nil {
		b.Close()
		return nil, err
	}
	return app, nil
}

// newCLIAppWith wires a session manager for b and restores the persisted
// session.
func newCLIAppWith(b *backend.Backend, storage session.Storage, messenger twilio.Messenger) (*cliApp, error) {
	provider, err := b.AuthProvider(storage)
	if err != nil {
		return nil, err
	}

	manager := session.NewManager(provider, storage, b.Phone)
	manager.Initialize(context.Background())

	return &cliApp{backend: b, session: manager, messenger: messenger}, nil
}

// dataDirectory is where the CLI keeps the sqlite db, the signing key and
// the session: '~/.relief', or 'dev' in the current directory for --dev.
func dataDirectory() (string, error) {
	rootDir, err := os.UserHomeDir()
	folderName := ".relief"

	if isDevEnv || isTestEnv {
		rootDir, err = os.Getwd()
		folderName = "dev"
	}

	if err != nil {
		return "", err
	}

	dir := filepath.Join(rootDir, folderName)
	if err := utils.CreateDirIfNotExist(dir); err != nil {
		return "", err
	}
	return dir, nil
}

// signedInPhone returns the normalized phone of the signed in user, which is
// also the id of their team.
func (app *cliApp) signedInPhone() (string, error) {
	state := app.session.State()
	if !state.IsAuthenticated || state.User == nil || state.User.PhoneNumber == "" {
		return "", formattedError("you are not signed in, run 'relief login --phone <number>' first")
	}
	return app.backend.Phone.Normalize(state.User.PhoneNumber), nil
}
