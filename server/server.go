// Package server exposes relief's record, support and sign in operations as a
// JSON HTTP API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Daskott/relief/backend"
	"github.com/Daskott/relief/records"
	"github.com/Daskott/relief/server/auth"
	"github.com/Daskott/relief/server/auth/key"
	"github.com/Daskott/relief/server/gstorage"
	"github.com/Daskott/relief/server/logger"
	"github.com/Daskott/relief/server/metrics"
	"github.com/Daskott/relief/server/twilio"
	"github.com/Daskott/relief/server/work"
	"github.com/Daskott/relief/shared"
	"github.com/Daskott/relief/store/gormstore"
	"github.com/Daskott/relief/support"
	"github.com/Daskott/relief/utils"
	"github.com/gorilla/mux"
)

const (
	DEFAULT_OTP_PER_MINUTE = 3
	DEFAULT_OTP_BURST      = 3
)

var logg = logger.NewLogger()

type App struct {
	records   *records.Records
	supports  *support.Manager
	phone     records.PhoneFormatter
	verifier  backend.TokenVerifier
	otp       *auth.OTPService
	keyPair   *key.KeyPair
	messenger twilio.Messenger
	workers   *work.WorkerPoolAdapter

	otpLimiter       *rateLimiter
	notifyRequesters bool
	backup           *sqliteBackup
}

type Options struct {
	// Workers runs background jobs; without it requesters are never notified.
	Workers          *work.WorkerPoolAdapter
	Messenger        twilio.Messenger
	NotifyRequesters bool
	RateLimit        shared.RateLimitConfig
}

func NewApp(b *backend.Backend, opts Options) *App {
	perMinute := opts.RateLimit.OTPPerMinute
	if perMinute <= 0 {
		perMinute = DEFAULT_OTP_PER_MINUTE
	}

	burst := opts.RateLimit.OTPBurst
	if burst <= 0 {
		burst = DEFAULT_OTP_BURST
	}

	messenger := opts.Messenger
	if messenger == nil {
		messenger = &twilio.LogMessenger{}
	}

	return &App{
		records:          b.Records,
		supports:         b.Supports,
		phone:            b.Phone,
		verifier:         b.Verifier,
		otp:              b.OTP,
		keyPair:          b.KeyPair,
		messenger:        messenger,
		workers:          opts.Workers,
		otpLimiter:       newRateLimiter(perMinute, burst),
		notifyRequesters: opts.NotifyRequesters,
	}
}

// Router returns the API routes. Sign in routes are only mounted when relief
// issues its own sessions.
func (a *App) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(loggingMiddleware, metrics.InstrumentHandler)

	router.Handle("/metrics", metrics.Handler()).Methods("GET")
	router.HandleFunc("/health", health).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(initialContextMiddleware)

	if a.otp != nil {
		router.HandleFunc("/.well-known/jwks.json", a.jwks).Methods("GET")

		api.HandleFunc("/auth/otp", a.sendOTP).Methods("POST")
		api.HandleFunc("/auth/verify", a.verifyOTP).Methods("POST")
		api.HandleFunc("/auth/refresh", a.refreshSession).Methods("POST")
	}
	api.Handle("/auth/me", a.protected(a.me)).Methods("GET")

	api.HandleFunc("/provinces", a.listProvinces).Methods("GET")
	api.Handle("/provinces", a.protected(a.createProvince)).Methods("POST")
	api.HandleFunc("/provinces/{id}", a.getProvince).Methods("GET")
	api.Handle("/provinces/{id}", a.protected(a.updateProvince)).Methods("PUT")
	api.Handle("/provinces/{id}", a.protected(a.deleteProvince)).Methods("DELETE")

	api.HandleFunc("/help-records", a.listHelpRecords).Methods("GET")
	api.HandleFunc("/help-records", a.createHelpRecord).Methods("POST")
	api.HandleFunc("/help-records/{id}", a.getHelpRecord).Methods("GET")
	api.Handle("/help-records/{id}", a.protected(a.updateHelpRecord)).Methods("PUT")
	api.Handle("/help-records/{id}", a.protected(a.deleteHelpRecord)).Methods("DELETE")

	api.HandleFunc("/help-records/{id}/supports", a.listHelpRecordSupports).Methods("GET")
	api.Handle("/help-records/{id}/support", a.protected(a.getSupport)).Methods("GET")
	api.Handle("/help-records/{id}/support", a.protected(a.updateSupport)).Methods("PUT")
	api.Handle("/help-records/{id}/support", a.protected(a.deleteSupport)).Methods("DELETE")
	api.Handle("/help-records/{id}/support/advance", a.protected(a.advanceSupport)).Methods("POST")

	api.HandleFunc("/teams", a.listTeams).Methods("GET")
	api.Handle("/teams", a.protected(a.registerTeam)).Methods("POST")
	api.HandleFunc("/teams/{phone}", a.getTeam).Methods("GET")
	api.Handle("/teams/{phone}", a.protected(a.updateTeam)).Methods("PUT")
	api.Handle("/teams/{phone}", a.protected(a.deleteTeam)).Methods("DELETE")
	api.HandleFunc("/teams/{phone}/supports", a.listTeamSupports).Methods("GET")

	return router
}

// Start runs the relief server until SIGINT/SIGTERM.
func Start(cfg *shared.Config, devMode bool) {
	fatalOnError(shared.ValidateConfig(cfg))

	configDir := configDirectory(devMode)
	sqliteDir := utils.FirstNonBlank(cfg.Sqlite.Dir, configDir)

	var bucket *gstorage.GStorage
	if cfg.Store.Backend == shared.SQLITE_BACKEND && cfg.Google.Storage.EnableSqliteBackupAndSync {
		var err error
		bucket, err = gstorage.NewGStorage(
			context.Background(),
			cfg.Google.ApplicationCredentials,
			cfg.Google.Storage.Bucket,
			cfg.Google.Storage.Prefix,
		)
		fatalOnError(err)
		defer bucket.Close()

		dbDir, err := gormstore.DbDirectory(sqliteDir)
		fatalOnError(err)
		fatalOnError(restoreSqliteDb(context.Background(), bucket, filepath.Join(dbDir, gormstore.DB_NAME)))
	}

	messenger := twilio.NewMessenger(cfg.Twilio)
	b, err := backend.New(cfg, configDir, messenger)
	fatalOnError(err)

	workers := work.NewWorkerAdapter(cfg.Relief.Cron.TimeZone)
	app := NewApp(b, Options{
		Workers:          workers,
		Messenger:        messenger,
		NotifyRequesters: cfg.Relief.NotifyRequesters,
		RateLimit:        cfg.Relief.RateLimit,
	})

	if bucket != nil {
		app.backup = newSqliteBackup(bucket, b, cfg.Google.Storage.SqliteBackupSchedule)
	}

	fatalOnError(app.registerJobHandlers())
	fatalOnError(app.enqueueJobs())
	fatalOnError(workers.Start())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%v", cfg.Relief.Listener.Port),
		Handler: app.Router(),
	}
	go serve(server)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-done

	cleanup(app, b, server)
}

func serve(server *http.Server) {
	logg.Infof("relief server is listening on port%v", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Fatal(err)
	}
}

func cleanup(app *App, b *backend.Backend, server *http.Server) {
	ctxShutDown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutDown); err != nil {
		logg.Errorf("relief server shutdown failed: %v", err)
	}

	if app.workers != nil {
		app.workers.Stop()
	}

	if app.backup != nil {
		if err := app.backup.run(ctxShutDown); err != nil {
			logg.Errorf("final sqlite backup failed: %v", err)
		}
	}

	if err := b.Close(); err != nil {
		logg.Errorf("failed to close store: %v", err)
	}

	logg.Infof("relief server stopped properly")
}

// configDirectory retrieves the directory relief keeps its data in, or logs
// an error message and then calls os.Exit if it's unable to.
func configDirectory(devMode bool) string {
	// Use '.relief' folder in home directory for prod
	configFolderName := ".relief"
	rootDir, err := os.UserHomeDir()
	fatalOnError(err)

	// Use 'dev' folder in current directory for dev mode
	if devMode {
		configFolderName = "dev"
		rootDir, err = os.Getwd()
		fatalOnError(err)
	}

	configDir := filepath.Join(rootDir, configFolderName)

	err = utils.CreateDirIfNotExist(configDir)
	fatalOnError(err)

	return configDir
}

func fatalOnError(err error) {
	if err != nil {
		logg.Fatal(err)
	}
}
