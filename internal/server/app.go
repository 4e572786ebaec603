// Package server initializes and runs the application server.
// It loads configuration, prepares the database and the encryption key,
// wires the services together and starts the HTTP server with graceful
// shutdown on OS signals.
package server

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/chatvault/chatvault/internal/cryptox"
	"github.com/chatvault/chatvault/internal/logging"
	"github.com/chatvault/chatvault/internal/server/config"
	"github.com/chatvault/chatvault/internal/server/httpapi"
	"github.com/chatvault/chatvault/internal/server/keys"
	"github.com/chatvault/chatvault/internal/server/llm"
	"github.com/chatvault/chatvault/internal/server/repomanager"
	"github.com/chatvault/chatvault/internal/server/resolver"
	"github.com/chatvault/chatvault/internal/server/users"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	httpServer *httpapi.Server
}

func NewApp(cfg *config.Config) (*App, error) {

	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	encryptionKey, degraded, err := loadEncryptionKey(cfg, logger)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	us := users.NewService(rm.Users(db), cfg)
	ks := keys.NewService(db, encryptionKey)
	cr := resolver.New(ks, cfg.FallbackAPIKey)
	client := llm.NewClient(cfg.UpstreamBaseURL)

	httpServer := httpapi.NewServer(cfg.EndpointAddr, logger, us, ks, cr, client,
		httpapi.Options{
			SecretKey:          cfg.SecretKey,
			DefaultModel:       cfg.DefaultModel,
			DemoAvailable:      cfg.FallbackAPIKey != "",
			DegradedEncryption: degraded,
		})

	return &App{config: cfg, logger: logger, db: db, httpServer: httpServer}, nil
}

// loadEncryptionKey decodes the configured vault key. A missing key is fatal
// unless ephemeral mode was explicitly requested, in which case a random
// process-lifetime key is generated and stored secrets from previous runs
// become unreadable.
func loadEncryptionKey(cfg *config.Config, logger logging.Logger) ([]byte, bool, error) {
	key, err := cryptox.KeyFromBase64(cfg.EncryptionKey)
	if err == nil {
		return key, false, nil
	}

	if errors.Is(err, cryptox.ErrMissingKey) && cfg.AllowEphemeralKey {
		key = cryptox.NewRandomKey()
		logger.Warn(context.Background(),
			"No encryption key configured, running with an ephemeral key. "+
				"Stored credentials will not survive a restart. "+
				"Set a permanent key to leave degraded mode.",
			"generated_key", base64.StdEncoding.EncodeToString(key))
		return key, true, nil
	}

	return nil, false, fmt.Errorf("encryption key error: %w", err)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.httpServer.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, err.Error())
	}
}
