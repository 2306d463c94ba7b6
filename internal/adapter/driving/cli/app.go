package cli

import (
	"context"
	"log/slog"

	sqliteadapter "github.com/ericfisherdev/profitpilot/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/profitpilot/internal/adapter/driven/tradingapi"
	"github.com/ericfisherdev/profitpilot/internal/application"
	"github.com/ericfisherdev/profitpilot/internal/config"
)

// app is the wired composition root shared by every command.
type app struct {
	cfg     *config.Config
	db      *sqliteadapter.DB
	session *application.SessionController
	auth    *application.AuthService
	logger  *slog.Logger
}

// bootstrap opens the database and wires the adapters and services. The
// session state is not restored; callers choose Restore or Initialize.
func bootstrap(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	// 1. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	logger.Debug("database opened", "path", db.Path())

	// 2. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		return nil, err
	}

	// 3. Wire driven adapters.
	if !cfg.HasSecretKey() {
		logger.Warn("no secret key configured, login and session commands will fail until PROFITPILOT_SECRET_KEY is set")
	}
	secrets := sqliteadapter.NewSecretRepo(db, cfg.SecretKey)
	sessions := sqliteadapter.NewSessionRepo(db)

	client, err := tradingapi.NewClient(cfg.APIBaseURL, cfg.HTTPTimeout)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	// 4. Create application services.
	session := application.NewSessionController(client, secrets, sessions, logger)
	auth := application.NewAuthService(client, secrets, session, logger)

	return &app{
		cfg:     cfg,
		db:      db,
		session: session,
		auth:    auth,
		logger:  logger,
	}, nil
}

// close waits for background work and closes the database.
func (a *app) close() {
	a.session.Wait()
	if err := a.db.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
	}
}
