package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/activitymap"
	"github.com/goliatone/go-accounts/config"
	"github.com/goliatone/go-accounts/mailer"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
)

type App struct {
	config   *config.Config
	logger   *glog.BaseLogger
	accounts *accounts.Accounts
	srv      *fiber.App
}

// GetLogger returns a named logger for a component
func (a *App) GetLogger(name string) accounts.Logger {
	return newLogger(a.logger, name, a.config.Debug)
}

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("accountsd"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg, err := config.Load()
	if err != nil {
		lgr.GetLogger("config").Error("config load failed", "error", err)
		os.Exit(1)
	}

	logger := newLogger(lgr, "app", cfg.Debug)

	if cfg.Debug {
		dump := *cfg
		dump.SigningKey = "***"
		dump.SMTPPassword = "***"
		logger.Debug("config: %s", print.MaybePrettyJSON(dump))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, lgr)
	if err != nil {
		logger.Error("startup failed: %v", err)
		os.Exit(1)
	}

	go app.accounts.Reaper().Run(ctx)

	go func() {
		logger.Info("listening on %s", cfg.Addr)
		if err := app.srv.Listen(cfg.Addr); err != nil {
			logger.Error("server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	if err := app.srv.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("shutdown: %v", err)
	}
}

func newApp(ctx context.Context, cfg *config.Config, lgr *glog.BaseLogger) (*App, error) {
	app := &App{config: cfg, logger: lgr}

	db, err := accounts.OpenDB(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := accounts.Migrate(ctx, db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	if err := accounts.SeedDefaults(ctx, db); err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}

	repo := accounts.NewRepositoryManager(db)
	repo.MustValidate()

	role, err := accounts.ResolveRole(ctx, repo, cfg.GetDefaultRole())
	if err != nil {
		return nil, fmt.Errorf("resolve default role %q: %w", cfg.GetDefaultRole(), err)
	}

	renderer, err := mailer.NewTemplateRenderer(accounts.GetTemplatesFS())
	if err != nil {
		return nil, err
	}

	var sender accounts.Mailer = mailer.NewLogSender(app.GetLogger("mailer"))
	if cfg.SMTPEnabled() {
		sender = mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	}

	acc := accounts.NewAccounts(repo, cfg, sender, role.ID,
		accounts.WithLogger(app.GetLogger("accounts")),
		accounts.WithRenderer(renderer),
		accounts.WithActivitySink(activitymap.LogSink(app.GetLogger("activity"))),
	)

	srv := fiber.New(fiber.Config{
		AppName:               "accountsd",
		DisableStartupMessage: !cfg.Debug,
	})

	accounts.RegisterAccountRoutes(srv, acc,
		accounts.WithControllerDebug(cfg.Debug),
		accounts.WithControllerLogger(app.GetLogger("http")),
	)

	app.accounts = acc
	app.srv = srv

	return app, nil
}

// glogLogger adapts a glog.Logger to the printf style accounts.Logger
type glogLogger struct {
	lgr   glog.Logger
	debug bool
}

func newLogger(base *glog.BaseLogger, name string, debug bool) accounts.Logger {
	return glogLogger{lgr: base.GetLogger(name), debug: debug}
}

func (l glogLogger) Debug(format string, args ...any) {
	if l.debug {
		l.lgr.Debug(fmt.Sprintf(format, args...))
	}
}

func (l glogLogger) Info(format string, args ...any) {
	l.lgr.Info(fmt.Sprintf(format, args...))
}

func (l glogLogger) Warn(format string, args ...any) {
	l.lgr.Warn(fmt.Sprintf(format, args...))
}

func (l glogLogger) Error(format string, args ...any) {
	l.lgr.Error(fmt.Sprintf(format, args...))
}
