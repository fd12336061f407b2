package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lborres/tanod"
	fiberadapter "github.com/lborres/tanod/adapters/fiber"
	"github.com/lborres/tanod/adapters/memory"
	mongoadapter "github.com/lborres/tanod/adapters/mongo"
	pgxadapter "github.com/lborres/tanod/adapters/pgx"
	"github.com/lborres/tanod/logging"
	"github.com/lborres/tanod/notify"
)

func main() {
	ctx := context.Background()

	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	storage, cleanup, err := buildStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer cleanup()

	app := fiber.New()
	app.Use(logger.New())

	t, err := tanod.New(tanod.Config{
		Secret:          cfg.Secret,
		Storage:         storage,
		HTTP:            fiberadapter.New(app),
		Notifier:        buildNotifier(cfg, logr),
		Logger:          logr,
		Mail:            tanod.MailConfig{From: cfg.MailFrom, SiteName: cfg.SiteName},
		SessionTTL:      cfg.SessionTTL,
		VerificationTTL: cfg.VerificationTTL,
		ResetTTL:        cfg.ResetTTL,
		BasePath:        cfg.BasePath,
	})
	if err != nil {
		log.Fatalf("could not create tanod instance: %v", err)
	}

	logr.Info(ctx, "starting server", "addr", cfg.Addr, "storage", cfg.Storage, "strategies", t.Orchestrator.Strategies())

	if err := app.Listen(cfg.Addr); err != nil {
		log.Fatalf("app.Listen: %v", err)
	}
}

func buildStorage(ctx context.Context, cfg *Config) (tanod.AuthStorage, func(), error) {
	switch cfg.Storage {
	case "memory":
		return memory.New(), func() {}, nil

	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("pgxpool.New: %w", err)
		}
		return pgxadapter.New(pool), pool.Close, nil

	case "mongo":
		client, err := mongodriver.Connect(ctx, options.Client().ApplyURI(cfg.MongoURL))
		if err != nil {
			return nil, nil, fmt.Errorf("mongo.Connect: %w", err)
		}
		adapter := mongoadapter.New(client, mongoadapter.Config{DBName: cfg.MongoDB})
		if err := adapter.EnsureIndexes(ctx); err != nil {
			return nil, nil, fmt.Errorf("mongo indexes: %w", err)
		}
		cleanup := func() { _ = client.Disconnect(context.Background()) }
		return adapter, cleanup, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage)
	}
}

func buildNotifier(cfg *Config, logr logging.Logger) tanod.Notifier {
	mailCfg := notify.Config{From: cfg.MailFrom, SiteName: cfg.SiteName}

	if cfg.SMTPAddr != "" {
		return notify.NewMailer(mailCfg, notify.NewSMTPSender(notify.SMTPConfig{
			Addr:     cfg.SMTPAddr,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		}))
	}

	return notify.NewMailer(mailCfg, notify.NewLogSender(logr))
}
