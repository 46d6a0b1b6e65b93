package main

import (
	"os"

	"github.com/md-rashed-zaman/staffsync/libs/bootstrap"
	"github.com/md-rashed-zaman/staffsync/libs/config"
	"github.com/md-rashed-zaman/staffsync/libs/outbox"
	"github.com/md-rashed-zaman/staffsync/libs/runtime"
	"github.com/md-rashed-zaman/staffsync/services/employee-service/internal/handlers"
	"github.com/md-rashed-zaman/staffsync/services/employee-service/internal/storage"
	"github.com/md-rashed-zaman/staffsync/services/employee-service/migrations"
)

func main() {
	var cfg config.Service
	if err := config.Load(&cfg, map[string]string{
		"SERVICE_NAME": "employee-service",
		"PORT":         "8081",
		"GRPC_PORT":    "9081",
	}); err != nil {
		panic(err)
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	ctx, stop := runtime.SignalContext()
	defer stop()

	app, err := bootstrap.New(ctx, cfg, migrations.FS)
	defer app.Close()
	if err != nil {
		app.Logger.Error("startup failed", "err", err)
		app.Close()
		os.Exit(1)
	}

	outboxRepo := outbox.NewRepository(app.Pool)
	repo := storage.NewRepository(app.Pool, outboxRepo)
	api := handlers.New(repo, app.Logger)
	publisher := outbox.NewPublisher(app.Pool, outboxRepo, app.Logger, outbox.PublisherConfig{
		Brokers:   cfg.KafkaBrokers,
		PollEvery: cfg.OutboxPollInterval,
		BatchSize: cfg.OutboxBatchSize,
	})

	err = app.Run(ctx, app.Handler(api.Routes()),
		runtime.Task{Name: "outbox-publisher", Run: publisher.Run},
	)
	if err != nil && ctx.Err() == nil {
		app.Logger.Error("service stopped", "err", err)
		app.Close()
		os.Exit(1)
	}
}
