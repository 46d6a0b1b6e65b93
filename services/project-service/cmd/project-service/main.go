package main

import (
	"os"

	"github.com/md-rashed-zaman/staffsync/libs/bootstrap"
	"github.com/md-rashed-zaman/staffsync/libs/config"
	"github.com/md-rashed-zaman/staffsync/libs/eventbus"
	"github.com/md-rashed-zaman/staffsync/libs/inbox"
	"github.com/md-rashed-zaman/staffsync/libs/outbox"
	"github.com/md-rashed-zaman/staffsync/libs/runtime"
	"github.com/md-rashed-zaman/staffsync/services/project-service/internal/handlers"
	"github.com/md-rashed-zaman/staffsync/services/project-service/internal/reconcile"
	"github.com/md-rashed-zaman/staffsync/services/project-service/internal/storage"
	"github.com/md-rashed-zaman/staffsync/services/project-service/migrations"
)

type Config struct {
	config.Service
	ConsumerGroup string `env:"KAFKA_CONSUMER_GROUP" envDefault:"project-service"`
}

func main() {
	var cfg Config
	if err := config.Load(&cfg, map[string]string{
		"SERVICE_NAME": "project-service",
		"PORT":         "8082",
		"GRPC_PORT":    "9082",
	}); err != nil {
		panic(err)
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	ctx, stop := runtime.SignalContext()
	defer stop()

	app, err := bootstrap.New(ctx, cfg.Service, migrations.FS)
	defer app.Close()
	if err != nil {
		app.Logger.Error("startup failed", "err", err)
		app.Close()
		os.Exit(1)
	}

	outboxRepo := outbox.NewRepository(app.Pool)
	repo := storage.NewRepository(app.Pool, outboxRepo)
	api := handlers.New(repo, app.Logger)

	tasks := []runtime.Task{{
		Name: "outbox-publisher",
		Run: outbox.NewPublisher(app.Pool, outboxRepo, app.Logger, outbox.PublisherConfig{
			Brokers:   cfg.KafkaBrokers,
			PollEvery: cfg.OutboxPollInterval,
			BatchSize: cfg.OutboxBatchSize,
		}).Run,
	}}

	registry := eventbus.NewRegistry()
	reconcile.Register(registry, repo, app.Logger)
	consumer := eventbus.NewConsumer(app.Logger, registry, inbox.NewRepository(app.Pool), eventbus.ConsumerConfig{
		Brokers: cfg.KafkaBrokers,
		GroupID: cfg.ConsumerGroup,
	})
	if consumer != nil {
		tasks = append(tasks, runtime.Task{Name: "event-consumer", Run: consumer.Run})
	} else {
		app.Logger.Warn("event consumer disabled (no kafka brokers configured)")
	}

	if err := app.Run(ctx, app.Handler(api.Routes()), tasks...); err != nil && ctx.Err() == nil {
		app.Logger.Error("service stopped", "err", err)
		app.Close()
		os.Exit(1)
	}
}
