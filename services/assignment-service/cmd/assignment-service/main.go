package main

import (
	"os"
	"time"

	"github.com/md-rashed-zaman/staffsync/libs/bootstrap"
	"github.com/md-rashed-zaman/staffsync/libs/config"
	"github.com/md-rashed-zaman/staffsync/libs/eventbus"
	"github.com/md-rashed-zaman/staffsync/libs/grpcx"
	"github.com/md-rashed-zaman/staffsync/libs/httpx"
	"github.com/md-rashed-zaman/staffsync/libs/inbox"
	"github.com/md-rashed-zaman/staffsync/libs/outbox"
	"github.com/md-rashed-zaman/staffsync/libs/runtime"
	"github.com/md-rashed-zaman/staffsync/services/assignment-service/internal/denorm"
	"github.com/md-rashed-zaman/staffsync/services/assignment-service/internal/directory"
	"github.com/md-rashed-zaman/staffsync/services/assignment-service/internal/handlers"
	"github.com/md-rashed-zaman/staffsync/services/assignment-service/internal/saga"
	"github.com/md-rashed-zaman/staffsync/services/assignment-service/internal/storage"
	"github.com/md-rashed-zaman/staffsync/services/assignment-service/migrations"
)

type Config struct {
	config.Service
	EmployeeServiceURL  string        `env:"EMPLOYEE_SERVICE_URL" envDefault:"http://employee-service:8081"`
	ProjectServiceURL   string        `env:"PROJECT_SERVICE_URL" envDefault:"http://project-service:8082"`
	EmployeeServiceGRPC string        `env:"EMPLOYEE_SERVICE_GRPC_ADDR"`
	ProjectServiceGRPC  string        `env:"PROJECT_SERVICE_GRPC_ADDR"`
	PeerTimeout         time.Duration `env:"PEER_TIMEOUT" envDefault:"5s"`
	ConsumerGroup       string        `env:"KAFKA_CONSUMER_GROUP" envDefault:"assignment-service"`
}

func main() {
	var cfg Config
	if err := config.Load(&cfg, map[string]string{
		"SERVICE_NAME": "assignment-service",
		"PORT":         "8083",
		"GRPC_PORT":    "9083",
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

	for name, addr := range map[string]string{
		"employee-service": cfg.EmployeeServiceGRPC,
		"project-service":  cfg.ProjectServiceGRPC,
	} {
		if addr == "" {
			continue
		}
		conn, err := grpcx.Dial(addr, grpcx.DialOptions{})
		if err != nil {
			app.Logger.Error("peer dial failed", "peer", name, "err", err)
			continue
		}
		defer conn.Close()
		app.AddReadyCheck(name, grpcx.HealthCheck(conn))
	}

	peerClient := httpx.NewClient(cfg.PeerTimeout)
	employees := directory.NewEmployeeClient(cfg.EmployeeServiceURL, peerClient)
	projects := directory.NewProjectClient(cfg.ProjectServiceURL, peerClient)

	outboxRepo := outbox.NewRepository(app.Pool)
	repo := storage.NewRepository(app.Pool, outboxRepo)
	journal := storage.NewSagaJournal(app.Pool)
	orchestrator := saga.New(employees, projects, repo, journal, app.Logger)
	api := handlers.New(orchestrator, repo, projects, journal, app.Logger)

	tasks := []runtime.Task{{
		Name: "outbox-publisher",
		Run: outbox.NewPublisher(app.Pool, outboxRepo, app.Logger, outbox.PublisherConfig{
			Brokers:   cfg.KafkaBrokers,
			PollEvery: cfg.OutboxPollInterval,
			BatchSize: cfg.OutboxBatchSize,
		}).Run,
	}}

	registry := eventbus.NewRegistry()
	denorm.Register(registry, repo, app.Logger)
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
