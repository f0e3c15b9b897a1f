package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/NordCoder/KUSeek/internal/config/outbox-relay"
	"github.com/NordCoder/KUSeek/internal/obs"
	"github.com/NordCoder/KUSeek/internal/obs/retry"
	"github.com/NordCoder/KUSeek/internal/outbox"
	"github.com/NordCoder/KUSeek/internal/repository/kafka"
	pg "github.com/NordCoder/KUSeek/internal/repository/postgres"
	"go.uber.org/zap"
)

func main() {
	root, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := os.Getenv("KUSEEK_CONFIG")
	if path == "" {
		path = "config/outbox-relay.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal(err)
	}

	// logger
	l, err := obs.NewLogger(cfg.LoggerConfig())
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()

	// otel
	otelCloser, err := obs.SetupOTel(root, cfg.OTEL.AsOTELConfig())
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	// db
	db, err := pg.NewDB(root, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// metrics
	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, db.Ping, l)

	// kafka
	prod := kafka.BootstrapProducer(root, cfg.Kafka, l)
	defer func() { _ = prod.Close() }()
	events := kafka.NewAuthEventsKafka(prod)

	runner := outbox.NewOutboxRunner(
		l,
		pg.NewOutboxRepo(db),
		outbox.MakeGlobalOutboxHandler(events, retry.DefaultKafkaPolicy(l)),
		cfg.Outbox.Workers,
		cfg.Outbox.BatchSize,
		cfg.Outbox.WaitTime,
		cfg.Outbox.InProgressTTL,
	)

	go pruneSessions(root, pg.NewSessionRepo(db), cfg.Sessions.PruneInterval, l)

	l.Info("outbox relay started", zap.String("topic", cfg.Kafka.Topic), zap.Int("workers", cfg.Outbox.Workers))
	runner.Run(root)

	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
