package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type ProducerConfig struct {
	Brokers           []string `mapstructure:"brokers"`
	Topic             string   `mapstructure:"topic"`
	Partitions        int      `mapstructure:"partitions"`
	ReplicationFactor int      `mapstructure:"replication_factor"`
}

// BootstrapProducer makes sure the topic exists before handing out a
// producer for it. A missing topic is logged, not fatal: the writer may
// still auto-create it.
func BootstrapProducer(ctx context.Context, cfg ProducerConfig, logger *zap.Logger) *Producer {
	_ = EnsureTopic(ctx, cfg.Brokers, TopicSpec{
		Name:              cfg.Topic,
		NumPartitions:     cfg.Partitions,
		ReplicationFactor: cfg.ReplicationFactor,
		MaxWait:           5 * time.Second,
	}, logger)

	return NewProducer(cfg.Brokers, cfg.Topic).WithLogger(logger)
}
