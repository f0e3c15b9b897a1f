package outbox_relay_config

import (
	"time"

	"github.com/NordCoder/KUSeek/internal/obs"
	"github.com/NordCoder/KUSeek/internal/repository/kafka"

	pginfra "github.com/NordCoder/KUSeek/internal/repository/postgres"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func (oc *OTEL) AsOTELConfig() *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      oc.Enable,
		Endpoint:    oc.OTLPEndpoint,
		ServiceName: oc.ServiceName,
		SampleRatio: oc.SampleRatio,
	}
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type Outbox struct {
	Workers       int           `mapstructure:"workers"`
	BatchSize     int           `mapstructure:"batch_size"`
	WaitTime      time.Duration `mapstructure:"wait_time"`
	InProgressTTL time.Duration `mapstructure:"in_progress_ttl"`
}

type Sessions struct {
	PruneInterval time.Duration `mapstructure:"prune_interval"`
}

type Server struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type Config struct {
	App      App                  `mapstructure:"app"`
	DB       pginfra.Config       `mapstructure:"db"`
	Kafka    kafka.ProducerConfig `mapstructure:"kafka"`
	Outbox   Outbox               `mapstructure:"outbox"`
	Sessions Sessions             `mapstructure:"sessions"`
	Server   Server               `mapstructure:"server"`
	OTEL     OTEL                 `mapstructure:"otel"`
	Log      Log                  `mapstructure:"log"`
}

func (c *Config) LoggerConfig() obs.LogConfig {
	return obs.LogConfig{
		Level:  c.Log.Level,
		Pretty: c.Log.Pretty,
		App:    "kuseek/" + c.App.Name,
		Env:    c.App.Env,
		Ver:    c.App.Version,
	}
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }
