package api_config

import (
	"time"

	"github.com/NordCoder/KUSeek/internal/obs"
	"github.com/NordCoder/KUSeek/internal/ratelimit"

	pg "github.com/NordCoder/KUSeek/internal/repository/postgres"
	redisrepo "github.com/NordCoder/KUSeek/internal/repository/redis"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type Server struct {
	HTTPAddr          string        `mapstructure:"http_addr"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	GracefulTimeout   time.Duration `mapstructure:"graceful_timeout"`
	TrustProxyHeaders bool          `mapstructure:"trust_proxy_headers"`
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

func (c *Config) LoggerConfig() obs.LogConfig {
	return obs.LogConfig{
		Level:  c.Log.Level,
		Pretty: c.Log.Pretty,
		App:    "kuseek/" + c.App.Name,
		Env:    c.App.Env,
		Ver:    c.App.Version,
	}
}

type Auth struct {
	JWTSecret    string        `mapstructure:"jwt_secret"`
	AccessTTL    time.Duration `mapstructure:"access_ttl"`
	RefreshTTL   time.Duration `mapstructure:"refresh_ttl"`
	CookieName   string        `mapstructure:"cookie_name"`
	CookieDomain string        `mapstructure:"cookie_domain"`
	CookiePath   string        `mapstructure:"cookie_path"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
	// argon2id cost, KiB and passes
	HashMemory  uint32 `mapstructure:"hash_memory"`
	HashTime    uint32 `mapstructure:"hash_time"`
	HashThreads uint8  `mapstructure:"hash_threads"`
}

type RateLimit struct {
	API   ratelimit.Policy `mapstructure:"api"`
	Login ratelimit.Policy `mapstructure:"login"`
}

type CORS struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type Config struct {
	App       App              `mapstructure:"app"`
	Server    Server           `mapstructure:"server"`
	DB        pg.Config        `mapstructure:"db"`
	Redis     redisrepo.Config `mapstructure:"redis"`
	OTEL      OTEL             `mapstructure:"otel"`
	Log       Log              `mapstructure:"log"`
	Auth      Auth             `mapstructure:"auth"`
	RateLimit RateLimit        `mapstructure:"ratelimit"`
	CORS      CORS             `mapstructure:"cors"`
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }
