package ratelimit

import (
	"errors"
	"time"

	domain "github.com/NordCoder/KUSeek/internal/domain/ratelimit"
)

const (
	PolicyAPI   = "api"
	PolicyLogin = "login"
)

// Policy is one fixed-window counter plus its ban set.
type Policy struct {
	Name      string          `mapstructure:"name"`
	Limit     int64           `mapstructure:"limit"`
	Window    time.Duration   `mapstructure:"window"`
	KeyPrefix string          `mapstructure:"key_prefix"`
	BanSet    string          `mapstructure:"ban_set"`
	FailMode  domain.FailMode `mapstructure:"fail_mode"`
}

func DefaultAPIPolicy() Policy {
	return Policy{
		Name:      PolicyAPI,
		Limit:     30,
		Window:    10 * time.Second,
		KeyPrefix: "request",
		BanSet:    "blacklist",
		FailMode:  domain.FailOpen,
	}
}

func DefaultLoginPolicy() Policy {
	return Policy{
		Name:      PolicyLogin,
		Limit:     5,
		Window:    15 * time.Minute,
		KeyPrefix: "login_attempts",
		BanSet:    "login_blacklist",
		FailMode:  domain.FailClosed,
	}
}

func (p Policy) Validate() error {
	switch {
	case p.Name == "":
		return errors.New("ratelimit policy: empty name")
	case p.Limit <= 0:
		return errors.New("ratelimit policy " + p.Name + ": limit must be positive")
	case p.Window < time.Millisecond:
		return errors.New("ratelimit policy " + p.Name + ": window too small")
	case p.KeyPrefix == "" || p.BanSet == "":
		return errors.New("ratelimit policy " + p.Name + ": key prefix and ban set are required")
	case p.FailMode != domain.FailOpen && p.FailMode != domain.FailClosed:
		return errors.New("ratelimit policy " + p.Name + ": fail mode must be open or closed")
	}
	return nil
}

func (p Policy) counterKey(subject string) string { return p.KeyPrefix + ":" + subject }
