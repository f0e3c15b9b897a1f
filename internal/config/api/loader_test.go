package api_config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rl "github.com/NordCoder/KUSeek/internal/domain/ratelimit"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", testSecret)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, "refresh_token", cfg.Auth.CookieName)
	assert.Equal(t, int64(30), cfg.RateLimit.API.Limit)
	assert.Equal(t, 10*time.Second, cfg.RateLimit.API.Window)
	assert.Equal(t, rl.FailOpen, cfg.RateLimit.API.FailMode)
	assert.Equal(t, int64(5), cfg.RateLimit.Login.Limit)
	assert.Equal(t, "login_blacklist", cfg.RateLimit.Login.BanSet)
	assert.Equal(t, rl.FailClosed, cfg.RateLimit.Login.FailMode)
	assert.False(t, cfg.Server.TrustProxyHeaders)
}

func TestLoad_RequiresSecret(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "short")

	_, err := Load("")
	var cerr ErrConfig
	require.ErrorAs(t, err, &cerr)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
auth:
  jwt_secret: "`+testSecret+`"
  access_ttl: 10m
ratelimit:
  api:
    limit: 100
`), 0o600))
	t.Setenv("RATELIMIT_LOGIN_LIMIT", "3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, int64(100), cfg.RateLimit.API.Limit)
	assert.Equal(t, int64(3), cfg.RateLimit.Login.Limit)
}

func TestValidate_SharedBanSet(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", testSecret)
	t.Setenv("RATELIMIT_LOGIN_BAN_SET", "blacklist")

	_, err := Load("")
	require.ErrorContains(t, err, "separate ban sets")
}

func TestValidate_RejectsZeroHashParams(t *testing.T) {
	for _, env := range []string{"AUTH_HASH_THREADS", "AUTH_HASH_TIME", "AUTH_HASH_MEMORY"} {
		t.Run(env, func(t *testing.T) {
			t.Setenv("AUTH_JWT_SECRET", testSecret)
			t.Setenv(env, "0")

			_, err := Load("")
			var cerr ErrConfig
			require.ErrorAs(t, err, &cerr)
			assert.Contains(t, err.Error(), "auth.hash_")
		})
	}
}
