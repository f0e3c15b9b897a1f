package outbox_relay_config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "kuseek.auth.events", cfg.Kafka.Topic)
	assert.Equal(t, 4, cfg.Outbox.Workers)
	assert.Equal(t, 30*time.Second, cfg.Outbox.InProgressTTL)
	assert.Equal(t, time.Hour, cfg.Sessions.PruneInterval)
}

func TestLoad_RejectsZeroPollInterval(t *testing.T) {
	t.Setenv("OUTBOX_WAIT_TIME", "0s")

	_, err := Load("")
	var cerr ErrConfig
	require.ErrorAs(t, err, &cerr)
}
