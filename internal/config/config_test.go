package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "America/New_York", cfg.Timezone)
	assert.Equal(t, 120, cfg.FirstReminderMinutesBefore)
	assert.Equal(t, 30, cfg.FinalReminderMinutesBefore)
	assert.Equal(t, 15, cfg.NoShowGraceMinutes)
	assert.Equal(t, 10, cfg.WaitlistResponseMinutes)
	assert.Equal(t, 30*time.Second, cfg.TickInterval)
	assert.NotNil(t, cfg.Location())
	assert.False(t, cfg.ChannelEnabled, "no gateway configured means sends disabled")
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("TIMEZONE", "Europe/Berlin")
	t.Setenv("FIRST_REMINDER_MINUTES_BEFORE", "90")
	t.Setenv("TICK_INTERVAL", "5s")
	t.Setenv("GATEWAY_BASE_URL", "http://localhost:9000")
	t.Setenv("CHANNEL_ENABLED", "1")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", cfg.Timezone)
	assert.Equal(t, 90, cfg.FirstReminderMinutesBefore)
	assert.Equal(t, 5*time.Second, cfg.TickInterval)
	assert.True(t, cfg.ChannelEnabled)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	t.Setenv("NO_SHOW_GRACE_MINUTES", "soon")
	_, err := FromEnv()
	assert.Error(t, err)
}

func TestFromEnvRejectsBadTimezone(t *testing.T) {
	t.Setenv("TIMEZONE", "Mars/Olympus_Mons")
	_, err := FromEnv()
	assert.Error(t, err)
}
