package config

import (
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	require.Equal(t, "America/Sao_Paulo", cfg.ScheduleTimezone)
	require.Equal(t, "00:00", cfg.ScheduleAt)
	require.Equal(t, 48*time.Hour, cfg.ExpiryWindow)
	require.Equal(t, "same_day", cfg.RecurrenceTrigger)
	require.Equal(t, -1, cfg.RegenExpiryAdjustDays)
	require.NoError(t, cfg.Validate())
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("SCHEDULE_AT", "06:30")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092 ,")
	t.Setenv("PUSH_TIMEOUT", "3s")
	t.Setenv("NOTIFY_PARALLELISM", "not-a-number")

	cfg := Load()

	hour, minute, err := cfg.ScheduleClock()
	require.NoError(t, err)
	require.Equal(t, 6, hour)
	require.Equal(t, 30, minute)
	require.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 3*time.Second, cfg.PushTimeout)
	require.Equal(t, 1, cfg.NotifyParallelism)
}

func TestValidateRejectsUnknownPolicies(t *testing.T) {
	cfg := Load()
	cfg.RecurrenceTrigger = "before"
	err := cfg.Validate()
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.NotValid))

	cfg = Load()
	cfg.ScheduleTimezone = "Mars/Olympus"
	require.True(t, errors.Is(cfg.Validate(), errors.NotValid))

	cfg = Load()
	cfg.ScheduleAt = "25:99"
	require.True(t, errors.Is(cfg.Validate(), errors.NotValid))
}
