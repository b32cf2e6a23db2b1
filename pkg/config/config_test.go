package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	require.Equal(t, 48*time.Hour, cfg.Billing.GracePeriod)
	require.Equal(t, 1, cfg.Billing.IntervalMonths)
	require.Equal(t, "0 4 * * *", cfg.Scheduler.SuspensionSpec)
	require.Equal(t, "30 4 * * *", cfg.Scheduler.FeeAgingSpec)
	require.Equal(t, 5, cfg.Finance.DueDay)
	require.Equal(t, int64(1<<20), cfg.Gateway.WebhookMaxBytes)
}

func TestLoadFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AUTH_TOKEN_SECRET", "s3cr3t")
	t.Setenv("GATEWAY_SECRET_KEY", "flow-secret")
	t.Setenv("BILLING_GRACE_PERIOD", "72h")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	require.Equal(t, "s3cr3t", cfg.Auth.TokenSecret)
	require.Equal(t, "flow-secret", cfg.Gateway.SecretKey)
	require.Equal(t, 72*time.Hour, cfg.Billing.GracePeriod)
}
