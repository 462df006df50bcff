// File: internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "planpilot", cfg.Logger.ServiceName)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 90*time.Second, cfg.Network.NavigationTimeout)
	assert.Equal(t, 30*time.Second, cfg.Runner.StepTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Runner.RunTimeout)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10, cfg.Server.RatePerMinute)
	assert.Equal(t, 64, cfg.Server.MaxConns)
	assert.Empty(t, cfg.Database.URL, "persistence is off by default")
}

func TestLoadOverrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("browser.headless", false)
	v.Set("browser.slow_mo", "250ms")
	v.Set("browser.user_agent", "planpilot/0.1")
	v.Set("network.headers", map[string]string{"X-Team": "qa"})
	v.Set("runner.step_timeout", "5s")
	v.Set("server.api_keys", []string{"k1", "k2"})
	v.Set("database.url", "postgres://localhost/planpilot")

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 250*time.Millisecond, cfg.Browser.SlowMo)
	assert.Equal(t, "planpilot/0.1", cfg.Browser.UserAgent)
	assert.Equal(t, map[string]string{"X-Team": "qa"}, cfg.Network.Headers)
	assert.Equal(t, 5*time.Second, cfg.Runner.StepTimeout)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Server.APIKeys)
	assert.Equal(t, "postgres://localhost/planpilot", cfg.Database.URL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(v *viper.Viper)
		wantErr string
	}{
		{
			name:    "zero step timeout",
			mutate:  func(v *viper.Viper) { v.Set("runner.step_timeout", "0s") },
			wantErr: "runner.step_timeout must be positive",
		},
		{
			name:    "negative run timeout",
			mutate:  func(v *viper.Viper) { v.Set("runner.run_timeout", "-1m") },
			wantErr: "runner.run_timeout must be positive",
		},
		{
			name:    "zero navigation timeout",
			mutate:  func(v *viper.Viper) { v.Set("network.navigation_timeout", "0s") },
			wantErr: "network.navigation_timeout must be positive",
		},
		{
			name:    "negative rate limit",
			mutate:  func(v *viper.Viper) { v.Set("server.rate_per_minute", -1) },
			wantErr: "server.rate_per_minute must not be negative",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := viper.New()
			SetDefaults(v)
			tc.mutate(v)

			_, err := Load(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}

	t.Run("zero rate limit disables limiting and is valid", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("server.rate_per_minute", 0)

		cfg, err := Load(v)
		require.NoError(t, err)
		assert.Zero(t, cfg.Server.RatePerMinute)
	})
}
