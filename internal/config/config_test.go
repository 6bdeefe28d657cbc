// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "healer", cfg.Logger().ServiceName)
	assert.Equal(t, 5*time.Second, cfg.Healing().Timeout)
	assert.Equal(t, time.Second, cfg.Healing().ShortTimeout)
	assert.Equal(t, 2*time.Second, cfg.Healing().MediumTimeout)
	assert.Equal(t, "*", cfg.Healing().ContextSelector)
	assert.Equal(t, 0.4, cfg.Healing().Threshold)
	assert.Equal(t, CollectionStrict, cfg.Healing().CollectionMode)
	assert.Equal(t, 2, cfg.Healing().ClickRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Healing().ClickBackoff)
	assert.Equal(t, 3, cfg.Healing().RandomRetries)
	assert.False(t, cfg.Healing().DebugLog)
	assert.Equal(t, "healing-debug.log", cfg.Healing().DebugLogFile)
	assert.Equal(t, DriverChromedp, cfg.Browser().Driver)
	assert.True(t, cfg.Browser().Headless)

	require.NoError(t, cfg.Validate(), "defaults must always validate")
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Healing Validation", func(t *testing.T) {
		cases := []struct {
			name    string
			mutate  func(h *HealingConfig)
			wantErr string
		}{
			{"zero timeout", func(h *HealingConfig) { h.Timeout = 0 }, "timeout must be a positive duration"},
			{"threshold above one", func(h *HealingConfig) { h.Threshold = 1.1 }, "threshold must be between 0.0 and 1.0"},
			{"unknown mode", func(h *HealingConfig) { h.CollectionMode = "loose" }, "collection_mode must be"},
			{"no depth", func(h *HealingConfig) { h.MaxDepth = 0 }, "max_depth must be a positive integer"},
			{"no retries", func(h *HealingConfig) { h.ClickRetries = 0 }, "click_retries and random_retries"},
			{"debug without file", func(h *HealingConfig) {
				h.DebugLog = true
				h.DebugLogFile = " "
			}, "debug_log_file is required"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				cfg := NewDefaultConfig()
				tc.mutate(&cfg.HealingCfg)
				err := cfg.Validate()
				require.Error(t, err)
				assert.Contains(t, err.Error(), "healing configuration invalid")
				assert.Contains(t, err.Error(), tc.wantErr)
			})
		}
	})

	t.Run("Browser Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.SetBrowserDriver("selenium")
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "driver must be")

		cfg = NewDefaultConfig()
		cfg.BrowserCfg.PlaywrightBrowser = "opera"
		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "playwright_browser")
	})
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
healing:
  timeout: 3s
  context_selector: "form *"
  collection_mode: permissive
browser:
  driver: playwright
  playwright_browser: firefox
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, 3*time.Second, cfg.Healing().Timeout)
		assert.Equal(t, "form *", cfg.Healing().ContextSelector)
		assert.Equal(t, CollectionPermissive, cfg.Healing().CollectionMode)
		assert.Equal(t, DriverPlaywright, cfg.Browser().Driver)
		assert.Equal(t, "firefox", cfg.Browser().PlaywrightBrowser)
		// Untouched defaults survive.
		assert.Equal(t, 0.4, cfg.Healing().Threshold)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("healing.threshold", 2.0)

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "threshold must be between 0.0 and 1.0")
	})

	t.Run("DEBUG_HEALING Environment Variable", func(t *testing.T) {
		t.Setenv("DEBUG_HEALING", "true")
		v := viper.New()
		SetDefaults(v)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.True(t, cfg.Healing().DebugLog)
	})

	t.Run("Home Directory Expansion", func(t *testing.T) {
		t.Setenv("HOME", "/home/tester")
		v := viper.New()
		SetDefaults(v)
		v.Set("healing.debug_log_file", "~/healing.log")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "/home/tester/healing.log", cfg.Healing().DebugLogFile)
	})
}

func TestSetters(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.SetHealingTimeout(time.Second)
	cfg.SetHealingContextSelector("#app *")
	cfg.SetHealingCollectionMode(CollectionPermissive)
	cfg.SetHealingDebugLog(true)
	cfg.SetBrowserDriver(DriverPlaywright)
	cfg.SetBrowserHeadless(false)

	assert.Equal(t, time.Second, cfg.Healing().Timeout)
	assert.Equal(t, "#app *", cfg.Healing().ContextSelector)
	assert.Equal(t, CollectionPermissive, cfg.Healing().CollectionMode)
	assert.True(t, cfg.Healing().DebugLog)
	assert.Equal(t, DriverPlaywright, cfg.Browser().Driver)
	assert.False(t, cfg.Browser().Headless)
}

func TestHealingConfigWithDefaults(t *testing.T) {
	filled := HealingConfig{}.WithDefaults()
	// A zero config filled by hand must agree with the viper defaults, debug
	// fields aside.
	want := NewDefaultConfig().Healing()
	want.DebugLog, want.DebugLogFile = false, ""
	assert.Equal(t, want, filled)
	assert.NoError(t, filled.Validate())

	kept := HealingConfig{Timeout: time.Second, Threshold: 0.7}.WithDefaults()
	assert.Equal(t, time.Second, kept.Timeout)
	assert.Equal(t, 0.7, kept.Threshold)
}
