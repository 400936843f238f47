package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/devicelink/pkg/config"
)

type testConfig struct {
	Addr    string `env:"CONFIG_TEST_ADDR" envDefault:":8080"`
	Retries int    `env:"CONFIG_TEST_RETRIES" envDefault:"3"`
}

type requiredConfig struct {
	Secret string `env:"CONFIG_TEST_SECRET,required"`
}

func TestLoad(t *testing.T) {
	t.Run("defaults applied", func(t *testing.T) {
		var cfg testConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, ":8080", cfg.Addr)
		assert.Equal(t, 3, cfg.Retries)
	})

	t.Run("environment overrides defaults", func(t *testing.T) {
		t.Setenv("CONFIG_TEST_ADDR", ":9000")
		t.Setenv("CONFIG_TEST_RETRIES", "7")

		var cfg testConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, ":9000", cfg.Addr)
		assert.Equal(t, 7, cfg.Retries)
	})

	t.Run("nil pointer rejected", func(t *testing.T) {
		err := config.Load[testConfig](nil)
		assert.ErrorIs(t, err, config.ErrNilPointer)
	})

	t.Run("missing required variable", func(t *testing.T) {
		var cfg requiredConfig
		err := config.Load(&cfg)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("invalid value type", func(t *testing.T) {
		t.Setenv("CONFIG_TEST_RETRIES", "not-a-number")

		var cfg testConfig
		err := config.Load(&cfg)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})
}

func TestMustLoad(t *testing.T) {
	t.Run("panics on failure", func(t *testing.T) {
		assert.Panics(t, func() {
			config.MustLoad[requiredConfig](nil)
		})
	})
}
