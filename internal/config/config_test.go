package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestDefault(t *testing.T) {
	d := Default()
	assert.Equal(t, ":11300", d.ListenAddr)
	assert.Equal(t, 65536, d.MaxJobSize)
	assert.Equal(t, time.Second, d.MinTTR)
	assert.Equal(t, "info", d.LogLevel)
}

func TestFlagsParseOverridesDefaults(t *testing.T) {
	var cfg Config
	app := &cli.App{
		Name:  "beanstalkd",
		Flags: Flags(&cfg),
		Action: func(*cli.Context) error {
			return nil
		},
	}
	err := app.Run([]string{
		"beanstalkd",
		"--listen", ":9999",
		"--max-job-size", "1024",
		"--min-ttr", "2s",
		"--log-level", "debug",
	})
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, 1024, cfg.MaxJobSize)
	assert.Equal(t, 2*time.Second, cfg.MinTTR)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestFlagsDefaultWhenUnset(t *testing.T) {
	var cfg Config
	app := &cli.App{
		Name:  "beanstalkd",
		Flags: Flags(&cfg),
		Action: func(*cli.Context) error {
			return nil
		},
	}
	require.NoError(t, app.Run([]string{"beanstalkd"}))
	assert.Equal(t, Default().ListenAddr, cfg.ListenAddr)
}
