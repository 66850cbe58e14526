// Package config defines the server's startup configuration and its
// github.com/urfave/cli/v2 flag wiring. It generalizes the teacher's
// getenvInt-plus-flat-constants approach in cmd/server/main.go (one env var
// per worker-pool knob) into a single typed Config produced by parsing
// argv, the shape a multi-flag daemon like this one calls for.
package config

import (
	"time"

	"github.com/urfave/cli/v2"
)

// Config holds everything main needs to start the server.
type Config struct {
	ListenAddr string
	MaxJobSize int
	MinTTR     time.Duration
	LogLevel   string
}

// Default mirrors the teacher's getenvInt fallback values: sane
// ready-to-run defaults with every knob overridable at the edge.
func Default() Config {
	return Config{
		ListenAddr: ":11300",
		MaxJobSize: 65536,
		MinTTR:     time.Second,
		LogLevel:   "info",
	}
}

// Flags returns the cli.Flag set main's *cli.App registers.
func Flags(cfg *Config) []cli.Flag {
	def := Default()
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "listen",
			Usage:       "address to listen for beanstalkd protocol connections on",
			Value:       def.ListenAddr,
			Destination: &cfg.ListenAddr,
			EnvVars:     []string{"BEANSTALKD_LISTEN"},
		},
		&cli.IntFlag{
			Name:        "max-job-size",
			Usage:       "largest job body accepted by put, in bytes",
			Value:       def.MaxJobSize,
			Destination: &cfg.MaxJobSize,
			EnvVars:     []string{"BEANSTALKD_MAX_JOB_SIZE"},
		},
		&cli.DurationFlag{
			Name:        "min-ttr",
			Usage:       "floor applied to every job's time-to-run",
			Value:       def.MinTTR,
			Destination: &cfg.MinTTR,
			EnvVars:     []string{"BEANSTALKD_MIN_TTR"},
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "logrus level: debug, info, warn, error",
			Value:       def.LogLevel,
			Destination: &cfg.LogLevel,
			EnvVars:     []string{"BEANSTALKD_LOG_LEVEL"},
		},
	}
}
