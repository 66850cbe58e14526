package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/beanstalkd-core/beanstalkd/internal/config"
	"github.com/beanstalkd-core/beanstalkd/internal/conn"
	"github.com/beanstalkd-core/beanstalkd/internal/registry"
	"github.com/beanstalkd-core/beanstalkd/internal/scheduler"
)

func main() {
	var cfg config.Config
	app := &cli.App{
		Name:  "beanstalkd",
		Usage: "an in-memory, priority work queue speaking the beanstalkd protocol",
		Flags: config.Flags(&cfg),
		Action: func(*cli.Context) error {
			run(cfg)
			return nil
		},
	}
	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("exiting")
	}
}

func run(cfg config.Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	log := logrus.WithField("component", "beanstalkd")

	reg := registry.New(cfg.MaxJobSize, cfg.MinTTR, nil)
	sched := scheduler.New(reg, log.WithField("component", "scheduler"))

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Run(ctx)
	}()

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.WithError(err).Fatal("listen failed")
	}
	log.WithField("addr", cfg.ListenAddr).Info("beanstalkd listening")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-quit
		log.WithField("signal", sig.String()).Info("draining and shutting down")
		reg.SetDraining(true)
		ln.Close()
		cancel()
	}()

	connLog := log.WithField("component", "conn")
	for {
		nc, err := ln.Accept()
		if err != nil {
			break
		}
		go conn.New(nc, reg, connLog).Serve()
	}
	wg.Wait()
}
