package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/dazdaz/chirp-demo-enhanced/internal/cli"
	"github.com/dazdaz/chirp-demo-enhanced/internal/config"
	"github.com/dazdaz/chirp-demo-enhanced/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := config.LoadDotEnv(); err != nil {
		os.Stderr.WriteString("failed to load .env: " + err.Error() + "\n")
		return 1
	}
	if err := logger.Init(logger.WithWriter(os.Stderr)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return 1
	}
	_ = logger.SetLevelString("warn")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, cli.ErrUsage) {
			return 2
		}
		os.Stderr.WriteString("chirp: " + err.Error() + "\n")
		return 1
	}
	return 0
}
