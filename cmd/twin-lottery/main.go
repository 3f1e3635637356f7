// twin-lottery simulates the lottery storefront backend: OTP login for users
// and retailers, tickets, purchases and the wallet. It backs local runs of
// the lotto CLI and the end-to-end tests.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/wondertwin-ai/lotterykit/internal/logging"
	"github.com/wondertwin-ai/lotterykit/internal/twin"
	"github.com/wondertwin-ai/lotterykit/internal/twin/api"
	"github.com/wondertwin-ai/lotterykit/pkg/twincore"
)

const defaultPort = 4000

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "twin-lottery: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := twincore.ParseFlags("twin-lottery", os.Args[1:])
	if err != nil {
		return err
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}

	level := "info"
	if cfg.Verbose {
		level = "debug"
	}
	logger, err := logging.New(level, logging.FormatJSON, os.Stdout)
	if err != nil {
		return err
	}

	srv, err := twin.New(cfg, logger, true, api.Options{})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Serve(ctx)
}
