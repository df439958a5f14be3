package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/tgifai/cronturn/internal/gateway"
	"github.com/tgifai/cronturn/internal/pkg/logs"
)

var serveHwd = &ServeRunner{}

type ServeRunner struct{}

func (r *ServeRunner) cmd() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the scheduler and the admin gateway",
		Action: r.run,
	}
}

func (r *ServeRunner) run(ctx context.Context, cmd *cli.Command) error {
	cfg, cfgPath, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logs.CtxInfo(ctx, "booting cronturn, using config file: %s...", cfgPath)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	gw := gateway.NewGateway(cfg.Gateway)
	if err = gw.Start(ctx); err != nil {
		cancel()
		_ = gw.Stop(context.Background())
		return fmt.Errorf("start gateway: %w", err)
	}

	logs.CtxInfo(ctx, "ALL IS WELL!!! Press Ctrl+C to stop.")

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalCh)

	select {
	case sig := <-signalCh:
		logs.CtxInfo(ctx, "Received shutdown signal (%s). Stopping runtime...", sig.String())
	case <-ctx.Done():
		logs.CtxInfo(ctx, "Context canceled. Stopping runtime...")
	}

	if err = gw.Stop(context.Background()); err != nil {
		logs.CtxError(ctx, "stop gateway error: %v", err)
	}

	logs.CtxInfo(ctx, "all stopped, good bye!")
	return nil
}
