package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/tgifai/cronturn/internal/pkg/logs"
)

func main() {
	cmd := &cli.Command{
		Name:  "cronturn",
		Usage: "Run scheduled agent turns and deliver them to chat channels",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config.yaml",
				Sources: cli.EnvVars("CRONTURN_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			serveHwd.cmd(),
			cronjobHwd.cmd(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logs.Error("Command execution failed: %v", err)
		os.Exit(1)
	}
}
