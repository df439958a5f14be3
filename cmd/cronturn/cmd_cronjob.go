package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/tgifai/cronturn/internal/cronjob"
	"github.com/tgifai/cronturn/internal/gateway"
	"github.com/tgifai/cronturn/internal/pkg/logs"
)

var cronjobHwd = &CronjobRunner{}

type CronjobRunner struct{}

func (r *CronjobRunner) cmd() *cli.Command {
	return &cli.Command{
		Name:  "cronjob",
		Usage: "Manage scheduled cron jobs",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List all persisted cron jobs",
				Action: r.list,
			},
			{
				Name:      "run",
				Usage:     "Run one job now, even if it is disabled",
				ArgsUsage: "<job-id>",
				Action:    r.run,
			},
		},
	}
}

func (r *CronjobRunner) list(_ context.Context, cmd *cli.Command) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store := cronjob.NewStore(cfg.Cronjob.Store)
	if err := store.Load(); err != nil {
		return fmt.Errorf("load jobs: %w", err)
	}

	formatJobList(os.Stdout, store.List())
	return nil
}

func (r *CronjobRunner) run(ctx context.Context, cmd *cli.Command) error {
	jobID := strings.TrimSpace(cmd.Args().First())
	if jobID == "" {
		return fmt.Errorf("job id is required")
	}

	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	rt, err := gateway.NewRuntime(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init runtime: %w", err)
	}
	defer rt.Close(context.Background())

	if err := rt.Scheduler.Load(ctx); err != nil {
		return err
	}

	status, err := rt.Scheduler.RunNow(ctx, jobID, true)
	printStatus(os.Stdout, jobID, status)
	if err != nil {
		logs.CtxError(ctx, "[cronjob] run %s failed: %v", jobID, err)
		return err
	}
	return nil
}

var (
	cOK     = color.New(color.FgGreen)
	cFailed = color.New(color.FgRed)
)

func formatJobList(w io.Writer, jobs []cronjob.Job) {
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No cron jobs.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSCHEDULE\tTARGET\tENABLED\tNEXT RUN\tLAST STATUS")
	for _, j := range jobs {
		enabled := "no"
		if j.Enabled {
			enabled = "yes"
		}
		last := j.State.LastStatus
		if last == "" {
			last = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			j.ID, j.Name, describeSchedule(j.Schedule), j.SessionTarget, enabled, formatMs(j.State.NextRunAtMs), last)
	}
	_ = tw.Flush()
}

func describeSchedule(s cronjob.Schedule) string {
	switch s.Kind {
	case cronjob.ScheduleAt:
		return "at " + s.At
	case cronjob.ScheduleEvery:
		return "every " + (time.Duration(s.EveryMs) * time.Millisecond).String()
	case cronjob.ScheduleCron:
		if s.Tz != "" {
			return fmt.Sprintf("cron %q (%s)", s.Expr, s.Tz)
		}
		return fmt.Sprintf("cron %q", s.Expr)
	default:
		return string(s.Kind)
	}
}

func formatMs(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format(time.DateTime)
}

func printStatus(w io.Writer, jobID, status string) {
	if status == "" {
		status = "not run"
	}
	c := cOK
	if status != "completed" && status != "skipped" {
		c = cFailed
	}
	fmt.Fprintf(w, "job %s: %s\n", jobID, c.Sprint(status))
}
