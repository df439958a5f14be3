package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	hzServer "github.com/cloudwego/hertz/pkg/app/server"
	hzConfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	monitorprom "github.com/hertz-contrib/monitor-prometheus"

	"github.com/tgifai/cronturn/internal/config"
	"github.com/tgifai/cronturn/internal/cronjob"
	"github.com/tgifai/cronturn/internal/pkg/logs"
	"github.com/tgifai/cronturn/internal/pkg/prometheus"
)

// Gateway hosts the cron runtime behind a small admin HTTP API.
type Gateway struct {
	runtime    *Runtime
	httpServer *hzServer.Hertz

	runCtx    context.Context
	runCancel context.CancelFunc

	stopOnce sync.Once
	stopErr  error
}

func NewGateway(cfg config.GatewayConfig) *Gateway {
	bind := cfg.Bind
	if bind == "" {
		bind = "127.0.0.1:8080"
	}

	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	hlog.SetLogger(logs.NewHlogLogger(logs.DefaultLogger()))

	opts := []hzConfig.Option{
		hzServer.WithHostPorts(bind),
		hzServer.WithReadTimeout(timeout),
		hzServer.WithWriteTimeout(timeout),
		hzServer.WithExitWaitTime(5 * time.Second),
	}
	if cfg.MetricsBind != "" {
		opts = append(opts, hzServer.WithTracer(monitorprom.NewServerTracer(cfg.MetricsBind, "/metrics",
			monitorprom.WithRegistry(prometheus.GetRegistry()),
		)))
	}

	return &Gateway{httpServer: hzServer.Default(opts...)}
}

func (gw *Gateway) Start(ctx context.Context) error {
	gw.runCtx, gw.runCancel = context.WithCancel(ctx)

	cfg, err := config.Get()
	if err != nil {
		return err
	}

	rt, err := NewRuntime(gw.runCtx, cfg)
	if err != nil {
		return fmt.Errorf("init runtime: %w", err)
	}
	gw.runtime = rt

	registerRoutes(gw.httpServer, rt.Scheduler)

	if cfg.Cronjob.Enabled != nil && *cfg.Cronjob.Enabled {
		if err := rt.Scheduler.Start(gw.runCtx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		rt.StartSessionPruning(gw.runCtx, cfg)
	} else {
		logs.CtxInfo(ctx, "[gateway] cronjob is disabled, scheduler not started")
		if err := rt.Scheduler.Load(gw.runCtx); err != nil {
			return fmt.Errorf("load jobs: %w", err)
		}
	}

	go gw.httpServer.Spin()

	return nil
}

func (gw *Gateway) Stop(ctx context.Context) error {
	gw.stopOnce.Do(func() {
		if gw.runCancel != nil {
			gw.runCancel()
		}

		cronjob.Stop(ctx)

		if gw.runtime != nil {
			gw.runtime.Close(ctx)
		}

		if err := gw.httpServer.Shutdown(ctx); err != nil {
			logs.CtxWarn(ctx, "[gateway] shutdown http server error: %v", err)
		}

		logs.CtxInfo(ctx, "[gateway] all resources stopped")
	})
	return gw.stopErr
}
