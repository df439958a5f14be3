package gateway

import (
	"context"
	"errors"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/cloudwego/hertz/pkg/route"

	"github.com/tgifai/cronturn/internal/cronjob"
	"github.com/tgifai/cronturn/internal/pkg/logs"
	"github.com/tgifai/cronturn/internal/provider"
)

// JobScheduler is the slice of the scheduler the admin API drives.
type JobScheduler interface {
	ListJobs() []cronjob.Job
	GetJob(jobID string) (cronjob.Job, bool)
	RunNow(ctx context.Context, jobID string, force bool) (string, error)
}

type adminHandler struct {
	jobs      JobScheduler
	providers func(id string) (provider.Provider, error)
}

func registerRoutes(r route.IRoutes, jobs JobScheduler) {
	h := &adminHandler{jobs: jobs, providers: provider.Get}
	h.register(r)
}

func (h *adminHandler) register(r route.IRoutes) {
	r.GET("/health", h.health)
	r.GET("/api/v1/cron/jobs", h.listJobs)
	r.GET("/api/v1/cron/jobs/:id", h.getJob)
	r.POST("/api/v1/cron/jobs/:id/run", h.runJob)
	r.GET("/api/v1/providers/:id/models", h.listModels)
}

func (h *adminHandler) health(_ context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{"status": "ok"})
}

func (h *adminHandler) listJobs(_ context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{"jobs": h.jobs.ListJobs()})
}

func (h *adminHandler) getJob(_ context.Context, c *app.RequestContext) {
	job, ok := h.jobs.GetJob(c.Param("id"))
	if !ok {
		c.JSON(consts.StatusNotFound, utils.H{"error": "job not found"})
		return
	}
	c.JSON(consts.StatusOK, job)
}

// runJob fires a job synchronously. ?force=true runs disabled jobs too.
func (h *adminHandler) runJob(ctx context.Context, c *app.RequestContext) {
	jobID := c.Param("id")
	force, _ := strconv.ParseBool(c.Query("force"))

	logs.CtxInfo(ctx, "[gateway] manual run of job %s (force=%t)", jobID, force)
	status, err := h.jobs.RunNow(ctx, jobID, force)
	switch {
	case errors.Is(err, cronjob.ErrJobNotFound):
		c.JSON(consts.StatusNotFound, utils.H{"error": err.Error()})
	case err != nil && status == "":
		c.JSON(consts.StatusBadRequest, utils.H{"error": err.Error()})
	case err != nil:
		c.JSON(consts.StatusOK, utils.H{"id": jobID, "status": status, "error": err.Error()})
	default:
		c.JSON(consts.StatusOK, utils.H{"id": jobID, "status": status})
	}
}

func (h *adminHandler) listModels(ctx context.Context, c *app.RequestContext) {
	p, err := h.providers(c.Param("id"))
	if err != nil {
		c.JSON(consts.StatusNotFound, utils.H{"error": err.Error()})
		return
	}
	lister, ok := p.(provider.ModelLister)
	if !ok {
		c.JSON(consts.StatusNotImplemented, utils.H{"error": "provider cannot list models"})
		return
	}
	models, err := lister.ListModels(ctx)
	if err != nil {
		c.JSON(consts.StatusBadGateway, utils.H{"error": err.Error()})
		return
	}
	c.JSON(consts.StatusOK, utils.H{"models": models})
}
