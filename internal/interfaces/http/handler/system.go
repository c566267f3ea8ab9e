package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wms/shopsync/internal/infrastructure/scheduler"
	"github.com/wms/shopsync/internal/interfaces/http/dto"
)

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

// JobRunner lists scheduled jobs and runs them on demand
type JobRunner interface {
	Jobs() []scheduler.JobStatus
	RunNow(name string) error
}

// SystemHandler handles system-related API endpoints
type SystemHandler struct {
	BaseHandler
	name      string
	version   string
	checks    map[string]HealthCheck
	jobs      JobRunner
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler. jobs may be nil when the
// scheduler is disabled.
func NewSystemHandler(name, version string, checks map[string]HealthCheck, jobs JobRunner) *SystemHandler {
	return &SystemHandler{
		name:      name,
		version:   version,
		checks:    checks,
		jobs:      jobs,
		startTime: time.Now(),
	}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// GetSystemInfo returns basic system information including version and uptime
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

// PingResponse represents the ping response
type PingResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Ping is a liveness probe
func (h *SystemHandler) Ping(c *gin.Context) {
	h.Success(c, PingResponse{
		Message:   "pong",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// HealthResponse reports each dependency as "ok" or its error
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health is a readiness probe. Any failing check returns 503.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			resp.Status = "degraded"
			resp.Checks[name] = err.Error()
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, dto.OK(resp))
}

// ListJobs returns the scheduled jobs with their last and next run
func (h *SystemHandler) ListJobs(c *gin.Context) {
	if h.jobs == nil {
		h.Success(c, []scheduler.JobStatus{})
		return
	}
	h.Success(c, h.jobs.Jobs())
}

// RunJob runs a scheduled job now and waits for it to finish
func (h *SystemHandler) RunJob(c *gin.Context) {
	if h.jobs == nil {
		h.HandleError(c, scheduler.ErrJobNotFound)
		return
	}
	name := c.Param("name")
	if err := h.jobs.RunNow(name); err != nil {
		h.HandleError(c, err)
		return
	}
	for _, job := range h.jobs.Jobs() {
		if job.Name == name {
			h.Success(c, job)
			return
		}
	}
	h.Success(c, gin.H{"name": name})
}
