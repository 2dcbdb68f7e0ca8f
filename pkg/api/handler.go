package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jobmill/jobmill/pkg/health"
	"github.com/jobmill/jobmill/pkg/jobs"
	"github.com/jobmill/jobmill/pkg/observability/logger"
)

// JobService is the job lifecycle surface the handler exposes over HTTP.
type JobService interface {
	ScheduleNewJob(ctx context.Context, req jobs.ScheduleJobRequest) (*jobs.ScheduledJobResponse, error)
	FetchScheduledJobs(ctx context.Context) ([]jobs.ScheduledJobResponse, error)
	FetchJobDetails(ctx context.Context, jobID int64) (*jobs.JobDetails, error)
}

// SuccessResponse represents a successful response with data
type SuccessResponse struct {
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// Handler serves the job API.
type Handler struct {
	service  JobService
	health   *health.Registry
	validate *validator.Validate
	log      logger.Logger
}

// RouterConfig carries the knobs the router middleware needs.
type RouterConfig struct {
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewHandler wires the HTTP handler.
func NewHandler(service JobService, healthRegistry *health.Registry, log logger.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("job service is required")
	}
	if healthRegistry == nil {
		return nil, errors.New("health registry is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}
	return &Handler{
		service:  service,
		health:   healthRegistry,
		validate: validator.New(),
		log:      log,
	}, nil
}

// Router builds the gin engine with middleware and all routes registered.
func (h *Handler) Router(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestID())
	engine.Use(RequestLogger(h.log))
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = int(cfg.RateLimitRPS)
		}
		engine.Use(RateLimit(cfg.RateLimitRPS, burst))
	}

	v1 := engine.Group("/api/v1")
	v1.POST("/jobs", h.scheduleJob)
	v1.GET("/jobs", h.listJobs)
	v1.GET("/jobs/:id", h.jobDetails)

	engine.GET("/healthz", h.healthz)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return engine
}

func (h *Handler) scheduleJob(c *gin.Context) {
	ctx := c.Request.Context()

	var req jobs.ScheduleJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.error(c, NewValidationError("invalid request body", map[string]interface{}{
			"cause": err.Error(),
		}))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.error(c, NewValidationError("validation failed", validationDetails(err)))
		return
	}

	resp, err := h.service.ScheduleNewJob(ctx, req)
	if err != nil {
		h.error(c, err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{
		Data:      resp,
		RequestID: getRequestID(ctx),
	})
}

func (h *Handler) listJobs(c *gin.Context) {
	ctx := c.Request.Context()

	rows, err := h.service.FetchScheduledJobs(ctx)
	if err != nil {
		h.error(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Data:      rows,
		RequestID: getRequestID(ctx),
	})
}

func (h *Handler) jobDetails(c *gin.Context) {
	ctx := c.Request.Context()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.error(c, NewValidationError("job id must be a positive integer", nil))
		return
	}

	details, err := h.service.FetchJobDetails(ctx, id)
	if err != nil {
		h.error(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Data:      details,
		RequestID: getRequestID(ctx),
	})
}

func (h *Handler) healthz(c *gin.Context) {
	result := h.health.Check(c.Request.Context())
	status := http.StatusOK
	if !result.IsHealthy() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, result)
}

// error writes the mapped error response and logs server-side failures.
func (h *Handler) error(c *gin.Context, err error) {
	ctx := c.Request.Context()
	status, resp := MapError(ctx, err)
	if status >= http.StatusInternalServerError {
		h.log.WithContext(ctx).Error("request failed",
			"path", c.Request.URL.Path,
			"status", status,
			"error", err,
		)
	}
	c.JSON(status, resp)
}

// validationDetails flattens validator field errors into response details.
func validationDetails(err error) map[string]interface{} {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return map[string]interface{}{"cause": err.Error()}
	}

	fields := make(map[string]interface{}, len(fieldErrors))
	for _, fieldErr := range fieldErrors {
		fields[fieldErr.Field()] = fieldErr.Tag()
	}
	return map[string]interface{}{"fields": fields}
}
