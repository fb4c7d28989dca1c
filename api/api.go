// Package api exposes the HTTP surface of the job pipeline: job
// submission, status lookup, queue stats, and a health probe.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/parcelworks/courier"
	"github.com/parcelworks/courier/broker"
	"github.com/parcelworks/courier/id"
	"github.com/parcelworks/courier/job"
	"github.com/parcelworks/courier/producer"
)

// Server is the HTTP API for submitting and inspecting jobs.
type Server struct {
	producer *producer.Producer
	store    job.Store
	broker   broker.Broker
	logger   *slog.Logger
	engine   *gin.Engine
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger for the server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates the API server and registers its routes.
func New(p *producer.Producer, store job.Store, brk broker.Broker, opts ...Option) *Server {
	s := &Server{
		producer: p,
		store:    store,
		broker:   brk,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	s.engine = gin.New()
	s.engine.Use(gin.Recovery())

	s.engine.POST("/submit-job", s.submitJob)
	s.engine.GET("/job-status/:jobId", s.jobStatus)
	s.engine.GET("/stats", s.stats)
	s.engine.GET("/healthz", s.healthz)

	return s
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

const timeFormat = time.RFC3339Nano

type submitResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

type statusResponse struct {
	JobID     string `json:"jobId"`
	JobType   string `json:"jobType"`
	Status    string `json:"status"`
	Retries   int    `json:"retries"`
	LastError string `json:"lastError,omitempty"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) submitJob(c *gin.Context) {
	var req struct {
		JobType string          `json:"jobType"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.JobType == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "jobType is required"})
		return
	}

	j, err := s.producer.Submit(c.Request.Context(), req.JobType, req.Payload)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, submitResponse{
			JobID:  j.ID.String(),
			Status: string(j.Status),
		})
	case errors.Is(err, courier.ErrUnknownJobType),
		errors.Is(err, courier.ErrEmptyPayload):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, courier.ErrEnqueueFailed):
		// The job row exists but never reached the queue. Surface the id
		// so the client can track or resubmit it.
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "job accepted but not enqueued",
			"jobId": j.ID.String(),
		})
	default:
		s.logger.Error("job submission failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (s *Server) jobStatus(c *gin.Context) {
	jobID, err := id.ParseJobID(c.Param("jobId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid job id"})
		return
	}

	j, err := s.store.GetJob(c.Request.Context(), jobID)
	switch {
	case err == nil:
		resp := statusResponse{
			JobID:     j.ID.String(),
			JobType:   j.Type,
			Status:    string(j.Status),
			Retries:   j.Retries,
			LastError: j.LastError,
			CreatedAt: j.CreatedAt.Format(timeFormat),
			UpdatedAt: j.UpdatedAt.Format(timeFormat),
		}
		c.JSON(http.StatusOK, resp)
	case errors.Is(err, courier.ErrJobNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: "job not found"})
	default:
		s.logger.Error("job status lookup failed", "job_id", jobID, "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (s *Server) stats(c *gin.Context) {
	ctx := c.Request.Context()

	counts := make(map[string]int64, 4)
	for _, st := range []job.Status{
		job.StatusQueued, job.StatusProcessing, job.StatusCompleted, job.StatusFailed,
	} {
		n, err := s.store.CountJobs(ctx, job.CountOpts{Status: st})
		if err != nil {
			s.logger.Error("stats query failed", "status", st, "error", err)
			c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
			return
		}
		counts[string(st)] = n
	}

	total, err := s.store.CountJobs(ctx, job.CountOpts{})
	if err != nil {
		s.logger.Error("stats query failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":    total,
		"byStatus": counts,
	})
}

func (s *Server) healthz(c *gin.Context) {
	ctx := c.Request.Context()

	if err := s.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "store": err.Error()})
		return
	}
	if err := s.broker.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "broker": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
