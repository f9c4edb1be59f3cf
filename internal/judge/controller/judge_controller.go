package controller

import (
	"context"

	"jsjudge/internal/judge/model"
	"jsjudge/internal/judge/sandbox/result"
	"jsjudge/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// JudgeService is the part of service.Service the HTTP layer needs.
type JudgeService interface {
	Run(ctx context.Context, req model.ExecutionRequest) (result.SubmissionVerdict, error)
	Submit(ctx context.Context, req model.ExecutionRequest) (string, error)
	Cancel(ctx context.Context, submissionID string) error
	Status(ctx context.Context, submissionID string) (model.ExecutionStatus, error)
	Running() int
}

// PoolStats exposes isolate pool occupancy for health checks.
type PoolStats interface {
	Live() int64
}

// JudgeController handles execution requests.
type JudgeController struct {
	svc  JudgeService
	pool PoolStats
}

// NewJudgeController creates a new controller.
func NewJudgeController(svc JudgeService, pool PoolStats) *JudgeController {
	return &JudgeController{svc: svc, pool: pool}
}

// Register mounts the judge routes on router.
func (h *JudgeController) Register(router gin.IRouter) {
	router.GET("/healthz", h.Health)
	api := router.Group("/api/v1/judge")
	api.POST("/executions", h.Execute)
	api.GET("/executions/:id", h.GetStatus)
	api.DELETE("/executions/:id", h.Cancel)
}

type submitResponse struct {
	SubmissionID string `json:"submissionId"`
}

// Execute judges one submission. With ?async=true it returns the
// submission id at once and the verdict is polled through GetStatus.
func (h *JudgeController) Execute(c *gin.Context) {
	var req model.ExecutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if c.Query("async") == "true" {
		id, err := h.svc.Submit(c.Request.Context(), req)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Accepted(c, submitResponse{SubmissionID: id})
		return
	}
	verdict, err := h.svc.Run(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, verdict)
}

// GetStatus returns status for one submission.
func (h *JudgeController) GetStatus(c *gin.Context) {
	submissionID := c.Param("id")
	if submissionID == "" {
		response.BadRequest(c, "Invalid submission id")
		return
	}
	status, err := h.svc.Status(c.Request.Context(), submissionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, status)
}

// Cancel stops a running submission.
func (h *JudgeController) Cancel(c *gin.Context) {
	submissionID := c.Param("id")
	if submissionID == "" {
		response.BadRequest(c, "Invalid submission id")
		return
	}
	if err := h.svc.Cancel(c.Request.Context(), submissionID); err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, submitResponse{SubmissionID: submissionID})
}

type healthResponse struct {
	Status       string `json:"status"`
	LiveIsolates int64  `json:"liveIsolates"`
	Running      int    `json:"runningSubmissions"`
}

// Health reports liveness with pool and queue occupancy.
func (h *JudgeController) Health(c *gin.Context) {
	resp := healthResponse{Status: "ok", Running: h.svc.Running()}
	if h.pool != nil {
		resp.LiveIsolates = h.pool.Live()
	}
	response.Success(c, resp)
}
