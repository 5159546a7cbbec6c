package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/covenantops-api/internal/jobs"
)

type HealthHandler struct {
	worker *jobs.Worker
}

func NewHealthHandler(worker *jobs.Worker) *HealthHandler {
	return &HealthHandler{worker: worker}
}

// HealthResponse reports liveness and background worker state
type HealthResponse struct {
	Status string            `json:"status"`
	Jobs   *jobs.WorkerStats `json:"jobs,omitempty"`
}

// @Summary Health Check
// @Description Checks if the API is running
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Index(c *gin.Context) {
	resp := HealthResponse{Status: "ok"}
	if h.worker != nil {
		stats := h.worker.GetStats()
		resp.Jobs = &stats
	}
	c.JSON(http.StatusOK, resp)
}
