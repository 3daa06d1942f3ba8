package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/catalogx/internal/api/middleware"
	"github.com/timmy/catalogx/internal/service"
)

// ExchangeHandler serves job status and audit trails.
type ExchangeHandler struct {
	jobs *service.JobQuery
}

// NewExchangeHandler creates a new exchange handler.
func NewExchangeHandler(jobs *service.JobQuery) *ExchangeHandler {
	return &ExchangeHandler{jobs: jobs}
}

// ListJobs handles GET /company/:id/exchange-jobs, newest first.
func (h *ExchangeHandler) ListJobs(c *gin.Context) {
	page, limit := pageParams(c)
	result, err := h.jobs.List(c.Request.Context(), middleware.CompanyID(c), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetJob handles GET /company/:id/exchange-jobs/:jobId.
func (h *ExchangeHandler) GetJob(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), middleware.CompanyID(c), c.Param("jobId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListLogs handles GET /company/:id/exchange-jobs/:jobId/logs, oldest first.
func (h *ExchangeHandler) ListLogs(c *gin.Context) {
	page, limit := pageParams(c)
	result, err := h.jobs.Logs(c.Request.Context(), middleware.CompanyID(c), c.Param("jobId"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
