package handler

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/timmy/catalogx/internal/api/middleware"
	"github.com/timmy/catalogx/internal/domain"
	"github.com/timmy/catalogx/internal/service"
)

// multipartOverhead is the allowance for form fields and boundaries on top
// of the file itself.
const multipartOverhead = 1 << 20

// ImportHandler accepts exchange document uploads.
type ImportHandler struct {
	gateway        *service.Gateway
	maxUploadBytes int64
}

// NewImportHandler creates a new import handler.
// Parameters:
//   - gateway: ingestion gateway that stores and schedules uploads.
//   - maxUploadBytes: upper bound of a request body, zero for none.
// Returns:
//   - *ImportHandler: initialized handler.
func NewImportHandler(gateway *service.Gateway, maxUploadBytes int64) *ImportHandler {
	return &ImportHandler{gateway: gateway, maxUploadBytes: maxUploadBytes}
}

// Import handles POST /import-data.
// The form carries importType (catalog, price, stock-balance) and file. The
// job is created synchronously; processing happens in the background.
func (h *ImportHandler) Import(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)
	}

	importType := domain.ExchangeType(c.PostForm("importType"))
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			badRequest(c, fmt.Sprintf("file exceeds %d bytes", h.maxUploadBytes))
			return
		}
		badRequest(c, "file is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, domain.NewTransientError(err, "failed to read upload"))
		return
	}
	defer f.Close()

	companyID := middleware.CompanyID(c)
	job, err := h.gateway.Submit(c.Request.Context(), service.SubmitRequest{
		CompanyID: companyID,
		Type:      importType,
		FileName:  filepath.Base(fh.Filename),
		Size:      fh.Size,
		Body:      f,
	})
	if err != nil && job == nil {
		respondError(c, err)
		return
	}
	// A job that could not be enqueued is durable and picked up by the reaper.

	c.JSON(http.StatusAccepted, gin.H{
		"status":     "accepted",
		"job_id":     job.ID,
		"status_url": fmt.Sprintf("/company/%s/exchange-jobs/%s", companyID, job.ID),
	})
}
