package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/timmy/catalogx/internal/api/middleware"
	"github.com/timmy/catalogx/internal/domain"
)

// statusFor maps a domain error category onto an HTTP status.
func statusFor(code domain.Code) int {
	switch code {
	case domain.CodeValidation, domain.CodeParse:
		return http.StatusBadRequest
	case domain.CodeUnauthenticated:
		return http.StatusUnauthorized
	case domain.CodeAuthorization:
		return http.StatusForbidden
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeTransient:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError writes {"error": code, "message": text}. Internal details of
// unclassified errors are logged, not returned.
func respondError(c *gin.Context, err error) {
	code := domain.CodeOf(err)
	status := statusFor(code)
	message := err.Error()

	var de *domain.Error
	if errors.As(err, &de) && de.Message != "" && code == domain.CodeTransient {
		message = de.Message
	}
	if status >= http.StatusInternalServerError {
		middleware.GetLogger(c).WithError(err).Error("Request failed")
		if code == domain.CodeInternal {
			message = "internal error"
		}
	}
	c.AbortWithStatusJSON(status, gin.H{"error": code, "message": message})
}

func badRequest(c *gin.Context, message string) {
	respondError(c, domain.NewValidationError("%s", message))
}

// pageParams reads ?page and ?limit. Missing or unparsable values fall back
// to the defaults applied by domain.NormalizePage.
func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return page, limit
}
