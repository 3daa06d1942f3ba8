package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/catalogx/internal/domain"
)

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		err     error
		status  int
		code    domain.Code
		message string
	}{
		{"validation", domain.NewValidationError("name is required"), http.StatusBadRequest, domain.CodeValidation, "name is required"},
		{"wrapped not found", fmt.Errorf("load: %w", domain.NewNotFoundError("job %q not found", "j1")), http.StatusNotFound, domain.CodeNotFound, `load: job "j1" not found`},
		{"forbidden", domain.NewAuthorizationError("admin required"), http.StatusForbidden, domain.CodeAuthorization, "admin required"},
		{"transient hides cause", domain.NewTransientError(errors.New("dial tcp: refused"), "storage unavailable"), http.StatusServiceUnavailable, domain.CodeTransient, "storage unavailable"},
		{"internal hides detail", errors.New("nil pointer somewhere"), http.StatusInternalServerError, domain.CodeInternal, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			respondError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, string(tt.code), body["error"])
			assert.Equal(t, tt.message, body["message"])
		})
	}
}

func TestPageParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?page=3&limit=abc", nil)

	page, limit := pageParams(c)
	assert.Equal(t, 3, page)
	assert.Equal(t, 0, limit)
}
