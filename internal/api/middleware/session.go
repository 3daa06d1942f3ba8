package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/timmy/catalogx/internal/domain"
	"github.com/timmy/catalogx/internal/logger"
	"github.com/timmy/catalogx/internal/repository"
)

const (
	userIDHeader    = "X-User-ID"
	companyIDHeader = "X-Company-ID"

	sessionKey = "session"
	memberKey  = "member"
)

// SessionInfo is the identity an upstream auth layer attached to the request.
type SessionInfo struct {
	UserID    string
	CompanyID string
}

// Session copies the upstream identity headers into the request. Requests
// without a user are rejected with 401.
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := SessionInfo{
			UserID:    strings.TrimSpace(c.GetHeader(userIDHeader)),
			CompanyID: strings.TrimSpace(c.GetHeader(companyIDHeader)),
		}
		if s.UserID == "" {
			abortError(c, http.StatusUnauthorized, domain.CodeUnauthenticated, "missing session")
			return
		}
		c.Set(sessionKey, s)
		ctx := logger.SetUserID(c.Request.Context(), s.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetSession returns the session set by Session.
func GetSession(c *gin.Context) (SessionInfo, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return SessionInfo{}, false
	}
	s, ok := v.(SessionInfo)
	return s, ok
}

// CompanyID resolves the company a request acts on: the :id path parameter
// when the route has one, otherwise the session company.
func CompanyID(c *gin.Context) string {
	if id := c.Param("id"); id != "" {
		return id
	}
	s, _ := GetSession(c)
	return s.CompanyID
}

// RequireRole checks that the session user belongs to the request's company.
// With role RoleAdmin the membership must be an admin one.
func RequireRole(companies *repository.CompanyRepository, role domain.MemberRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := GetSession(c)
		if !ok {
			abortError(c, http.StatusUnauthorized, domain.CodeUnauthenticated, "missing session")
			return
		}
		companyID := CompanyID(c)
		if companyID == "" {
			abortError(c, http.StatusForbidden, domain.CodeAuthorization, "no company selected")
			return
		}

		member, err := companies.GetMember(c.Request.Context(), companyID, s.UserID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			abortError(c, http.StatusForbidden, domain.CodeAuthorization, "not a member of this company")
			return
		case err != nil:
			GetLogger(c).WithError(err).Error("Membership lookup failed")
			abortError(c, http.StatusInternalServerError, domain.CodeInternal, "membership lookup failed")
			return
		}
		if role == domain.RoleAdmin && member.Role != domain.RoleAdmin {
			abortError(c, http.StatusForbidden, domain.CodeAuthorization, "company admin role required")
			return
		}

		c.Set(memberKey, member)
		ctx := logger.SetCompanyID(c.Request.Context(), companyID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func abortError(c *gin.Context, status int, code domain.Code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code, "message": message})
}
