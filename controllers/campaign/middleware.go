package campaign

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"campaign_workflow/services/workflow"
	"campaign_workflow/utils"

	"github.com/gin-gonic/gin"
)

// Headers set by the authenticating gateway in front of this service.
const (
	HeaderTenantID       = "X-Tenant-ID"
	HeaderUserID         = "X-User-ID"
	HeaderIdempotencyKey = "Idempotency-Key"

	ctxTenantID = "tenant_id"
	ctxUserID   = "user_id"
)

// RequireIdentity copies the already-authenticated tenant and user from the
// gateway headers into the gin context. Requests without both are refused.
// The idempotency key, when present, is attached to the request context.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := strings.TrimSpace(c.GetHeader(HeaderTenantID))
		userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if tenantID == "" || userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing " + HeaderTenantID + " or " + HeaderUserID + " header",
				"code":  "unauthenticated",
			})
			return
		}
		c.Set(ctxTenantID, tenantID)
		c.Set(ctxUserID, userID)

		if key := c.GetHeader(HeaderIdempotencyKey); key != "" {
			c.Request = c.Request.WithContext(workflow.WithIdempotencyKey(c.Request.Context(), key))
		}
		c.Next()
	}
}

// RequestMetrics records count and latency per route template.
func RequestMetrics(m *utils.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func identity(c *gin.Context) (tenantID, userID string) {
	return c.GetString(ctxTenantID), c.GetString(ctxUserID)
}
