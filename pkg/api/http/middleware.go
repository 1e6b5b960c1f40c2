package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	// identityHeader carries the authenticated caller subject, injected by
	// the fronting authenticator. Claims extraction is not this service's
	// job; an empty header means the request never passed authentication.
	identityHeader = "X-Auth-Subject"

	// idempotencyHeader carries the caller-supplied idempotency token that
	// deduplicates retried submissions.
	idempotencyHeader = "Idempotency-Key"

	identityKey = "caller_identity"
)

// identityMiddleware rejects requests without an authenticated caller
// subject and stores the subject in the request context.
func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := c.GetHeader(identityHeader)
		if subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error: ErrorDetail{
					Code:    "UNAUTHENTICATED",
					Message: "Missing caller identity",
				},
			})
			return
		}

		c.Set(identityKey, subject)
		c.Next()
	}
}

// callerIdentity returns the authenticated subject set by identityMiddleware.
func callerIdentity(c *gin.Context) string {
	return c.GetString(identityKey)
}
