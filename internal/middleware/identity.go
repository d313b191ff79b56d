// Package middleware provides HTTP middleware for the grading-system.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Headers populated by the session layer in front of this service. The lock
// subsystem trusts them as given and performs no authentication itself.
const (
	HeaderAdminID   = "X-Admin-ID"
	HeaderAdminName = "X-Admin-Name"
)

// Context keys for the authenticated admin identity.
const (
	ContextAdminID   = "adminID"
	ContextAdminName = "adminName"
)

// IdentityErrorResponse is the JSON body returned when identity is missing.
type IdentityErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// RequireIdentity extracts the calling admin's identity from the session
// headers and stores it on the request context. Requests without an admin id
// are rejected; the display name is optional.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		adminID := c.GetHeader(HeaderAdminID)
		if adminID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, IdentityErrorResponse{
				Error:   "unauthorized",
				Message: "admin identity is required",
			})
			return
		}

		c.Set(ContextAdminID, adminID)
		c.Set(ContextAdminName, c.GetHeader(HeaderAdminName))
		c.Next()
	}
}

// AdminIdentity returns the admin id and display name stored by
// RequireIdentity. The id is empty if the middleware did not run.
func AdminIdentity(c *gin.Context) (id, name string) {
	return c.GetString(ContextAdminID), c.GetString(ContextAdminName)
}
