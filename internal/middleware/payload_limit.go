package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// PayloadLimitErrorResponse is the JSON body for oversized requests.
type PayloadLimitErrorResponse struct {
	Error    string `json:"error"`
	Message  string `json:"message"`
	MaxBytes int64  `json:"maxBytes"`
}

// PayloadLimit limits the request body size on admin endpoints. Requests
// with an oversized Content-Length are rejected up front; bodies without a
// reliable Content-Length are capped with http.MaxBytesReader, so reads past
// the limit fail inside the handler.
func PayloadLimit(maxBytes int64, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.ContentLength == 0 {
			c.Next()
			return
		}

		if c.Request.ContentLength > maxBytes {
			logger.Warn().
				Str("clientIP", c.ClientIP()).
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Int64("attemptedSize", c.Request.ContentLength).
				Int64("maxBytes", maxBytes).
				Msg("oversized request rejected")
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, PayloadLimitErrorResponse{
				Error:    "payload_too_large",
				Message:  "request body exceeds the maximum allowed size",
				MaxBytes: maxBytes,
			})
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
