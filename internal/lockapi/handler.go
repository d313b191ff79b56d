// Package lockapi provides the HTTP handlers for the edit-lock service.
package lockapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/opengrade/grading-system/internal/lock"
	"github.com/opengrade/grading-system/internal/middleware"
)

// ErrorResponse represents an error returned to the client.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// AcquireResponse is the body returned by the acquire endpoint.
type AcquireResponse struct {
	Granted   bool       `json:"granted"`
	HeldBy    string     `json:"heldBy,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// HeartbeatResponse is the body returned by a successful heartbeat.
type HeartbeatResponse struct {
	Renewed   bool      `json:"renewed"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ReleaseResponse is the body returned by the release endpoint.
type ReleaseResponse struct {
	Released bool `json:"released"`
}

// BatchQueryRequest is the body accepted by the batch query endpoint.
type BatchQueryRequest struct {
	Resources []lock.Key `json:"resources" binding:"required"`
}

// BatchQueryResponse maps "resourceType:resourceId" to each lock status.
type BatchQueryResponse struct {
	Results map[string]*lock.Status `json:"results"`
}

// SweepResponse is the body returned by the admin sweep endpoint.
type SweepResponse struct {
	Purged int64 `json:"purged"`
}

// Handler handles lock service HTTP requests.
type Handler struct {
	svc    *lock.Service
	logger zerolog.Logger
}

// NewHandler creates a new lock API handler.
func NewHandler(svc *lock.Service, logger zerolog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger.With().Str("component", "lockapi").Logger(),
	}
}

// RegisterRoutes registers the lock endpoints on the provided router group.
// All routes require the admin identity headers.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	locks := router.Group("/locks")
	locks.Use(middleware.RequireIdentity())

	locks.POST("/query", h.QueryBatch)
	locks.POST("/:resource_type/:resource_id", h.Acquire)
	locks.PUT("/:resource_type/:resource_id/heartbeat", h.Heartbeat)
	locks.DELETE("/:resource_type/:resource_id", h.Release)
	locks.GET("/:resource_type/:resource_id", h.QueryOne)
}

// RegisterAdminRoutes registers maintenance endpoints on the admin group.
func (h *Handler) RegisterAdminRoutes(router *gin.RouterGroup) {
	router.POST("/locks/sweep", h.Sweep)
}

// Acquire attempts to take the edit lease on a resource for the caller.
// A denial is reported as 423 Locked with the current holder, which is an
// expected outcome of contention, not a server failure.
func (h *Handler) Acquire(c *gin.Context) {
	adminID, adminName := middleware.AdminIdentity(c)

	result, err := h.svc.Acquire(c.Request.Context(),
		c.Param("resource_type"), c.Param("resource_id"), adminID, adminName)
	if err != nil {
		h.respondError(c, err, "failed to acquire lock")
		return
	}

	if !result.Granted {
		resp := AcquireResponse{Granted: false, HeldBy: result.HeldBy}
		if !result.ExpiresAt.IsZero() {
			expires := result.ExpiresAt
			resp.ExpiresAt = &expires
		}
		c.JSON(http.StatusLocked, resp)
		return
	}

	expires := result.ExpiresAt
	c.JSON(http.StatusOK, AcquireResponse{Granted: true, ExpiresAt: &expires})
}

// Heartbeat extends the caller's lease on a resource.
func (h *Handler) Heartbeat(c *gin.Context) {
	adminID, _ := middleware.AdminIdentity(c)

	rec, err := h.svc.Heartbeat(c.Request.Context(),
		c.Param("resource_type"), c.Param("resource_id"), adminID)
	if errors.Is(err, lock.ErrNotOwner) {
		c.JSON(http.StatusLocked, ErrorResponse{
			Error:   "not_owner",
			Message: "lease expired or not held by this session; acquire again",
		})
		return
	}
	if err != nil {
		h.respondError(c, err, "failed to renew lock")
		return
	}

	c.JSON(http.StatusOK, HeartbeatResponse{Renewed: true, ExpiresAt: rec.ExpiresAt})
}

// Release drops the caller's lease. Always succeeds: releasing a lock you no
// longer hold leaves the requested end state in place.
func (h *Handler) Release(c *gin.Context) {
	adminID, _ := middleware.AdminIdentity(c)

	err := h.svc.Release(c.Request.Context(),
		c.Param("resource_type"), c.Param("resource_id"), adminID)
	if err != nil {
		h.respondError(c, err, "failed to release lock")
		return
	}

	c.JSON(http.StatusOK, ReleaseResponse{Released: true})
}

// QueryOne reports the lock state of a single resource.
func (h *Handler) QueryOne(c *gin.Context) {
	adminID, _ := middleware.AdminIdentity(c)

	status, err := h.svc.QueryOne(c.Request.Context(),
		c.Param("resource_type"), c.Param("resource_id"), adminID)
	if err != nil {
		h.respondError(c, err, "failed to query lock")
		return
	}

	c.JSON(http.StatusOK, status)
}

// QueryBatch reports the lock state of many resources in one round trip,
// used by list views to render lock indicators per row.
func (h *Handler) QueryBatch(c *gin.Context) {
	adminID, _ := middleware.AdminIdentity(c)

	var req BatchQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "body must contain a resources list",
		})
		return
	}

	statuses, err := h.svc.QueryBatch(c.Request.Context(), req.Resources, adminID)
	if err != nil {
		h.respondError(c, err, "failed to query locks")
		return
	}

	results := make(map[string]*lock.Status, len(statuses))
	for key, status := range statuses {
		results[key.String()] = status
	}
	c.JSON(http.StatusOK, BatchQueryResponse{Results: results})
}

// Sweep purges expired lock records on demand.
func (h *Handler) Sweep(c *gin.Context) {
	purged, err := h.svc.Sweep(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "failed to sweep locks")
		return
	}

	c.JSON(http.StatusOK, SweepResponse{Purged: purged})
}

func (h *Handler) respondError(c *gin.Context, err error, logMsg string) {
	if lock.IsClientError(err) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	h.logger.Error().Err(err).
		Str("path", c.Request.URL.Path).
		Msg(logMsg)
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal",
		Message: "lock store unavailable",
	})
}
