package academic

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opengrade/grading-system/internal/lock"
	"github.com/opengrade/grading-system/internal/middleware"
)

// ErrorResponse represents an error returned to the client.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// SemesterRequest is the body for creating or updating a semester.
type SemesterRequest struct {
	Name      string    `json:"name" binding:"required"`
	StartDate time.Time `json:"startDate" binding:"required"`
	EndDate   time.Time `json:"endDate" binding:"required"`
}

// SubjectRequest is the body for creating or updating a subject.
type SubjectRequest struct {
	SemesterID uuid.UUID `json:"semesterId"`
	Code       string    `json:"code" binding:"required"`
	Title      string    `json:"title" binding:"required"`
	Units      int       `json:"units"`
}

// SectionRequest is the body for creating or updating a section.
type SectionRequest struct {
	SubjectID uuid.UUID `json:"subjectId"`
	Name      string    `json:"name" binding:"required"`
	Schedule  string    `json:"schedule"`
	Capacity  int       `json:"capacity"`
}

// SemesterListItem is a semester row with its current lock indicator, for
// list views that show who is editing what.
type SemesterListItem struct {
	*Semester
	Lock *lock.Status `json:"lock"`
}

// Handler handles academic record HTTP requests. Every mutating route is
// gated by the edit-lock guard; acquiring the lock stays a deliberate action
// done through the lock API before editing.
type Handler struct {
	store   Store
	lockSvc *lock.Service
	logger  zerolog.Logger
}

// NewHandler creates a new academic records handler.
func NewHandler(store Store, lockSvc *lock.Service, logger zerolog.Logger) *Handler {
	return &Handler{
		store:   store,
		lockSvc: lockSvc,
		logger:  logger.With().Str("component", "academic").Logger(),
	}
}

// RegisterRoutes registers the academic record routes on the provided group.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	guard := func(rt lock.ResourceType) gin.HandlerFunc {
		return middleware.RequireLease(h.lockSvc, rt, "id", h.logger)
	}

	semesters := router.Group("/semesters")
	semesters.Use(middleware.RequireIdentity())
	semesters.GET("", h.ListSemesters)
	semesters.POST("", h.CreateSemester)
	semesters.GET("/:id", h.GetSemester)
	semesters.PUT("/:id", guard(lock.ResourceSemester), h.UpdateSemester)
	semesters.POST("/:id/archive", guard(lock.ResourceSemester), h.ArchiveSemester)

	subjects := router.Group("/subjects")
	subjects.Use(middleware.RequireIdentity())
	subjects.POST("", h.CreateSubject)
	subjects.GET("/:id", h.GetSubject)
	subjects.PUT("/:id", guard(lock.ResourceSubject), h.UpdateSubject)

	sections := router.Group("/sections")
	sections.Use(middleware.RequireIdentity())
	sections.POST("", h.CreateSection)
	sections.GET("/:id", h.GetSection)
	sections.PUT("/:id", guard(lock.ResourceSection), h.UpdateSection)
}

// ListSemesters lists all semesters with their current lock indicators in a
// single batch query.
func (h *Handler) ListSemesters(c *gin.Context) {
	adminID, _ := middleware.AdminIdentity(c)

	semesters, err := h.store.ListSemesters(c.Request.Context())
	if err != nil {
		h.respondStoreError(c, err, "failed to list semesters")
		return
	}

	keys := make([]lock.Key, len(semesters))
	for i, sem := range semesters {
		keys[i] = lock.Key{ResourceType: lock.ResourceSemester, ResourceID: sem.ID.String()}
	}

	statuses, err := h.lockSvc.QueryBatch(c.Request.Context(), keys, adminID)
	if err != nil {
		h.respondStoreError(c, err, "failed to query semester locks")
		return
	}

	items := make([]SemesterListItem, len(semesters))
	for i, sem := range semesters {
		items[i] = SemesterListItem{Semester: sem, Lock: statuses[keys[i]]}
	}
	c.JSON(http.StatusOK, items)
}

// CreateSemester creates a new semester. Creation is not guarded: a record
// that does not exist yet cannot be concurrently edited.
func (h *Handler) CreateSemester(c *gin.Context) {
	var req SemesterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBadRequest(c, err)
		return
	}

	sem, err := h.store.CreateSemester(c.Request.Context(), &Semester{
		Name:      req.Name,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
	if err != nil {
		h.respondStoreError(c, err, "failed to create semester")
		return
	}
	c.JSON(http.StatusCreated, sem)
}

// GetSemester retrieves a semester by ID.
func (h *Handler) GetSemester(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	sem, err := h.store.GetSemester(c.Request.Context(), id)
	if err != nil {
		h.respondStoreError(c, err, "failed to get semester")
		return
	}
	c.JSON(http.StatusOK, sem)
}

// UpdateSemester renames or re-dates a semester. Reached only when the guard
// confirmed the caller holds the edit lease.
func (h *Handler) UpdateSemester(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req SemesterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBadRequest(c, err)
		return
	}

	existing, err := h.store.GetSemester(c.Request.Context(), id)
	if err != nil {
		h.respondStoreError(c, err, "failed to get semester")
		return
	}

	existing.Name = req.Name
	existing.StartDate = req.StartDate
	existing.EndDate = req.EndDate

	sem, err := h.store.UpdateSemester(c.Request.Context(), existing)
	if err != nil {
		h.respondStoreError(c, err, "failed to update semester")
		return
	}
	c.JSON(http.StatusOK, sem)
}

// ArchiveSemester marks a semester as archived.
func (h *Handler) ArchiveSemester(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	if err := h.store.ArchiveSemester(c.Request.Context(), id); err != nil {
		h.respondStoreError(c, err, "failed to archive semester")
		return
	}
	c.JSON(http.StatusOK, gin.H{"archived": true})
}

// CreateSubject creates a new subject.
func (h *Handler) CreateSubject(c *gin.Context) {
	var req SubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBadRequest(c, err)
		return
	}

	sub, err := h.store.CreateSubject(c.Request.Context(), &Subject{
		SemesterID: req.SemesterID,
		Code:       req.Code,
		Title:      req.Title,
		Units:      req.Units,
	})
	if err != nil {
		h.respondStoreError(c, err, "failed to create subject")
		return
	}
	c.JSON(http.StatusCreated, sub)
}

// GetSubject retrieves a subject by ID.
func (h *Handler) GetSubject(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	sub, err := h.store.GetSubject(c.Request.Context(), id)
	if err != nil {
		h.respondStoreError(c, err, "failed to get subject")
		return
	}
	c.JSON(http.StatusOK, sub)
}

// UpdateSubject updates a subject's code, title, and units.
func (h *Handler) UpdateSubject(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req SubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBadRequest(c, err)
		return
	}

	sub, err := h.store.UpdateSubject(c.Request.Context(), &Subject{
		ID:    id,
		Code:  req.Code,
		Title: req.Title,
		Units: req.Units,
	})
	if err != nil {
		h.respondStoreError(c, err, "failed to update subject")
		return
	}
	c.JSON(http.StatusOK, sub)
}

// CreateSection creates a new section.
func (h *Handler) CreateSection(c *gin.Context) {
	var req SectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBadRequest(c, err)
		return
	}

	sec, err := h.store.CreateSection(c.Request.Context(), &Section{
		SubjectID: req.SubjectID,
		Name:      req.Name,
		Schedule:  req.Schedule,
		Capacity:  req.Capacity,
	})
	if err != nil {
		h.respondStoreError(c, err, "failed to create section")
		return
	}
	c.JSON(http.StatusCreated, sec)
}

// GetSection retrieves a section by ID.
func (h *Handler) GetSection(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	sec, err := h.store.GetSection(c.Request.Context(), id)
	if err != nil {
		h.respondStoreError(c, err, "failed to get section")
		return
	}
	c.JSON(http.StatusOK, sec)
}

// UpdateSection updates a section's name, schedule, and capacity.
func (h *Handler) UpdateSection(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req SectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBadRequest(c, err)
		return
	}

	sec, err := h.store.UpdateSection(c.Request.Context(), &Section{
		ID:       id,
		Name:     req.Name,
		Schedule: req.Schedule,
		Capacity: req.Capacity,
	})
	if err != nil {
		h.respondStoreError(c, err, "failed to update section")
		return
	}
	c.JSON(http.StatusOK, sec)
}

func (h *Handler) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "id must be a valid UUID",
		})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_request",
		Message: err.Error(),
	})
}

func (h *Handler) respondStoreError(c *gin.Context, err error, logMsg string) {
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "record not found",
		})
		return
	}

	h.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg(logMsg)
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal",
		Message: "storage unavailable",
	})
}
