package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opengrade/grading-system/internal/lock"
)

func newGuardedRouter(t *testing.T) (*gin.Engine, *lock.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := lock.NewService(lock.NewMemoryLeaseStore(), zerolog.Nop())

	router := gin.New()
	group := router.Group("/semesters")
	group.Use(RequireIdentity())
	group.PUT("/:id", RequireLease(svc, lock.ResourceSemester, "id", zerolog.Nop()), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"updated": true})
	})
	return router, svc
}

func putSemester(router *gin.Engine, id, adminID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("PUT", "/semesters/"+id, nil)
	if adminID != "" {
		req.Header.Set(HeaderAdminID, adminID)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRequireLease_MissingIdentity(t *testing.T) {
	router, _ := newGuardedRouter(t)

	rec := putSemester(router, "2026-1", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireLease_NotLocked(t *testing.T) {
	router, _ := newGuardedRouter(t)

	// Never auto-acquires: the mutation is rejected even though the resource
	// is free.
	rec := putSemester(router, "2026-1", "alice")
	assert.Equal(t, http.StatusLocked, rec.Code)

	var body LockErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not_locked", body.Error)
}

func TestRequireLease_HeldByOther(t *testing.T) {
	router, svc := newGuardedRouter(t)

	_, err := svc.Acquire(context.Background(), "semester", "2026-1", "bob", "Bob")
	require.NoError(t, err)

	rec := putSemester(router, "2026-1", "alice")
	assert.Equal(t, http.StatusLocked, rec.Code)

	var body LockErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "lock_held", body.Error)
	assert.Equal(t, "Bob", body.HeldBy)
	require.NotNil(t, body.ExpiresAt)
	assert.Contains(t, body.Message, "Bob")
}

func TestRequireLease_HolderMayMutate(t *testing.T) {
	router, svc := newGuardedRouter(t)

	_, err := svc.Acquire(context.Background(), "semester", "2026-1", "alice", "Alice")
	require.NoError(t, err)

	rec := putSemester(router, "2026-1", "alice")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "updated")
}

func TestRequireLease_ReleasedLeaseNoLongerAuthorizes(t *testing.T) {
	router, svc := newGuardedRouter(t)
	ctx := context.Background()

	_, err := svc.Acquire(ctx, "semester", "2026-1", "alice", "Alice")
	require.NoError(t, err)
	require.NoError(t, svc.Release(ctx, "semester", "2026-1", "alice"))

	// Having held the lease in the past means nothing.
	rec := putSemester(router, "2026-1", "alice")
	assert.Equal(t, http.StatusLocked, rec.Code)

	var body LockErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not_locked", body.Error)
}
