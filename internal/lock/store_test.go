package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Verify MemoryLeaseStore implements LeaseStore.
var _ LeaseStore = (*MemoryLeaseStore)(nil)

// testClock is a controllable time source for expiry tests.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryLeaseStore_AcquireAndConflict(t *testing.T) {
	store := NewMemoryLeaseStore()
	ctx := context.Background()

	rec, err := store.TryAcquireOrRenew(ctx, ResourceSemester, "2026-1", "alice", "Alice", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "alice", rec.OwnerID)
	assert.Equal(t, "Alice", rec.OwnerName)
	assert.True(t, rec.ExpiresAt.After(rec.AcquiredAt))

	// A different owner is denied and told who holds the lease.
	_, err = store.TryAcquireOrRenew(ctx, ResourceSemester, "2026-1", "bob", "Bob", time.Minute)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	require.NotNil(t, conflict.Holder)
	assert.Equal(t, "alice", conflict.Holder.OwnerID)
	assert.Equal(t, "Alice", conflict.Holder.OwnerName)

	// A different resource is independent.
	rec, err = store.TryAcquireOrRenew(ctx, ResourceSemester, "2026-2", "bob", "Bob", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "bob", rec.OwnerID)
}

func TestMemoryLeaseStore_SelfRenewalKeepsAcquiredAt(t *testing.T) {
	store := NewMemoryLeaseStore()
	clock := newTestClock()
	store.SetClock(clock.Now)
	ctx := context.Background()

	first, err := store.TryAcquireOrRenew(ctx, ResourceSubject, "MATH101", "alice", "Alice", time.Minute)
	require.NoError(t, err)

	clock.Advance(30 * time.Second)

	second, err := store.TryAcquireOrRenew(ctx, ResourceSubject, "MATH101", "alice", "Alice", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, first.AcquiredAt, second.AcquiredAt)
	assert.True(t, second.ExpiresAt.After(first.ExpiresAt))
}

func TestMemoryLeaseStore_ExpiredLeaseCanBeTakenOver(t *testing.T) {
	store := NewMemoryLeaseStore()
	clock := newTestClock()
	store.SetClock(clock.Now)
	ctx := context.Background()

	_, err := store.TryAcquireOrRenew(ctx, ResourceSection, "S1", "alice", "Alice", time.Minute)
	require.NoError(t, err)

	clock.Advance(time.Minute + time.Second)

	// No Release needed: expiry alone frees the resource.
	rec, err := store.TryAcquireOrRenew(ctx, ResourceSection, "S1", "bob", "Bob", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "bob", rec.OwnerID)
	assert.Equal(t, clock.Now(), rec.AcquiredAt)
}

func TestMemoryLeaseStore_RenewIfOwner(t *testing.T) {
	store := NewMemoryLeaseStore()
	clock := newTestClock()
	store.SetClock(clock.Now)
	ctx := context.Background()

	_, err := store.TryAcquireOrRenew(ctx, ResourceSection, "S1", "alice", "Alice", time.Minute)
	require.NoError(t, err)

	rec, err := store.RenewIfOwner(ctx, ResourceSection, "S1", "alice", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.OwnerID)

	// Non-owner cannot renew, and the owner's lease is untouched.
	_, err = store.RenewIfOwner(ctx, ResourceSection, "S1", "bob", time.Minute)
	assert.ErrorIs(t, err, ErrNotOwner)

	active, err := store.FindActive(ctx, ResourceSection, "S1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "alice", active.OwnerID)

	// An expired lease cannot be renewed, it never comes back.
	clock.Advance(2 * time.Minute)
	_, err = store.RenewIfOwner(ctx, ResourceSection, "S1", "alice", time.Minute)
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestMemoryLeaseStore_DeleteIfOwner(t *testing.T) {
	store := NewMemoryLeaseStore()
	ctx := context.Background()

	_, err := store.TryAcquireOrRenew(ctx, ResourceSemester, "2026-1", "alice", "Alice", time.Minute)
	require.NoError(t, err)

	// Non-owner delete is a no-op.
	deleted, err := store.DeleteIfOwner(ctx, ResourceSemester, "2026-1", "bob")
	require.NoError(t, err)
	assert.False(t, deleted)

	rec, err := store.FindActive(ctx, ResourceSemester, "2026-1")
	require.NoError(t, err)
	require.NotNil(t, rec)

	deleted, err = store.DeleteIfOwner(ctx, ResourceSemester, "2026-1", "alice")
	require.NoError(t, err)
	assert.True(t, deleted)

	rec, err = store.FindActive(ctx, ResourceSemester, "2026-1")
	require.NoError(t, err)
	assert.Nil(t, rec)

	// Deleting again is a no-op, not an error.
	deleted, err = store.DeleteIfOwner(ctx, ResourceSemester, "2026-1", "alice")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestMemoryLeaseStore_FindActiveIgnoresExpired(t *testing.T) {
	store := NewMemoryLeaseStore()
	clock := newTestClock()
	store.SetClock(clock.Now)
	ctx := context.Background()

	_, err := store.TryAcquireOrRenew(ctx, ResourceSubject, "MATH101", "alice", "Alice", time.Minute)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)

	// The physical record still exists but is invisible to reads.
	rec, err := store.FindActive(ctx, ResourceSubject, "MATH101")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryLeaseStore_DeleteIfExpired(t *testing.T) {
	store := NewMemoryLeaseStore()
	clock := newTestClock()
	store.SetClock(clock.Now)
	ctx := context.Background()

	_, err := store.TryAcquireOrRenew(ctx, ResourceSubject, "MATH101", "alice", "Alice", time.Minute)
	require.NoError(t, err)

	// Active leases are not touched.
	deleted, err := store.DeleteIfExpired(ctx, ResourceSubject, "MATH101")
	require.NoError(t, err)
	assert.False(t, deleted)

	clock.Advance(2 * time.Minute)

	deleted, err = store.DeleteIfExpired(ctx, ResourceSubject, "MATH101")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryLeaseStore_FindActiveBatch(t *testing.T) {
	store := NewMemoryLeaseStore()
	clock := newTestClock()
	store.SetClock(clock.Now)
	ctx := context.Background()

	_, err := store.TryAcquireOrRenew(ctx, ResourceSemester, "2026-1", "alice", "Alice", time.Minute)
	require.NoError(t, err)
	_, err = store.TryAcquireOrRenew(ctx, ResourceSection, "S1", "bob", "Bob", time.Second)
	require.NoError(t, err)

	clock.Advance(30 * time.Second)

	keys := []Key{
		{ResourceType: ResourceSemester, ResourceID: "2026-1"},
		{ResourceType: ResourceSection, ResourceID: "S1"},
		{ResourceType: ResourceSubject, ResourceID: "MATH101"},
	}
	records, err := store.FindActiveBatch(ctx, keys)
	require.NoError(t, err)

	// Only the unexpired lease shows up; bob's expired, MATH101 never existed.
	require.Len(t, records, 1)
	assert.Equal(t, "alice", records[keys[0]].OwnerID)
}

func TestMemoryLeaseStore_PurgeExpired(t *testing.T) {
	store := NewMemoryLeaseStore()
	clock := newTestClock()
	store.SetClock(clock.Now)
	ctx := context.Background()

	_, err := store.TryAcquireOrRenew(ctx, ResourceSemester, "2026-1", "alice", "Alice", time.Second)
	require.NoError(t, err)
	_, err = store.TryAcquireOrRenew(ctx, ResourceSection, "S1", "bob", "Bob", time.Hour)
	require.NoError(t, err)

	clock.Advance(time.Minute)

	purged, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
	assert.Equal(t, 1, store.Len())

	// Purging is idempotent.
	purged, err = store.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), purged)
}

func TestMemoryLeaseStore_MutualExclusionUnderConcurrency(t *testing.T) {
	store := NewMemoryLeaseStore()
	ctx := context.Background()

	const n = 50
	granted := make(chan string, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(owner string) {
			defer wg.Done()
			rec, err := store.TryAcquireOrRenew(ctx, ResourceSection, "S1", owner, owner, time.Minute)
			if err == nil && rec != nil {
				granted <- owner
			}
		}(string(rune('a' + i%26)) + string(rune('0'+i/26)))
	}
	wg.Wait()
	close(granted)

	// Exactly one of the N distinct callers wins.
	var winners []string
	for owner := range granted {
		winners = append(winners, owner)
	}
	require.Len(t, winners, 1)

	rec, err := store.FindActive(ctx, ResourceSection, "S1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, winners[0], rec.OwnerID)
}
