package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNotOwner is returned when a renew or delete is attempted by a caller
// that does not hold an active lease on the resource.
var ErrNotOwner = errors.New("lease not held by this owner")

// ConflictError reports a denied acquisition. Holder is the record that won,
// fetched in a follow-up read; it may be nil if the winning lease vanished
// between the denial and the read.
type ConflictError struct {
	Holder *Record
}

func (e *ConflictError) Error() string {
	if e.Holder == nil {
		return "lease held by another owner"
	}
	return fmt.Sprintf("lease held by %s until %s", e.Holder.OwnerName, e.Holder.ExpiresAt.Format(time.RFC3339))
}

// LeaseStore is the storage adapter for lease records. Every state transition
// is a single atomic operation against the backend; there is no read-then-write
// sequence in caller code, which is what makes concurrent use safe across
// multiple service instances.
type LeaseStore interface {
	// TryAcquireOrRenew atomically grants a new lease, renews the caller's
	// existing lease, or takes over an expired one, pushing ExpiresAt forward
	// by lease. A still-active lease owned by someone else yields a
	// *ConflictError.
	TryAcquireOrRenew(ctx context.Context, rt ResourceType, resourceID, ownerID, ownerName string, lease time.Duration) (*Record, error)

	// RenewIfOwner pushes ExpiresAt forward only if an active record matching
	// (rt, resourceID, ownerID) exists. It never creates a record; if none
	// matches it returns ErrNotOwner.
	RenewIfOwner(ctx context.Context, rt ResourceType, resourceID, ownerID string, lease time.Duration) (*Record, error)

	// DeleteIfOwner removes the record only if it is owned by ownerID.
	// Returns whether a record was actually deleted.
	DeleteIfOwner(ctx context.Context, rt ResourceType, resourceID, ownerID string) (bool, error)

	// FindActive returns the active record for the resource, or nil if no
	// record exists or the existing one has expired.
	FindActive(ctx context.Context, rt ResourceType, resourceID string) (*Record, error)

	// DeleteIfExpired removes the record for the resource only if it has
	// expired. Housekeeping for read paths that notice a stale record.
	DeleteIfExpired(ctx context.Context, rt ResourceType, resourceID string) (bool, error)

	// FindActiveBatch returns the active records for the given keys in a
	// single round trip where the backend supports it. Keys with no active
	// lease are absent from the result.
	FindActiveBatch(ctx context.Context, keys []Key) (map[Key]*Record, error)

	// PurgeExpired physically deletes expired records and returns how many
	// were removed. Purely housekeeping: every read path already filters on
	// expiry, so this never changes an answer.
	PurgeExpired(ctx context.Context) (int64, error)
}

// MemoryLeaseStore is an in-memory implementation of LeaseStore for testing
// and development. Safe for concurrent use within a single process only.
type MemoryLeaseStore struct {
	mu      sync.RWMutex
	records map[Key]*Record
	now     func() time.Time
}

// NewMemoryLeaseStore creates a new in-memory lease store.
func NewMemoryLeaseStore() *MemoryLeaseStore {
	return &MemoryLeaseStore{
		records: make(map[Key]*Record),
		now:     time.Now,
	}
}

// SetClock overrides the store's time source (for testing lease expiry).
func (s *MemoryLeaseStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// TryAcquireOrRenew implements LeaseStore.TryAcquireOrRenew.
func (s *MemoryLeaseStore) TryAcquireOrRenew(ctx context.Context, rt ResourceType, resourceID, ownerID, ownerName string, lease time.Duration) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	key := Key{ResourceType: rt, ResourceID: resourceID}

	if existing, ok := s.records[key]; ok && existing.Active(now) && existing.OwnerID != ownerID {
		holder := *existing
		return nil, &ConflictError{Holder: &holder}
	}

	rec := &Record{
		ResourceType: rt,
		ResourceID:   resourceID,
		OwnerID:      ownerID,
		OwnerName:    ownerName,
		AcquiredAt:   now,
		ExpiresAt:    now.Add(lease),
	}
	// A self-renewal keeps the original acquisition time.
	if existing, ok := s.records[key]; ok && existing.Active(now) && existing.OwnerID == ownerID {
		rec.AcquiredAt = existing.AcquiredAt
	}
	s.records[key] = rec

	out := *rec
	return &out, nil
}

// RenewIfOwner implements LeaseStore.RenewIfOwner.
func (s *MemoryLeaseStore) RenewIfOwner(ctx context.Context, rt ResourceType, resourceID, ownerID string, lease time.Duration) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	key := Key{ResourceType: rt, ResourceID: resourceID}

	existing, ok := s.records[key]
	if !ok || !existing.Active(now) || existing.OwnerID != ownerID {
		return nil, ErrNotOwner
	}

	existing.ExpiresAt = now.Add(lease)
	out := *existing
	return &out, nil
}

// DeleteIfOwner implements LeaseStore.DeleteIfOwner.
func (s *MemoryLeaseStore) DeleteIfOwner(ctx context.Context, rt ResourceType, resourceID, ownerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Key{ResourceType: rt, ResourceID: resourceID}
	existing, ok := s.records[key]
	if !ok || existing.OwnerID != ownerID {
		return false, nil
	}

	delete(s.records, key)
	return true, nil
}

// FindActive implements LeaseStore.FindActive.
func (s *MemoryLeaseStore) FindActive(ctx context.Context, rt ResourceType, resourceID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	existing, ok := s.records[Key{ResourceType: rt, ResourceID: resourceID}]
	if !ok || !existing.Active(s.now()) {
		return nil, nil
	}

	out := *existing
	return &out, nil
}

// DeleteIfExpired implements LeaseStore.DeleteIfExpired.
func (s *MemoryLeaseStore) DeleteIfExpired(ctx context.Context, rt ResourceType, resourceID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Key{ResourceType: rt, ResourceID: resourceID}
	existing, ok := s.records[key]
	if !ok || existing.Active(s.now()) {
		return false, nil
	}

	delete(s.records, key)
	return true, nil
}

// FindActiveBatch implements LeaseStore.FindActiveBatch.
func (s *MemoryLeaseStore) FindActiveBatch(ctx context.Context, keys []Key) (map[Key]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	result := make(map[Key]*Record, len(keys))
	for _, key := range keys {
		if existing, ok := s.records[key]; ok && existing.Active(now) {
			out := *existing
			result[key] = &out
		}
	}
	return result, nil
}

// PurgeExpired implements LeaseStore.PurgeExpired.
func (s *MemoryLeaseStore) PurgeExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var purged int64
	for key, rec := range s.records {
		if !rec.Active(now) {
			delete(s.records, key)
			purged++
		}
	}
	return purged, nil
}

// Len returns the number of physical records in the store (for testing).
func (s *MemoryLeaseStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Verify MemoryLeaseStore implements LeaseStore.
var _ LeaseStore = (*MemoryLeaseStore)(nil)
