package lock

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/opengrade/grading-system/internal/metrics"
)

// DefaultLeaseDuration is how long an edit lease stays valid without a
// heartbeat (5 minutes).
const DefaultLeaseDuration = 5 * time.Minute

// Client errors, rejected before any store access.
var (
	// ErrMissingResourceID is returned when the resource id is empty.
	ErrMissingResourceID = errors.New("resource id is required")

	// ErrMissingOwnerID is returned when the caller identity is empty.
	ErrMissingOwnerID = errors.New("owner id is required")
)

// AcquireResult is the outcome of an Acquire call. A denial is an expected
// result of contention, not a failure: it carries the current holder so the
// UI can show who is editing and until when.
type AcquireResult struct {
	Granted bool
	// Record is the granted lease. Set only when Granted.
	Record *Record
	// HeldBy is the current holder's display name. Set only when denied; may
	// be empty if the winning lease vanished before the follow-up read.
	HeldBy string
	// ExpiresAt is the expiry of the granted or conflicting lease.
	ExpiresAt time.Time
}

// Status describes the lock state of one resource as seen by a caller.
type Status struct {
	Locked    bool       `json:"locked"`
	HeldBy    string     `json:"heldBy,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	IsCaller  bool       `json:"isCaller,omitempty"`
}

// Service exposes the edit-lock operations to the rest of the system.
// It never blocks waiting for another caller and never retries internally;
// contention outcomes are returned immediately for the caller to act on.
type Service struct {
	store  LeaseStore
	lease  time.Duration
	logger zerolog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLeaseDuration overrides the default lease duration.
func WithLeaseDuration(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.lease = d
		}
	}
}

// NewService creates a lock service on top of the given lease store.
func NewService(store LeaseStore, logger zerolog.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		lease:  DefaultLeaseDuration,
		logger: logger.With().Str("component", "lock").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LeaseDuration returns the configured lease duration.
func (s *Service) LeaseDuration() time.Duration {
	return s.lease
}

// Acquire attempts to take (or renew) the edit lease on a resource for the
// given admin. Exactly one of N concurrent acquirers of an unheld resource
// is granted; the rest receive a denial naming the winner.
func (s *Service) Acquire(ctx context.Context, resourceType, resourceID, ownerID, ownerName string) (*AcquireResult, error) {
	rt, err := s.validate(resourceType, resourceID, ownerID)
	if err != nil {
		return nil, err
	}

	rec, err := s.store.TryAcquireOrRenew(ctx, rt, resourceID, ownerID, ownerName, s.lease)
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			metrics.LockAcquisitions.WithLabelValues(string(rt), "denied").Inc()
			result := &AcquireResult{Granted: false}
			if conflict.Holder != nil {
				result.HeldBy = conflict.Holder.OwnerName
				result.ExpiresAt = conflict.Holder.ExpiresAt
			}
			s.logger.Debug().
				Str("resourceType", string(rt)).
				Str("resourceId", resourceID).
				Str("ownerId", ownerID).
				Str("heldBy", result.HeldBy).
				Msg("lock acquisition denied")
			return result, nil
		}
		metrics.LockAcquisitions.WithLabelValues(string(rt), "error").Inc()
		return nil, err
	}

	metrics.LockAcquisitions.WithLabelValues(string(rt), "granted").Inc()
	s.logger.Info().
		Str("resourceType", string(rt)).
		Str("resourceId", resourceID).
		Str("ownerId", ownerID).
		Time("expiresAt", rec.ExpiresAt).
		Msg("lock acquired")

	return &AcquireResult{Granted: true, Record: rec, ExpiresAt: rec.ExpiresAt}, nil
}

// Heartbeat extends an already-held lease so a long editing session outlives
// a single lease window. Returns ErrNotOwner if the caller's lease expired or
// was never held; the caller must re-Acquire.
func (s *Service) Heartbeat(ctx context.Context, resourceType, resourceID, ownerID string) (*Record, error) {
	rt, err := s.validate(resourceType, resourceID, ownerID)
	if err != nil {
		return nil, err
	}

	rec, err := s.store.RenewIfOwner(ctx, rt, resourceID, ownerID, s.lease)
	if errors.Is(err, ErrNotOwner) {
		metrics.LockHeartbeats.WithLabelValues("not_owner").Inc()
		return nil, err
	}
	if err != nil {
		metrics.LockHeartbeats.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.LockHeartbeats.WithLabelValues("renewed").Inc()
	return rec, nil
}

// Release drops the caller's lease. Idempotent: releasing a lease that has
// already expired, been released, or was never held still succeeds, because
// the requested end state ("no active lock owned by me") already holds.
// It never touches a lease owned by someone else.
func (s *Service) Release(ctx context.Context, resourceType, resourceID, ownerID string) error {
	rt, err := s.validate(resourceType, resourceID, ownerID)
	if err != nil {
		return err
	}

	deleted, err := s.store.DeleteIfOwner(ctx, rt, resourceID, ownerID)
	if err != nil {
		return err
	}

	metrics.LockReleases.Inc()
	if deleted {
		s.logger.Info().
			Str("resourceType", string(rt)).
			Str("resourceId", resourceID).
			Str("ownerId", ownerID).
			Msg("lock released")
	}
	return nil
}

// QueryOne reports the lock state of a single resource.
func (s *Service) QueryOne(ctx context.Context, resourceType, resourceID, callerID string) (*Status, error) {
	rt, err := ParseResourceType(resourceType)
	if err != nil {
		return nil, err
	}
	if resourceID == "" {
		return nil, ErrMissingResourceID
	}

	rec, err := s.store.FindActive(ctx, rt, resourceID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		// Tidy up a leftover expired record while we are here. Best effort:
		// the answer above stands whether or not this succeeds.
		if _, err := s.store.DeleteIfExpired(ctx, rt, resourceID); err != nil {
			s.logger.Debug().Err(err).
				Str("resourceType", string(rt)).
				Str("resourceId", resourceID).
				Msg("failed to tidy expired lock record")
		}
	}
	return statusFor(rec, callerID), nil
}

// QueryBatch reports the lock state of many resources in one store round
// trip, for list views that render lock indicators per row.
func (s *Service) QueryBatch(ctx context.Context, keys []Key, callerID string) (map[Key]*Status, error) {
	for _, key := range keys {
		if _, err := ParseResourceType(string(key.ResourceType)); err != nil {
			return nil, err
		}
		if key.ResourceID == "" {
			return nil, ErrMissingResourceID
		}
	}

	records, err := s.store.FindActiveBatch(ctx, keys)
	if err != nil {
		return nil, err
	}

	result := make(map[Key]*Status, len(keys))
	for _, key := range keys {
		result[key] = statusFor(records[key], callerID)
	}
	return result, nil
}

// Sweep purges expired lease records. Housekeeping only: expired leases are
// already invisible to every read path, so skipping a sweep never changes
// behavior.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	purged, err := s.store.PurgeExpired(ctx)
	if err != nil {
		return 0, err
	}
	metrics.LockSweepPurged.Add(float64(purged))
	if purged > 0 {
		s.logger.Info().Int64("purgedCount", purged).Msg("purged expired locks")
	}
	return purged, nil
}

func (s *Service) validate(resourceType, resourceID, ownerID string) (ResourceType, error) {
	rt, err := ParseResourceType(resourceType)
	if err != nil {
		return "", err
	}
	if resourceID == "" {
		return "", ErrMissingResourceID
	}
	if ownerID == "" {
		return "", ErrMissingOwnerID
	}
	return rt, nil
}

func statusFor(rec *Record, callerID string) *Status {
	if rec == nil {
		return &Status{Locked: false}
	}
	expires := rec.ExpiresAt
	return &Status{
		Locked:    true,
		HeldBy:    rec.OwnerName,
		ExpiresAt: &expires,
		IsCaller:  callerID != "" && rec.OwnerID == callerID,
	}
}

// IsClientError reports whether err is an input validation error that should
// map to a 4xx response rather than a server failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidResourceType) ||
		errors.Is(err, ErrMissingResourceID) ||
		errors.Is(err, ErrMissingOwnerID)
}
