// Package lock provides the edit-lock service that guards shared academic
// records against concurrent modification by independent admin sessions.
package lock

import (
	"errors"
	"fmt"
	"time"
)

// ResourceType identifies which kind of academic record a lease applies to.
type ResourceType string

const (
	ResourceSemester ResourceType = "semester"
	ResourceSubject  ResourceType = "subject"
	ResourceSection  ResourceType = "section"
)

// ErrInvalidResourceType is returned when a resource type is not one of the
// known academic record kinds.
var ErrInvalidResourceType = errors.New("invalid resource type")

// ParseResourceType validates a raw resource type string.
func ParseResourceType(s string) (ResourceType, error) {
	switch rt := ResourceType(s); rt {
	case ResourceSemester, ResourceSubject, ResourceSection:
		return rt, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidResourceType, s)
	}
}

// Key uniquely identifies one lockable resource.
type Key struct {
	ResourceType ResourceType `json:"resourceType"`
	ResourceID   string       `json:"resourceId"`
}

func (k Key) String() string {
	return string(k.ResourceType) + ":" + k.ResourceID
}

// Record is the persisted unit of truth for one lease: who holds edit rights
// over a resource, and until when. At most one record exists per Key; the
// storage backend enforces that with a uniqueness constraint, not application
// logic.
type Record struct {
	ResourceType ResourceType `json:"resourceType"`
	ResourceID   string       `json:"resourceId"`
	OwnerID      string       `json:"ownerId"`
	// OwnerName is a display label cached at acquisition time. It is not
	// authoritative identity; OwnerID is.
	OwnerName  string    `json:"ownerName"`
	AcquiredAt time.Time `json:"acquiredAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Key returns the composite resource key for this record.
func (r *Record) Key() Key {
	return Key{ResourceType: r.ResourceType, ResourceID: r.ResourceID}
}

// Active reports whether the lease is still valid at the given instant.
// An inactive record is semantically identical to no record at all.
func (r *Record) Active(now time.Time) bool {
	return r.ExpiresAt.After(now)
}
