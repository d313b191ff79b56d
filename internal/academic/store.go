package academic

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store defines persistence for the academic records this service mutates.
type Store interface {
	// CreateSemester creates a new semester.
	CreateSemester(ctx context.Context, sem *Semester) (*Semester, error)

	// GetSemester retrieves a semester by ID.
	GetSemester(ctx context.Context, id uuid.UUID) (*Semester, error)

	// ListSemesters retrieves all semesters ordered by start date.
	ListSemesters(ctx context.Context) ([]*Semester, error)

	// UpdateSemester updates an existing semester.
	UpdateSemester(ctx context.Context, sem *Semester) (*Semester, error)

	// ArchiveSemester marks a semester as archived.
	ArchiveSemester(ctx context.Context, id uuid.UUID) error

	// CreateSubject creates a new subject.
	CreateSubject(ctx context.Context, sub *Subject) (*Subject, error)

	// GetSubject retrieves a subject by ID.
	GetSubject(ctx context.Context, id uuid.UUID) (*Subject, error)

	// UpdateSubject updates an existing subject.
	UpdateSubject(ctx context.Context, sub *Subject) (*Subject, error)

	// CreateSection creates a new section.
	CreateSection(ctx context.Context, sec *Section) (*Section, error)

	// GetSection retrieves a section by ID.
	GetSection(ctx context.Context, id uuid.UUID) (*Section, error)

	// UpdateSection updates an existing section.
	UpdateSection(ctx context.Context, sec *Section) (*Section, error)
}

// InMemoryStore is an in-memory implementation of Store for testing and
// development.
type InMemoryStore struct {
	mu        sync.RWMutex
	semesters map[uuid.UUID]*Semester
	subjects  map[uuid.UUID]*Subject
	sections  map[uuid.UUID]*Section
}

// NewInMemoryStore creates a new in-memory academic store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		semesters: make(map[uuid.UUID]*Semester),
		subjects:  make(map[uuid.UUID]*Subject),
		sections:  make(map[uuid.UUID]*Section),
	}
}

// CreateSemester creates a new semester.
func (s *InMemoryStore) CreateSemester(ctx context.Context, sem *Semester) (*Semester, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	sem.ID = uuid.New()
	sem.CreatedAt = now
	sem.UpdatedAt = now

	stored := *sem
	s.semesters[sem.ID] = &stored
	return sem, nil
}

// GetSemester retrieves a semester by ID.
func (s *InMemoryStore) GetSemester(ctx context.Context, id uuid.UUID) (*Semester, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sem, ok := s.semesters[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *sem
	return &out, nil
}

// ListSemesters retrieves all semesters ordered by start date.
func (s *InMemoryStore) ListSemesters(ctx context.Context) ([]*Semester, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Semester, 0, len(s.semesters))
	for _, sem := range s.semesters {
		out := *sem
		result = append(result, &out)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartDate.Before(result[j].StartDate)
	})
	return result, nil
}

// UpdateSemester updates an existing semester.
func (s *InMemoryStore) UpdateSemester(ctx context.Context, sem *Semester) (*Semester, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.semesters[sem.ID]
	if !ok {
		return nil, ErrNotFound
	}

	sem.CreatedAt = existing.CreatedAt
	sem.UpdatedAt = time.Now()
	stored := *sem
	s.semesters[sem.ID] = &stored
	return sem, nil
}

// ArchiveSemester marks a semester as archived.
func (s *InMemoryStore) ArchiveSemester(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sem, ok := s.semesters[id]
	if !ok {
		return ErrNotFound
	}
	sem.Archived = true
	sem.UpdatedAt = time.Now()
	return nil
}

// CreateSubject creates a new subject.
func (s *InMemoryStore) CreateSubject(ctx context.Context, sub *Subject) (*Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	sub.ID = uuid.New()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	stored := *sub
	s.subjects[sub.ID] = &stored
	return sub, nil
}

// GetSubject retrieves a subject by ID.
func (s *InMemoryStore) GetSubject(ctx context.Context, id uuid.UUID) (*Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subjects[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *sub
	return &out, nil
}

// UpdateSubject updates an existing subject.
func (s *InMemoryStore) UpdateSubject(ctx context.Context, sub *Subject) (*Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.subjects[sub.ID]
	if !ok {
		return nil, ErrNotFound
	}

	sub.CreatedAt = existing.CreatedAt
	sub.UpdatedAt = time.Now()
	stored := *sub
	s.subjects[sub.ID] = &stored
	return sub, nil
}

// CreateSection creates a new section.
func (s *InMemoryStore) CreateSection(ctx context.Context, sec *Section) (*Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	sec.ID = uuid.New()
	sec.CreatedAt = now
	sec.UpdatedAt = now

	stored := *sec
	s.sections[sec.ID] = &stored
	return sec, nil
}

// GetSection retrieves a section by ID.
func (s *InMemoryStore) GetSection(ctx context.Context, id uuid.UUID) (*Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sec, ok := s.sections[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *sec
	return &out, nil
}

// UpdateSection updates an existing section.
func (s *InMemoryStore) UpdateSection(ctx context.Context, sec *Section) (*Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.sections[sec.ID]
	if !ok {
		return nil, ErrNotFound
	}

	sec.CreatedAt = existing.CreatedAt
	sec.UpdatedAt = time.Now()
	stored := *sec
	s.sections[sec.ID] = &stored
	return sec, nil
}

// Verify InMemoryStore implements Store.
var _ Store = (*InMemoryStore)(nil)
