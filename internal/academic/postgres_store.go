package academic

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the PostgreSQL implementation of Store.
// Tables are created by migrations/002_create_academic_records.sql.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed academic store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// CreateSemester creates a new semester.
func (s *PostgresStore) CreateSemester(ctx context.Context, sem *Semester) (*Semester, error) {
	query := `
		INSERT INTO semesters (id, name, start_date, end_date, archived)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	sem.ID = uuid.New()
	err := s.pool.QueryRow(ctx, query, sem.ID, sem.Name, sem.StartDate, sem.EndDate, sem.Archived).
		Scan(&sem.CreatedAt, &sem.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create semester: %w", err)
	}
	return sem, nil
}

// GetSemester retrieves a semester by ID.
func (s *PostgresStore) GetSemester(ctx context.Context, id uuid.UUID) (*Semester, error) {
	query := `
		SELECT id, name, start_date, end_date, archived, created_at, updated_at
		FROM semesters WHERE id = $1`

	var sem Semester
	err := s.pool.QueryRow(ctx, query, id).
		Scan(&sem.ID, &sem.Name, &sem.StartDate, &sem.EndDate, &sem.Archived, &sem.CreatedAt, &sem.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get semester: %w", err)
	}
	return &sem, nil
}

// ListSemesters retrieves all semesters ordered by start date.
func (s *PostgresStore) ListSemesters(ctx context.Context) ([]*Semester, error) {
	query := `
		SELECT id, name, start_date, end_date, archived, created_at, updated_at
		FROM semesters ORDER BY start_date`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list semesters: %w", err)
	}
	defer rows.Close()

	var result []*Semester
	for rows.Next() {
		var sem Semester
		if err := rows.Scan(&sem.ID, &sem.Name, &sem.StartDate, &sem.EndDate, &sem.Archived, &sem.CreatedAt, &sem.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list semesters: %w", err)
		}
		result = append(result, &sem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list semesters: %w", err)
	}
	return result, nil
}

// UpdateSemester updates an existing semester.
func (s *PostgresStore) UpdateSemester(ctx context.Context, sem *Semester) (*Semester, error) {
	query := `
		UPDATE semesters
		SET name = $2, start_date = $3, end_date = $4, archived = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`

	err := s.pool.QueryRow(ctx, query, sem.ID, sem.Name, sem.StartDate, sem.EndDate, sem.Archived).
		Scan(&sem.CreatedAt, &sem.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update semester: %w", err)
	}
	return sem, nil
}

// ArchiveSemester marks a semester as archived.
func (s *PostgresStore) ArchiveSemester(ctx context.Context, id uuid.UUID) error {
	result, err := s.pool.Exec(ctx,
		"UPDATE semesters SET archived = TRUE, updated_at = NOW() WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("archive semester: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateSubject creates a new subject.
func (s *PostgresStore) CreateSubject(ctx context.Context, sub *Subject) (*Subject, error) {
	query := `
		INSERT INTO subjects (id, semester_id, code, title, units)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	sub.ID = uuid.New()
	err := s.pool.QueryRow(ctx, query, sub.ID, sub.SemesterID, sub.Code, sub.Title, sub.Units).
		Scan(&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create subject: %w", err)
	}
	return sub, nil
}

// GetSubject retrieves a subject by ID.
func (s *PostgresStore) GetSubject(ctx context.Context, id uuid.UUID) (*Subject, error) {
	query := `
		SELECT id, semester_id, code, title, units, created_at, updated_at
		FROM subjects WHERE id = $1`

	var sub Subject
	err := s.pool.QueryRow(ctx, query, id).
		Scan(&sub.ID, &sub.SemesterID, &sub.Code, &sub.Title, &sub.Units, &sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subject: %w", err)
	}
	return &sub, nil
}

// UpdateSubject updates an existing subject.
func (s *PostgresStore) UpdateSubject(ctx context.Context, sub *Subject) (*Subject, error) {
	query := `
		UPDATE subjects
		SET code = $2, title = $3, units = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING semester_id, created_at, updated_at`

	err := s.pool.QueryRow(ctx, query, sub.ID, sub.Code, sub.Title, sub.Units).
		Scan(&sub.SemesterID, &sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update subject: %w", err)
	}
	return sub, nil
}

// CreateSection creates a new section.
func (s *PostgresStore) CreateSection(ctx context.Context, sec *Section) (*Section, error) {
	query := `
		INSERT INTO sections (id, subject_id, name, schedule, capacity)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	sec.ID = uuid.New()
	err := s.pool.QueryRow(ctx, query, sec.ID, sec.SubjectID, sec.Name, sec.Schedule, sec.Capacity).
		Scan(&sec.CreatedAt, &sec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create section: %w", err)
	}
	return sec, nil
}

// GetSection retrieves a section by ID.
func (s *PostgresStore) GetSection(ctx context.Context, id uuid.UUID) (*Section, error) {
	query := `
		SELECT id, subject_id, name, schedule, capacity, created_at, updated_at
		FROM sections WHERE id = $1`

	var sec Section
	err := s.pool.QueryRow(ctx, query, id).
		Scan(&sec.ID, &sec.SubjectID, &sec.Name, &sec.Schedule, &sec.Capacity, &sec.CreatedAt, &sec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get section: %w", err)
	}
	return &sec, nil
}

// UpdateSection updates an existing section.
func (s *PostgresStore) UpdateSection(ctx context.Context, sec *Section) (*Section, error) {
	query := `
		UPDATE sections
		SET name = $2, schedule = $3, capacity = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING subject_id, created_at, updated_at`

	err := s.pool.QueryRow(ctx, query, sec.ID, sec.Name, sec.Schedule, sec.Capacity).
		Scan(&sec.SubjectID, &sec.CreatedAt, &sec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update section: %w", err)
	}
	return sec, nil
}

// Verify PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
