// Package academic provides the semester, subject, and section records whose
// mutating endpoints are gated by the edit-lock guard.
package academic

import (
	"time"

	"github.com/google/uuid"
)

// Semester represents one academic term.
type Semester struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Subject represents a course offered in a semester.
type Subject struct {
	ID         uuid.UUID `json:"id"`
	SemesterID uuid.UUID `json:"semesterId"`
	Code       string    `json:"code"`
	Title      string    `json:"title"`
	Units      int       `json:"units"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Section represents a class section of a subject.
type Section struct {
	ID        uuid.UUID `json:"id"`
	SubjectID uuid.UUID `json:"subjectId"`
	Name      string    `json:"name"`
	Schedule  string    `json:"schedule,omitempty"`
	Capacity  int       `json:"capacity"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
