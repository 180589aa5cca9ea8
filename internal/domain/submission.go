package domain

import (
	"time"

	"github.com/google/uuid"
)

// Submission rows are append-only: every save creates a new row and the
// latest by SubmittedAt per (stage, student) is authoritative.
type Submission struct {
	ID           uuid.UUID
	AssignmentID uuid.UUID
	StageID      uuid.UUID
	StudentID    uuid.UUID
	Content      string
	IsFinal      bool
	SubmittedAt  time.Time
}

// Grade rows are append-only: the latest by GradedAt per submission wins.
type Grade struct {
	ID             uuid.UUID
	SubmissionID   uuid.UUID
	Score          float64
	ScoreBreakdown *string
	Feedback       *string
	GradedBy       uuid.UUID
	GradedAt       time.Time
}

// SubmissionListItem is one row of the teacher grading queue: the latest
// submission per (stage, student) with the student and latest score.
type SubmissionListItem struct {
	Submission
	StageType StageType
	Student   User
	Score     *float64
}
