package domain

import (
	"time"

	"github.com/google/uuid"
)

type Assignment struct {
	ID           uuid.UUID
	Title        string
	Description  *string
	Type         *string
	Instructions *string
	Requirements *string
	Rubrics      *string
	Tips         *string
	MinWordCount *int
	MaxWordCount *int
	StartDate    *time.Time
	DueDate      *time.Time
	CreatedBy    uuid.UUID
	CreatedAt    time.Time
	EditedAt     time.Time
}

type Stage struct {
	ID           uuid.UUID
	AssignmentID uuid.UUID
	StageType    StageType
	OrderIndex   int
	Enabled      bool
}

type Tool struct {
	ID            uuid.UUID
	AssignmentID  uuid.UUID
	StageID       uuid.UUID
	Key           string
	Enabled       bool
	ChatbotPrompt *string
}

type StageWithTools struct {
	Stage
	Tools []Tool
}

// AssignmentView is the hydrated create/update/view response: the
// assignment plus its stages and the resolved enrollment.
type AssignmentView struct {
	Assignment
	Stages           []StageWithTools
	EnrolledClasses  []Class
	EnrolledStudents []User
}

type AssignmentListItem struct {
	Assignment
	Status AssignmentStatus
}

type Class struct {
	ID          uuid.UUID
	Name        string
	Description *string
}

type User struct {
	ID        uuid.UUID
	Username  string
	FirstName *string
	LastName  *string
	Role      Role
}
