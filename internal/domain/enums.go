package domain

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	default:
		return false
	}
}

type StageType string

const (
	StageTypeWriting    StageType = "writing"
	StageTypeReflection StageType = "reflection"
	StageTypeReview     StageType = "review"
)

type AssignmentStatus string

const (
	StatusUpcoming   AssignmentStatus = "upcoming"
	StatusActive     AssignmentStatus = "active"
	StatusPastDue    AssignmentStatus = "past-due"
	StatusInProgress AssignmentStatus = "in-progress"
	StatusSubmitted  AssignmentStatus = "submitted"
	StatusGraded     AssignmentStatus = "graded"
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

func ToSortOrder(s string) SortOrder {
	if s == "desc" {
		return SortDesc
	}
	return SortAsc
}
