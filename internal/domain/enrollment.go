package domain

import "github.com/google/uuid"

type TargetKind string

const (
	TargetKindClass   TargetKind = "class"
	TargetKindStudent TargetKind = "student"
)

// Target is a tagged variant: exactly one of ClassID/StudentID is set,
// according to Kind.
type Target struct {
	ID           uuid.UUID
	AssignmentID uuid.UUID
	Kind         TargetKind
	ClassID      uuid.UUID
	StudentID    uuid.UUID
}

func ClassTarget(assignmentID, classID uuid.UUID) Target {
	return Target{AssignmentID: assignmentID, Kind: TargetKindClass, ClassID: classID}
}

func StudentTarget(assignmentID, studentID uuid.UUID) Target {
	return Target{AssignmentID: assignmentID, Kind: TargetKindStudent, StudentID: studentID}
}

// TeacherGrant is derived state: it must stay equal to the union of
// teacher memberships of the currently enrolled classes.
type TeacherGrant struct {
	AssignmentID uuid.UUID
	TeacherID    uuid.UUID
}

// EnrollmentDiff is the write-set produced by reconciliation. It is
// applied by the caller inside a single transaction.
type EnrollmentDiff struct {
	TargetsToAdd    []Target
	TargetsToRemove []Target
	GrantsToAdd     []TeacherGrant
	GrantsToRemove  []TeacherGrant
}

func (d EnrollmentDiff) Empty() bool {
	return len(d.TargetsToAdd) == 0 && len(d.TargetsToRemove) == 0 &&
		len(d.GrantsToAdd) == 0 && len(d.GrantsToRemove) == 0
}
