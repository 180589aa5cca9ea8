package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"assignment_service/internal/domain"
)

// RosterReader resolves enrollment references against live data. Class
// rosters are read at reconciliation time, never cached.
type RosterReader interface {
	ClassesByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Class, error)
	UsersByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.User, error)
	ClassTeacherIDs(ctx context.Context, classID uuid.UUID) ([]uuid.UUID, error)
	ListGrants(ctx context.Context, assignmentID uuid.UUID) ([]domain.TeacherGrant, error)
}

// EnrollmentSynchronizer reconciles stored enrollment targets against a
// desired set and keeps the derived teacher-grant relation equal to the
// union of teacher memberships of the enrolled classes. It emits a
// write-set; the caller applies it inside one transaction.
type EnrollmentSynchronizer struct {
	rosters RosterReader
}

func NewEnrollmentSynchronizer(rosters RosterReader) *EnrollmentSynchronizer {
	return &EnrollmentSynchronizer{rosters: rosters}
}

func (s *EnrollmentSynchronizer) Reconcile(
	ctx context.Context,
	assignmentID uuid.UUID,
	currentTargets []domain.Target,
	desiredClassIDs []uuid.UUID,
	desiredStudentIDs []uuid.UUID,
) (domain.EnrollmentDiff, error) {
	var diff domain.EnrollmentDiff

	if len(desiredClassIDs) == 0 && len(desiredStudentIDs) == 0 {
		return diff, ErrEmptyEnrollment
	}

	desiredClassIDs = dedupe(desiredClassIDs)
	desiredStudentIDs = dedupe(desiredStudentIDs)

	if err := s.validateReferences(ctx, desiredClassIDs, desiredStudentIDs); err != nil {
		return diff, err
	}

	currentClasses := make(map[uuid.UUID]bool)
	currentStudents := make(map[uuid.UUID]bool)
	for _, target := range currentTargets {
		switch target.Kind {
		case domain.TargetKindClass:
			currentClasses[target.ClassID] = true
		case domain.TargetKindStudent:
			currentStudents[target.StudentID] = true
		}
	}

	desiredClasses := make(map[uuid.UUID]bool, len(desiredClassIDs))
	for _, id := range desiredClassIDs {
		desiredClasses[id] = true
		if !currentClasses[id] {
			diff.TargetsToAdd = append(diff.TargetsToAdd, domain.ClassTarget(assignmentID, id))
		}
	}
	for id := range currentClasses {
		if !desiredClasses[id] {
			diff.TargetsToRemove = append(diff.TargetsToRemove, domain.ClassTarget(assignmentID, id))
		}
	}

	desiredStudents := make(map[uuid.UUID]bool, len(desiredStudentIDs))
	for _, id := range desiredStudentIDs {
		desiredStudents[id] = true
		if !currentStudents[id] {
			diff.TargetsToAdd = append(diff.TargetsToAdd, domain.StudentTarget(assignmentID, id))
		}
	}
	for id := range currentStudents {
		if !desiredStudents[id] {
			diff.TargetsToRemove = append(diff.TargetsToRemove, domain.StudentTarget(assignmentID, id))
		}
	}

	// The grant set must end up equal to the union of teacher rosters of
	// the desired classes. Set difference against the stored grants gives
	// the writes; a teacher who keeps any still-enrolled class keeps the
	// grant, so removing one shared class revokes nothing.
	desiredTeachers := make(map[uuid.UUID]bool)
	for _, classID := range desiredClassIDs {
		teacherIDs, err := s.rosters.ClassTeacherIDs(ctx, classID)
		if err != nil {
			return domain.EnrollmentDiff{}, fmt.Errorf("failed to read class roster: %w", err)
		}
		for _, teacherID := range teacherIDs {
			desiredTeachers[teacherID] = true
		}
	}

	grants, err := s.rosters.ListGrants(ctx, assignmentID)
	if err != nil {
		return domain.EnrollmentDiff{}, fmt.Errorf("failed to read teacher grants: %w", err)
	}
	currentTeachers := make(map[uuid.UUID]bool, len(grants))
	for _, grant := range grants {
		currentTeachers[grant.TeacherID] = true
	}

	for teacherID := range desiredTeachers {
		if !currentTeachers[teacherID] {
			diff.GrantsToAdd = append(diff.GrantsToAdd, domain.TeacherGrant{AssignmentID: assignmentID, TeacherID: teacherID})
		}
	}
	for teacherID := range currentTeachers {
		if !desiredTeachers[teacherID] {
			diff.GrantsToRemove = append(diff.GrantsToRemove, domain.TeacherGrant{AssignmentID: assignmentID, TeacherID: teacherID})
		}
	}

	return diff, nil
}

// validateReferences fails fast before any write: every desired class
// must exist and every desired student must be an existing user with the
// student role.
func (s *EnrollmentSynchronizer) validateReferences(ctx context.Context, classIDs, studentIDs []uuid.UUID) error {
	if len(classIDs) > 0 {
		classes, err := s.rosters.ClassesByIDs(ctx, classIDs)
		if err != nil {
			return fmt.Errorf("failed to resolve classes: %w", err)
		}
		if len(classes) != len(classIDs) {
			return fmt.Errorf("%w: unknown class id", ErrInvalidReference)
		}
	}

	if len(studentIDs) > 0 {
		users, err := s.rosters.UsersByIDs(ctx, studentIDs)
		if err != nil {
			return fmt.Errorf("failed to resolve students: %w", err)
		}
		if len(users) != len(studentIDs) {
			return fmt.Errorf("%w: unknown student id", ErrInvalidReference)
		}
		for _, user := range users {
			if user.Role != domain.RoleStudent {
				return fmt.Errorf("%w: user %s is not a student", ErrInvalidReference, user.ID)
			}
		}
	}

	return nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
