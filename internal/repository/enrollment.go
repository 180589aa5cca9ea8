package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"assignment_service/internal/domain"
)

type EnrollmentRepository struct {
	db *sql.DB
}

func NewEnrollmentRepository(db *sql.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func (r *EnrollmentRepository) ListTargets(ctx context.Context, assignmentID uuid.UUID) ([]domain.Target, error) {
	query := `
		SELECT id, assignment_id, class_id, student_id
		FROM assignment_targets
		WHERE assignment_id = $1
	`

	rows, err := r.db.QueryContext(ctx, query, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query targets: %w", err)
	}
	defer rows.Close()

	var targets []domain.Target
	for rows.Next() {
		var t domain.Target
		var classID, studentID uuid.NullUUID
		if err := rows.Scan(&t.ID, &t.AssignmentID, &classID, &studentID); err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		if classID.Valid {
			t.Kind = domain.TargetKindClass
			t.ClassID = classID.UUID
		} else {
			t.Kind = domain.TargetKindStudent
			t.StudentID = studentID.UUID
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return targets, nil
}

func (r *EnrollmentRepository) ListGrants(ctx context.Context, assignmentID uuid.UUID) ([]domain.TeacherGrant, error) {
	query := `SELECT assignment_id, teacher_id FROM assignment_teachers WHERE assignment_id = $1`

	rows, err := r.db.QueryContext(ctx, query, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query teacher grants: %w", err)
	}
	defer rows.Close()

	var grants []domain.TeacherGrant
	for rows.Next() {
		var g domain.TeacherGrant
		if err := rows.Scan(&g.AssignmentID, &g.TeacherID); err != nil {
			return nil, fmt.Errorf("failed to scan teacher grant: %w", err)
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return grants, nil
}

// ApplyDiff executes the reconciliation write-set. It must run inside
// the lifecycle transaction, hence the explicit Querier.
func (r *EnrollmentRepository) ApplyDiff(ctx context.Context, q Querier, diff domain.EnrollmentDiff) error {
	for _, target := range diff.TargetsToAdd {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate UUID: %w", err)
		}

		var classID, studentID interface{}
		switch target.Kind {
		case domain.TargetKindClass:
			classID = target.ClassID
		case domain.TargetKindStudent:
			studentID = target.StudentID
		default:
			return fmt.Errorf("unknown target kind %q", target.Kind)
		}

		query := `INSERT INTO assignment_targets (id, assignment_id, class_id, student_id) VALUES ($1, $2, $3, $4)`
		if _, err := q.ExecContext(ctx, query, id, target.AssignmentID, classID, studentID); err != nil {
			return fmt.Errorf("failed to insert target: %w", err)
		}
	}

	for _, target := range diff.TargetsToRemove {
		var query string
		var key uuid.UUID
		switch target.Kind {
		case domain.TargetKindClass:
			query = `DELETE FROM assignment_targets WHERE assignment_id = $1 AND class_id = $2`
			key = target.ClassID
		case domain.TargetKindStudent:
			query = `DELETE FROM assignment_targets WHERE assignment_id = $1 AND student_id = $2`
			key = target.StudentID
		default:
			return fmt.Errorf("unknown target kind %q", target.Kind)
		}
		if _, err := q.ExecContext(ctx, query, target.AssignmentID, key); err != nil {
			return fmt.Errorf("failed to delete target: %w", err)
		}
	}

	for _, grant := range diff.GrantsToAdd {
		query := `INSERT INTO assignment_teachers (assignment_id, teacher_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
		if _, err := q.ExecContext(ctx, query, grant.AssignmentID, grant.TeacherID); err != nil {
			return fmt.Errorf("failed to insert teacher grant: %w", err)
		}
	}

	for _, grant := range diff.GrantsToRemove {
		query := `DELETE FROM assignment_teachers WHERE assignment_id = $1 AND teacher_id = $2`
		if _, err := q.ExecContext(ctx, query, grant.AssignmentID, grant.TeacherID); err != nil {
			return fmt.Errorf("failed to delete teacher grant: %w", err)
		}
	}

	return nil
}

// ClassTeacherIDs reads the live class roster at reconciliation time.
func (r *EnrollmentRepository) ClassTeacherIDs(ctx context.Context, classID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT teacher_id FROM class_teachers WHERE class_id = $1`

	rows, err := r.db.QueryContext(ctx, query, classID)
	if err != nil {
		return nil, fmt.Errorf("failed to query class teachers: %w", err)
	}
	defer rows.Close()

	var teacherIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan teacher id: %w", err)
		}
		teacherIDs = append(teacherIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return teacherIDs, nil
}

func (r *EnrollmentRepository) ClassesByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Class, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT id, name, description FROM classes WHERE id = ANY($1)`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(uuidStrings(ids)))
	if err != nil {
		return nil, fmt.Errorf("failed to query classes: %w", err)
	}
	defer rows.Close()

	var classes []domain.Class
	for rows.Next() {
		var c domain.Class
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, fmt.Errorf("failed to scan class: %w", err)
		}
		classes = append(classes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return classes, nil
}

func (r *EnrollmentRepository) UsersByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT id, username, first_name, last_name, role FROM users WHERE id = ANY($1)`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(uuidStrings(ids)))
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Role); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return users, nil
}

// IsStudentEnrolled reports whether the student is targeted directly or
// through a targeted class.
func (r *EnrollmentRepository) IsStudentEnrolled(ctx context.Context, assignmentID, studentID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM assignment_targets
			WHERE assignment_id = $1 AND student_id = $2
			UNION
			SELECT 1
			FROM assignment_targets t
			JOIN class_students cs ON cs.class_id = t.class_id
			WHERE t.assignment_id = $1 AND cs.student_id = $2
		)
	`

	var enrolled bool
	if err := r.db.QueryRowContext(ctx, query, assignmentID, studentID).Scan(&enrolled); err != nil {
		return false, fmt.Errorf("failed to check enrollment: %w", err)
	}
	return enrolled, nil
}

// UnfinishedStudentIDs returns enrolled students still missing a final
// submission on at least one enabled stage, for reminder events.
func (r *EnrollmentRepository) UnfinishedStudentIDs(ctx context.Context, assignmentID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		WITH enrolled AS (
			SELECT student_id FROM assignment_targets
			WHERE assignment_id = $1 AND student_id IS NOT NULL
			UNION
			SELECT cs.student_id
			FROM assignment_targets t
			JOIN class_students cs ON cs.class_id = t.class_id
			WHERE t.assignment_id = $1
		)
		SELECT e.student_id
		FROM enrolled e
		WHERE (
			SELECT COUNT(*) FROM assignment_stages st
			WHERE st.assignment_id = $1 AND st.enabled
		) > (
			SELECT COUNT(DISTINCT s.stage_id)
			FROM assignment_submissions s
			JOIN assignment_stages st ON st.id = s.stage_id AND st.enabled
			WHERE s.assignment_id = $1 AND s.student_id = e.student_id AND s.is_final
		)
	`

	rows, err := r.db.QueryContext(ctx, query, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query unfinished students: %w", err)
	}
	defer rows.Close()

	var studentIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan student id: %w", err)
		}
		studentIDs = append(studentIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return studentIDs, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
