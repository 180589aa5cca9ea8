package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"assignment_service/internal/domain"
)

const assignmentColumns = `id, title, description, type, instructions, requirements,
rubrics, tips, min_word_count, max_word_count, start_date, due_date,
created_by, created_at, edited_at`

type AssignmentRepository struct {
	db *sql.DB
}

func NewAssignmentRepository(db *sql.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

func (r *AssignmentRepository) Create(ctx context.Context, q Querier, assignment *domain.Assignment) error {
	query := `
		INSERT INTO assignments
			(` + assignmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate UUID: %w", err)
	}

	now := time.Now()
	_, err = q.ExecContext(ctx, query,
		id,
		assignment.Title,
		assignment.Description,
		assignment.Type,
		assignment.Instructions,
		assignment.Requirements,
		assignment.Rubrics,
		assignment.Tips,
		assignment.MinWordCount,
		assignment.MaxWordCount,
		assignment.StartDate,
		assignment.DueDate,
		assignment.CreatedBy,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create assignment: %w", err)
	}

	assignment.ID = id
	assignment.CreatedAt = now
	assignment.EditedAt = now
	return nil
}

func (r *AssignmentRepository) Update(ctx context.Context, q Querier, assignment *domain.Assignment) error {
	query := `
		UPDATE assignments
		SET title = $1, description = $2, type = $3, instructions = $4,
		    requirements = $5, rubrics = $6, tips = $7, min_word_count = $8,
		    max_word_count = $9, start_date = $10, due_date = $11, edited_at = $12
		WHERE id = $13
	`

	now := time.Now()
	result, err := q.ExecContext(ctx, query,
		assignment.Title,
		assignment.Description,
		assignment.Type,
		assignment.Instructions,
		assignment.Requirements,
		assignment.Rubrics,
		assignment.Tips,
		assignment.MinWordCount,
		assignment.MaxWordCount,
		assignment.StartDate,
		assignment.DueDate,
		now,
		assignment.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update assignment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	assignment.EditedAt = now
	return nil
}

func (r *AssignmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE id = $1`

	var a domain.Assignment
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID,
		&a.Title,
		&a.Description,
		&a.Type,
		&a.Instructions,
		&a.Requirements,
		&a.Rubrics,
		&a.Tips,
		&a.MinWordCount,
		&a.MaxWordCount,
		&a.StartDate,
		&a.DueDate,
		&a.CreatedBy,
		&a.CreatedAt,
		&a.EditedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}

	return &a, nil
}

// visibleAssignments restricts rows to those the viewer may see: students
// see targeted assignments (directly or via class membership), teachers see
// created or granted ones. $1 is the viewer id.
const visibleForStudent = `
	a.id IN (
		SELECT assignment_id FROM assignment_targets WHERE student_id = $1
		UNION
		SELECT t.assignment_id
		FROM assignment_targets t
		JOIN class_students cs ON cs.class_id = t.class_id
		WHERE cs.student_id = $1
	)`

const visibleForTeacher = `
	(a.created_by = $1 OR a.id IN (
		SELECT assignment_id FROM assignment_teachers WHERE teacher_id = $1
	))`

func visibilityClause(role domain.Role) string {
	if role == domain.RoleStudent {
		return visibleForStudent
	}
	return visibleForTeacher
}

func (r *AssignmentRepository) List(ctx context.Context, query ListQuery) ([]*domain.Assignment, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	sqlQuery := `SELECT ` + prefixedColumns() + ` FROM assignments a WHERE ` + visibilityClause(query.ViewerRole)
	args := []interface{}{query.ViewerID}

	if query.Filter != "" {
		args = append(args, query.Filter)
		sqlQuery += fmt.Sprintf(" AND a.title ILIKE '%%' || $%d || '%%'", len(args))
	}

	sqlQuery += " ORDER BY " + query.orderByClause()

	args = append(args, query.Limit)
	sqlQuery += fmt.Sprintf(" LIMIT $%d", len(args))
	args = append(args, (query.Page-1)*query.Limit)
	sqlQuery += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*domain.Assignment
	for rows.Next() {
		var a domain.Assignment
		if err := rows.Scan(
			&a.ID,
			&a.Title,
			&a.Description,
			&a.Type,
			&a.Instructions,
			&a.Requirements,
			&a.Rubrics,
			&a.Tips,
			&a.MinWordCount,
			&a.MaxWordCount,
			&a.StartDate,
			&a.DueDate,
			&a.CreatedBy,
			&a.CreatedAt,
			&a.EditedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return assignments, nil
}

func (r *AssignmentRepository) Count(ctx context.Context, query ListQuery) (int, error) {
	sqlQuery := `SELECT COUNT(*) FROM assignments a WHERE ` + visibilityClause(query.ViewerRole)
	args := []interface{}{query.ViewerID}

	if query.Filter != "" {
		args = append(args, query.Filter)
		sqlQuery += fmt.Sprintf(" AND a.title ILIKE '%%' || $%d || '%%'", len(args))
	}

	var count int
	if err := r.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count assignments: %w", err)
	}
	return count, nil
}

// FindDueSoon returns assignments whose due date falls within the window,
// for the reminder worker.
func (r *AssignmentRepository) FindDueSoon(ctx context.Context, within time.Duration) ([]*domain.Assignment, error) {
	query := `
		SELECT ` + prefixedColumns() + `
		FROM assignments a
		WHERE a.due_date BETWEEN NOW() AND $1
	`

	deadline := time.Now().Add(within)
	rows, err := r.db.QueryContext(ctx, query, deadline)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments due soon: %w", err)
	}
	defer rows.Close()

	var assignments []*domain.Assignment
	for rows.Next() {
		var a domain.Assignment
		if err := rows.Scan(
			&a.ID,
			&a.Title,
			&a.Description,
			&a.Type,
			&a.Instructions,
			&a.Requirements,
			&a.Rubrics,
			&a.Tips,
			&a.MinWordCount,
			&a.MaxWordCount,
			&a.StartDate,
			&a.DueDate,
			&a.CreatedBy,
			&a.CreatedAt,
			&a.EditedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return assignments, nil
}

// CompletionCounts returns per-assignment enabled/completed/graded stage
// counts for one student, used to classify listing status.
func (r *AssignmentRepository) CompletionCounts(ctx context.Context, assignmentIDs []uuid.UUID, studentID uuid.UUID) (map[uuid.UUID]domain.StageCounts, error) {
	if len(assignmentIDs) == 0 {
		return map[uuid.UUID]domain.StageCounts{}, nil
	}

	query := `
		SELECT st.assignment_id,
		       COUNT(*) AS enabled_count,
		       COUNT(ls.id) AS completed_count,
		       COUNT(lg.id) AS graded_count
		FROM assignment_stages st
		LEFT JOIN LATERAL (
			SELECT s.id
			FROM assignment_submissions s
			WHERE s.stage_id = st.id AND s.student_id = $2 AND s.is_final
			ORDER BY s.submitted_at DESC
			LIMIT 1
		) ls ON true
		LEFT JOIN LATERAL (
			SELECT g.id
			FROM assignment_grades g
			WHERE g.submission_id = ls.id
			ORDER BY g.graded_at DESC
			LIMIT 1
		) lg ON true
		WHERE st.assignment_id = ANY($1) AND st.enabled
		GROUP BY st.assignment_id
	`

	ids := make([]string, 0, len(assignmentIDs))
	for _, id := range assignmentIDs {
		ids = append(ids, id.String())
	}

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids), studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query completion counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]domain.StageCounts, len(assignmentIDs))
	for rows.Next() {
		var assignmentID uuid.UUID
		var c domain.StageCounts
		if err := rows.Scan(&assignmentID, &c.Enabled, &c.Completed, &c.Graded); err != nil {
			return nil, fmt.Errorf("failed to scan completion counts: %w", err)
		}
		counts[assignmentID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return counts, nil
}

func prefixedColumns() string {
	return `a.id, a.title, a.description, a.type, a.instructions, a.requirements,
a.rubrics, a.tips, a.min_word_count, a.max_word_count, a.start_date, a.due_date,
a.created_by, a.created_at, a.edited_at`
}
