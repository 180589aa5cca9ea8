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

// latestSubmissions keeps one row per (stage, student): the newest by
// submitted_at.
const latestSubmissions = `
	SELECT *
	FROM (
		SELECT *,
		       ROW_NUMBER() OVER (PARTITION BY stage_id, student_id ORDER BY submitted_at DESC) AS rn
		FROM assignment_submissions
		WHERE assignment_id = $1
	) s
	WHERE rn = 1
`

type SubmissionRepository struct {
	db *sql.DB
}

func NewSubmissionRepository(db *sql.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

func (r *SubmissionRepository) Create(ctx context.Context, submission *domain.Submission) error {
	query := `
		INSERT INTO assignment_submissions
			(id, assignment_id, stage_id, student_id, content, is_final, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate UUID: %w", err)
	}

	now := time.Now()
	_, err = r.db.ExecContext(ctx, query,
		id,
		submission.AssignmentID,
		submission.StageID,
		submission.StudentID,
		submission.Content,
		submission.IsFinal,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}

	submission.ID = id
	submission.SubmittedAt = now
	return nil
}

func (r *SubmissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	query := `
		SELECT id, assignment_id, stage_id, student_id, content, is_final, submitted_at
		FROM assignment_submissions
		WHERE id = $1
	`

	var s domain.Submission
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.AssignmentID, &s.StageID, &s.StudentID, &s.Content, &s.IsFinal, &s.SubmittedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	return &s, nil
}

// ListByStudent returns every submission of one student on one
// assignment. Progression derivation happens in the service layer.
func (r *SubmissionRepository) ListByStudent(ctx context.Context, assignmentID, studentID uuid.UUID) ([]domain.Submission, error) {
	query := `
		SELECT id, assignment_id, stage_id, student_id, content, is_final, submitted_at
		FROM assignment_submissions
		WHERE assignment_id = $1 AND student_id = $2
		ORDER BY submitted_at
	`

	rows, err := r.db.QueryContext(ctx, query, assignmentID, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var submissions []domain.Submission
	for rows.Next() {
		var s domain.Submission
		if err := rows.Scan(&s.ID, &s.AssignmentID, &s.StageID, &s.StudentID, &s.Content, &s.IsFinal, &s.SubmittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		submissions = append(submissions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return submissions, nil
}

// LatestGrades returns the newest grade per submission.
func (r *SubmissionRepository) LatestGrades(ctx context.Context, submissionIDs []uuid.UUID) ([]domain.Grade, error) {
	if len(submissionIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, submission_id, score, score_breakdown, feedback, graded_by, graded_at
		FROM (
			SELECT *,
			       ROW_NUMBER() OVER (PARTITION BY submission_id ORDER BY graded_at DESC) AS rn
			FROM assignment_grades
			WHERE submission_id = ANY($1)
		) g
		WHERE rn = 1
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(uuidStrings(submissionIDs)))
	if err != nil {
		return nil, fmt.Errorf("failed to query grades: %w", err)
	}
	defer rows.Close()

	var grades []domain.Grade
	for rows.Next() {
		var g domain.Grade
		if err := rows.Scan(&g.ID, &g.SubmissionID, &g.Score, &g.ScoreBreakdown, &g.Feedback, &g.GradedBy, &g.GradedAt); err != nil {
			return nil, fmt.Errorf("failed to scan grade: %w", err)
		}
		grades = append(grades, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return grades, nil
}

func (r *SubmissionRepository) CreateGrade(ctx context.Context, grade *domain.Grade) error {
	query := `
		INSERT INTO assignment_grades
			(id, submission_id, score, score_breakdown, feedback, graded_by, graded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate UUID: %w", err)
	}

	now := time.Now()
	_, err = r.db.ExecContext(ctx, query,
		id,
		grade.SubmissionID,
		grade.Score,
		grade.ScoreBreakdown,
		grade.Feedback,
		grade.GradedBy,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create grade: %w", err)
	}

	grade.ID = id
	grade.GradedAt = now
	return nil
}

// ListLatest is the teacher grading queue: latest submission per
// (stage, student) with the student and the latest score attached. The
// filter matches the student's username or name.
func (r *SubmissionRepository) ListLatest(ctx context.Context, assignmentID uuid.UUID, filter string, limit, page int) ([]domain.SubmissionListItem, error) {
	query := `
		WITH latest AS (` + latestSubmissions + `)
		SELECT l.id, l.assignment_id, l.stage_id, l.student_id, l.content, l.is_final, l.submitted_at,
		       st.stage_type,
		       u.id, u.username, u.first_name, u.last_name, u.role,
		       lg.score
		FROM latest l
		JOIN assignment_stages st ON st.id = l.stage_id
		JOIN users u ON u.id = l.student_id
		LEFT JOIN LATERAL (
			SELECT g.score
			FROM assignment_grades g
			WHERE g.submission_id = l.id
			ORDER BY g.graded_at DESC
			LIMIT 1
		) lg ON true
		WHERE ($2 = '' OR u.username ILIKE '%' || $2 || '%'
			OR COALESCE(u.first_name, '') ILIKE '%' || $2 || '%'
			OR COALESCE(u.last_name, '') ILIKE '%' || $2 || '%')
		ORDER BY l.submitted_at DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.db.QueryContext(ctx, query, assignmentID, filter, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query submission listing: %w", err)
	}
	defer rows.Close()

	var items []domain.SubmissionListItem
	for rows.Next() {
		var item domain.SubmissionListItem
		if err := rows.Scan(
			&item.ID, &item.AssignmentID, &item.StageID, &item.StudentID,
			&item.Content, &item.IsFinal, &item.SubmittedAt,
			&item.StageType,
			&item.Student.ID, &item.Student.Username, &item.Student.FirstName, &item.Student.LastName, &item.Student.Role,
			&item.Score,
		); err != nil {
			return nil, fmt.Errorf("failed to scan submission listing item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

func (r *SubmissionRepository) CountLatest(ctx context.Context, assignmentID uuid.UUID, filter string) (int, error) {
	query := `
		WITH latest AS (` + latestSubmissions + `)
		SELECT COUNT(*)
		FROM latest l
		JOIN users u ON u.id = l.student_id
		WHERE ($2 = '' OR u.username ILIKE '%' || $2 || '%'
			OR COALESCE(u.first_name, '') ILIKE '%' || $2 || '%'
			OR COALESCE(u.last_name, '') ILIKE '%' || $2 || '%')
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, assignmentID, filter).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count submission listing: %w", err)
	}
	return count, nil
}
