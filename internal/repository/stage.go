package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"assignment_service/internal/domain"
)

type StageRepository struct {
	db *sql.DB
}

func NewStageRepository(db *sql.DB) *StageRepository {
	return &StageRepository{db: db}
}

func (r *StageRepository) ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]domain.StageWithTools, error) {
	stageQuery := `
		SELECT id, assignment_id, stage_type, order_index, enabled
		FROM assignment_stages
		WHERE assignment_id = $1
		ORDER BY order_index
	`

	rows, err := r.db.QueryContext(ctx, stageQuery, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stages: %w", err)
	}
	defer rows.Close()

	var stages []domain.StageWithTools
	for rows.Next() {
		var s domain.Stage
		if err := rows.Scan(&s.ID, &s.AssignmentID, &s.StageType, &s.OrderIndex, &s.Enabled); err != nil {
			return nil, fmt.Errorf("failed to scan stage: %w", err)
		}
		stages = append(stages, domain.StageWithTools{Stage: s})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if len(stages) == 0 {
		return stages, nil
	}

	toolQuery := `
		SELECT id, assignment_id, stage_id, tool_key, enabled, chatbot_prompt
		FROM assignment_tools
		WHERE assignment_id = $1
	`

	toolRows, err := r.db.QueryContext(ctx, toolQuery, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tools: %w", err)
	}
	defer toolRows.Close()

	toolsByStage := make(map[uuid.UUID][]domain.Tool)
	for toolRows.Next() {
		var t domain.Tool
		if err := toolRows.Scan(&t.ID, &t.AssignmentID, &t.StageID, &t.Key, &t.Enabled, &t.ChatbotPrompt); err != nil {
			return nil, fmt.Errorf("failed to scan tool: %w", err)
		}
		toolsByStage[t.StageID] = append(toolsByStage[t.StageID], t)
	}
	if err := toolRows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	for i := range stages {
		stages[i].Tools = toolsByStage[stages[i].ID]
	}

	return stages, nil
}

func (r *StageRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Stage, error) {
	query := `
		SELECT id, assignment_id, stage_type, order_index, enabled
		FROM assignment_stages
		WHERE id = $1
	`

	var s domain.Stage
	err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.AssignmentID, &s.StageType, &s.OrderIndex, &s.Enabled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get stage: %w", err)
	}

	return &s, nil
}

// Upsert inserts the stage when it carries no id yet, otherwise updates
// it in place. Stages are never deleted.
func (r *StageRepository) Upsert(ctx context.Context, q Querier, stage *domain.Stage) error {
	if stage.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate UUID: %w", err)
		}

		query := `
			INSERT INTO assignment_stages (id, assignment_id, stage_type, order_index, enabled)
			VALUES ($1, $2, $3, $4, $5)
		`
		if _, err := q.ExecContext(ctx, query, id, stage.AssignmentID, stage.StageType, stage.OrderIndex, stage.Enabled); err != nil {
			return fmt.Errorf("failed to insert stage: %w", err)
		}

		stage.ID = id
		return nil
	}

	query := `
		UPDATE assignment_stages
		SET stage_type = $1, order_index = $2, enabled = $3
		WHERE id = $4 AND assignment_id = $5
	`
	result, err := q.ExecContext(ctx, query, stage.StageType, stage.OrderIndex, stage.Enabled, stage.ID, stage.AssignmentID)
	if err != nil {
		return fmt.Errorf("failed to update stage: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *StageRepository) UpsertTool(ctx context.Context, q Querier, tool *domain.Tool) error {
	if tool.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate UUID: %w", err)
		}

		query := `
			INSERT INTO assignment_tools (id, assignment_id, stage_id, tool_key, enabled, chatbot_prompt)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		if _, err := q.ExecContext(ctx, query, id, tool.AssignmentID, tool.StageID, tool.Key, tool.Enabled, tool.ChatbotPrompt); err != nil {
			return fmt.Errorf("failed to insert tool: %w", err)
		}

		tool.ID = id
		return nil
	}

	query := `
		UPDATE assignment_tools
		SET tool_key = $1, enabled = $2, chatbot_prompt = $3
		WHERE id = $4 AND stage_id = $5
	`
	result, err := q.ExecContext(ctx, query, tool.Key, tool.Enabled, tool.ChatbotPrompt, tool.ID, tool.StageID)
	if err != nil {
		return fmt.Errorf("failed to update tool: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
