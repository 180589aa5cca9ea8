package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"assignment_service/internal/domain"
	"assignment_service/internal/repository"
)

type AssignmentRepository interface {
	Create(ctx context.Context, q repository.Querier, assignment *domain.Assignment) error
	Update(ctx context.Context, q repository.Querier, assignment *domain.Assignment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Assignment, error)
	List(ctx context.Context, query repository.ListQuery) ([]*domain.Assignment, error)
	Count(ctx context.Context, query repository.ListQuery) (int, error)
	CompletionCounts(ctx context.Context, assignmentIDs []uuid.UUID, studentID uuid.UUID) (map[uuid.UUID]domain.StageCounts, error)
	FindDueSoon(ctx context.Context, within time.Duration) ([]*domain.Assignment, error)
}

type StageRepository interface {
	ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]domain.StageWithTools, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Stage, error)
	Upsert(ctx context.Context, q repository.Querier, stage *domain.Stage) error
	UpsertTool(ctx context.Context, q repository.Querier, tool *domain.Tool) error
}

type EnrollmentRepository interface {
	RosterReader
	ListTargets(ctx context.Context, assignmentID uuid.UUID) ([]domain.Target, error)
	ApplyDiff(ctx context.Context, q repository.Querier, diff domain.EnrollmentDiff) error
	IsStudentEnrolled(ctx context.Context, assignmentID, studentID uuid.UUID) (bool, error)
	UnfinishedStudentIDs(ctx context.Context, assignmentID uuid.UUID) ([]uuid.UUID, error)
}

type SubmissionRepository interface {
	Create(ctx context.Context, submission *domain.Submission) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Submission, error)
	ListByStudent(ctx context.Context, assignmentID, studentID uuid.UUID) ([]domain.Submission, error)
	LatestGrades(ctx context.Context, submissionIDs []uuid.UUID) ([]domain.Grade, error)
	CreateGrade(ctx context.Context, grade *domain.Grade) error
	ListLatest(ctx context.Context, assignmentID uuid.UUID, filter string, limit, page int) ([]domain.SubmissionListItem, error)
	CountLatest(ctx context.Context, assignmentID uuid.UUID, filter string) (int, error)
}

type EventProducer interface {
	Send(ctx context.Context, topic string, message interface{}) error
}

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
}
