package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"assignment_service/internal/domain"
	"assignment_service/internal/repository"
)

type mockAssignmentRepo struct {
	mock.Mock
}

func (m *mockAssignmentRepo) Create(ctx context.Context, q repository.Querier, assignment *domain.Assignment) error {
	args := m.Called(ctx, q, assignment)
	if args.Error(0) == nil && assignment.ID == uuid.Nil {
		assignment.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockAssignmentRepo) Update(ctx context.Context, q repository.Querier, assignment *domain.Assignment) error {
	args := m.Called(ctx, q, assignment)
	return args.Error(0)
}

func (m *mockAssignmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Assignment, error) {
	args := m.Called(ctx, id)
	assignment, _ := args.Get(0).(*domain.Assignment)
	return assignment, args.Error(1)
}

func (m *mockAssignmentRepo) List(ctx context.Context, query repository.ListQuery) ([]*domain.Assignment, error) {
	args := m.Called(ctx, query)
	assignments, _ := args.Get(0).([]*domain.Assignment)
	return assignments, args.Error(1)
}

func (m *mockAssignmentRepo) Count(ctx context.Context, query repository.ListQuery) (int, error) {
	args := m.Called(ctx, query)
	return args.Int(0), args.Error(1)
}

func (m *mockAssignmentRepo) CompletionCounts(ctx context.Context, assignmentIDs []uuid.UUID, studentID uuid.UUID) (map[uuid.UUID]domain.StageCounts, error) {
	args := m.Called(ctx, assignmentIDs, studentID)
	counts, _ := args.Get(0).(map[uuid.UUID]domain.StageCounts)
	return counts, args.Error(1)
}

func (m *mockAssignmentRepo) FindDueSoon(ctx context.Context, within time.Duration) ([]*domain.Assignment, error) {
	args := m.Called(ctx, within)
	assignments, _ := args.Get(0).([]*domain.Assignment)
	return assignments, args.Error(1)
}

type mockStageRepo struct {
	mock.Mock
}

func (m *mockStageRepo) ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]domain.StageWithTools, error) {
	args := m.Called(ctx, assignmentID)
	stages, _ := args.Get(0).([]domain.StageWithTools)
	return stages, args.Error(1)
}

func (m *mockStageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Stage, error) {
	args := m.Called(ctx, id)
	stage, _ := args.Get(0).(*domain.Stage)
	return stage, args.Error(1)
}

func (m *mockStageRepo) Upsert(ctx context.Context, q repository.Querier, stage *domain.Stage) error {
	args := m.Called(ctx, q, stage)
	if args.Error(0) == nil && stage.ID == uuid.Nil {
		stage.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockStageRepo) UpsertTool(ctx context.Context, q repository.Querier, tool *domain.Tool) error {
	args := m.Called(ctx, q, tool)
	return args.Error(0)
}

type mockEnrollmentRepo struct {
	mockRosterReader
}

func (m *mockEnrollmentRepo) ListTargets(ctx context.Context, assignmentID uuid.UUID) ([]domain.Target, error) {
	args := m.Called(ctx, assignmentID)
	targets, _ := args.Get(0).([]domain.Target)
	return targets, args.Error(1)
}

func (m *mockEnrollmentRepo) ApplyDiff(ctx context.Context, q repository.Querier, diff domain.EnrollmentDiff) error {
	args := m.Called(ctx, q, diff)
	return args.Error(0)
}

func (m *mockEnrollmentRepo) IsStudentEnrolled(ctx context.Context, assignmentID, studentID uuid.UUID) (bool, error) {
	args := m.Called(ctx, assignmentID, studentID)
	return args.Bool(0), args.Error(1)
}

func (m *mockEnrollmentRepo) UnfinishedStudentIDs(ctx context.Context, assignmentID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, assignmentID)
	ids, _ := args.Get(0).([]uuid.UUID)
	return ids, args.Error(1)
}

type mockSubmissionRepo struct {
	mock.Mock
}

func (m *mockSubmissionRepo) Create(ctx context.Context, submission *domain.Submission) error {
	args := m.Called(ctx, submission)
	if args.Error(0) == nil && submission.ID == uuid.Nil {
		submission.ID = uuid.New()
		submission.SubmittedAt = time.Now()
	}
	return args.Error(0)
}

func (m *mockSubmissionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	args := m.Called(ctx, id)
	submission, _ := args.Get(0).(*domain.Submission)
	return submission, args.Error(1)
}

func (m *mockSubmissionRepo) ListByStudent(ctx context.Context, assignmentID, studentID uuid.UUID) ([]domain.Submission, error) {
	args := m.Called(ctx, assignmentID, studentID)
	submissions, _ := args.Get(0).([]domain.Submission)
	return submissions, args.Error(1)
}

func (m *mockSubmissionRepo) LatestGrades(ctx context.Context, submissionIDs []uuid.UUID) ([]domain.Grade, error) {
	args := m.Called(ctx, submissionIDs)
	grades, _ := args.Get(0).([]domain.Grade)
	return grades, args.Error(1)
}

func (m *mockSubmissionRepo) CreateGrade(ctx context.Context, grade *domain.Grade) error {
	args := m.Called(ctx, grade)
	if args.Error(0) == nil && grade.ID == uuid.Nil {
		grade.ID = uuid.New()
		grade.GradedAt = time.Now()
	}
	return args.Error(0)
}

func (m *mockSubmissionRepo) ListLatest(ctx context.Context, assignmentID uuid.UUID, filter string, limit, page int) ([]domain.SubmissionListItem, error) {
	args := m.Called(ctx, assignmentID, filter, limit, page)
	items, _ := args.Get(0).([]domain.SubmissionListItem)
	return items, args.Error(1)
}

func (m *mockSubmissionRepo) CountLatest(ctx context.Context, assignmentID uuid.UUID, filter string) (int, error) {
	args := m.Called(ctx, assignmentID, filter)
	return args.Int(0), args.Error(1)
}

// fakeTxRunner runs the transactional closure directly with a nil Querier;
// the mocked repositories ignore it.
type fakeTxRunner struct{}

func (fakeTxRunner) WithinTx(ctx context.Context, fn func(q repository.Querier) error) error {
	return fn(nil)
}

type mockProducer struct {
	mock.Mock
}

func (m *mockProducer) Send(ctx context.Context, topic string, message interface{}) error {
	args := m.Called(ctx, topic, message)
	return args.Error(0)
}

type fakeCache struct {
	data map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, ok := c.data[key]
	return data, ok
}

func (c *fakeCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) {
	c.data[key] = data
}

func (c *fakeCache) Delete(ctx context.Context, key string) {
	delete(c.data, key)
}
