package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"assignment_service/internal/ctxdata"
	"assignment_service/internal/domain"
	"assignment_service/internal/repository"
	"assignment_service/pkg/logger"
)

func newAssignmentService(t *testing.T) (*AssignmentService, *mockAssignmentRepo, *mockStageRepo, *mockEnrollmentRepo, *fakeCache) {
	t.Helper()
	assignments := &mockAssignmentRepo{}
	stages := &mockStageRepo{}
	enrollment := &mockEnrollmentRepo{}
	cache := newFakeCache()

	svc := NewAssignmentService(
		fakeTxRunner{},
		assignments,
		stages,
		enrollment,
		NewEnrollmentSynchronizer(enrollment),
		NewAccessGate(),
		cache,
		logger.New(),
	)
	return svc, assignments, stages, enrollment, cache
}

func teacherAuth() ctxdata.Auth {
	return ctxdata.Auth{UserID: uuid.New(), Role: domain.RoleTeacher}
}

func studentAuth() ctxdata.Auth {
	return ctxdata.Auth{UserID: uuid.New(), Role: domain.RoleStudent}
}

func validInput(studentID uuid.UUID) AssignmentInput {
	description := "essay on entropy"
	due := time.Now().Add(72 * time.Hour)
	return AssignmentInput{
		Title:       "Entropy essay",
		Description: &description,
		DueDate:     &due,
		Stages: []StageInput{
			{StageType: domain.StageTypeWriting, OrderIndex: 0, Enabled: true, Tools: []ToolInput{}},
		},
		EnrolledStudentIDs: []uuid.UUID{studentID},
	}
}

func TestAssignmentCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("StudentForbidden", func(t *testing.T) {
		svc, _, _, _, _ := newAssignmentService(t)

		_, err := svc.Create(ctx, studentAuth(), validInput(uuid.New()))
		assert.True(t, errors.Is(err, ErrPermissionDenied))
	})

	t.Run("ValidationBeforeAnyWork", func(t *testing.T) {
		svc, assignments, _, _, _ := newAssignmentService(t)

		input := validInput(uuid.New())
		input.Title = ""
		_, err := svc.Create(ctx, teacherAuth(), input)
		assert.True(t, errors.Is(err, ErrValidation))
		assignments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("MissingStages", func(t *testing.T) {
		svc, _, _, _, _ := newAssignmentService(t)

		input := validInput(uuid.New())
		input.Stages = nil
		_, err := svc.Create(ctx, teacherAuth(), input)
		assert.True(t, errors.Is(err, ErrValidation))
	})

	t.Run("InvalidStudentReference", func(t *testing.T) {
		svc, assignments, _, enrollment, _ := newAssignmentService(t)

		studentID := uuid.New()
		enrollment.On("UsersByIDs", ctx, []uuid.UUID{studentID}).Return(nil, nil)

		_, err := svc.Create(ctx, teacherAuth(), validInput(studentID))
		assert.True(t, errors.Is(err, ErrInvalidReference))
		assignments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Success", func(t *testing.T) {
		svc, assignments, stages, enrollment, _ := newAssignmentService(t)

		auth := teacherAuth()
		studentID := uuid.New()

		enrollment.On("UsersByIDs", ctx, []uuid.UUID{studentID}).Return(studentUsers(studentID), nil)
		enrollment.On("ListGrants", ctx, uuid.Nil).Return(nil, nil)

		assignments.On("Create", ctx, mock.Anything, mock.AnythingOfType("*domain.Assignment")).Return(nil)
		stages.On("Upsert", ctx, mock.Anything, mock.AnythingOfType("*domain.Stage")).Return(nil)
		enrollment.On("ApplyDiff", ctx, mock.Anything, mock.AnythingOfType("domain.EnrollmentDiff")).
			Run(func(args mock.Arguments) {
				diff := args.Get(2).(domain.EnrollmentDiff)
				// the diff is rebound to the generated assignment id
				require.Len(t, diff.TargetsToAdd, 1)
				assert.NotEqual(t, uuid.Nil, diff.TargetsToAdd[0].AssignmentID)
			}).
			Return(nil)

		stages.On("ListByAssignment", ctx, mock.AnythingOfType("uuid.UUID")).
			Return([]domain.StageWithTools{}, nil)
		enrollment.On("ListTargets", ctx, mock.AnythingOfType("uuid.UUID")).
			Return([]domain.Target{domain.StudentTarget(uuid.New(), studentID)}, nil)
		enrollment.On("ClassesByIDs", ctx, []uuid.UUID(nil)).Return(nil, nil)

		view, err := svc.Create(ctx, auth, validInput(studentID))
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, view.ID)
		assert.Equal(t, auth.UserID, view.CreatedBy)
		require.Len(t, view.EnrolledStudents, 1)
		assert.Equal(t, studentID, view.EnrolledStudents[0].ID)
	})
}

func TestAssignmentUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("NotFound", func(t *testing.T) {
		svc, assignments, _, _, _ := newAssignmentService(t)

		id := uuid.New()
		assignments.On("GetByID", ctx, id).Return(nil, repository.ErrNotFound)

		_, err := svc.Update(ctx, teacherAuth(), id, validInput(uuid.New()))
		assert.True(t, errors.Is(err, ErrAssignmentNotFound))
	})

	t.Run("TeacherWithoutGrantForbidden", func(t *testing.T) {
		svc, assignments, _, enrollment, _ := newAssignmentService(t)

		id := uuid.New()
		assignments.On("GetByID", ctx, id).
			Return(&domain.Assignment{ID: id, CreatedBy: uuid.New()}, nil)
		enrollment.On("ListGrants", ctx, id).Return(nil, nil)

		_, err := svc.Update(ctx, teacherAuth(), id, validInput(uuid.New()))
		assert.True(t, errors.Is(err, ErrPermissionDenied))
	})

	t.Run("GrantedTeacherAllowed", func(t *testing.T) {
		svc, assignments, stages, enrollment, cache := newAssignmentService(t)

		auth := teacherAuth()
		id := uuid.New()
		studentID := uuid.New()
		cache.Set(ctx, viewCacheKey(id), []byte("stale"), time.Minute)

		assignments.On("GetByID", ctx, id).
			Return(&domain.Assignment{ID: id, CreatedBy: uuid.New()}, nil)
		enrollment.On("ListGrants", ctx, id).
			Return([]domain.TeacherGrant{{AssignmentID: id, TeacherID: auth.UserID}}, nil)
		enrollment.On("ListTargets", ctx, id).
			Return([]domain.Target{domain.StudentTarget(id, studentID)}, nil)
		enrollment.On("UsersByIDs", ctx, []uuid.UUID{studentID}).Return(studentUsers(studentID), nil)

		assignments.On("Update", ctx, mock.Anything, mock.AnythingOfType("*domain.Assignment")).Return(nil)
		stages.On("Upsert", ctx, mock.Anything, mock.AnythingOfType("*domain.Stage")).Return(nil)
		enrollment.On("ApplyDiff", ctx, mock.Anything, mock.AnythingOfType("domain.EnrollmentDiff")).Return(nil)

		stages.On("ListByAssignment", ctx, id).Return([]domain.StageWithTools{}, nil)
		enrollment.On("ClassesByIDs", ctx, []uuid.UUID(nil)).Return(nil, nil)

		view, err := svc.Update(ctx, auth, id, validInput(studentID))
		require.NoError(t, err)
		assert.Equal(t, id, view.ID)

		_, cached := cache.Get(ctx, viewCacheKey(id))
		assert.False(t, cached, "stale view must be evicted")
	})
}

func TestAssignmentView(t *testing.T) {
	ctx := context.Background()

	t.Run("StudentNotEnrolled", func(t *testing.T) {
		svc, assignments, _, enrollment, _ := newAssignmentService(t)

		auth := studentAuth()
		id := uuid.New()
		assignments.On("GetByID", ctx, id).Return(&domain.Assignment{ID: id}, nil)
		enrollment.On("IsStudentEnrolled", ctx, id, auth.UserID).Return(false, nil)

		_, err := svc.View(ctx, auth, id)
		assert.True(t, errors.Is(err, ErrPermissionDenied))
	})

	t.Run("SecondViewServedFromCache", func(t *testing.T) {
		svc, assignments, stages, enrollment, _ := newAssignmentService(t)

		auth := studentAuth()
		id := uuid.New()
		assignments.On("GetByID", ctx, id).Return(&domain.Assignment{ID: id, Title: "cached"}, nil)
		enrollment.On("IsStudentEnrolled", ctx, id, auth.UserID).Return(true, nil)

		stages.On("ListByAssignment", ctx, id).Return([]domain.StageWithTools{}, nil).Once()
		enrollment.On("ListTargets", ctx, id).Return(nil, nil).Once()
		enrollment.On("ClassesByIDs", ctx, []uuid.UUID(nil)).Return(nil, nil).Once()
		enrollment.On("UsersByIDs", ctx, []uuid.UUID(nil)).Return(nil, nil).Once()

		first, err := svc.View(ctx, auth, id)
		require.NoError(t, err)

		second, err := svc.View(ctx, auth, id)
		require.NoError(t, err)
		assert.Equal(t, first.Title, second.Title)
		stages.AssertNumberOfCalls(t, "ListByAssignment", 1)
	})
}

func TestAssignmentList(t *testing.T) {
	ctx := context.Background()

	t.Run("InvalidSortColumn", func(t *testing.T) {
		svc, _, _, _, _ := newAssignmentService(t)

		_, err := svc.List(ctx, teacherAuth(), ListParams{Sort: "password", Page: 1, Limit: 10})
		assert.True(t, errors.Is(err, ErrValidation))
	})

	t.Run("StudentGetsStatuses", func(t *testing.T) {
		svc, assignments, _, _, _ := newAssignmentService(t)

		auth := studentAuth()
		id := uuid.New()
		past := time.Now().Add(-48 * time.Hour)

		assignments.On("List", ctx, mock.AnythingOfType("repository.ListQuery")).
			Return([]*domain.Assignment{{ID: id, Title: "late", DueDate: &past}}, nil)
		assignments.On("CompletionCounts", ctx, []uuid.UUID{id}, auth.UserID).
			Return(map[uuid.UUID]domain.StageCounts{id: {Enabled: 2, Completed: 1}}, nil)
		assignments.On("Count", ctx, mock.AnythingOfType("repository.ListQuery")).Return(1, nil)

		result, err := svc.List(ctx, auth, ListParams{Page: 1, Limit: 10})
		require.NoError(t, err)
		require.Len(t, result.Items, 1)
		assert.Equal(t, domain.StatusPastDue, result.Items[0].Status)
		require.NotNil(t, result.Count)
		assert.Equal(t, 1, *result.Count)
	})

	t.Run("SkipCount", func(t *testing.T) {
		svc, assignments, _, _, _ := newAssignmentService(t)

		assignments.On("List", ctx, mock.AnythingOfType("repository.ListQuery")).
			Return([]*domain.Assignment{}, nil)

		result, err := svc.List(ctx, teacherAuth(), ListParams{Page: 1, Limit: 10, SkipCount: true})
		require.NoError(t, err)
		assert.Nil(t, result.Count)
		assignments.AssertNotCalled(t, "Count", mock.Anything, mock.Anything)
	})
}
