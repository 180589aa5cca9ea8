package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"assignment_service/internal/domain"
)

func makeStage(stageType domain.StageType, order int, enabled bool) domain.StageWithTools {
	return domain.StageWithTools{Stage: domain.Stage{
		ID:         uuid.New(),
		StageType:  stageType,
		OrderIndex: order,
		Enabled:    enabled,
	}}
}

func submissionAt(stageID uuid.UUID, isFinal bool, at time.Time) domain.Submission {
	return domain.Submission{
		ID:          uuid.New(),
		StageID:     stageID,
		IsFinal:     isFinal,
		SubmittedAt: at,
	}
}

func TestComputeProgress(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("NoSubmissions", func(t *testing.T) {
		stages := []domain.StageWithTools{
			makeStage(domain.StageTypeWriting, 0, true),
			makeStage(domain.StageTypeReflection, 1, true),
		}

		progress := ComputeProgress(stages, nil, nil)
		assert.Equal(t, 0, progress.CurrentStageIndex)
		assert.False(t, progress.IsFinished)
		assert.Len(t, progress.Stages, 2)
	})

	t.Run("DraftDoesNotComplete", func(t *testing.T) {
		stages := []domain.StageWithTools{makeStage(domain.StageTypeWriting, 0, true)}
		subs := []domain.Submission{submissionAt(stages[0].ID, false, base)}

		progress := ComputeProgress(stages, subs, nil)
		assert.Equal(t, 0, progress.CurrentStageIndex)
		assert.False(t, progress.IsFinished)
		assert.Equal(t, subs[0].ID, progress.Stages[0].Submission.ID)
	})

	// A final submission completes the stage even when a newer draft
	// exists on top of it.
	t.Run("FinalSurvivesLaterDraft", func(t *testing.T) {
		stages := []domain.StageWithTools{
			makeStage(domain.StageTypeWriting, 0, true),
			makeStage(domain.StageTypeReflection, 1, true),
		}
		final := submissionAt(stages[0].ID, true, base)
		draft := submissionAt(stages[0].ID, false, base.Add(time.Hour))

		progress := ComputeProgress(stages, []domain.Submission{final, draft}, nil)
		assert.Equal(t, 1, progress.CurrentStageIndex)
		assert.False(t, progress.IsFinished)
		assert.Equal(t, draft.ID, progress.Stages[0].Submission.ID)
	})

	t.Run("DisabledStageSkipped", func(t *testing.T) {
		stages := []domain.StageWithTools{
			makeStage(domain.StageTypeWriting, 0, true),
			makeStage(domain.StageTypeReflection, 1, false),
			makeStage(domain.StageTypeReview, 2, true),
		}
		subs := []domain.Submission{submissionAt(stages[0].ID, true, base)}

		progress := ComputeProgress(stages, subs, nil)
		assert.Equal(t, 2, progress.CurrentStageIndex)
		assert.False(t, progress.IsFinished)
	})

	t.Run("FinishedReturnsToFirstWritingStage", func(t *testing.T) {
		stages := []domain.StageWithTools{
			makeStage(domain.StageTypeWriting, 0, true),
			makeStage(domain.StageTypeReflection, 1, true),
		}
		subs := []domain.Submission{
			submissionAt(stages[0].ID, true, base),
			submissionAt(stages[1].ID, true, base.Add(time.Hour)),
		}

		progress := ComputeProgress(stages, subs, nil)
		assert.True(t, progress.IsFinished)
		assert.Equal(t, 0, progress.CurrentStageIndex)
	})

	t.Run("FinishedWithoutWritingStage", func(t *testing.T) {
		stages := []domain.StageWithTools{makeStage(domain.StageTypeReflection, 0, true)}
		subs := []domain.Submission{submissionAt(stages[0].ID, true, base)}

		progress := ComputeProgress(stages, subs, nil)
		assert.True(t, progress.IsFinished)
		assert.Equal(t, -1, progress.CurrentStageIndex)
	})

	// The grade shown for a stage belongs to the latest final submission,
	// and the newest grade per submission wins.
	t.Run("GradeAttachesToLatestFinal", func(t *testing.T) {
		stages := []domain.StageWithTools{makeStage(domain.StageTypeWriting, 0, true)}
		oldFinal := submissionAt(stages[0].ID, true, base)
		newFinal := submissionAt(stages[0].ID, true, base.Add(time.Hour))

		oldGrade := domain.Grade{ID: uuid.New(), SubmissionID: newFinal.ID, Score: 60, GradedAt: base.Add(2 * time.Hour)}
		newGrade := domain.Grade{ID: uuid.New(), SubmissionID: newFinal.ID, Score: 85, GradedAt: base.Add(3 * time.Hour)}
		strayGrade := domain.Grade{ID: uuid.New(), SubmissionID: oldFinal.ID, Score: 10, GradedAt: base.Add(4 * time.Hour)}

		progress := ComputeProgress(stages,
			[]domain.Submission{oldFinal, newFinal},
			[]domain.Grade{oldGrade, newGrade, strayGrade},
		)
		grade := progress.Stages[0].Grade
		assert.NotNil(t, grade)
		assert.Equal(t, newGrade.ID, grade.ID)
		assert.Equal(t, 85.0, grade.Score)
	})

	t.Run("AllStagesDisabled", func(t *testing.T) {
		stages := []domain.StageWithTools{makeStage(domain.StageTypeWriting, 0, false)}

		progress := ComputeProgress(stages, nil, nil)
		assert.True(t, progress.IsFinished)
		assert.Equal(t, -1, progress.CurrentStageIndex)
	})
}

func TestClassifyStatus(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	t.Run("Upcoming", func(t *testing.T) {
		status := ClassifyStatus(now, &future, nil, domain.StageCounts{}, false)
		assert.Equal(t, domain.StatusUpcoming, status)
	})

	t.Run("PastDueBeatsPartialCompletion", func(t *testing.T) {
		counts := domain.StageCounts{Enabled: 2, Completed: 1}
		status := ClassifyStatus(now, &past, &past, counts, false)
		assert.Equal(t, domain.StatusPastDue, status)
	})

	t.Run("CompletedAfterDueDateIsNotPastDue", func(t *testing.T) {
		counts := domain.StageCounts{Enabled: 2, Completed: 2}
		status := ClassifyStatus(now, &past, &past, counts, false)
		assert.Equal(t, domain.StatusSubmitted, status)
	})

	t.Run("Graded", func(t *testing.T) {
		counts := domain.StageCounts{Enabled: 2, Completed: 2, Graded: 2}
		status := ClassifyStatus(now, &past, &future, counts, false)
		assert.Equal(t, domain.StatusGraded, status)
	})

	t.Run("PartiallyGradedIsSubmitted", func(t *testing.T) {
		counts := domain.StageCounts{Enabled: 2, Completed: 2, Graded: 1}
		status := ClassifyStatus(now, &past, &future, counts, false)
		assert.Equal(t, domain.StatusSubmitted, status)
	})

	t.Run("TeacherSeesActive", func(t *testing.T) {
		status := ClassifyStatus(now, &past, &future, domain.StageCounts{}, true)
		assert.Equal(t, domain.StatusActive, status)
	})

	t.Run("StudentSeesInProgress", func(t *testing.T) {
		counts := domain.StageCounts{Enabled: 2, Completed: 1}
		status := ClassifyStatus(now, &past, &future, counts, false)
		assert.Equal(t, domain.StatusInProgress, status)
	})

	t.Run("DueDateBoundary", func(t *testing.T) {
		due := now
		counts := domain.StageCounts{Enabled: 1, Completed: 0}

		// exactly at the due date is still in progress
		assert.Equal(t, domain.StatusInProgress, ClassifyStatus(now, &past, &due, counts, false))
		assert.Equal(t, domain.StatusInProgress, ClassifyStatus(due.Add(-time.Millisecond), &past, &due, counts, false))
		assert.Equal(t, domain.StatusPastDue, ClassifyStatus(due.Add(time.Millisecond), &past, &due, counts, false))
	})

	t.Run("NoDates", func(t *testing.T) {
		status := ClassifyStatus(now, nil, nil, domain.StageCounts{Enabled: 1}, false)
		assert.Equal(t, domain.StatusInProgress, status)
	})
}
