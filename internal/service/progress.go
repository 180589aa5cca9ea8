package service

import (
	"time"

	"github.com/google/uuid"

	"assignment_service/internal/domain"
)

// ComputeProgress derives a student's progression from the ordered stage
// list and the full submission/grade history. Disabled stages appear in
// the result for display but never count toward completion.
//
// The current stage is the first enabled incomplete stage. Once every
// enabled stage is complete, the student is sent back to the first
// enabled writing stage for revision, or -1 when there is none.
func ComputeProgress(stages []domain.StageWithTools, submissions []domain.Submission, grades []domain.Grade) domain.AssignmentProgress {
	latestByStage := make(map[uuid.UUID]*domain.Submission)
	latestFinalByStage := make(map[uuid.UUID]*domain.Submission)
	for i := range submissions {
		s := &submissions[i]
		if prev, ok := latestByStage[s.StageID]; !ok || s.SubmittedAt.After(prev.SubmittedAt) {
			latestByStage[s.StageID] = s
		}
		if s.IsFinal {
			if prev, ok := latestFinalByStage[s.StageID]; !ok || s.SubmittedAt.After(prev.SubmittedAt) {
				latestFinalByStage[s.StageID] = s
			}
		}
	}

	latestGradeBySubmission := make(map[uuid.UUID]*domain.Grade)
	for i := range grades {
		g := &grades[i]
		if prev, ok := latestGradeBySubmission[g.SubmissionID]; !ok || g.GradedAt.After(prev.GradedAt) {
			latestGradeBySubmission[g.SubmissionID] = g
		}
	}

	progress := domain.AssignmentProgress{
		Stages:            make([]domain.StageProgress, 0, len(stages)),
		CurrentStageIndex: -1,
		IsFinished:        true,
	}

	for _, stage := range stages {
		sp := domain.StageProgress{Stage: stage}
		if latest, ok := latestByStage[stage.ID]; ok {
			sp.Submission = latest
		}
		if final, ok := latestFinalByStage[stage.ID]; ok {
			sp.Grade = latestGradeBySubmission[final.ID]
		}
		progress.Stages = append(progress.Stages, sp)

		if !stage.Enabled {
			continue
		}
		if _, complete := latestFinalByStage[stage.ID]; !complete {
			progress.IsFinished = false
			if progress.CurrentStageIndex == -1 {
				progress.CurrentStageIndex = len(progress.Stages) - 1
			}
		}
	}

	if progress.IsFinished {
		progress.CurrentStageIndex = firstWritingStageIndex(stages)
	}

	return progress
}

func firstWritingStageIndex(stages []domain.StageWithTools) int {
	for i, stage := range stages {
		if stage.Enabled && stage.StageType == domain.StageTypeWriting {
			return i
		}
	}
	return -1
}

// ClassifyStatus is the time-aware status label used by listings.
// Past-due wins over partial completion for students; once every enabled
// stage is complete, lateness no longer matters.
func ClassifyStatus(now time.Time, startDate, dueDate *time.Time, counts domain.StageCounts, teacherViewing bool) domain.AssignmentStatus {
	switch {
	case startDate != nil && now.Before(*startDate):
		return domain.StatusUpcoming
	case dueDate != nil && now.After(*dueDate) && counts.Completed < counts.Enabled:
		return domain.StatusPastDue
	case counts.Enabled > 0 && counts.Completed == counts.Enabled && counts.Graded == counts.Enabled:
		return domain.StatusGraded
	case counts.Enabled > 0 && counts.Completed == counts.Enabled:
		return domain.StatusSubmitted
	case teacherViewing:
		return domain.StatusActive
	default:
		return domain.StatusInProgress
	}
}
