package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"assignment_service/internal/ctxdata"
	"assignment_service/internal/domain"
	"assignment_service/internal/repository"
	"assignment_service/pkg/logger"
)

const (
	topicSubmissionEvents = "submission-events"
	topicGradeEvents      = "grade-events"
)

type SubmitInput struct {
	AssignmentID uuid.UUID
	StageID      uuid.UUID
	Content      string
	IsFinal      bool
	IsManual     bool
}

type GradeInput struct {
	SubmissionID   uuid.UUID
	Score          float64
	ScoreBreakdown *string
	Feedback       *string
}

type ProgressView struct {
	Assignment *domain.Assignment
	Progress   domain.AssignmentProgress
}

type SubmissionListResult struct {
	Items []domain.SubmissionListItem
	Page  int
	Limit int
	Count *int
}

type SubmissionService struct {
	assignments AssignmentRepository
	stages      StageRepository
	enrollment  EnrollmentRepository
	submissions SubmissionRepository
	gate        *AccessGate
	producer    EventProducer
	log         *logger.Logger
}

func NewSubmissionService(
	assignments AssignmentRepository,
	stages StageRepository,
	enrollment EnrollmentRepository,
	submissions SubmissionRepository,
	gate *AccessGate,
	producer EventProducer,
	log *logger.Logger,
) *SubmissionService {
	return &SubmissionService{
		assignments: assignments,
		stages:      stages,
		enrollment:  enrollment,
		submissions: submissions,
		gate:        gate,
		producer:    producer,
		log:         log,
	}
}

// Submit appends a new submission row. Drafts and finals alike create a
// row; the newest per (stage, student) is authoritative.
func (s *SubmissionService) Submit(ctx context.Context, auth ctxdata.Auth, input SubmitInput) (*domain.Submission, error) {
	if err := s.gate.Require(auth, OpSubmit); err != nil {
		return nil, err
	}
	if input.Content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrValidation)
	}

	if _, err := s.assignments.GetByID(ctx, input.AssignmentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}

	stage, err := s.stages.GetByID(ctx, input.StageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrStageNotFound
		}
		return nil, err
	}
	if stage.AssignmentID != input.AssignmentID {
		return nil, ErrStageNotFound
	}
	if !stage.Enabled {
		return nil, fmt.Errorf("%w: stage is disabled", ErrValidation)
	}

	enrolled, err := s.enrollment.IsStudentEnrolled(ctx, input.AssignmentID, auth.UserID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, ErrPermissionDenied
	}

	submission := &domain.Submission{
		AssignmentID: input.AssignmentID,
		StageID:      input.StageID,
		StudentID:    auth.UserID,
		Content:      input.Content,
		IsFinal:      input.IsFinal,
	}
	if err := s.submissions.Create(ctx, submission); err != nil {
		return nil, err
	}

	saveKind := "AUTO_SAVE"
	if input.IsManual {
		saveKind = "SAVE"
	}
	s.emit(ctx, topicSubmissionEvents, map[string]interface{}{
		"submission_id": submission.ID,
		"assignment_id": submission.AssignmentID,
		"stage_id":      submission.StageID,
		"student_id":    submission.StudentID,
		"is_final":      submission.IsFinal,
		"save_kind":     saveKind,
	})

	return submission, nil
}

// Progress computes the student's progression view. Students always get
// their own; teachers and admins pick a student of an assignment they
// manage.
func (s *SubmissionService) Progress(ctx context.Context, auth ctxdata.Auth, assignmentID, studentID uuid.UUID) (*ProgressView, error) {
	if err := s.gate.Require(auth, OpViewProgress); err != nil {
		return nil, err
	}

	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}

	if auth.Role == domain.RoleStudent {
		if studentID != uuid.Nil && studentID != auth.UserID {
			return nil, ErrPermissionDenied
		}
		studentID = auth.UserID
	} else {
		if studentID == uuid.Nil {
			return nil, fmt.Errorf("%w: student id is required", ErrValidation)
		}
		if err := s.requireManage(ctx, auth, assignment); err != nil {
			return nil, err
		}
	}

	stages, err := s.stages.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	submissions, err := s.submissions.ListByStudent(ctx, assignmentID, studentID)
	if err != nil {
		return nil, err
	}

	var grades []domain.Grade
	if len(submissions) > 0 {
		ids := make([]uuid.UUID, 0, len(submissions))
		for _, sub := range submissions {
			ids = append(ids, sub.ID)
		}
		grades, err = s.submissions.LatestGrades(ctx, ids)
		if err != nil {
			return nil, err
		}
	}

	return &ProgressView{
		Assignment: assignment,
		Progress:   ComputeProgress(stages, submissions, grades),
	}, nil
}

// Grade appends a new grade row for a submission; earlier grades stay
// untouched and the newest by graded_at wins.
func (s *SubmissionService) Grade(ctx context.Context, auth ctxdata.Auth, input GradeInput) (*domain.Grade, error) {
	if err := s.gate.Require(auth, OpGrade); err != nil {
		return nil, err
	}

	submission, err := s.submissions.GetByID(ctx, input.SubmissionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}

	assignment, err := s.assignments.GetByID(ctx, submission.AssignmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}

	if err := s.requireManage(ctx, auth, assignment); err != nil {
		return nil, err
	}

	grade := &domain.Grade{
		SubmissionID:   input.SubmissionID,
		Score:          input.Score,
		ScoreBreakdown: input.ScoreBreakdown,
		Feedback:       input.Feedback,
		GradedBy:       auth.UserID,
	}
	if err := s.submissions.CreateGrade(ctx, grade); err != nil {
		return nil, err
	}

	s.emit(ctx, topicGradeEvents, map[string]interface{}{
		"grade_id":      grade.ID,
		"submission_id": grade.SubmissionID,
		"assignment_id": submission.AssignmentID,
		"student_id":    submission.StudentID,
		"graded_by":     grade.GradedBy,
		"score":         grade.Score,
	})

	return grade, nil
}

// ListLatest is the teacher grading queue for one assignment.
func (s *SubmissionService) ListLatest(ctx context.Context, auth ctxdata.Auth, assignmentID uuid.UUID, filter string, page, limit int, skipCount bool) (*SubmissionListResult, error) {
	if err := s.gate.Require(auth, OpListSubmissions); err != nil {
		return nil, err
	}
	if page <= 0 || limit <= 0 {
		return nil, fmt.Errorf("%w: invalid pagination parameters", ErrValidation)
	}

	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}

	if err := s.requireManage(ctx, auth, assignment); err != nil {
		return nil, err
	}

	items, err := s.submissions.ListLatest(ctx, assignmentID, filter, limit, page)
	if err != nil {
		return nil, err
	}

	result := &SubmissionListResult{Items: items, Page: page, Limit: limit}

	if !skipCount {
		count, err := s.submissions.CountLatest(ctx, assignmentID, filter)
		if err != nil {
			return nil, err
		}
		result.Count = &count
	}

	return result, nil
}

func (s *SubmissionService) requireManage(ctx context.Context, auth ctxdata.Auth, assignment *domain.Assignment) error {
	if auth.Role == domain.RoleAdmin || assignment.CreatedBy == auth.UserID {
		return nil
	}

	grants, err := s.enrollment.ListGrants(ctx, assignment.ID)
	if err != nil {
		return err
	}
	for _, grant := range grants {
		if grant.TeacherID == auth.UserID {
			return nil
		}
	}
	return ErrPermissionDenied
}

// Event emission is best effort: a broker outage must not fail the write.
func (s *SubmissionService) emit(ctx context.Context, topic string, message map[string]interface{}) {
	if s.producer == nil {
		return
	}
	if err := s.producer.Send(ctx, topic, message); err != nil {
		s.log.Errorf("Failed to send %s event: %v", topic, err)
	}
}
