package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"assignment_service/internal/ctxdata"
	"assignment_service/internal/domain"
	"assignment_service/internal/repository"
	"assignment_service/pkg/logger"
)

const viewCacheTTL = 5 * time.Minute

type ToolInput struct {
	ID            uuid.UUID
	Key           string
	Enabled       bool
	ChatbotPrompt *string
}

type StageInput struct {
	ID         uuid.UUID
	StageType  domain.StageType
	OrderIndex int
	Enabled    bool
	Tools      []ToolInput
}

type AssignmentInput struct {
	Title              string
	Description        *string
	Type               *string
	Instructions       *string
	Requirements       *string
	Rubrics            *string
	Tips               *string
	MinWordCount       *int
	MaxWordCount       *int
	StartDate          *time.Time
	DueDate            *time.Time
	Stages             []StageInput
	EnrolledClassIDs   []uuid.UUID
	EnrolledStudentIDs []uuid.UUID
}

type ListParams struct {
	Filter    string
	Sort      string
	Order     domain.SortOrder
	Page      int
	Limit     int
	SkipCount bool
}

type ListResult struct {
	Items []domain.AssignmentListItem
	Page  int
	Limit int
	Count *int
}

// AssignmentService orchestrates assignment create/update as one logical
// transaction: field writes, stage/tool upserts and the enrollment diff
// either all commit or none do.
type AssignmentService struct {
	tx          repository.TxRunner
	assignments AssignmentRepository
	stages      StageRepository
	enrollment  EnrollmentRepository
	sync        *EnrollmentSynchronizer
	gate        *AccessGate
	cache       Cache
	log         *logger.Logger
}

func NewAssignmentService(
	tx repository.TxRunner,
	assignments AssignmentRepository,
	stages StageRepository,
	enrollment EnrollmentRepository,
	sync *EnrollmentSynchronizer,
	gate *AccessGate,
	cache Cache,
	log *logger.Logger,
) *AssignmentService {
	return &AssignmentService{
		tx:          tx,
		assignments: assignments,
		stages:      stages,
		enrollment:  enrollment,
		sync:        sync,
		gate:        gate,
		cache:       cache,
		log:         log,
	}
}

func (s *AssignmentService) Create(ctx context.Context, auth ctxdata.Auth, input AssignmentInput) (*domain.AssignmentView, error) {
	if err := s.gate.Require(auth, OpCreateAssignment); err != nil {
		return nil, err
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	diff, err := s.sync.Reconcile(ctx, uuid.Nil, nil, input.EnrolledClassIDs, input.EnrolledStudentIDs)
	if err != nil {
		return nil, err
	}

	assignment := &domain.Assignment{
		Title:        input.Title,
		Description:  input.Description,
		Type:         input.Type,
		Instructions: input.Instructions,
		Requirements: input.Requirements,
		Rubrics:      input.Rubrics,
		Tips:         input.Tips,
		MinWordCount: input.MinWordCount,
		MaxWordCount: input.MaxWordCount,
		StartDate:    input.StartDate,
		DueDate:      input.DueDate,
		CreatedBy:    auth.UserID,
	}

	err = s.tx.WithinTx(ctx, func(q repository.Querier) error {
		if err := s.assignments.Create(ctx, q, assignment); err != nil {
			return err
		}
		if err := s.upsertStages(ctx, q, assignment.ID, input.Stages); err != nil {
			return err
		}
		return s.enrollment.ApplyDiff(ctx, q, rebindDiff(diff, assignment.ID))
	})
	if err != nil {
		return nil, err
	}

	return s.hydrate(ctx, assignment)
}

func (s *AssignmentService) Update(ctx context.Context, auth ctxdata.Auth, id uuid.UUID, input AssignmentInput) (*domain.AssignmentView, error) {
	if err := s.gate.Require(auth, OpUpdateAssignment); err != nil {
		return nil, err
	}

	assignment, err := s.assignments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}

	if err := s.requireManage(ctx, auth, assignment); err != nil {
		return nil, err
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	currentTargets, err := s.enrollment.ListTargets(ctx, id)
	if err != nil {
		return nil, err
	}

	diff, err := s.sync.Reconcile(ctx, id, currentTargets, input.EnrolledClassIDs, input.EnrolledStudentIDs)
	if err != nil {
		return nil, err
	}

	assignment.Title = input.Title
	assignment.Description = input.Description
	assignment.Type = input.Type
	assignment.Instructions = input.Instructions
	assignment.Requirements = input.Requirements
	assignment.Rubrics = input.Rubrics
	assignment.Tips = input.Tips
	assignment.MinWordCount = input.MinWordCount
	assignment.MaxWordCount = input.MaxWordCount
	assignment.StartDate = input.StartDate
	assignment.DueDate = input.DueDate

	err = s.tx.WithinTx(ctx, func(q repository.Querier) error {
		if err := s.assignments.Update(ctx, q, assignment); err != nil {
			return err
		}
		if err := s.upsertStages(ctx, q, id, input.Stages); err != nil {
			return err
		}
		return s.enrollment.ApplyDiff(ctx, q, diff)
	})
	if err != nil {
		return nil, err
	}

	s.cache.Delete(ctx, viewCacheKey(id))

	return s.hydrate(ctx, assignment)
}

func (s *AssignmentService) View(ctx context.Context, auth ctxdata.Auth, id uuid.UUID) (*domain.AssignmentView, error) {
	if err := s.gate.Require(auth, OpViewAssignment); err != nil {
		return nil, err
	}

	assignment, err := s.assignments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}

	if auth.Role == domain.RoleStudent {
		enrolled, err := s.enrollment.IsStudentEnrolled(ctx, id, auth.UserID)
		if err != nil {
			return nil, err
		}
		if !enrolled {
			return nil, ErrPermissionDenied
		}
	} else if err := s.requireManage(ctx, auth, assignment); err != nil {
		return nil, err
	}

	if data, ok := s.cache.Get(ctx, viewCacheKey(id)); ok {
		var view domain.AssignmentView
		if err := json.Unmarshal(data, &view); err == nil {
			return &view, nil
		}
	}

	view, err := s.hydrate(ctx, assignment)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(view); err == nil {
		s.cache.Set(ctx, viewCacheKey(id), data, viewCacheTTL)
	}

	return view, nil
}

func (s *AssignmentService) List(ctx context.Context, auth ctxdata.Auth, params ListParams) (*ListResult, error) {
	if err := s.gate.Require(auth, OpListAssignments); err != nil {
		return nil, err
	}

	query := repository.ListQuery{
		ViewerID:   auth.UserID,
		ViewerRole: auth.Role,
		Filter:     params.Filter,
		Sort:       params.Sort,
		Order:      params.Order,
		Page:       params.Page,
		Limit:      params.Limit,
	}
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	assignments, err := s.assignments.List(ctx, query)
	if err != nil {
		return nil, err
	}

	counts := make(map[uuid.UUID]domain.StageCounts)
	teacherViewing := auth.Role != domain.RoleStudent
	if !teacherViewing && len(assignments) > 0 {
		ids := make([]uuid.UUID, 0, len(assignments))
		for _, a := range assignments {
			ids = append(ids, a.ID)
		}
		counts, err = s.assignments.CompletionCounts(ctx, ids, auth.UserID)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now()
	items := make([]domain.AssignmentListItem, 0, len(assignments))
	for _, a := range assignments {
		items = append(items, domain.AssignmentListItem{
			Assignment: *a,
			Status:     ClassifyStatus(now, a.StartDate, a.DueDate, counts[a.ID], teacherViewing),
		})
	}

	result := &ListResult{Items: items, Page: params.Page, Limit: params.Limit}

	if !params.SkipCount {
		count, err := s.assignments.Count(ctx, query)
		if err != nil {
			return nil, err
		}
		result.Count = &count
	}

	return result, nil
}

func (s *AssignmentService) upsertStages(ctx context.Context, q repository.Querier, assignmentID uuid.UUID, inputs []StageInput) error {
	for _, in := range inputs {
		stage := &domain.Stage{
			ID:           in.ID,
			AssignmentID: assignmentID,
			StageType:    in.StageType,
			OrderIndex:   in.OrderIndex,
			Enabled:      in.Enabled,
		}
		if err := s.stages.Upsert(ctx, q, stage); err != nil {
			return err
		}

		for _, toolIn := range in.Tools {
			tool := &domain.Tool{
				ID:            toolIn.ID,
				AssignmentID:  assignmentID,
				StageID:       stage.ID,
				Key:           toolIn.Key,
				Enabled:       toolIn.Enabled,
				ChatbotPrompt: toolIn.ChatbotPrompt,
			}
			if err := s.stages.UpsertTool(ctx, q, tool); err != nil {
				return err
			}
		}
	}
	return nil
}

// requireManage enforces row-level access for teachers: the creator or a
// granted teacher of the assignment. Admins pass unconditionally.
func (s *AssignmentService) requireManage(ctx context.Context, auth ctxdata.Auth, assignment *domain.Assignment) error {
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

func (s *AssignmentService) hydrate(ctx context.Context, assignment *domain.Assignment) (*domain.AssignmentView, error) {
	stages, err := s.stages.ListByAssignment(ctx, assignment.ID)
	if err != nil {
		return nil, err
	}

	targets, err := s.enrollment.ListTargets(ctx, assignment.ID)
	if err != nil {
		return nil, err
	}

	var classIDs, studentIDs []uuid.UUID
	for _, target := range targets {
		switch target.Kind {
		case domain.TargetKindClass:
			classIDs = append(classIDs, target.ClassID)
		case domain.TargetKindStudent:
			studentIDs = append(studentIDs, target.StudentID)
		}
	}

	classes, err := s.enrollment.ClassesByIDs(ctx, classIDs)
	if err != nil {
		return nil, err
	}
	students, err := s.enrollment.UsersByIDs(ctx, studentIDs)
	if err != nil {
		return nil, err
	}

	return &domain.AssignmentView{
		Assignment:       *assignment,
		Stages:           stages,
		EnrolledClasses:  classes,
		EnrolledStudents: students,
	}, nil
}

func validateInput(input AssignmentInput) error {
	if input.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if input.Description == nil || *input.Description == "" {
		return fmt.Errorf("%w: description is required", ErrValidation)
	}
	if input.DueDate == nil {
		return fmt.Errorf("%w: due date is required", ErrValidation)
	}
	if len(input.Stages) == 0 {
		return fmt.Errorf("%w: at least one stage is required", ErrValidation)
	}
	for _, stage := range input.Stages {
		if stage.StageType == "" {
			return fmt.Errorf("%w: every stage needs a type", ErrValidation)
		}
		if stage.Tools == nil {
			return fmt.Errorf("%w: every stage needs a tool list", ErrValidation)
		}
	}
	return nil
}

// rebindDiff stamps the assignment id generated inside the transaction
// onto a diff computed before the assignment row existed.
func rebindDiff(diff domain.EnrollmentDiff, assignmentID uuid.UUID) domain.EnrollmentDiff {
	for i := range diff.TargetsToAdd {
		diff.TargetsToAdd[i].AssignmentID = assignmentID
	}
	for i := range diff.GrantsToAdd {
		diff.GrantsToAdd[i].AssignmentID = assignmentID
	}
	return diff
}

func viewCacheKey(id uuid.UUID) string {
	return "assignment:view:" + id.String()
}

// DueSoonReminders powers the background worker: one message per
// unfinished enrolled student of every assignment inside the window.
func (s *AssignmentService) DueSoonReminders(ctx context.Context, within time.Duration, producer EventProducer) {
	assignments, err := s.assignments.FindDueSoon(ctx, within)
	if err != nil {
		s.log.Errorf("Failed to get assignments due soon: %v", err)
		return
	}

	for _, assignment := range assignments {
		studentIDs, err := s.enrollment.UnfinishedStudentIDs(ctx, assignment.ID)
		if err != nil {
			s.log.Errorf("Failed to get unfinished students for assignment %s: %v", assignment.ID, err)
			continue
		}

		for _, studentID := range studentIDs {
			message := map[string]interface{}{
				"assignment_id": assignment.ID,
				"student_id":    studentID,
				"title":         assignment.Title,
				"due_date":      assignment.DueDate,
			}
			if err := producer.Send(ctx, "assignment-reminders", message); err != nil {
				s.log.Errorf("Failed to send reminder for assignment %s: %v", assignment.ID, err)
				continue
			}
		}

		s.log.Info("Sent due-soon reminders",
			zap.String("assignment_id", assignment.ID.String()),
			zap.Int("students", len(studentIDs)),
		)
	}
}
