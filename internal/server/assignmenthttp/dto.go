package assignmenthttp

import (
	"time"

	"github.com/google/uuid"

	"assignment_service/internal/domain"
	"assignment_service/internal/service"
)

type toolPayload struct {
	ID            *uuid.UUID `json:"id,omitempty"`
	Key           string     `json:"key" validate:"required"`
	Enabled       bool       `json:"enabled"`
	ChatbotPrompt *string    `json:"chatbot_prompt,omitempty"`
}

type stagePayload struct {
	ID         *uuid.UUID    `json:"id,omitempty"`
	StageType  string        `json:"stage_type" validate:"required"`
	OrderIndex int           `json:"order_index"`
	Enabled    bool          `json:"enabled"`
	Tools      []toolPayload `json:"tools" validate:"required"`
}

type assignmentPayload struct {
	ID                 *uuid.UUID     `json:"id,omitempty"`
	Title              string         `json:"title" validate:"required"`
	Description        *string        `json:"description" validate:"required"`
	Type               *string        `json:"type,omitempty"`
	Instructions       *string        `json:"instructions,omitempty"`
	Requirements       *string        `json:"requirements,omitempty"`
	Rubrics            *string        `json:"rubrics,omitempty"`
	Tips               *string        `json:"tips,omitempty"`
	MinWordCount       *int           `json:"min_word_count,omitempty"`
	MaxWordCount       *int           `json:"max_word_count,omitempty"`
	StartDate          *time.Time     `json:"start_date,omitempty"`
	DueDate            *time.Time     `json:"due_date" validate:"required"`
	Stages             []stagePayload `json:"stages" validate:"required,min=1,dive"`
	EnrolledClassIDs   []uuid.UUID    `json:"enrolled_class_ids"`
	EnrolledStudentIDs []uuid.UUID    `json:"enrolled_student_ids"`
}

type assignmentRequest struct {
	Assignment *assignmentPayload `json:"assignment" validate:"required"`
}

type submitRequest struct {
	Submission *submissionPayload `json:"submission" validate:"required"`
}

type submissionPayload struct {
	AssignmentID uuid.UUID `json:"assignment_id" validate:"required"`
	StageID      uuid.UUID `json:"stage_id" validate:"required"`
	Content      string    `json:"content" validate:"required"`
	IsFinal      bool      `json:"is_final"`
	IsManual     bool      `json:"is_manual"`
}

type gradeRequest struct {
	Grade *gradePayload `json:"grade" validate:"required"`
}

type gradePayload struct {
	SubmissionID   uuid.UUID `json:"submission_id" validate:"required"`
	Score          float64   `json:"score"`
	ScoreBreakdown *string   `json:"score_breakdown,omitempty"`
	Feedback       *string   `json:"feedback,omitempty"`
}

func (p *assignmentPayload) toInput() service.AssignmentInput {
	input := service.AssignmentInput{
		Title:              p.Title,
		Description:        p.Description,
		Type:               p.Type,
		Instructions:       p.Instructions,
		Requirements:       p.Requirements,
		Rubrics:            p.Rubrics,
		Tips:               p.Tips,
		MinWordCount:       p.MinWordCount,
		MaxWordCount:       p.MaxWordCount,
		StartDate:          p.StartDate,
		DueDate:            p.DueDate,
		EnrolledClassIDs:   p.EnrolledClassIDs,
		EnrolledStudentIDs: p.EnrolledStudentIDs,
	}
	for _, st := range p.Stages {
		stage := service.StageInput{
			StageType:  domain.StageType(st.StageType),
			OrderIndex: st.OrderIndex,
			Enabled:    st.Enabled,
			Tools:      make([]service.ToolInput, 0, len(st.Tools)),
		}
		if st.ID != nil {
			stage.ID = *st.ID
		}
		for _, t := range st.Tools {
			tool := service.ToolInput{
				Key:           t.Key,
				Enabled:       t.Enabled,
				ChatbotPrompt: t.ChatbotPrompt,
			}
			if t.ID != nil {
				tool.ID = *t.ID
			}
			stage.Tools = append(stage.Tools, tool)
		}
		input.Stages = append(input.Stages, stage)
	}
	return input
}

type toolResponse struct {
	ID            uuid.UUID `json:"id"`
	Key           string    `json:"key"`
	Enabled       bool      `json:"enabled"`
	ChatbotPrompt *string   `json:"chatbot_prompt,omitempty"`
}

type stageResponse struct {
	ID         uuid.UUID      `json:"id"`
	StageType  string         `json:"stage_type"`
	OrderIndex int            `json:"order_index"`
	Enabled    bool           `json:"enabled"`
	Tools      []toolResponse `json:"tools"`
}

type classResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
}

type userResponse struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	FirstName *string   `json:"first_name,omitempty"`
	LastName  *string   `json:"last_name,omitempty"`
}

type assignmentResponse struct {
	ID           uuid.UUID  `json:"id"`
	Title        string     `json:"title"`
	Description  *string    `json:"description,omitempty"`
	Type         *string    `json:"type,omitempty"`
	Instructions *string    `json:"instructions,omitempty"`
	Requirements *string    `json:"requirements,omitempty"`
	Rubrics      *string    `json:"rubrics,omitempty"`
	Tips         *string    `json:"tips,omitempty"`
	MinWordCount *int       `json:"min_word_count,omitempty"`
	MaxWordCount *int       `json:"max_word_count,omitempty"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	CreatedBy    uuid.UUID  `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
	EditedAt     time.Time  `json:"edited_at"`
}

type assignmentViewResponse struct {
	assignmentResponse
	Stages           []stageResponse `json:"stages"`
	EnrolledClasses  []classResponse `json:"enrolled_classes"`
	EnrolledStudents []userResponse  `json:"enrolled_students"`
}

type listingItemResponse struct {
	assignmentResponse
	Status string `json:"status"`
}

type listingResponse struct {
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
	Value []listingItemResponse `json:"value"`
	Count *int                  `json:"count,omitempty"`
}

type submissionResponse struct {
	ID           uuid.UUID `json:"id"`
	AssignmentID uuid.UUID `json:"assignment_id"`
	StageID      uuid.UUID `json:"stage_id"`
	StudentID    uuid.UUID `json:"student_id"`
	Content      string    `json:"content"`
	IsFinal      bool      `json:"is_final"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

type gradeResponse struct {
	ID             uuid.UUID `json:"id"`
	SubmissionID   uuid.UUID `json:"submission_id"`
	Score          float64   `json:"score"`
	ScoreBreakdown *string   `json:"score_breakdown,omitempty"`
	Feedback       *string   `json:"feedback,omitempty"`
	GradedBy       uuid.UUID `json:"graded_by"`
	GradedAt       time.Time `json:"graded_at"`
}

type progressStageResponse struct {
	stageResponse
	Submission *submissionResponse `json:"submission,omitempty"`
	Grade      *gradeResponse      `json:"grade,omitempty"`
}

type progressResponse struct {
	Assignment   assignmentResponse      `json:"assignment"`
	Stages       []progressStageResponse `json:"stages"`
	CurrentStage int                     `json:"current_stage"`
	IsFinished   bool                    `json:"is_finished"`
}

type submissionListingItemResponse struct {
	ID           uuid.UUID `json:"id"`
	AssignmentID uuid.UUID `json:"assignment_id"`
	SubmittedAt  time.Time `json:"submitted_at"`
	IsFinal      bool      `json:"is_final"`
	Score        *float64  `json:"score,omitempty"`
	Stage        struct {
		ID        uuid.UUID `json:"id"`
		StageType string    `json:"stage_type"`
	} `json:"stage"`
	Student userResponse `json:"student"`
}

type submissionListingResponse struct {
	Page  int                             `json:"page"`
	Limit int                             `json:"limit"`
	Value []submissionListingItemResponse `json:"value"`
	Count *int                            `json:"count,omitempty"`
}

func toAssignmentResponse(a domain.Assignment) assignmentResponse {
	return assignmentResponse{
		ID:           a.ID,
		Title:        a.Title,
		Description:  a.Description,
		Type:         a.Type,
		Instructions: a.Instructions,
		Requirements: a.Requirements,
		Rubrics:      a.Rubrics,
		Tips:         a.Tips,
		MinWordCount: a.MinWordCount,
		MaxWordCount: a.MaxWordCount,
		StartDate:    a.StartDate,
		DueDate:      a.DueDate,
		CreatedBy:    a.CreatedBy,
		CreatedAt:    a.CreatedAt,
		EditedAt:     a.EditedAt,
	}
}

func toStageResponse(s domain.StageWithTools) stageResponse {
	resp := stageResponse{
		ID:         s.ID,
		StageType:  string(s.StageType),
		OrderIndex: s.OrderIndex,
		Enabled:    s.Enabled,
		Tools:      make([]toolResponse, 0, len(s.Tools)),
	}
	for _, t := range s.Tools {
		resp.Tools = append(resp.Tools, toolResponse{
			ID:            t.ID,
			Key:           t.Key,
			Enabled:       t.Enabled,
			ChatbotPrompt: t.ChatbotPrompt,
		})
	}
	return resp
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

func toViewResponse(view *domain.AssignmentView) assignmentViewResponse {
	resp := assignmentViewResponse{
		assignmentResponse: toAssignmentResponse(view.Assignment),
		Stages:             make([]stageResponse, 0, len(view.Stages)),
		EnrolledClasses:    make([]classResponse, 0, len(view.EnrolledClasses)),
		EnrolledStudents:   make([]userResponse, 0, len(view.EnrolledStudents)),
	}
	for _, s := range view.Stages {
		resp.Stages = append(resp.Stages, toStageResponse(s))
	}
	for _, c := range view.EnrolledClasses {
		resp.EnrolledClasses = append(resp.EnrolledClasses, classResponse{ID: c.ID, Name: c.Name, Description: c.Description})
	}
	for _, u := range view.EnrolledStudents {
		resp.EnrolledStudents = append(resp.EnrolledStudents, toUserResponse(u))
	}
	return resp
}

func toSubmissionResponse(s domain.Submission) submissionResponse {
	return submissionResponse{
		ID:           s.ID,
		AssignmentID: s.AssignmentID,
		StageID:      s.StageID,
		StudentID:    s.StudentID,
		Content:      s.Content,
		IsFinal:      s.IsFinal,
		SubmittedAt:  s.SubmittedAt,
	}
}

func toGradeResponse(g domain.Grade) gradeResponse {
	return gradeResponse{
		ID:             g.ID,
		SubmissionID:   g.SubmissionID,
		Score:          g.Score,
		ScoreBreakdown: g.ScoreBreakdown,
		Feedback:       g.Feedback,
		GradedBy:       g.GradedBy,
		GradedAt:       g.GradedAt,
	}
}

func toProgressResponse(view *service.ProgressView) progressResponse {
	resp := progressResponse{
		Assignment:   toAssignmentResponse(*view.Assignment),
		Stages:       make([]progressStageResponse, 0, len(view.Progress.Stages)),
		CurrentStage: view.Progress.CurrentStageIndex,
		IsFinished:   view.Progress.IsFinished,
	}
	for _, sp := range view.Progress.Stages {
		item := progressStageResponse{stageResponse: toStageResponse(sp.Stage)}
		if sp.Submission != nil {
			s := toSubmissionResponse(*sp.Submission)
			item.Submission = &s
		}
		if sp.Grade != nil {
			g := toGradeResponse(*sp.Grade)
			item.Grade = &g
		}
		resp.Stages = append(resp.Stages, item)
	}
	return resp
}

func toSubmissionListingResponse(result *service.SubmissionListResult) submissionListingResponse {
	resp := submissionListingResponse{
		Page:  result.Page,
		Limit: result.Limit,
		Value: make([]submissionListingItemResponse, 0, len(result.Items)),
		Count: result.Count,
	}
	for _, item := range result.Items {
		row := submissionListingItemResponse{
			ID:           item.ID,
			AssignmentID: item.AssignmentID,
			SubmittedAt:  item.SubmittedAt,
			IsFinal:      item.IsFinal,
			Score:        item.Score,
			Student:      toUserResponse(item.Student),
		}
		row.Stage.ID = item.StageID
		row.Stage.StageType = string(item.StageType)
		resp.Value = append(resp.Value, row)
	}
	return resp
}
