package assignmenthttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"assignment_service/internal/ctxdata"
	"assignment_service/internal/domain"
	"assignment_service/internal/service"
	"assignment_service/pkg/logger"
)

const (
	codeValidation      = "VALIDATION_ERROR"
	codeUnauthenticated = "UNAUTHENTICATED"
	codeForbidden       = "FORBIDDEN"
	codeNotFound        = "NOT_FOUND"
	codeInternal        = "INTERNAL_ERROR"
)

type AssignmentService interface {
	Create(ctx context.Context, auth ctxdata.Auth, input service.AssignmentInput) (*domain.AssignmentView, error)
	Update(ctx context.Context, auth ctxdata.Auth, id uuid.UUID, input service.AssignmentInput) (*domain.AssignmentView, error)
	View(ctx context.Context, auth ctxdata.Auth, id uuid.UUID) (*domain.AssignmentView, error)
	List(ctx context.Context, auth ctxdata.Auth, params service.ListParams) (*service.ListResult, error)
}

type SubmissionService interface {
	Submit(ctx context.Context, auth ctxdata.Auth, input service.SubmitInput) (*domain.Submission, error)
	Progress(ctx context.Context, auth ctxdata.Auth, assignmentID, studentID uuid.UUID) (*service.ProgressView, error)
	Grade(ctx context.Context, auth ctxdata.Auth, input service.GradeInput) (*domain.Grade, error)
	ListLatest(ctx context.Context, auth ctxdata.Auth, assignmentID uuid.UUID, filter string, page, limit int, skipCount bool) (*service.SubmissionListResult, error)
}

type Handler struct {
	assignments AssignmentService
	submissions SubmissionService
	validate    *validator.Validate
	log         *logger.Logger
}

func NewHandler(assignments AssignmentService, submissions SubmissionService, log *logger.Logger) *Handler {
	return &Handler{
		assignments: assignments,
		submissions: submissions,
		validate:    validator.New(),
		log:         log,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.With(authMiddleware).Group(func(r chi.Router) {
		r.Post("/assignment/create", h.CreateAssignment)
		r.Post("/assignment/update", h.UpdateAssignment)
		r.Get("/assignment/view", h.ViewAssignment)
		r.Get("/assignment/view-progress", h.ViewProgress)
		r.Get("/assignment/listing", h.Listing)
		r.Post("/assignment/submit", h.Submit)
		r.Post("/assignment/grade", h.Grade)
		r.Get("/assignment/submission-listing", h.SubmissionListing)
	})
}

func (h *Handler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	auth, ok := ctxdata.GetAuth(r.Context())
	if !ok {
		writeErrorJSON(w, http.StatusUnauthorized, codeUnauthenticated, "user not authenticated")
		return
	}

	var req assignmentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	view, err := h.assignments.Create(r.Context(), auth, req.Assignment.toInput())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toViewResponse(view))
}

func (h *Handler) UpdateAssignment(w http.ResponseWriter, r *http.Request) {
	auth, ok := ctxdata.GetAuth(r.Context())
	if !ok {
		writeErrorJSON(w, http.StatusUnauthorized, codeUnauthenticated, "user not authenticated")
		return
	}

	var req assignmentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if req.Assignment.ID == nil {
		writeErrorJSON(w, http.StatusBadRequest, codeValidation, "assignment id is required")
		return
	}

	view, err := h.assignments.Update(r.Context(), auth, *req.Assignment.ID, req.Assignment.toInput())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toViewResponse(view))
}

func (h *Handler) ViewAssignment(w http.ResponseWriter, r *http.Request) {
	auth, ok := ctxdata.GetAuth(r.Context())
	if !ok {
		writeErrorJSON(w, http.StatusUnauthorized, codeUnauthenticated, "user not authenticated")
		return
	}

	id, err := parseQueryUUID(r, "id")
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, codeValidation, "invalid assignment id")
		return
	}

	view, err := h.assignments.View(r.Context(), auth, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toViewResponse(view))
}

func (h *Handler) ViewProgress(w http.ResponseWriter, r *http.Request) {
	auth, ok := ctxdata.GetAuth(r.Context())
	if !ok {
		writeErrorJSON(w, http.StatusUnauthorized, codeUnauthenticated, "user not authenticated")
		return
	}

	id, err := parseQueryUUID(r, "id")
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, codeValidation, "invalid assignment id")
		return
	}

	studentID := uuid.Nil
	if raw := r.URL.Query().Get("student_id"); raw != "" {
		studentID, err = uuid.Parse(raw)
		if err != nil {
			writeErrorJSON(w, http.StatusBadRequest, codeValidation, "invalid student id")
			return
		}
	}

	view, err := h.submissions.Progress(r.Context(), auth, id, studentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toProgressResponse(view))
}

func (h *Handler) Listing(w http.ResponseWriter, r *http.Request) {
	auth, ok := ctxdata.GetAuth(r.Context())
	if !ok {
		writeErrorJSON(w, http.StatusUnauthorized, codeUnauthenticated, "user not authenticated")
		return
	}

	q := r.URL.Query()
	page, limit, err := parsePagination(r)
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, codeValidation, "invalid pagination parameters")
		return
	}

	params := service.ListParams{
		Filter:    q.Get("filter"),
		Sort:      q.Get("sort"),
		Order:     domain.ToSortOrder(q.Get("sort_order")),
		Page:      page,
		Limit:     limit,
		SkipCount: q.Get("skip_count") == "1",
	}

	result, err := h.assignments.List(r.Context(), auth, params)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := listingResponse{
		Page:  result.Page,
		Limit: result.Limit,
		Value: make([]listingItemResponse, 0, len(result.Items)),
		Count: result.Count,
	}
	for _, item := range result.Items {
		resp.Value = append(resp.Value, listingItemResponse{
			assignmentResponse: toAssignmentResponse(item.Assignment),
			Status:             string(item.Status),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	auth, ok := ctxdata.GetAuth(r.Context())
	if !ok {
		writeErrorJSON(w, http.StatusUnauthorized, codeUnauthenticated, "user not authenticated")
		return
	}

	var req submitRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	submission, err := h.submissions.Submit(r.Context(), auth, service.SubmitInput{
		AssignmentID: req.Submission.AssignmentID,
		StageID:      req.Submission.StageID,
		Content:      req.Submission.Content,
		IsFinal:      req.Submission.IsFinal,
		IsManual:     req.Submission.IsManual,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSubmissionResponse(*submission))
}

func (h *Handler) Grade(w http.ResponseWriter, r *http.Request) {
	auth, ok := ctxdata.GetAuth(r.Context())
	if !ok {
		writeErrorJSON(w, http.StatusUnauthorized, codeUnauthenticated, "user not authenticated")
		return
	}

	var req gradeRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	grade, err := h.submissions.Grade(r.Context(), auth, service.GradeInput{
		SubmissionID:   req.Grade.SubmissionID,
		Score:          req.Grade.Score,
		ScoreBreakdown: req.Grade.ScoreBreakdown,
		Feedback:       req.Grade.Feedback,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toGradeResponse(*grade))
}

func (h *Handler) SubmissionListing(w http.ResponseWriter, r *http.Request) {
	auth, ok := ctxdata.GetAuth(r.Context())
	if !ok {
		writeErrorJSON(w, http.StatusUnauthorized, codeUnauthenticated, "user not authenticated")
		return
	}

	assignmentID, err := parseQueryUUID(r, "assignment_id")
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, codeValidation, "invalid assignment id")
		return
	}

	page, limit, err := parsePagination(r)
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, codeValidation, "invalid pagination parameters")
		return
	}

	q := r.URL.Query()
	result, err := h.submissions.ListLatest(r.Context(), auth, assignmentID, q.Get("filter"), page, limit, q.Get("skip_count") == "1")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSubmissionListingResponse(result))
}

func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, codeValidation, err.Error())
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := mapErr(err)
	if status == http.StatusInternalServerError {
		traceID, _ := ctxdata.GetTraceID(r.Context())
		h.log.Error("request failed",
			zap.String("trace_id", traceID),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		// internal detail stays out of the response body
		writeErrorJSON(w, status, code, "internal server error")
		return
	}
	writeErrorJSON(w, status, code, err.Error())
}

func mapErr(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrInvalidReference),
		errors.Is(err, service.ErrEmptyEnrollment):
		return http.StatusBadRequest, codeValidation
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized, codeUnauthenticated
	case errors.Is(err, service.ErrPermissionDenied):
		return http.StatusForbidden, codeForbidden
	case errors.Is(err, service.ErrAssignmentNotFound),
		errors.Is(err, service.ErrStageNotFound),
		errors.Is(err, service.ErrSubmissionNotFound):
		return http.StatusNotFound, codeNotFound
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorResponse struct {
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

func writeErrorJSON(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{ErrorCode: code, ErrorMessage: message})
}

func parseQueryUUID(r *http.Request, key string) (uuid.UUID, error) {
	return uuid.Parse(r.URL.Query().Get(key))
}

func parsePagination(r *http.Request) (page, limit int, err error) {
	page, err = parseQueryInt(r, "page", 1)
	if err != nil || page <= 0 {
		return 0, 0, errors.New("invalid page")
	}
	limit, err = parseQueryInt(r, "limit", 10)
	if err != nil || limit <= 0 {
		return 0, 0, errors.New("invalid limit")
	}
	return page, limit, nil
}

func parseQueryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
