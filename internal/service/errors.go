package service

import "errors"

var (
	ErrValidation         = errors.New("validation error")
	ErrInvalidReference   = errors.New("invalid reference")
	ErrEmptyEnrollment    = errors.New("assignment must target at least one class or student")
	ErrUnauthenticated    = errors.New("user not authenticated")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrStageNotFound      = errors.New("stage not found")
	ErrSubmissionNotFound = errors.New("submission not found")
)
