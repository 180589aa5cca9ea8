package service

import (
	"github.com/google/uuid"

	"assignment_service/internal/ctxdata"
	"assignment_service/internal/domain"
)

type Operation string

const (
	OpCreateAssignment Operation = "assignment.create"
	OpUpdateAssignment Operation = "assignment.update"
	OpViewAssignment   Operation = "assignment.view"
	OpViewProgress     Operation = "assignment.view-progress"
	OpListAssignments  Operation = "assignment.listing"
	OpSubmit           Operation = "assignment.submit"
	OpGrade            Operation = "assignment.grade"
	OpListSubmissions  Operation = "assignment.submission-listing"
)

// permissions is the per-operation role allow-list. Row-level ownership
// checks stay in the services; this gate only answers "may this role
// ever perform this operation".
var permissions = map[Operation][]domain.Role{
	OpCreateAssignment: {domain.RoleTeacher, domain.RoleAdmin},
	OpUpdateAssignment: {domain.RoleTeacher, domain.RoleAdmin},
	OpViewAssignment:   {domain.RoleStudent, domain.RoleTeacher, domain.RoleAdmin},
	OpViewProgress:     {domain.RoleStudent, domain.RoleTeacher, domain.RoleAdmin},
	OpListAssignments:  {domain.RoleStudent, domain.RoleTeacher, domain.RoleAdmin},
	OpSubmit:           {domain.RoleStudent},
	OpGrade:            {domain.RoleTeacher, domain.RoleAdmin},
	OpListSubmissions:  {domain.RoleTeacher, domain.RoleAdmin},
}

type AccessGate struct{}

func NewAccessGate() *AccessGate {
	return &AccessGate{}
}

func (g *AccessGate) Require(auth ctxdata.Auth, op Operation) error {
	if auth.UserID == uuid.Nil {
		return ErrUnauthenticated
	}

	for _, role := range permissions[op] {
		if auth.Role == role {
			return nil
		}
	}
	return ErrPermissionDenied
}
