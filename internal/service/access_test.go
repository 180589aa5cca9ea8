package service

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"assignment_service/internal/ctxdata"
	"assignment_service/internal/domain"
)

func TestAccessGate(t *testing.T) {
	gate := NewAccessGate()

	t.Run("Unauthenticated", func(t *testing.T) {
		err := gate.Require(ctxdata.Auth{}, OpViewAssignment)
		assert.True(t, errors.Is(err, ErrUnauthenticated))
	})

	t.Run("RoleMatrix", func(t *testing.T) {
		cases := []struct {
			op      Operation
			role    domain.Role
			allowed bool
		}{
			{OpCreateAssignment, domain.RoleTeacher, true},
			{OpCreateAssignment, domain.RoleAdmin, true},
			{OpCreateAssignment, domain.RoleStudent, false},
			{OpUpdateAssignment, domain.RoleStudent, false},
			{OpSubmit, domain.RoleStudent, true},
			{OpSubmit, domain.RoleTeacher, false},
			{OpSubmit, domain.RoleAdmin, false},
			{OpGrade, domain.RoleTeacher, true},
			{OpGrade, domain.RoleStudent, false},
			{OpListSubmissions, domain.RoleAdmin, true},
			{OpListSubmissions, domain.RoleStudent, false},
			{OpViewAssignment, domain.RoleStudent, true},
			{OpViewProgress, domain.RoleTeacher, true},
			{OpListAssignments, domain.RoleStudent, true},
		}

		for _, tc := range cases {
			auth := ctxdata.Auth{UserID: uuid.New(), Role: tc.role}
			err := gate.Require(auth, tc.op)
			if tc.allowed {
				assert.NoError(t, err, "%s as %s", tc.op, tc.role)
			} else {
				assert.True(t, errors.Is(err, ErrPermissionDenied), "%s as %s", tc.op, tc.role)
			}
		}
	})

	t.Run("UnknownOperationDenied", func(t *testing.T) {
		auth := ctxdata.Auth{UserID: uuid.New(), Role: domain.RoleAdmin}
		err := gate.Require(auth, Operation("assignment.unknown"))
		assert.True(t, errors.Is(err, ErrPermissionDenied))
	})
}
