package repository

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"assignment_service/internal/domain"
)

func TestListQueryValidate(t *testing.T) {
	base := ListQuery{Page: 1, Limit: 10}

	t.Run("Defaults", func(t *testing.T) {
		assert.NoError(t, base.Validate())
	})

	t.Run("AllowedSortColumns", func(t *testing.T) {
		for _, sort := range []string{"title", "start_date", "due_date", "created_at"} {
			q := base
			q.Sort = sort
			assert.NoError(t, q.Validate(), sort)
		}
	})

	t.Run("RejectsUnknownSortColumn", func(t *testing.T) {
		for _, sort := range []string{"id; DROP TABLE assignments", "password", "a.title"} {
			q := base
			q.Sort = sort
			err := q.Validate()
			assert.True(t, errors.Is(err, ErrInvalidListQuery), sort)
		}
	})

	t.Run("RejectsBadOrder", func(t *testing.T) {
		q := base
		q.Order = domain.SortOrder("ASC; --")
		assert.True(t, errors.Is(q.Validate(), ErrInvalidListQuery))
	})

	t.Run("RejectsBadPagination", func(t *testing.T) {
		cases := []ListQuery{
			{Page: 0, Limit: 10},
			{Page: 1, Limit: 0},
			{Page: -1, Limit: -1},
		}
		for _, q := range cases {
			assert.True(t, errors.Is(q.Validate(), ErrInvalidListQuery))
		}
	})
}

func TestOrderByClause(t *testing.T) {
	t.Run("DefaultSort", func(t *testing.T) {
		q := ListQuery{Page: 1, Limit: 10}
		assert.Equal(t, "a.created_at ASC", q.orderByClause())
	})

	t.Run("ExplicitDescending", func(t *testing.T) {
		q := ListQuery{Page: 1, Limit: 10, Sort: "due_date", Order: domain.SortDesc}
		assert.Equal(t, "a.due_date DESC", q.orderByClause())
	})

	// Only values from the allow-list ever reach the clause, always as the
	// prefixed column name.
	t.Run("MappedColumns", func(t *testing.T) {
		q := ListQuery{Page: 1, Limit: 10, Sort: "title", Order: domain.SortAsc}
		assert.Equal(t, "a.title ASC", q.orderByClause())
	})
}
