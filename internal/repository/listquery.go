package repository

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"assignment_service/internal/domain"
)

var ErrInvalidListQuery = errors.New("invalid list query")

// sortColumns is the allow-list of sortable columns. Sort input never
// reaches the SQL text except through this map.
var sortColumns = map[string]string{
	"title":      "a.title",
	"start_date": "a.start_date",
	"due_date":   "a.due_date",
	"created_at": "a.created_at",
}

const defaultSort = "created_at"

type ListQuery struct {
	ViewerID   uuid.UUID
	ViewerRole domain.Role
	Filter     string
	Sort       string
	Order      domain.SortOrder
	Page       int
	Limit      int
}

func (q ListQuery) Validate() error {
	if q.Page <= 0 || q.Limit <= 0 {
		return fmt.Errorf("%w: page and limit must be positive", ErrInvalidListQuery)
	}
	if q.Sort != "" {
		if _, ok := sortColumns[q.Sort]; !ok {
			return fmt.Errorf("%w: unsupported sort column %q", ErrInvalidListQuery, q.Sort)
		}
	}
	if q.Order != "" && q.Order != domain.SortAsc && q.Order != domain.SortDesc {
		return fmt.Errorf("%w: unsupported sort order %q", ErrInvalidListQuery, q.Order)
	}
	return nil
}

func (q ListQuery) orderByClause() string {
	sort := q.Sort
	if sort == "" {
		sort = defaultSort
	}
	column := sortColumns[sort]

	direction := "ASC"
	if q.Order == domain.SortDesc {
		direction = "DESC"
	}
	return column + " " + direction
}
