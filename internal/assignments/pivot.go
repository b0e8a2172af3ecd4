package assignments

import (
	"fmt"
	"time"

	"github.com/monocle-dev/staffing/internal/attrs"
	"github.com/monocle-dev/staffing/internal/models"
	"gorm.io/gorm"
)

// Pivot is the caller-facing view of a member_project row. Keys are always
// set; the other fields are only filled for columns declared with WithPivot.
type Pivot struct {
	ProjectID  uint       `json:"project_id"`
	MemberID   uint       `json:"member_id"`
	AssignedBy *string    `json:"assigned_by,omitempty"`
	AssignedAt *time.Time `json:"assigned_at,omitempty"`
	Role       *string    `json:"role,omitempty"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

func (p Pivot) IsLive() bool {
	return p.DeletedAt == nil
}

func (r *Repository) view(row models.MemberProject) Pivot {
	p := Pivot{ProjectID: row.ProjectID, MemberID: row.MemberID}

	if r.columns[attrs.AssignedBy] {
		p.AssignedBy = row.AssignedBy
	}
	if r.columns[attrs.AssignedAt] {
		p.AssignedAt = row.AssignedAt
	}
	if r.columns[attrs.Role] {
		p.Role = row.Role
	}
	if r.columns[attrs.DeletedAt] && row.DeletedAt.Valid {
		deletedAt := row.DeletedAt.Time
		p.DeletedAt = &deletedAt
	}
	if r.columns[createdAtColumn] {
		createdAt := row.CreatedAt
		p.CreatedAt = &createdAt
	}
	if r.columns[updatedAtColumn] {
		updatedAt := row.UpdatedAt
		p.UpdatedAt = &updatedAt
	}

	return p
}

// View projects a stored row through the repository's declared columns.
func (r *Repository) View(row models.MemberProject) Pivot {
	return r.view(row)
}

// timePrecision is the coarsest timestamp precision of the supported
// databases (MySQL datetime(3)).
const timePrecision = time.Millisecond

// check rejects columns outside the pivot and values that are neither
// strings, times nor nil.
func check(a attrs.Attributes) error {
	for _, column := range a.Columns() {
		value := a[column]

		switch column {
		case attrs.AssignedBy, attrs.Role:
			switch value.(type) {
			case nil, string, *string:
			default:
				return fmt.Errorf("%w: %s must be a string, got %T", attrs.ErrTypeMismatch, column, value)
			}
		case attrs.AssignedAt, attrs.DeletedAt:
			switch value.(type) {
			case nil, time.Time, *time.Time:
			default:
				return fmt.Errorf("%w: %s must be a timestamp, got %T", attrs.ErrTypeMismatch, column, value)
			}
		default:
			return fmt.Errorf("%w: %s", attrs.ErrUnknownColumn, column)
		}
	}

	return nil
}

// assign copies attributes onto a row. Values are expected in the shape
// produced by attrs.Pivot: strings, times or nil.
func assign(row *models.MemberProject, a attrs.Attributes) {
	for column, value := range a {
		switch column {
		case attrs.AssignedBy:
			row.AssignedBy = stringPtr(value)
		case attrs.Role:
			row.Role = stringPtr(value)
		case attrs.AssignedAt:
			row.AssignedAt = timePtr(value)
		case attrs.DeletedAt:
			if t := timePtr(value); t != nil {
				row.DeletedAt = gorm.DeletedAt{Time: *t, Valid: true}
			} else {
				row.DeletedAt = gorm.DeletedAt{}
			}
		}
	}
}

// differs reports whether writing a would change any stored column.
func differs(row models.MemberProject, a attrs.Attributes) bool {
	next := row
	assign(&next, a)

	if !equalString(row.AssignedBy, next.AssignedBy) || !equalString(row.Role, next.Role) {
		return true
	}
	if !equalTime(row.AssignedAt, next.AssignedAt) {
		return true
	}
	if row.DeletedAt.Valid != next.DeletedAt.Valid {
		return true
	}
	return row.DeletedAt.Valid && !sameInstant(row.DeletedAt.Time, next.DeletedAt.Time)
}

// values turns attributes into a column map for an UPDATE.
func values(a attrs.Attributes, now time.Time) map[string]any {
	out := make(map[string]any, len(a)+1)

	for column, value := range a {
		switch column {
		case attrs.AssignedBy, attrs.Role:
			if s := stringPtr(value); s != nil {
				out[column] = *s
			} else {
				out[column] = nil
			}
		case attrs.AssignedAt, attrs.DeletedAt:
			if t := timePtr(value); t != nil {
				out[column] = *t
			} else {
				out[column] = nil
			}
		}
	}
	out[updatedAtColumn] = now

	return out
}

func stringPtr(v any) *string {
	switch s := v.(type) {
	case string:
		return &s
	case *string:
		return s
	default:
		return nil
	}
}

func timePtr(v any) *time.Time {
	switch t := v.(type) {
	case time.Time:
		return &t
	case *time.Time:
		return t
	default:
		return nil
	}
}

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return sameInstant(*a, *b)
}

// sameInstant compares at the precision every database keeps.
func sameInstant(a, b time.Time) bool {
	return a.Truncate(timePrecision).Equal(b.Truncate(timePrecision))
}
