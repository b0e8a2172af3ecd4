// Package assignments implements the member/project pivot: attach, detach,
// sync and restore over the soft-deleting member_project table.
package assignments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/monocle-dev/staffing/internal/models"
	"gorm.io/gorm"
)

var (
	ErrAlreadyAttached = errors.New("member is already assigned to project")
	ErrNotAttached     = errors.New("member is not assigned to project")
)

const (
	projectKey = "project_id"
	memberKey  = "member_id"

	createdAtColumn = "created_at"
	updatedAtColumn = "updated_at"
)

// live is the only liveness predicate used by queries; rows loaded into
// memory use models.MemberProject.IsLive.
func live(tx *gorm.DB) *gorm.DB {
	return tx.Where("member_project.deleted_at IS NULL")
}

type Repository struct {
	db      *gorm.DB
	columns map[string]bool
	now     func() time.Time
}

type Option func(*Repository)

// WithPivot declares the pivot columns that reads expose. Columns that are not
// declared read as nil even when the row holds a value.
func WithPivot(columns ...string) Option {
	return func(r *Repository) {
		for _, column := range columns {
			r.columns[column] = true
		}
	}
}

func WithTimestamps() Option {
	return WithPivot(createdAtColumn, updatedAtColumn)
}

func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

func New(db *gorm.DB, opts ...Option) *Repository {
	r := &Repository{
		db:      db,
		columns: make(map[string]bool),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Members returns the relation from a project to its members.
func (r *Repository) Members(projectID uint) *Relation {
	return &Relation{repo: r, parentKey: projectKey, relatedKey: memberKey, parentID: projectID}
}

// Projects returns the relation from a member to its projects.
func (r *Repository) Projects(memberID uint) *Relation {
	return &Relation{repo: r, parentKey: memberKey, relatedKey: projectKey, parentID: memberID}
}

// PruneTrashed permanently removes pivot rows soft-deleted before the cutoff.
func (r *Repository) PruneTrashed(ctx context.Context, before time.Time) (int64, error) {
	tx := r.db.
		WithContext(ctx).
		Unscoped().
		Where("deleted_at IS NOT NULL").
		Where("deleted_at < ?", before).
		Delete(&models.MemberProject{})
	if tx.Error != nil {
		return 0, fmt.Errorf("failed to prune trashed assignments: %w", tx.Error)
	}

	return tx.RowsAffected, nil
}

type ListOptions struct {
	WithTrashed bool
}

type AssignedMember struct {
	models.Member
	Pivot Pivot `json:"pivot"`
}

type AssignedProject struct {
	models.Project
	Pivot Pivot `json:"pivot"`
}

// AssignedMembers loads the members of a project along with their pivot rows,
// ordered by member id.
func (r *Repository) AssignedMembers(ctx context.Context, projectID uint, opts ListOptions) ([]AssignedMember, error) {
	rows, err := r.Members(projectID).List(ctx, opts)
	if err != nil {
		return nil, err
	}

	out := make([]AssignedMember, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}

	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.MemberID)
	}

	var members []models.Member
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&members).Error; err != nil {
		return nil, fmt.Errorf("failed to load members of project %d: %w", projectID, err)
	}

	byID := make(map[uint]models.Member, len(members))
	for _, m := range members {
		byID[m.ID] = m
	}

	for _, row := range rows {
		member, ok := byID[row.MemberID]
		if !ok {
			continue
		}
		out = append(out, AssignedMember{Member: member, Pivot: r.view(row)})
	}

	return out, nil
}

// AssignedProjects loads the projects of a member along with their pivot rows,
// ordered by project id.
func (r *Repository) AssignedProjects(ctx context.Context, memberID uint, opts ListOptions) ([]AssignedProject, error) {
	rows, err := r.Projects(memberID).List(ctx, opts)
	if err != nil {
		return nil, err
	}

	out := make([]AssignedProject, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}

	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ProjectID)
	}

	var projects []models.Project
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("failed to load projects of member %d: %w", memberID, err)
	}

	byID := make(map[uint]models.Project, len(projects))
	for _, p := range projects {
		byID[p.ID] = p
	}

	for _, row := range rows {
		project, ok := byID[row.ProjectID]
		if !ok {
			continue
		}
		out = append(out, AssignedProject{Project: project, Pivot: r.view(row)})
	}

	return out, nil
}
