package assignments

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/monocle-dev/staffing/db"
	"github.com/monocle-dev/staffing/internal/attrs"
	"github.com/monocle-dev/staffing/internal/models"
	"gorm.io/gorm"
)

// Relation is one side of the member/project pivot bound to a parent id.
// Related ids are member ids for Repository.Members and project ids for
// Repository.Projects.
type Relation struct {
	repo       *Repository
	parentKey  string
	relatedKey string
	parentID   uint
	defaults   attrs.Attributes
}

// Changes reports what a sync did, each list sorted by related id.
type Changes struct {
	Attached []uint `json:"attached"`
	Detached []uint `json:"detached"`
	Updated  []uint `json:"updated"`
}

func (c *Changes) Empty() bool {
	return len(c.Attached) == 0 && len(c.Detached) == 0 && len(c.Updated) == 0
}

// WithInsertDefaults returns a copy of the relation that fills the given
// columns on rows it inserts or revives when the caller left them out. Rows
// that are already live are never touched by defaults.
func (rel *Relation) WithInsertDefaults(defaults attrs.Attributes) *Relation {
	next := *rel
	next.defaults = defaults.Clone()
	return &next
}

// validate runs before any write so bad input never reaches the table.
func (rel *Relation) validate(relatedID uint, a attrs.Attributes) error {
	if err := check(a); err != nil {
		return fmt.Errorf("%s: %w", rel.describe(relatedID), err)
	}
	if err := check(rel.defaults); err != nil {
		return fmt.Errorf("insert defaults: %w", err)
	}
	return nil
}

func (rel *Relation) withDefaults(a attrs.Attributes) attrs.Attributes {
	if len(rel.defaults) == 0 {
		return a
	}

	out := a.Clone()
	for column, value := range rel.defaults {
		if !out.Has(column) {
			out[column] = value
		}
	}
	return out
}

func (rel *Relation) query(tx *gorm.DB) *gorm.DB {
	return tx.
		Unscoped().
		Model(&models.MemberProject{}).
		Where(rel.parentKey+" = ?", rel.parentID)
}

func (rel *Relation) related(row models.MemberProject) uint {
	if rel.relatedKey == memberKey {
		return row.MemberID
	}
	return row.ProjectID
}

func (rel *Relation) newRow(relatedID uint, now time.Time) models.MemberProject {
	row := models.MemberProject{CreatedAt: now, UpdatedAt: now}
	if rel.parentKey == projectKey {
		row.ProjectID, row.MemberID = rel.parentID, relatedID
	} else {
		row.ProjectID, row.MemberID = relatedID, rel.parentID
	}
	return row
}

// find returns the stored row for the pair, trashed or not, or nil.
func (rel *Relation) find(tx *gorm.DB, relatedID uint) (*models.MemberProject, error) {
	var row models.MemberProject

	err := rel.query(tx).
		Where(rel.relatedKey+" = ?", relatedID).
		Take(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &row, nil
}

func (rel *Relation) describe(relatedID uint) string {
	if rel.parentKey == projectKey {
		return fmt.Sprintf("member %d on project %d", relatedID, rel.parentID)
	}
	return fmt.Sprintf("member %d on project %d", rel.parentID, relatedID)
}

// insert writes a live row holding exactly a plus the insert defaults. A
// trashed row for the pair is revived in place since the pair can only be
// stored once.
func (rel *Relation) insert(tx *gorm.DB, existing *models.MemberProject, relatedID uint, a attrs.Attributes, now time.Time) error {
	a = rel.withDefaults(a)

	if existing == nil {
		row := rel.newRow(relatedID, now)
		assign(&row, a)
		row.DeletedAt = gorm.DeletedAt{}

		if err := tx.Omit("Project", "Member").Create(&row).Error; err != nil {
			if db.IsUniqueViolation(err) {
				return fmt.Errorf("%s: %w", rel.describe(relatedID), ErrAlreadyAttached)
			}
			return err
		}
		return nil
	}

	fresh := attrs.Attributes{
		attrs.AssignedBy: nil,
		attrs.AssignedAt: nil,
		attrs.Role:       nil,
	}
	for column, value := range a {
		fresh[column] = value
	}
	fresh[attrs.DeletedAt] = nil

	return rel.query(tx).
		Where(rel.relatedKey+" = ?", relatedID).
		Updates(values(fresh, now)).
		Error
}

// Attach assigns the pair with exactly the given pivot attributes. A pair
// that is already live fails with ErrAlreadyAttached.
func (rel *Relation) Attach(ctx context.Context, relatedID uint, a attrs.Attributes) (*models.MemberProject, error) {
	if err := rel.validate(relatedID, a); err != nil {
		return nil, err
	}

	var result *models.MemberProject

	err := rel.repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := rel.find(tx, relatedID)
		if err != nil {
			return err
		}

		if existing != nil && existing.IsLive() {
			return fmt.Errorf("%s: %w", rel.describe(relatedID), ErrAlreadyAttached)
		}

		if err := rel.insert(tx, existing, relatedID, a, rel.repo.now()); err != nil {
			return err
		}

		result, err = rel.find(tx, relatedID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Detach soft-deletes the live rows for the given related ids, or every live
// row of the parent when no ids are given. Rows are never removed.
func (rel *Relation) Detach(ctx context.Context, relatedIDs ...uint) (int64, error) {
	now := rel.repo.now()

	tx := rel.query(rel.repo.db.WithContext(ctx)).Scopes(live)
	if len(relatedIDs) > 0 {
		tx = tx.Where(rel.relatedKey+" IN ?", relatedIDs)
	}

	tx = tx.Updates(map[string]any{
		attrs.DeletedAt: now,
		updatedAtColumn: now,
	})
	if tx.Error != nil {
		return 0, fmt.Errorf("failed to detach: %w", tx.Error)
	}

	return tx.RowsAffected, nil
}

// Sync makes targets the exact set of live pairs: missing pairs are attached,
// live pairs outside targets are soft-deleted, and pairs in both are updated
// in place with their attributes.
func (rel *Relation) Sync(ctx context.Context, targets map[uint]attrs.Attributes) (*Changes, error) {
	return rel.sync(ctx, targets, true)
}

// SyncWithoutDetaching attaches and updates like Sync but never soft-deletes.
func (rel *Relation) SyncWithoutDetaching(ctx context.Context, targets map[uint]attrs.Attributes) (*Changes, error) {
	return rel.sync(ctx, targets, false)
}

func (rel *Relation) sync(ctx context.Context, targets map[uint]attrs.Attributes, detaching bool) (*Changes, error) {
	for _, id := range slices.Sorted(maps.Keys(targets)) {
		if err := rel.validate(id, targets[id]); err != nil {
			return nil, err
		}
	}

	changes := &Changes{Attached: []uint{}, Detached: []uint{}, Updated: []uint{}}

	err := rel.repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []models.MemberProject
		if err := rel.query(tx).Find(&rows).Error; err != nil {
			return err
		}

		current := make(map[uint]models.MemberProject, len(rows))
		for _, row := range rows {
			current[rel.related(row)] = row
		}

		now := rel.repo.now()

		if detaching {
			var stale []uint
			for id, row := range current {
				if _, keep := targets[id]; !keep && row.IsLive() {
					stale = append(stale, id)
				}
			}
			slices.Sort(stale)

			if len(stale) > 0 {
				err := rel.query(tx).
					Scopes(live).
					Where(rel.relatedKey+" IN ?", stale).
					Updates(map[string]any{
						attrs.DeletedAt: now,
						updatedAtColumn: now,
					}).
					Error
				if err != nil {
					return err
				}
				changes.Detached = stale
			}
		}

		for _, id := range slices.Sorted(maps.Keys(targets)) {
			a := targets[id]
			row, exists := current[id]

			switch {
			case !exists:
				if err := rel.insert(tx, nil, id, a, now); err != nil {
					return err
				}
				changes.Attached = append(changes.Attached, id)
			case !row.IsLive():
				if err := rel.insert(tx, &row, id, a, now); err != nil {
					return err
				}
				changes.Attached = append(changes.Attached, id)
			case len(a) > 0 && differs(row, a):
				err := rel.query(tx).
					Where(rel.relatedKey+" = ?", id).
					Updates(values(a, now)).
					Error
				if err != nil {
					return err
				}
				changes.Updated = append(changes.Updated, id)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return changes, nil
}

// UpdateExistingPivot writes attributes onto the stored row for the pair,
// whether or not it is live. Passing deleted_at trashes or restores it.
func (rel *Relation) UpdateExistingPivot(ctx context.Context, relatedID uint, a attrs.Attributes) (*models.MemberProject, error) {
	if err := check(a); err != nil {
		return nil, fmt.Errorf("%s: %w", rel.describe(relatedID), err)
	}

	var result *models.MemberProject

	err := rel.repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := rel.find(tx, relatedID)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("%s: %w", rel.describe(relatedID), ErrNotAttached)
		}

		if len(a) > 0 && differs(*existing, a) {
			err := rel.query(tx).
				Where(rel.relatedKey+" = ?", relatedID).
				Updates(values(a, rel.repo.now())).
				Error
			if err != nil {
				return err
			}
		}

		result, err = rel.find(tx, relatedID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Restore clears the tombstone of the pair, keeping its stored attributes.
func (rel *Relation) Restore(ctx context.Context, relatedID uint) (*models.MemberProject, error) {
	return rel.UpdateExistingPivot(ctx, relatedID, attrs.Attributes{attrs.DeletedAt: nil})
}

// IsAttached reports whether the pair has a live row.
func (rel *Relation) IsAttached(ctx context.Context, relatedID uint) (bool, error) {
	var count int64

	err := rel.query(rel.repo.db.WithContext(ctx)).
		Scopes(live).
		Where(rel.relatedKey+" = ?", relatedID).
		Count(&count).
		Error
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// Find returns the stored row for the pair including trashed rows.
func (rel *Relation) Find(ctx context.Context, relatedID uint) (*models.MemberProject, error) {
	row, err := rel.find(rel.repo.db.WithContext(ctx), relatedID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("%s: %w", rel.describe(relatedID), ErrNotAttached)
	}

	return row, nil
}

// List returns the parent's pivot rows ordered by related id.
func (rel *Relation) List(ctx context.Context, opts ListOptions) ([]models.MemberProject, error) {
	tx := rel.query(rel.repo.db.WithContext(ctx))
	if !opts.WithTrashed {
		tx = tx.Scopes(live)
	}

	var rows []models.MemberProject
	if err := tx.Order(rel.relatedKey).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}

	return rows, nil
}

// RelatedIDs returns the ids of the live pairs, ascending.
func (rel *Relation) RelatedIDs(ctx context.Context) ([]uint, error) {
	rows, err := rel.List(ctx, ListOptions{})
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, rel.related(row))
	}

	return ids, nil
}
