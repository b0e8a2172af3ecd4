package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/monocle-dev/staffing/internal/assignments"
	"github.com/monocle-dev/staffing/internal/attrs"
	"github.com/monocle-dev/staffing/internal/events"
	"github.com/monocle-dev/staffing/internal/models"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("not found")

// AssignmentService validates the endpoints of assignment mutations, fills in
// insert defaults and publishes every committed change.
type AssignmentService struct {
	db         *gorm.DB
	repo       *assignments.Repository
	publishers []events.Publisher
	now        func() time.Time
}

func NewAssignmentService(conn *gorm.DB, repo *assignments.Repository, publishers ...events.Publisher) *AssignmentService {
	return &AssignmentService{
		db:         conn,
		repo:       repo,
		publishers: publishers,
		now:        time.Now,
	}
}

func (s *AssignmentService) Repository() *assignments.Repository {
	return s.repo
}

func (s *AssignmentService) publish(ctx context.Context, change events.Change) {
	if change.Empty() {
		return
	}

	for _, p := range s.publishers {
		p.Publish(ctx, change)
	}
}

func (s *AssignmentService) project(ctx context.Context, projectID uint) (models.Project, error) {
	var project models.Project

	if err := s.db.WithContext(ctx).First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return project, fmt.Errorf("project %d: %w", projectID, ErrNotFound)
		}
		return project, err
	}

	return project, nil
}

func (s *AssignmentService) ensureMembers(ctx context.Context, memberIDs []uint) error {
	if len(memberIDs) == 0 {
		return nil
	}

	var found []uint
	if err := s.db.WithContext(ctx).Model(&models.Member{}).Where("id IN ?", memberIDs).Pluck("id", &found).Error; err != nil {
		return err
	}

	for _, id := range memberIDs {
		if !slices.Contains(found, id) {
			return fmt.Errorf("member %d: %w", id, ErrNotFound)
		}
	}

	return nil
}

// insertDefaults records the actor and the current time on rows being
// inserted or revived when the caller left those columns out.
func (s *AssignmentService) insertDefaults(actor string) attrs.Attributes {
	defaults := attrs.Attributes{attrs.AssignedAt: s.now()}

	if actor != "" {
		defaults[attrs.AssignedBy] = actor
	}

	return defaults
}

func (s *AssignmentService) change(project models.Project, kind events.Kind, actor string) events.Change {
	return events.Change{
		ProjectID:   project.ID,
		ProjectName: project.Name,
		Kind:        kind,
		Attached:    []uint{},
		Detached:    []uint{},
		Updated:     []uint{},
		Restored:    []uint{},
		Actor:       actor,
		At:          s.now(),
	}
}

func (s *AssignmentService) Attach(ctx context.Context, actor string, projectID, memberID uint, a attrs.Attributes) (*models.MemberProject, error) {
	project, err := s.project(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if err := s.ensureMembers(ctx, []uint{memberID}); err != nil {
		return nil, err
	}

	row, err := s.repo.Members(projectID).WithInsertDefaults(s.insertDefaults(actor)).Attach(ctx, memberID, a)
	if err != nil {
		return nil, err
	}

	change := s.change(project, events.KindAttached, actor)
	change.Attached = []uint{memberID}
	s.publish(ctx, change)

	return row, nil
}

// Sync replaces the project's members with targets, or only adds and updates
// when detaching is false.
func (s *AssignmentService) Sync(ctx context.Context, actor string, projectID uint, targets map[uint]attrs.Attributes, detaching bool) (*assignments.Changes, error) {
	project, err := s.project(ctx, projectID)
	if err != nil {
		return nil, err
	}

	memberIDs := slices.Sorted(maps.Keys(targets))
	if err := s.ensureMembers(ctx, memberIDs); err != nil {
		return nil, err
	}

	relation := s.repo.Members(projectID).WithInsertDefaults(s.insertDefaults(actor))

	var changes *assignments.Changes
	if detaching {
		changes, err = relation.Sync(ctx, targets)
	} else {
		changes, err = relation.SyncWithoutDetaching(ctx, targets)
	}
	if err != nil {
		return nil, err
	}

	change := s.change(project, events.KindSynced, actor)
	change.Attached = changes.Attached
	change.Detached = changes.Detached
	change.Updated = changes.Updated
	s.publish(ctx, change)

	return changes, nil
}

// Update writes attributes onto the stored pair. Setting or clearing
// deleted_at is reported as a detach or a restore.
func (s *AssignmentService) Update(ctx context.Context, actor string, projectID, memberID uint, a attrs.Attributes) (*models.MemberProject, error) {
	project, err := s.project(ctx, projectID)
	if err != nil {
		return nil, err
	}

	relation := s.repo.Members(projectID)

	before, err := relation.Find(ctx, memberID)
	if err != nil {
		return nil, err
	}

	row, err := relation.UpdateExistingPivot(ctx, memberID, a)
	if err != nil {
		return nil, err
	}

	var change events.Change
	switch {
	case before.IsLive() && !row.IsLive():
		change = s.change(project, events.KindDetached, actor)
		change.Detached = []uint{memberID}
	case !before.IsLive() && row.IsLive():
		change = s.change(project, events.KindRestored, actor)
		change.Restored = []uint{memberID}
	case !row.UpdatedAt.Equal(before.UpdatedAt):
		change = s.change(project, events.KindUpdated, actor)
		change.Updated = []uint{memberID}
	}
	s.publish(ctx, change)

	return row, nil
}

// Detach soft-deletes the given members of the project, or all of them when
// none are given, and returns the detached member ids.
func (s *AssignmentService) Detach(ctx context.Context, actor string, projectID uint, memberIDs ...uint) ([]uint, error) {
	project, err := s.project(ctx, projectID)
	if err != nil {
		return nil, err
	}

	relation := s.repo.Members(projectID)

	live, err := relation.RelatedIDs(ctx)
	if err != nil {
		return nil, err
	}

	detached := live
	if len(memberIDs) > 0 {
		detached = []uint{}
		for _, id := range live {
			if slices.Contains(memberIDs, id) {
				detached = append(detached, id)
			}
		}
	}

	if len(detached) == 0 {
		return []uint{}, nil
	}

	if _, err := relation.Detach(ctx, detached...); err != nil {
		return nil, err
	}

	change := s.change(project, events.KindDetached, actor)
	change.Detached = detached
	s.publish(ctx, change)

	return detached, nil
}

func (s *AssignmentService) Restore(ctx context.Context, actor string, projectID, memberID uint) (*models.MemberProject, error) {
	project, err := s.project(ctx, projectID)
	if err != nil {
		return nil, err
	}

	relation := s.repo.Members(projectID)

	before, err := relation.Find(ctx, memberID)
	if err != nil {
		return nil, err
	}

	row, err := relation.Restore(ctx, memberID)
	if err != nil {
		return nil, err
	}

	if !before.IsLive() {
		change := s.change(project, events.KindRestored, actor)
		change.Restored = []uint{memberID}
		s.publish(ctx, change)
	}

	return row, nil
}

// Find returns the pivot of the pair, trashed or not.
func (s *AssignmentService) Find(ctx context.Context, projectID, memberID uint) (assignments.Pivot, error) {
	if _, err := s.project(ctx, projectID); err != nil {
		return assignments.Pivot{}, err
	}

	row, err := s.repo.Members(projectID).Find(ctx, memberID)
	if err != nil {
		return assignments.Pivot{}, err
	}

	return s.repo.View(*row), nil
}

func (s *AssignmentService) Members(ctx context.Context, projectID uint, opts assignments.ListOptions) ([]assignments.AssignedMember, error) {
	if _, err := s.project(ctx, projectID); err != nil {
		return nil, err
	}

	return s.repo.AssignedMembers(ctx, projectID, opts)
}

func (s *AssignmentService) Projects(ctx context.Context, memberID uint, opts assignments.ListOptions) ([]assignments.AssignedProject, error) {
	if err := s.ensureMembers(ctx, []uint{memberID}); err != nil {
		return nil, err
	}

	return s.repo.AssignedProjects(ctx, memberID, opts)
}

// Prune permanently removes assignments trashed longer than retention ago.
func (s *AssignmentService) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, fmt.Errorf("retention must be positive, got %s", retention)
	}

	return s.repo.PruneTrashed(ctx, s.now().Add(-retention))
}
