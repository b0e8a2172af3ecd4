package dbtest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/monocle-dev/staffing/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func NewProject(t *testing.T, project models.Project) models.Project {
	t.Helper()

	result := models.Project{
		Name: "project-" + uuid.NewString()[:8],
	}

	if project.ID != 0 {
		result.ID = project.ID
	}
	if project.Name != "" {
		result.Name = project.Name
	}

	return result
}

func CreateProjects(t *testing.T, conn *gorm.DB, projects ...models.Project) []models.Project {
	t.Helper()

	var records []models.Project
	for _, p := range projects {
		records = append(records, NewProject(t, p))
	}

	require.NoError(t, conn.Create(&records).Error)

	return records
}

func NewMember(t *testing.T, member models.Member) models.Member {
	t.Helper()

	result := models.Member{
		Name: "member-" + uuid.NewString()[:8],
	}

	if member.ID != 0 {
		result.ID = member.ID
	}
	if member.Name != "" {
		result.Name = member.Name
	}

	return result
}

func CreateMembers(t *testing.T, conn *gorm.DB, members ...models.Member) []models.Member {
	t.Helper()

	var records []models.Member
	for _, m := range members {
		records = append(records, NewMember(t, m))
	}

	require.NoError(t, conn.Create(&records).Error)

	return records
}

// NewAssignment fills in a live pivot row. ProjectID and MemberID must be set
// by the caller.
func NewAssignment(t *testing.T, assignment models.MemberProject) models.MemberProject {
	t.Helper()

	require.NotZero(t, assignment.ProjectID, "assignment needs a project")
	require.NotZero(t, assignment.MemberID, "assignment needs a member")

	assignedBy := "factory"
	role := "developer"
	assignedAt := time.Now().UTC().Truncate(time.Second)

	result := models.MemberProject{
		ProjectID:  assignment.ProjectID,
		MemberID:   assignment.MemberID,
		AssignedBy: &assignedBy,
		AssignedAt: &assignedAt,
		Role:       &role,
		DeletedAt:  assignment.DeletedAt,
	}

	if assignment.AssignedBy != nil {
		result.AssignedBy = assignment.AssignedBy
	}
	if assignment.AssignedAt != nil {
		result.AssignedAt = assignment.AssignedAt
	}
	if assignment.Role != nil {
		result.Role = assignment.Role
	}

	return result
}

func CreateAssignments(t *testing.T, conn *gorm.DB, assignments ...models.MemberProject) []models.MemberProject {
	t.Helper()

	var records []models.MemberProject
	for _, a := range assignments {
		records = append(records, NewAssignment(t, a))
	}

	require.NoError(t, conn.Omit("Project", "Member").Create(&records).Error)

	return records
}

func StringPointer(s string) *string {
	return &s
}
