package models

import (
	"time"

	"gorm.io/gorm"
)

// MemberProject is the pivot row joining a member to a project.
//
// The row is never removed on detach: DeletedAt is set instead, so a pair is
// only assigned while IsLive reports true.
type MemberProject struct {
	ProjectID  uint           `gorm:"primaryKey;autoIncrement:false" json:"project_id"`
	MemberID   uint           `gorm:"primaryKey;autoIncrement:false" json:"member_id"`
	AssignedBy *string        `gorm:"size:255" json:"assigned_by"`
	AssignedAt *time.Time     `json:"assigned_at"`
	Role       *string        `gorm:"size:255" json:"role"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`

	// Relationships
	Project *Project `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Member  *Member  `gorm:"foreignKey:MemberID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

func (MemberProject) TableName() string {
	return "member_project"
}

func (p MemberProject) IsLive() bool {
	return !p.DeletedAt.Valid
}
