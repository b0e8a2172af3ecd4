package models

type Project struct {
	BaseModel

	Name string `gorm:"not null" json:"name"`
}
