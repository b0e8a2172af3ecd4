package models

type Member struct {
	BaseModel

	Name string `gorm:"not null" json:"name"`
}
