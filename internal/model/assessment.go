package model

import "time"

// swagger:model Assessment
type Assessment struct {
	BaseModel
	CourseID        uint       `gorm:"index;type:bigint unsigned" json:"courseId"`
	Title           string     `gorm:"size:255;not null" json:"title"`
	Description     string     `gorm:"type:text" json:"description"`
	TimeLimit       int        `gorm:"default:0" json:"timeLimit"` // Minutes
	IsPublished     bool       `gorm:"default:false" json:"isPublished"`
	PublishedAt     *time.Time `json:"publishedAt,omitempty"`
	ResultsReleased bool       `gorm:"default:false" json:"resultsReleased"`
	CreatorID       uint       `gorm:"index;type:bigint unsigned" json:"creatorId"`
}

func (Assessment) TableName() string {
	return "assessments"
}
