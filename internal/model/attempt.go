package model

import "time"

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
)

// AssessmentAttempt 一名学生对一份测试的唯一一次限时作答
// swagger:model AssessmentAttempt
type AssessmentAttempt struct {
	BaseModel
	AssessmentID    uint          `gorm:"index;type:bigint unsigned;uniqueIndex:idx_assessment_user" json:"assessmentId"`
	UserID          uint          `gorm:"index;type:bigint unsigned;uniqueIndex:idx_assessment_user" json:"userId"`
	User            *User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Status          AttemptStatus `gorm:"size:20;default:'in_progress'" json:"status"`
	StartedAt       time.Time     `json:"startedAt"`
	CompletedAt     *time.Time    `json:"completedAt,omitempty"`
	Score           int           `json:"score"`
	MaxScore        int           `json:"maxScore"`
	ResultsReleased bool          `gorm:"default:false" json:"resultsReleased"` // 评卷发布时同步自 Assessment
	IsTimeout       bool          `gorm:"default:false" json:"isTimeout"`
}

func (AssessmentAttempt) TableName() string {
	return "assessment_attempts"
}

// AttemptAnswer 提交时为每道题生成一条记录，未作答也会落库（空答案、零分）
type AttemptAnswer struct {
	BaseModel
	AttemptID        uint       `gorm:"index;type:bigint unsigned" json:"attemptId"`
	QuestionID       uint       `gorm:"index;type:bigint unsigned" json:"questionId"`
	SelectedOptionID *uint      `gorm:"type:bigint unsigned" json:"selectedOptionId,omitempty"` // single_choice
	TextAnswer       string     `gorm:"type:text" json:"textAnswer,omitempty"`                  // free_text
	Score            int        `gorm:"default:0" json:"score"`
	IsCorrect        bool       `gorm:"default:false" json:"isCorrect"`
	AIEvaluated      bool       `gorm:"default:false" json:"aiEvaluated"` // 已获取 AI 建议分，保存评分后复位
	GradedAt         *time.Time `json:"gradedAt,omitempty"`
	GraderID         uint       `gorm:"index;type:bigint unsigned" json:"graderId,omitempty"`
}

func (AttemptAnswer) TableName() string {
	return "attempt_answers"
}
