package model

const (
	QuestionSingleChoice = "single_choice"
	QuestionFreeText     = "free_text"
)

// Question 测试题目。single_choice 的选项存于 question_options，
// free_text 的参考答案存于 ExpectedAnswer。
/// swagger:model Question
type Question struct {
	BaseModel
	AssessmentID   uint             `gorm:"index;type:bigint unsigned" json:"assessmentId"`
	QuestionType   string           `gorm:"size:50;not null" json:"questionType"` // single_choice, free_text
	Content        string           `gorm:"type:text;not null" json:"content"`    // 题干
	AttachmentURL  string           `gorm:"size:255" json:"attachmentUrl,omitempty"` // 题干配图等附件
	Points         int              `gorm:"default:0" json:"points"`
	Order          int              `gorm:"default:0" json:"order"`
	ExpectedAnswer string           `gorm:"type:text" json:"expectedAnswer,omitempty"` // free_text 评分参考
	Options        []QuestionOption `gorm:"foreignKey:QuestionID" json:"options,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

// QuestionOption 单选题选项，每题恰好一个 IsCorrect
type QuestionOption struct {
	BaseModel
	QuestionID uint   `gorm:"index;type:bigint unsigned" json:"questionId"`
	Content    string `gorm:"type:text;not null" json:"content"`
	IsCorrect  bool   `gorm:"default:false" json:"isCorrect"`
	Order      int    `gorm:"default:0" json:"order"`
}

func (QuestionOption) TableName() string {
	return "question_options"
}
