package repository

import (
	"examhub_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type AssessmentRepository struct {
	DB *gorm.DB
}

func NewAssessmentRepository(db *gorm.DB) *AssessmentRepository {
	return &AssessmentRepository{DB: db}
}

func (r *AssessmentRepository) CreateAssessment(a *model.Assessment) error {
	return r.DB.Create(a).Error
}

func (r *AssessmentRepository) FindAssessmentByID(id uint) (*model.Assessment, error) {
	var a model.Assessment
	err := r.DB.First(&a, id).Error
	return &a, err
}

func (r *AssessmentRepository) UpdateAssessment(a *model.Assessment) error {
	return r.DB.Save(a).Error
}

func (r *AssessmentRepository) DeleteAssessment(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var questionIDs []uint
		if err := tx.Model(&model.Question{}).Where("assessment_id = ?", id).Pluck("id", &questionIDs).Error; err == nil && len(questionIDs) > 0 {
			if err := tx.Where("question_id IN ?", questionIDs).Delete(&model.QuestionOption{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("assessment_id = ?", id).Delete(&model.Question{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Assessment{}, id).Error
	})
}

func (r *AssessmentRepository) ListByCourse(courseID uint, publishedOnly bool) ([]model.Assessment, error) {
	var as []model.Assessment
	query := r.DB.Model(&model.Assessment{}).Where("course_id = ?", courseID)
	if publishedOnly {
		query = query.Where("is_published = ?", true)
	}
	err := query.Order("created_at desc").Find(&as).Error
	return as, err
}

// ReleaseResults 同步更新测试与所有已有作答记录的成绩发布标志
func (r *AssessmentRepository) ReleaseResults(assessmentID uint, released bool) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Assessment{}).Where("id = ?", assessmentID).
			Update("results_released", released).Error; err != nil {
			return err
		}
		return tx.Model(&model.AssessmentAttempt{}).Where("assessment_id = ?", assessmentID).
			Update("results_released", released).Error
	})
}

func (r *AssessmentRepository) Publish(assessmentID uint) error {
	now := time.Now()
	return r.DB.Model(&model.Assessment{}).Where("id = ?", assessmentID).
		Updates(map[string]interface{}{"is_published": true, "published_at": &now}).Error
}

// Question related methods

// CreateQuestion 题目与选项在同一事务内写入
func (r *AssessmentRepository) CreateQuestion(q *model.Question) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		return tx.Create(q).Error
	})
}

func (r *AssessmentRepository) FindQuestionByID(id uint) (*model.Question, error) {
	var q model.Question
	err := r.DB.Preload("Options", func(db *gorm.DB) *gorm.DB {
		return db.Order("question_options.`order` asc")
	}).First(&q, id).Error
	return &q, err
}

func (r *AssessmentRepository) ListQuestions(assessmentID uint) ([]model.Question, error) {
	var qs []model.Question
	err := r.DB.Preload("Options", func(db *gorm.DB) *gorm.DB {
		return db.Order("question_options.`order` asc")
	}).Where("assessment_id = ?", assessmentID).
		Order("`order` asc, created_at asc").
		Find(&qs).Error
	return qs, err
}

// UpdateQuestion 整体替换选项集合
func (r *AssessmentRepository) UpdateQuestion(q *model.Question) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ?", q.ID).Delete(&model.QuestionOption{}).Error; err != nil {
			return err
		}
		for i := range q.Options {
			q.Options[i].ID = 0
			q.Options[i].QuestionID = q.ID
		}
		return tx.Save(q).Error
	})
}

func (r *AssessmentRepository) DeleteQuestion(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ?", id).Delete(&model.QuestionOption{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Question{}, id).Error
	})
}
