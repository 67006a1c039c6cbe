package repository

import (
	"examhub_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) CreateAttempt(a *model.AssessmentAttempt) error {
	return r.DB.Create(a).Error
}

func (r *AttemptRepository) FindAttemptByID(id uint) (*model.AssessmentAttempt, error) {
	var a model.AssessmentAttempt
	err := r.DB.First(&a, id).Error
	return &a, err
}

func (r *AttemptRepository) FindAttemptByUserAndAssessment(userID, assessmentID uint) (*model.AssessmentAttempt, error) {
	var a model.AssessmentAttempt
	err := r.DB.Where("user_id = ? AND assessment_id = ?", userID, assessmentID).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AttemptRepository) CountByAssessment(assessmentID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.AssessmentAttempt{}).Where("assessment_id = ?", assessmentID).Count(&count).Error
	return count, err
}

// FinalizeAttempt 条件更新交卷：仅当记录仍为 in_progress 时写入答案并落定成绩，
// 返回 false 表示已被另一条路径（手动提交或超时扫描）抢先交卷。
func (r *AttemptRepository) FinalizeAttempt(a *model.AssessmentAttempt, answers []model.AttemptAnswer) (bool, error) {
	finalized := false
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.AssessmentAttempt{}).
			Where("id = ? AND status = ?", a.ID, model.AttemptInProgress).
			Updates(map[string]interface{}{
				"status":       model.AttemptCompleted,
				"score":        a.Score,
				"max_score":    a.MaxScore,
				"completed_at": a.CompletedAt,
				"is_timeout":   a.IsTimeout,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		finalized = true
		if len(answers) == 0 {
			return nil
		}
		for i := range answers {
			answers[i].AttemptID = a.ID
		}
		return tx.Create(&answers).Error
	})
	return finalized, err
}

// ListExpiredAttempts 查出所有超出限时仍在作答中的记录，供后台自动交卷
func (r *AttemptRepository) ListExpiredAttempts(now time.Time) ([]model.AssessmentAttempt, error) {
	var attempts []model.AssessmentAttempt
	err := r.DB.Table("assessment_attempts t").
		Select("t.*").
		Joins("JOIN assessments a ON a.id = t.assessment_id").
		Where("t.status = ? AND t.deleted_at IS NULL", model.AttemptInProgress).
		Where("a.time_limit > 0 AND TIMESTAMPADD(MINUTE, a.time_limit, t.started_at) <= ?", now).
		Scan(&attempts).Error
	return attempts, err
}

func (r *AttemptRepository) ListByAssessment(assessmentID uint, page, limit int) ([]model.AssessmentAttempt, int64, error) {
	var attempts []model.AssessmentAttempt
	var total int64
	query := r.DB.Model(&model.AssessmentAttempt{}).Where("assessment_id = ?", assessmentID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = query.Preload("User").Order("created_at desc")
	if limit > 0 {
		query = query.Offset((page - 1) * limit).Limit(limit)
	}
	err := query.Find(&attempts).Error
	return attempts, total, err
}

func (r *AttemptRepository) ListAnswers(attemptID uint) ([]model.AttemptAnswer, error) {
	var answers []model.AttemptAnswer
	err := r.DB.Where("attempt_id = ?", attemptID).Order("question_id asc").Find(&answers).Error
	return answers, err
}

func (r *AttemptRepository) FindAnswerByID(id uint) (*model.AttemptAnswer, error) {
	var a model.AttemptAnswer
	err := r.DB.First(&a, id).Error
	return &a, err
}

// UpdateAnswerScore 保存单题评分并重算总分
func (r *AttemptRepository) UpdateAnswerScore(answer *model.AttemptAnswer) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(answer).Error; err != nil {
			return err
		}
		return recomputeAttemptScore(tx, answer.AttemptID)
	})
}

func (r *AttemptRepository) MarkAnswerEvaluated(id uint, evaluated bool) error {
	return r.DB.Model(&model.AttemptAnswer{}).Where("id = ?", id).
		Update("ai_evaluated", evaluated).Error
}

func recomputeAttemptScore(tx *gorm.DB, attemptID uint) error {
	var total int
	if err := tx.Model(&model.AttemptAnswer{}).
		Where("attempt_id = ?", attemptID).
		Select("COALESCE(SUM(score), 0)").
		Scan(&total).Error; err != nil {
		return err
	}
	return tx.Model(&model.AssessmentAttempt{}).Where("id = ?", attemptID).
		Update("score", total).Error
}
