package service

import (
	"context"
	"examhub_backend/internal/model"
	"examhub_backend/internal/util"
	"examhub_backend/pkg/logger"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// GradingStore 评分所需的作答读写，由 repository.AttemptRepository 实现
type GradingStore interface {
	ListByAssessment(assessmentID uint, page, limit int) ([]model.AssessmentAttempt, int64, error)
	ListAnswers(attemptID uint) ([]model.AttemptAnswer, error)
	FindAnswerByID(id uint) (*model.AttemptAnswer, error)
	UpdateAnswerScore(answer *model.AttemptAnswer) error
	MarkAnswerEvaluated(answerID uint, evaluated bool) error
}

// ScoreSuggester AI 评分建议，由 EvaluationService 实现
type ScoreSuggester interface {
	SuggestScore(ctx context.Context, question, expectedAnswer, studentAnswer string, maxPoints int) (int, error)
}

type GradingService struct {
	Store       GradingStore
	Assessments AssessmentStore
	Suggester   ScoreSuggester
}

func NewGradingService(store GradingStore, assessments AssessmentStore, suggester ScoreSuggester) *GradingService {
	return &GradingService{Store: store, Assessments: assessments, Suggester: suggester}
}

func (s *GradingService) ListAttempts(assessmentID uint, page, limit int) ([]model.AssessmentAttempt, int64, error) {
	return s.Store.ListByAssessment(assessmentID, page, limit)
}

// AnswerReviewRow 批阅视图：题目与作答并排展示
type AnswerReviewRow struct {
	Answer   model.AttemptAnswer `json:"answer"`
	Question model.Question      `json:"question"`
}

func (s *GradingService) GetAttemptAnswers(attemptID uint) ([]AnswerReviewRow, error) {
	answers, err := s.Store.ListAnswers(attemptID)
	if err != nil {
		return nil, err
	}

	rows := make([]AnswerReviewRow, 0, len(answers))
	for _, a := range answers {
		q, err := s.Assessments.FindQuestionByID(a.QuestionID)
		if err != nil {
			return nil, err
		}
		rows = append(rows, AnswerReviewRow{Answer: a, Question: *q})
	}
	return rows, nil
}

// UpdateScore 人工评分。仅主观题可改分；分数必须落在 [0, 题目分值] 区间；
// 与已存分数相同的提交视为无变化直接返回，不触发任何写入。
func (s *GradingService) UpdateScore(graderID, answerID uint, score int) (*model.AttemptAnswer, error) {
	answer, err := s.Store.FindAnswerByID(answerID)
	if err != nil {
		return nil, util.ErrAnswerNotFound
	}

	question, err := s.Assessments.FindQuestionByID(answer.QuestionID)
	if err != nil {
		return nil, err
	}
	if question.QuestionType != model.QuestionFreeText {
		return nil, util.ErrNotManuallyGradable
	}
	if score < 0 || score > question.Points {
		return nil, util.ErrScoreOutOfRange
	}
	if answer.Score == score && answer.GradedAt != nil {
		return answer, nil
	}

	now := time.Now()
	answer.Score = score
	answer.IsCorrect = score == question.Points
	answer.GradedAt = &now
	answer.GraderID = graderID
	answer.AIEvaluated = false

	if err := s.Store.UpdateAnswerScore(answer); err != nil {
		return nil, err
	}
	return answer, nil
}

// BatchResult 批量评分结果：按条记录成功、跳过与失败，单条失败不影响其余
type BatchResult struct {
	Updated []uint          `json:"updated"`
	Skipped []uint          `json:"skipped"`
	Failed  map[uint]string `json:"failed"`
}

type ScoreUpdate struct {
	AnswerID uint `json:"answerId" binding:"required"`
	Score    int  `json:"score"`
}

// BatchUpdateScores 并发批量评分，逐条收敛结果
func (s *GradingService) BatchUpdateScores(graderID uint, updates []ScoreUpdate) *BatchResult {
	result := &BatchResult{Failed: map[uint]string{}}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, u := range updates {
		wg.Add(1)
		go func(u ScoreUpdate) {
			defer wg.Done()

			answer, err := s.Store.FindAnswerByID(u.AnswerID)
			if err == nil && answer.Score == u.Score && answer.GradedAt != nil {
				mu.Lock()
				result.Skipped = append(result.Skipped, u.AnswerID)
				mu.Unlock()
				return
			}

			if _, err := s.UpdateScore(graderID, u.AnswerID, u.Score); err != nil {
				mu.Lock()
				result.Failed[u.AnswerID] = err.Error()
				mu.Unlock()
				return
			}
			mu.Lock()
			result.Updated = append(result.Updated, u.AnswerID)
			mu.Unlock()
		}(u)
	}
	wg.Wait()
	return result
}

// EvaluationResult AI 辅助评分建议（不落分，仅供教师参考）
type EvaluationResult struct {
	AnswerID       uint `json:"answerId"`
	SuggestedScore int  `json:"suggestedScore"`
	MaxPoints      int  `json:"maxPoints"`
	Fallback       bool `json:"fallback"` // AI 不可用时回退到关键词匹配
}

// EvaluateAnswer 为单条主观题作答生成评分建议。已生成过建议的答案
// 需先人工改分清除标记后才能重新评估。
func (s *GradingService) EvaluateAnswer(ctx context.Context, answerID uint) (*EvaluationResult, error) {
	answer, err := s.Store.FindAnswerByID(answerID)
	if err != nil {
		return nil, util.ErrAnswerNotFound
	}
	if answer.AIEvaluated {
		return nil, util.ErrAnswerAlreadyEvaluated
	}

	question, err := s.Assessments.FindQuestionByID(answer.QuestionID)
	if err != nil {
		return nil, err
	}
	if question.QuestionType != model.QuestionFreeText {
		return nil, util.ErrNotManuallyGradable
	}

	result := &EvaluationResult{AnswerID: answerID, MaxPoints: question.Points}

	score, err := s.Suggester.SuggestScore(ctx, question.Content, question.ExpectedAnswer, answer.TextAnswer, question.Points)
	if err != nil {
		logger.Log.Warn("AI 评分不可用，回退到关键词匹配",
			zap.Uint("answerId", answerID), zap.Error(err))
		score = KeywordMatchScore(question.ExpectedAnswer, answer.TextAnswer, question.Points)
		result.Fallback = true
	}
	result.SuggestedScore = score

	if err := s.Store.MarkAnswerEvaluated(answerID, true); err != nil {
		return nil, err
	}
	return result, nil
}

// EvaluateAll 为某次测试下所有未评估的主观题作答并发生成建议
func (s *GradingService) EvaluateAll(ctx context.Context, assessmentID uint) ([]EvaluationResult, error) {
	attempts, _, err := s.Store.ListByAssessment(assessmentID, 1, 0)
	if err != nil {
		return nil, err
	}

	var pending []uint
	for _, attempt := range attempts {
		answers, err := s.Store.ListAnswers(attempt.ID)
		if err != nil {
			return nil, err
		}
		for _, a := range answers {
			if a.AIEvaluated {
				continue
			}
			q, err := s.Assessments.FindQuestionByID(a.QuestionID)
			if err != nil {
				return nil, err
			}
			if q.QuestionType == model.QuestionFreeText {
				pending = append(pending, a.ID)
			}
		}
	}

	results := make([]EvaluationResult, 0, len(pending))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, id := range pending {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			r, err := s.EvaluateAnswer(ctx, id)
			if err != nil {
				logger.Log.Warn("批量评估单条失败",
					zap.Uint("answerId", id), zap.Error(err))
				return
			}
			mu.Lock()
			results = append(results, *r)
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	if len(pending) > 0 && len(results) == 0 {
		return nil, fmt.Errorf("所有待评估作答均处理失败")
	}
	return results, nil
}
