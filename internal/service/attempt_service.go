package service

import (
	"context"
	"errors"
	"examhub_backend/internal/config"
	"examhub_backend/internal/model"
	"examhub_backend/internal/util"
	"examhub_backend/pkg/logger"
	"examhub_backend/pkg/monitoring"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AttemptStore 作答记录存取，由 repository.AttemptRepository 实现
type AttemptStore interface {
	CreateAttempt(a *model.AssessmentAttempt) error
	FindAttemptByID(id uint) (*model.AssessmentAttempt, error)
	FindAttemptByUserAndAssessment(userID, assessmentID uint) (*model.AssessmentAttempt, error)
	FinalizeAttempt(a *model.AssessmentAttempt, answers []model.AttemptAnswer) (bool, error)
	ListExpiredAttempts(now time.Time) ([]model.AssessmentAttempt, error)
	ListAnswers(attemptID uint) ([]model.AttemptAnswer, error)
}

// AssessmentStore 测试与题目读取，由 repository.AssessmentRepository 与
// repository.CourseRepository 组合实现
type AssessmentStore interface {
	FindAssessmentByID(id uint) (*model.Assessment, error)
	FindQuestionByID(id uint) (*model.Question, error)
	ListQuestions(assessmentID uint) ([]model.Question, error)
	IsEnrolled(userID, courseID uint) (bool, error)
}

type AttemptService struct {
	Attempts    AttemptStore
	Assessments AssessmentStore
	Drafts      DraftStore
	Cfg         config.AttemptConfig
}

func NewAttemptService(attempts AttemptStore, assessments AssessmentStore, drafts DraftStore, cfg config.AttemptConfig) *AttemptService {
	return &AttemptService{
		Attempts:    attempts,
		Assessments: assessments,
		Drafts:      drafts,
		Cfg:         cfg,
	}
}

// AttemptStatusInfo 开考前的查询结果：已作答时客户端据此跳转成绩页或课程列表
type AttemptStatusInfo struct {
	Attempted       bool                     `json:"attempted"`
	ResultsReleased bool                     `json:"resultsReleased"`
	Attempt         *model.AssessmentAttempt `json:"attempt,omitempty"`
}

func (s *AttemptService) GetAttemptStatus(userID, assessmentID uint) (*AttemptStatusInfo, error) {
	attempt, err := s.Attempts.FindAttemptByUserAndAssessment(userID, assessmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &AttemptStatusInfo{Attempted: false}, nil
		}
		return nil, err
	}
	info := &AttemptStatusInfo{
		Attempted:       true,
		ResultsReleased: attempt.ResultsReleased,
		Attempt:         attempt,
	}
	if !attempt.ResultsReleased {
		info.Attempt = sanitizeAttemptSummary(attempt)
	}
	return info, nil
}

// StartAttempt 开始作答。重复作答在创建任何记录之前短路返回 ErrAttemptExists。
func (s *AttemptService) StartAttempt(userID, assessmentID uint) (*model.AssessmentAttempt, error) {
	if _, err := s.Attempts.FindAttemptByUserAndAssessment(userID, assessmentID); err == nil {
		return nil, util.ErrAttemptExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	assessment, err := s.Assessments.FindAssessmentByID(assessmentID)
	if err != nil {
		return nil, util.ErrAssessmentNotFound
	}
	if !assessment.IsPublished {
		return nil, util.ErrAssessmentNotPublished
	}

	enrolled, err := s.Assessments.IsEnrolled(userID, assessment.CourseID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, util.ErrNotEnrolled
	}

	questions, err := s.Assessments.ListQuestions(assessmentID)
	if err != nil {
		return nil, err
	}

	maxScore := 0
	for _, q := range questions {
		maxScore += q.Points
	}

	attempt := &model.AssessmentAttempt{
		AssessmentID:    assessmentID,
		UserID:          userID,
		Status:          model.AttemptInProgress,
		StartedAt:       time.Now(),
		MaxScore:        maxScore,
		ResultsReleased: assessment.ResultsReleased,
	}

	if err := s.Attempts.CreateAttempt(attempt); err != nil {
		return nil, err
	}
	return attempt, nil
}

// SaveDraft 保存单题草稿，覆盖写，不校验内容（空答案也是合法状态）
func (s *AttemptService) SaveDraft(ctx context.Context, userID, attemptID, questionID uint, draft AnswerDraft) error {
	attempt, err := s.Attempts.FindAttemptByID(attemptID)
	if err != nil {
		return util.ErrAttemptNotFound
	}
	if attempt.UserID != userID {
		return util.ErrPermissionDenied
	}
	if attempt.Status != model.AttemptInProgress {
		return util.ErrAttemptCompleted
	}

	assessment, err := s.Assessments.FindAssessmentByID(attempt.AssessmentID)
	if err != nil {
		return err
	}

	ttl := time.Duration(assessment.TimeLimit+s.Cfg.DraftTTLSlackMinutes) * time.Minute
	return s.Drafts.SaveDraft(ctx, attemptID, questionID, draft, ttl)
}

// StudentQuestion 学生可见的题目视图，选项不带正确性标志；
// 成绩发布后补充作答结果、正确选项与参考答案。
type StudentQuestion struct {
	ID             uint                 `json:"id"`
	QuestionType   string               `json:"questionType"`
	Content        string               `json:"content"`
	AttachmentURL  string               `json:"attachmentUrl,omitempty"`
	Points         int                  `json:"points"`
	Order          int                  `json:"order"`
	Options        []StudentOption      `json:"options,omitempty"`
	Answer         *StudentAnswerReview `json:"answer,omitempty"`
	ExpectedAnswer *string              `json:"expectedAnswer,omitempty"`
}

type StudentOption struct {
	ID        uint   `json:"id"`
	Content   string `json:"content"`
	Order     int    `json:"order"`
	IsCorrect *bool  `json:"isCorrect,omitempty"` // 仅成绩发布后返回
}

type StudentAnswerReview struct {
	SelectedOptionID *uint  `json:"selectedOptionId,omitempty"`
	TextAnswer       string `json:"textAnswer,omitempty"`
	Score            int    `json:"score"`
	IsCorrect        bool   `json:"isCorrect"`
}

// AttemptDetail 作答页/成绩页数据
type AttemptDetail struct {
	ID               uint                  `json:"id"`
	AssessmentID     uint                  `json:"assessmentId"`
	Title            string                `json:"title"`
	Description      string                `json:"description"`
	Status           model.AttemptStatus   `json:"status"`
	StartedAt        time.Time             `json:"startedAt"`
	TimeLimit        int                   `json:"timeLimit"`        // 分钟
	RemainingSeconds int                   `json:"remainingSeconds"` // 服务端按 StartedAt 实时计算
	ResultsReleased  bool                  `json:"resultsReleased"`
	Score            *int                  `json:"score,omitempty"`
	MaxScore         *int                  `json:"maxScore,omitempty"`
	IsTimeout        *bool                 `json:"isTimeout,omitempty"`
	Questions        []StudentQuestion     `json:"questions"`
	Drafts           map[uint]AnswerDraft  `json:"drafts,omitempty"`
}

// GetAttemptDetail 学生端作答详情。作答中返回剩余秒数、脱敏题目与草稿；
// 已交卷但成绩未发布时不返回分数、正确性与参考答案。
func (s *AttemptService) GetAttemptDetail(ctx context.Context, userID, attemptID uint) (*AttemptDetail, error) {
	attempt, err := s.Attempts.FindAttemptByID(attemptID)
	if err != nil {
		return nil, util.ErrAttemptNotFound
	}
	if attempt.UserID != userID {
		return nil, util.ErrPermissionDenied
	}

	assessment, err := s.Assessments.FindAssessmentByID(attempt.AssessmentID)
	if err != nil {
		return nil, err
	}
	questions, err := s.Assessments.ListQuestions(attempt.AssessmentID)
	if err != nil {
		return nil, err
	}

	detail := &AttemptDetail{
		ID:              attempt.ID,
		AssessmentID:    attempt.AssessmentID,
		Title:           assessment.Title,
		Description:     assessment.Description,
		Status:          attempt.Status,
		StartedAt:       attempt.StartedAt,
		TimeLimit:       assessment.TimeLimit,
		ResultsReleased: attempt.ResultsReleased,
	}

	switch attempt.Status {
	case model.AttemptInProgress:
		detail.RemainingSeconds = RemainingSeconds(attempt.StartedAt, assessment.TimeLimit, time.Now())
		detail.Questions = sanitizeQuestions(questions)
		drafts, err := s.Drafts.GetDrafts(ctx, attemptID)
		if err != nil {
			logger.Log.Warn("failed to load answer drafts", zap.Uint("attemptId", attemptID), zap.Error(err))
		} else {
			detail.Drafts = drafts
		}

	case model.AttemptCompleted:
		detail.RemainingSeconds = 0
		if !attempt.ResultsReleased {
			// 成绩未发布：只给状态，不给分数与任何答案信息
			detail.Questions = sanitizeQuestions(questions)
			return detail, nil
		}
		answers, err := s.Attempts.ListAnswers(attemptID)
		if err != nil {
			return nil, err
		}
		detail.Score = &attempt.Score
		detail.MaxScore = &attempt.MaxScore
		detail.IsTimeout = &attempt.IsTimeout
		detail.Questions = reviewQuestions(questions, answers)
	}

	return detail, nil
}

// SubmitAttempt 交卷。answers 为 nil 时回落到服务端草稿（超时自动交卷路径）。
// force 为 false 时存在未作答题目会返回 ErrUnansweredQuestions 要求确认。
func (s *AttemptService) SubmitAttempt(ctx context.Context, userID, attemptID uint, answers map[uint]AnswerDraft, force bool) (*model.AssessmentAttempt, error) {
	attempt, err := s.Attempts.FindAttemptByID(attemptID)
	if err != nil {
		return nil, util.ErrAttemptNotFound
	}
	if attempt.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	if attempt.Status != model.AttemptInProgress {
		return nil, util.ErrAttemptCompleted
	}

	if answers == nil {
		answers, err = s.Drafts.GetDrafts(ctx, attemptID)
		if err != nil {
			return nil, err
		}
	}

	questions, err := s.Assessments.ListQuestions(attempt.AssessmentID)
	if err != nil {
		return nil, err
	}

	if !force && countUnanswered(questions, answers) > 0 {
		return nil, util.ErrUnansweredQuestions
	}

	finalized, err := s.finalize(attempt, questions, answers, false)
	if err != nil {
		return nil, err
	}
	if !finalized {
		return nil, util.ErrAttemptCompleted
	}

	monitoring.AttemptSubmissions.WithLabelValues("manual").Inc()
	if err := s.Drafts.ClearDrafts(ctx, attemptID); err != nil {
		logger.Log.Warn("failed to clear answer drafts", zap.Uint("attemptId", attemptID), zap.Error(err))
	}
	return attempt, nil
}

// ProcessExpiredAttempts 后台扫描：为所有超时未交卷的作答自动交卷，
// 草稿即最终答案，不需要任何确认。条件更新保证与手动提交至多一次生效。
func (s *AttemptService) ProcessExpiredAttempts() error {
	expired, err := s.Attempts.ListExpiredAttempts(time.Now())
	if err != nil {
		return err
	}

	ctx := context.Background()
	for i := range expired {
		attempt := &expired[i]

		questions, err := s.Assessments.ListQuestions(attempt.AssessmentID)
		if err != nil {
			logger.Log.Error("timeout submit: load questions failed",
				zap.Uint("attemptId", attempt.ID), zap.Error(err))
			continue
		}

		drafts, err := s.Drafts.GetDrafts(ctx, attempt.ID)
		if err != nil {
			logger.Log.Warn("timeout submit: load drafts failed, submitting empty answers",
				zap.Uint("attemptId", attempt.ID), zap.Error(err))
			drafts = map[uint]AnswerDraft{}
		}

		finalized, err := s.finalize(attempt, questions, drafts, true)
		if err != nil {
			logger.Log.Error("timeout submit failed",
				zap.Uint("attemptId", attempt.ID), zap.Error(err))
			continue
		}
		if !finalized {
			continue
		}

		monitoring.AttemptSubmissions.WithLabelValues("timeout").Inc()
		if err := s.Drafts.ClearDrafts(ctx, attempt.ID); err != nil {
			logger.Log.Warn("failed to clear answer drafts", zap.Uint("attemptId", attempt.ID), zap.Error(err))
		}
		logger.Log.Info("attempt auto-submitted on timeout",
			zap.Uint("attemptId", attempt.ID), zap.Uint("assessmentId", attempt.AssessmentID))
	}
	return nil
}

// finalize 为每道题生成一条答案记录（未作答也落库）、即时判定单选题得分，
// 通过条件更新落定成绩。返回 false 表示已被其他路径交卷。
func (s *AttemptService) finalize(attempt *model.AssessmentAttempt, questions []model.Question, answers map[uint]AnswerDraft, isTimeout bool) (bool, error) {
	records := make([]model.AttemptAnswer, 0, len(questions))
	mcqScore := 0
	maxScore := 0

	for _, q := range questions {
		maxScore += q.Points
		draft := answers[q.ID]
		record := model.AttemptAnswer{
			QuestionID: q.ID,
		}

		switch q.QuestionType {
		case model.QuestionSingleChoice:
			record.SelectedOptionID = draft.SelectedOptionID
			if draft.SelectedOptionID != nil && isCorrectOption(q, *draft.SelectedOptionID) {
				record.IsCorrect = true
				record.Score = q.Points
				mcqScore += q.Points
			}
		case model.QuestionFreeText:
			// 主观题零分入库，等待人工或 AI 辅助评分
			record.TextAnswer = draft.TextAnswer
		}

		records = append(records, record)
	}

	now := time.Now()
	attempt.Score = mcqScore
	attempt.MaxScore = maxScore
	attempt.CompletedAt = &now
	attempt.IsTimeout = isTimeout
	attempt.Status = model.AttemptCompleted

	return s.Attempts.FinalizeAttempt(attempt, records)
}

// RemainingSeconds 剩余作答秒数，以服务端记录的开始时间为准
func RemainingSeconds(startedAt time.Time, timeLimitMinutes int, now time.Time) int {
	if timeLimitMinutes <= 0 {
		return 0
	}
	remaining := timeLimitMinutes*60 - int(now.Sub(startedAt).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}

func countUnanswered(questions []model.Question, answers map[uint]AnswerDraft) int {
	unanswered := 0
	for _, q := range questions {
		if answers[q.ID].Empty() {
			unanswered++
		}
	}
	return unanswered
}

func isCorrectOption(q model.Question, optionID uint) bool {
	for _, opt := range q.Options {
		if opt.ID == optionID {
			return opt.IsCorrect
		}
	}
	return false
}

func sanitizeQuestions(questions []model.Question) []StudentQuestion {
	result := make([]StudentQuestion, len(questions))
	for i, q := range questions {
		sq := StudentQuestion{
			ID:            q.ID,
			QuestionType:  q.QuestionType,
			Content:       q.Content,
			AttachmentURL: q.AttachmentURL,
			Points:        q.Points,
			Order:         q.Order,
		}
		for _, opt := range q.Options {
			sq.Options = append(sq.Options, StudentOption{
				ID:      opt.ID,
				Content: opt.Content,
				Order:   opt.Order,
			})
		}
		result[i] = sq
	}
	return result
}

// reviewQuestions 成绩发布后的完整视图：含正确选项、参考答案与作答结果
func reviewQuestions(questions []model.Question, answers []model.AttemptAnswer) []StudentQuestion {
	answerMap := make(map[uint]model.AttemptAnswer, len(answers))
	for _, a := range answers {
		answerMap[a.QuestionID] = a
	}

	result := make([]StudentQuestion, len(questions))
	for i, q := range questions {
		sq := StudentQuestion{
			ID:            q.ID,
			QuestionType:  q.QuestionType,
			Content:       q.Content,
			AttachmentURL: q.AttachmentURL,
			Points:        q.Points,
			Order:         q.Order,
		}
		for _, opt := range q.Options {
			isCorrect := opt.IsCorrect
			sq.Options = append(sq.Options, StudentOption{
				ID:        opt.ID,
				Content:   opt.Content,
				Order:     opt.Order,
				IsCorrect: &isCorrect,
			})
		}
		if q.QuestionType == model.QuestionFreeText && q.ExpectedAnswer != "" {
			expected := q.ExpectedAnswer
			sq.ExpectedAnswer = &expected
		}
		if a, ok := answerMap[q.ID]; ok {
			sq.Answer = &StudentAnswerReview{
				SelectedOptionID: a.SelectedOptionID,
				TextAnswer:       a.TextAnswer,
				Score:            a.Score,
				IsCorrect:        a.IsCorrect,
			}
		}
		result[i] = sq
	}
	return result
}

func sanitizeAttemptSummary(a *model.AssessmentAttempt) *model.AssessmentAttempt {
	summary := *a
	summary.Score = 0
	summary.MaxScore = 0
	return &summary
}
