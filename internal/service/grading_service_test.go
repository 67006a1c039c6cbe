package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"examhub_backend/internal/model"
	"examhub_backend/internal/util"

	"gorm.io/gorm"
)

// fakeGradingStore 内存版评分存储
type fakeGradingStore struct {
	mu       sync.Mutex
	attempts []model.AssessmentAttempt
	answers  map[uint]*model.AttemptAnswer
}

func newFakeGradingStore() *fakeGradingStore {
	return &fakeGradingStore{answers: map[uint]*model.AttemptAnswer{}}
}

func (f *fakeGradingStore) ListByAssessment(assessmentID uint, page, limit int) ([]model.AssessmentAttempt, int64, error) {
	var result []model.AssessmentAttempt
	for _, a := range f.attempts {
		if a.AssessmentID == assessmentID {
			result = append(result, a)
		}
	}
	return result, int64(len(result)), nil
}

func (f *fakeGradingStore) ListAnswers(attemptID uint) ([]model.AttemptAnswer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []model.AttemptAnswer
	for _, a := range f.answers {
		if a.AttemptID == attemptID {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (f *fakeGradingStore) FindAnswerByID(id uint) (*model.AttemptAnswer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.answers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *a
	return &copied, nil
}

func (f *fakeGradingStore) UpdateAnswerScore(answer *model.AttemptAnswer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *answer
	f.answers[answer.ID] = &copied
	return nil
}

func (f *fakeGradingStore) MarkAnswerEvaluated(answerID uint, evaluated bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.answers[answerID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	a.AIEvaluated = evaluated
	return nil
}

// fakeSuggester 可编程的评分建议器
type fakeSuggester struct {
	score int
	err   error
}

func (f *fakeSuggester) SuggestScore(ctx context.Context, question, expectedAnswer, studentAnswer string, maxPoints int) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.score, nil
}

// newGradingFixture 一次已交卷作答：单选(201, 5分) + 主观(202, 10分)
func newGradingFixture(suggester ScoreSuggester) (*GradingService, *fakeGradingStore) {
	store := newFakeGradingStore()
	assessments := newFakeAssessmentStore()

	assessments.assessments[1] = &model.Assessment{
		BaseModel: model.BaseModel{ID: 1},
		CourseID:  10,
		Title:     "第一章测验",
	}
	assessments.questions[1] = []model.Question{
		{
			BaseModel:    model.BaseModel{ID: 101},
			AssessmentID: 1,
			QuestionType: model.QuestionSingleChoice,
			Points:       5,
		},
		{
			BaseModel:      model.BaseModel{ID: 102},
			AssessmentID:   1,
			QuestionType:   model.QuestionFreeText,
			Points:         10,
			ExpectedAnswer: "物体在不受外力时保持静止或匀速直线运动",
		},
	}

	store.attempts = []model.AssessmentAttempt{
		{BaseModel: model.BaseModel{ID: 1}, AssessmentID: 1, UserID: 7, Status: model.AttemptCompleted, Score: 5, MaxScore: 15},
	}
	store.answers[201] = &model.AttemptAnswer{
		BaseModel: model.BaseModel{ID: 201}, AttemptID: 1, QuestionID: 101,
		Score: 5, IsCorrect: true,
	}
	store.answers[202] = &model.AttemptAnswer{
		BaseModel: model.BaseModel{ID: 202}, AttemptID: 1, QuestionID: 102,
		TextAnswer: "物体保持静止或者匀速运动",
	}

	return NewGradingService(store, assessments, suggester), store
}

func TestUpdateScore(t *testing.T) {
	svc, store := newGradingFixture(&fakeSuggester{})

	answer, err := svc.UpdateScore(3, 202, 8)
	if err != nil {
		t.Fatalf("UpdateScore() error = %v", err)
	}
	if answer.Score != 8 {
		t.Errorf("score = %d, want 8", answer.Score)
	}
	if answer.IsCorrect {
		t.Error("partial score should not mark answer correct")
	}
	if answer.GradedAt == nil {
		t.Error("gradedAt not set")
	}
	if answer.GraderID != 3 {
		t.Errorf("graderId = %d, want 3", answer.GraderID)
	}

	stored, _ := store.FindAnswerByID(202)
	if stored.Score != 8 {
		t.Errorf("stored score = %d, want 8", stored.Score)
	}
}

func TestUpdateScoreFullMarksIsCorrect(t *testing.T) {
	svc, _ := newGradingFixture(&fakeSuggester{})

	answer, err := svc.UpdateScore(3, 202, 10)
	if err != nil {
		t.Fatalf("UpdateScore() error = %v", err)
	}
	if !answer.IsCorrect {
		t.Error("full marks should mark answer correct")
	}
}

func TestUpdateScoreRejectsSingleChoice(t *testing.T) {
	svc, _ := newGradingFixture(&fakeSuggester{})

	if _, err := svc.UpdateScore(3, 201, 3); !errors.Is(err, util.ErrNotManuallyGradable) {
		t.Errorf("UpdateScore() on MCQ error = %v, want ErrNotManuallyGradable", err)
	}
}

func TestUpdateScoreOutOfRange(t *testing.T) {
	svc, _ := newGradingFixture(&fakeSuggester{})

	for _, score := range []int{-1, 11} {
		if _, err := svc.UpdateScore(3, 202, score); !errors.Is(err, util.ErrScoreOutOfRange) {
			t.Errorf("UpdateScore(%d) error = %v, want ErrScoreOutOfRange", score, err)
		}
	}
}

func TestUpdateScoreEqualIsNoOp(t *testing.T) {
	svc, store := newGradingFixture(&fakeSuggester{})

	first, err := svc.UpdateScore(3, 202, 8)
	if err != nil {
		t.Fatalf("UpdateScore() error = %v", err)
	}
	firstGradedAt := *first.GradedAt

	// 相同分数重复提交不触发写入
	second, err := svc.UpdateScore(4, 202, 8)
	if err != nil {
		t.Fatalf("repeat UpdateScore() error = %v", err)
	}
	if !second.GradedAt.Equal(firstGradedAt) {
		t.Error("no-op update rewrote gradedAt")
	}

	stored, _ := store.FindAnswerByID(202)
	if stored.GraderID != 3 {
		t.Errorf("no-op update changed grader to %d", stored.GraderID)
	}
}

func TestUpdateScoreClearsEvaluatedFlag(t *testing.T) {
	svc, store := newGradingFixture(&fakeSuggester{score: 6})

	if _, err := svc.EvaluateAnswer(context.Background(), 202); err != nil {
		t.Fatalf("EvaluateAnswer() error = %v", err)
	}
	stored, _ := store.FindAnswerByID(202)
	if !stored.AIEvaluated {
		t.Fatal("aiEvaluated not set after evaluation")
	}

	if _, err := svc.UpdateScore(3, 202, 6); err != nil {
		t.Fatalf("UpdateScore() error = %v", err)
	}
	stored, _ = store.FindAnswerByID(202)
	if stored.AIEvaluated {
		t.Error("aiEvaluated not cleared after manual grading")
	}
}

func TestBatchUpdateScores(t *testing.T) {
	svc, _ := newGradingFixture(&fakeSuggester{})

	result := svc.BatchUpdateScores(3, []ScoreUpdate{
		{AnswerID: 202, Score: 9},  // 成功
		{AnswerID: 201, Score: 3},  // 单选不可评分
		{AnswerID: 999, Score: 1},  // 不存在
	})

	if len(result.Updated) != 1 || result.Updated[0] != 202 {
		t.Errorf("updated = %v, want [202]", result.Updated)
	}
	if len(result.Failed) != 2 {
		t.Errorf("failed = %v, want 2 entries", result.Failed)
	}
	if _, ok := result.Failed[201]; !ok {
		t.Error("MCQ answer missing from failed set")
	}
	if _, ok := result.Failed[999]; !ok {
		t.Error("missing answer not reported as failed")
	}
}

func TestBatchUpdateScoresSkipsUnchanged(t *testing.T) {
	svc, _ := newGradingFixture(&fakeSuggester{})

	if _, err := svc.UpdateScore(3, 202, 8); err != nil {
		t.Fatalf("UpdateScore() error = %v", err)
	}

	result := svc.BatchUpdateScores(3, []ScoreUpdate{{AnswerID: 202, Score: 8}})
	if len(result.Skipped) != 1 || result.Skipped[0] != 202 {
		t.Errorf("skipped = %v, want [202]", result.Skipped)
	}
	if len(result.Updated) != 0 {
		t.Errorf("updated = %v, want empty", result.Updated)
	}
}

func TestEvaluateAnswer(t *testing.T) {
	svc, store := newGradingFixture(&fakeSuggester{score: 7})

	result, err := svc.EvaluateAnswer(context.Background(), 202)
	if err != nil {
		t.Fatalf("EvaluateAnswer() error = %v", err)
	}
	if result.SuggestedScore != 7 {
		t.Errorf("suggestedScore = %d, want 7", result.SuggestedScore)
	}
	if result.Fallback {
		t.Error("fallback flagged although suggester succeeded")
	}

	// 建议分不落库，仅打标记
	stored, _ := store.FindAnswerByID(202)
	if stored.Score != 0 {
		t.Errorf("suggestion persisted to score: %d", stored.Score)
	}
	if !stored.AIEvaluated {
		t.Error("aiEvaluated not set")
	}
}

func TestEvaluateAnswerTwice(t *testing.T) {
	svc, _ := newGradingFixture(&fakeSuggester{score: 7})
	ctx := context.Background()

	if _, err := svc.EvaluateAnswer(ctx, 202); err != nil {
		t.Fatalf("first EvaluateAnswer() error = %v", err)
	}
	if _, err := svc.EvaluateAnswer(ctx, 202); !errors.Is(err, util.ErrAnswerAlreadyEvaluated) {
		t.Errorf("second EvaluateAnswer() error = %v, want ErrAnswerAlreadyEvaluated", err)
	}
}

func TestEvaluateAnswerFallback(t *testing.T) {
	svc, _ := newGradingFixture(&fakeSuggester{err: errors.New("upstream unavailable")})

	result, err := svc.EvaluateAnswer(context.Background(), 202)
	if err != nil {
		t.Fatalf("EvaluateAnswer() error = %v", err)
	}
	if !result.Fallback {
		t.Error("fallback flag not set when suggester fails")
	}
	if result.SuggestedScore < 0 || result.SuggestedScore > 10 {
		t.Errorf("fallback score %d out of range", result.SuggestedScore)
	}
}

func TestEvaluateAnswerRejectsSingleChoice(t *testing.T) {
	svc, _ := newGradingFixture(&fakeSuggester{score: 5})

	if _, err := svc.EvaluateAnswer(context.Background(), 201); !errors.Is(err, util.ErrNotManuallyGradable) {
		t.Errorf("EvaluateAnswer() on MCQ error = %v, want ErrNotManuallyGradable", err)
	}
}

func TestEvaluateAll(t *testing.T) {
	svc, store := newGradingFixture(&fakeSuggester{score: 6})

	results, err := svc.EvaluateAll(context.Background(), 1)
	if err != nil {
		t.Fatalf("EvaluateAll() error = %v", err)
	}
	// 只有主观题会被评估，单选题跳过
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].AnswerID != 202 {
		t.Errorf("evaluated answer = %d, want 202", results[0].AnswerID)
	}

	// 再次全量评估：已标记的答案不重复处理
	results, err = svc.EvaluateAll(context.Background(), 1)
	if err != nil {
		t.Fatalf("second EvaluateAll() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("second run results = %d, want 0", len(results))
	}

	stored, _ := store.FindAnswerByID(202)
	if !stored.AIEvaluated {
		t.Error("aiEvaluated not set after EvaluateAll")
	}
}

func TestGetAttemptAnswers(t *testing.T) {
	svc, _ := newGradingFixture(&fakeSuggester{})

	rows, err := svc.GetAttemptAnswers(1)
	if err != nil {
		t.Fatalf("GetAttemptAnswers() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	for _, row := range rows {
		if row.Question.ID != row.Answer.QuestionID {
			t.Errorf("question %d paired with answer for question %d", row.Question.ID, row.Answer.QuestionID)
		}
	}
}
