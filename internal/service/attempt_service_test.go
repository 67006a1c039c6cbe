package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"examhub_backend/internal/config"
	"examhub_backend/internal/model"
	"examhub_backend/internal/util"

	"gorm.io/gorm"
)

// fakeAttemptStore 内存版作答存储，FinalizeAttempt 复刻条件更新语义
type fakeAttemptStore struct {
	attempts map[uint]*model.AssessmentAttempt
	answers  map[uint][]model.AttemptAnswer
	nextID   uint
	expired  []model.AssessmentAttempt
}

func newFakeAttemptStore() *fakeAttemptStore {
	return &fakeAttemptStore{
		attempts: map[uint]*model.AssessmentAttempt{},
		answers:  map[uint][]model.AttemptAnswer{},
		nextID:   1,
	}
}

func (f *fakeAttemptStore) CreateAttempt(a *model.AssessmentAttempt) error {
	a.ID = f.nextID
	f.nextID++
	copied := *a
	f.attempts[a.ID] = &copied
	return nil
}

func (f *fakeAttemptStore) FindAttemptByID(id uint) (*model.AssessmentAttempt, error) {
	a, ok := f.attempts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *a
	return &copied, nil
}

func (f *fakeAttemptStore) FindAttemptByUserAndAssessment(userID, assessmentID uint) (*model.AssessmentAttempt, error) {
	for _, a := range f.attempts {
		if a.UserID == userID && a.AssessmentID == assessmentID {
			copied := *a
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeAttemptStore) FinalizeAttempt(a *model.AssessmentAttempt, answers []model.AttemptAnswer) (bool, error) {
	stored, ok := f.attempts[a.ID]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	if stored.Status != model.AttemptInProgress {
		return false, nil
	}
	stored.Status = model.AttemptCompleted
	stored.Score = a.Score
	stored.MaxScore = a.MaxScore
	stored.CompletedAt = a.CompletedAt
	stored.IsTimeout = a.IsTimeout
	for i := range answers {
		answers[i].AttemptID = a.ID
	}
	f.answers[a.ID] = answers
	return true, nil
}

func (f *fakeAttemptStore) ListExpiredAttempts(now time.Time) ([]model.AssessmentAttempt, error) {
	return f.expired, nil
}

func (f *fakeAttemptStore) ListAnswers(attemptID uint) ([]model.AttemptAnswer, error) {
	return f.answers[attemptID], nil
}

// fakeAssessmentStore 内存版测试与选课数据
type fakeAssessmentStore struct {
	assessments map[uint]*model.Assessment
	questions   map[uint][]model.Question
	enrollments map[[2]uint]bool // [userID, courseID]
}

func newFakeAssessmentStore() *fakeAssessmentStore {
	return &fakeAssessmentStore{
		assessments: map[uint]*model.Assessment{},
		questions:   map[uint][]model.Question{},
		enrollments: map[[2]uint]bool{},
	}
}

func (f *fakeAssessmentStore) FindAssessmentByID(id uint) (*model.Assessment, error) {
	a, ok := f.assessments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return a, nil
}

func (f *fakeAssessmentStore) FindQuestionByID(id uint) (*model.Question, error) {
	for _, qs := range f.questions {
		for i := range qs {
			if qs[i].ID == id {
				return &qs[i], nil
			}
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeAssessmentStore) ListQuestions(assessmentID uint) ([]model.Question, error) {
	return f.questions[assessmentID], nil
}

func (f *fakeAssessmentStore) IsEnrolled(userID, courseID uint) (bool, error) {
	return f.enrollments[[2]uint{userID, courseID}], nil
}

// memDraftStore 内存版草稿存储
type memDraftStore struct {
	drafts map[uint]map[uint]AnswerDraft
}

func newMemDraftStore() *memDraftStore {
	return &memDraftStore{drafts: map[uint]map[uint]AnswerDraft{}}
}

func (m *memDraftStore) SaveDraft(ctx context.Context, attemptID, questionID uint, draft AnswerDraft, ttl time.Duration) error {
	if m.drafts[attemptID] == nil {
		m.drafts[attemptID] = map[uint]AnswerDraft{}
	}
	m.drafts[attemptID][questionID] = draft
	return nil
}

func (m *memDraftStore) GetDrafts(ctx context.Context, attemptID uint) (map[uint]AnswerDraft, error) {
	result := map[uint]AnswerDraft{}
	for qid, d := range m.drafts[attemptID] {
		result[qid] = d
	}
	return result, nil
}

func (m *memDraftStore) ClearDrafts(ctx context.Context, attemptID uint) error {
	delete(m.drafts, attemptID)
	return nil
}

func uintPtr(v uint) *uint { return &v }

// newTestFixture 一门课、一份两题的已发布测试（单选 5 分 + 主观 10 分）
func newTestFixture() (*AttemptService, *fakeAttemptStore, *fakeAssessmentStore, *memDraftStore) {
	attempts := newFakeAttemptStore()
	assessments := newFakeAssessmentStore()
	drafts := newMemDraftStore()

	assessments.assessments[1] = &model.Assessment{
		BaseModel:   model.BaseModel{ID: 1},
		CourseID:    10,
		Title:       "第一章测验",
		TimeLimit:   30,
		IsPublished: true,
	}
	assessments.questions[1] = []model.Question{
		{
			BaseModel:    model.BaseModel{ID: 101},
			AssessmentID: 1,
			QuestionType: model.QuestionSingleChoice,
			Content:      "1+1=?",
			Points:       5,
			Order:        1,
			Options: []model.QuestionOption{
				{BaseModel: model.BaseModel{ID: 1001}, QuestionID: 101, Content: "1", IsCorrect: false},
				{BaseModel: model.BaseModel{ID: 1002}, QuestionID: 101, Content: "2", IsCorrect: true},
			},
		},
		{
			BaseModel:      model.BaseModel{ID: 102},
			AssessmentID:   1,
			QuestionType:   model.QuestionFreeText,
			Content:        "解释牛顿第一定律",
			Points:         10,
			Order:          2,
			ExpectedAnswer: "物体在不受外力时保持静止或匀速直线运动",
		},
	}
	assessments.enrollments[[2]uint{7, 10}] = true

	svc := NewAttemptService(attempts, assessments, drafts, config.AttemptConfig{
		SweepIntervalSeconds: 10,
		DraftTTLSlackMinutes: 30,
	})
	return svc, attempts, assessments, drafts
}

func TestStartAttempt(t *testing.T) {
	svc, _, _, _ := newTestFixture()

	attempt, err := svc.StartAttempt(7, 1)
	if err != nil {
		t.Fatalf("StartAttempt() error = %v", err)
	}
	if attempt.Status != model.AttemptInProgress {
		t.Errorf("status = %s, want in_progress", attempt.Status)
	}
	if attempt.MaxScore != 15 {
		t.Errorf("maxScore = %d, want 15", attempt.MaxScore)
	}
	if attempt.StartedAt.IsZero() {
		t.Error("startedAt not set")
	}
}

func TestStartAttemptDuplicate(t *testing.T) {
	svc, _, _, _ := newTestFixture()

	if _, err := svc.StartAttempt(7, 1); err != nil {
		t.Fatalf("first StartAttempt() error = %v", err)
	}
	if _, err := svc.StartAttempt(7, 1); !errors.Is(err, util.ErrAttemptExists) {
		t.Errorf("second StartAttempt() error = %v, want ErrAttemptExists", err)
	}
}

func TestStartAttemptUnpublished(t *testing.T) {
	svc, _, assessments, _ := newTestFixture()
	assessments.assessments[1].IsPublished = false

	if _, err := svc.StartAttempt(7, 1); !errors.Is(err, util.ErrAssessmentNotPublished) {
		t.Errorf("StartAttempt() error = %v, want ErrAssessmentNotPublished", err)
	}
}

func TestStartAttemptNotEnrolled(t *testing.T) {
	svc, _, _, _ := newTestFixture()

	if _, err := svc.StartAttempt(99, 1); !errors.Is(err, util.ErrNotEnrolled) {
		t.Errorf("StartAttempt() error = %v, want ErrNotEnrolled", err)
	}
}

func TestSaveDraftChecksOwnership(t *testing.T) {
	svc, _, _, _ := newTestFixture()
	ctx := context.Background()

	attempt, err := svc.StartAttempt(7, 1)
	if err != nil {
		t.Fatalf("StartAttempt() error = %v", err)
	}

	draft := AnswerDraft{SelectedOptionID: uintPtr(1002)}
	if err := svc.SaveDraft(ctx, 99, attempt.ID, 101, draft); !errors.Is(err, util.ErrPermissionDenied) {
		t.Errorf("SaveDraft() by stranger error = %v, want ErrPermissionDenied", err)
	}
	if err := svc.SaveDraft(ctx, 7, attempt.ID, 101, draft); err != nil {
		t.Errorf("SaveDraft() by owner error = %v", err)
	}
}

func TestSubmitAttemptScoresSingleChoice(t *testing.T) {
	svc, attempts, _, _ := newTestFixture()
	ctx := context.Background()

	attempt, err := svc.StartAttempt(7, 1)
	if err != nil {
		t.Fatalf("StartAttempt() error = %v", err)
	}

	answers := map[uint]AnswerDraft{
		101: {SelectedOptionID: uintPtr(1002)},
		102: {TextAnswer: "物体保持原有运动状态"},
	}

	submitted, err := svc.SubmitAttempt(ctx, 7, attempt.ID, answers, false)
	if err != nil {
		t.Fatalf("SubmitAttempt() error = %v", err)
	}

	if submitted.Status != model.AttemptCompleted {
		t.Errorf("status = %s, want completed", submitted.Status)
	}
	// 单选答对得 5 分，主观题等待人工评分
	if submitted.Score != 5 {
		t.Errorf("score = %d, want 5", submitted.Score)
	}

	stored, _ := attempts.ListAnswers(attempt.ID)
	if len(stored) != 2 {
		t.Fatalf("stored answers = %d, want 2", len(stored))
	}
	for _, a := range stored {
		switch a.QuestionID {
		case 101:
			if !a.IsCorrect || a.Score != 5 {
				t.Errorf("MCQ answer: isCorrect=%v score=%d, want true/5", a.IsCorrect, a.Score)
			}
		case 102:
			if a.Score != 0 || a.IsCorrect {
				t.Errorf("free text answer should start ungraded, got score=%d isCorrect=%v", a.Score, a.IsCorrect)
			}
		}
	}
}

func TestSubmitAttemptWrongOptionScoresZero(t *testing.T) {
	svc, _, _, _ := newTestFixture()
	ctx := context.Background()

	attempt, _ := svc.StartAttempt(7, 1)
	answers := map[uint]AnswerDraft{
		101: {SelectedOptionID: uintPtr(1001)},
		102: {TextAnswer: "x"},
	}

	submitted, err := svc.SubmitAttempt(ctx, 7, attempt.ID, answers, false)
	if err != nil {
		t.Fatalf("SubmitAttempt() error = %v", err)
	}
	if submitted.Score != 0 {
		t.Errorf("score = %d, want 0", submitted.Score)
	}
}

func TestSubmitAttemptUnansweredNeedsConfirmation(t *testing.T) {
	svc, _, _, _ := newTestFixture()
	ctx := context.Background()

	attempt, _ := svc.StartAttempt(7, 1)
	answers := map[uint]AnswerDraft{
		101: {SelectedOptionID: uintPtr(1002)},
	}

	if _, err := svc.SubmitAttempt(ctx, 7, attempt.ID, answers, false); !errors.Is(err, util.ErrUnansweredQuestions) {
		t.Fatalf("SubmitAttempt() without force error = %v, want ErrUnansweredQuestions", err)
	}

	// force 确认后允许带空答案交卷
	submitted, err := svc.SubmitAttempt(ctx, 7, attempt.ID, answers, true)
	if err != nil {
		t.Fatalf("SubmitAttempt() with force error = %v", err)
	}
	if submitted.Score != 5 {
		t.Errorf("score = %d, want 5", submitted.Score)
	}
}

func TestSubmitAttemptTwice(t *testing.T) {
	svc, _, _, _ := newTestFixture()
	ctx := context.Background()

	attempt, _ := svc.StartAttempt(7, 1)
	answers := map[uint]AnswerDraft{
		101: {SelectedOptionID: uintPtr(1002)},
		102: {TextAnswer: "x"},
	}

	if _, err := svc.SubmitAttempt(ctx, 7, attempt.ID, answers, false); err != nil {
		t.Fatalf("first SubmitAttempt() error = %v", err)
	}
	if _, err := svc.SubmitAttempt(ctx, 7, attempt.ID, answers, false); !errors.Is(err, util.ErrAttemptCompleted) {
		t.Errorf("second SubmitAttempt() error = %v, want ErrAttemptCompleted", err)
	}
}

func TestSubmitAttemptFallsBackToDrafts(t *testing.T) {
	svc, _, _, drafts := newTestFixture()
	ctx := context.Background()

	attempt, _ := svc.StartAttempt(7, 1)
	svc.SaveDraft(ctx, 7, attempt.ID, 101, AnswerDraft{SelectedOptionID: uintPtr(1002)})
	svc.SaveDraft(ctx, 7, attempt.ID, 102, AnswerDraft{TextAnswer: "惯性"})

	submitted, err := svc.SubmitAttempt(ctx, 7, attempt.ID, nil, false)
	if err != nil {
		t.Fatalf("SubmitAttempt() from drafts error = %v", err)
	}
	if submitted.Score != 5 {
		t.Errorf("score = %d, want 5", submitted.Score)
	}

	// 交卷后草稿清空
	left, _ := drafts.GetDrafts(ctx, attempt.ID)
	if len(left) != 0 {
		t.Errorf("drafts not cleared after submit, %d left", len(left))
	}
}

func TestRemainingSeconds(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name      string
		startedAt time.Time
		limit     int
		want      int
	}{
		{"just started", now, 30, 30 * 60},
		{"halfway", now.Add(-15 * time.Minute), 30, 15 * 60},
		{"expired", now.Add(-31 * time.Minute), 30, 0},
		{"no limit", now, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RemainingSeconds(tt.startedAt, tt.limit, now)
			if got != tt.want {
				t.Errorf("RemainingSeconds() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetAttemptDetailHidesResultsBeforeRelease(t *testing.T) {
	svc, attempts, assessments, _ := newTestFixture()
	ctx := context.Background()

	attempt, _ := svc.StartAttempt(7, 1)

	// 作答中：有剩余时间、题目不含正确答案
	detail, err := svc.GetAttemptDetail(ctx, 7, attempt.ID)
	if err != nil {
		t.Fatalf("GetAttemptDetail() error = %v", err)
	}
	if detail.RemainingSeconds <= 0 {
		t.Error("expected positive remaining time for in-progress attempt")
	}
	for _, q := range detail.Questions {
		for _, opt := range q.Options {
			if opt.IsCorrect != nil {
				t.Error("correct answers leaked to in-progress attempt view")
			}
		}
		if q.ExpectedAnswer != nil {
			t.Error("expected answer leaked to in-progress attempt view")
		}
	}

	answers := map[uint]AnswerDraft{
		101: {SelectedOptionID: uintPtr(1002)},
		102: {TextAnswer: "惯性定律"},
	}
	if _, err := svc.SubmitAttempt(ctx, 7, attempt.ID, answers, false); err != nil {
		t.Fatalf("SubmitAttempt() error = %v", err)
	}

	// 已交卷、成绩未发布：不返回分数
	detail, err = svc.GetAttemptDetail(ctx, 7, attempt.ID)
	if err != nil {
		t.Fatalf("GetAttemptDetail() error = %v", err)
	}
	if detail.Score != nil {
		t.Error("score visible before results released")
	}

	// 发布成绩后：完整批阅视图
	attempts.attempts[attempt.ID].ResultsReleased = true
	assessments.assessments[1].ResultsReleased = true

	detail, err = svc.GetAttemptDetail(ctx, 7, attempt.ID)
	if err != nil {
		t.Fatalf("GetAttemptDetail() error = %v", err)
	}
	if detail.Score == nil || *detail.Score != 5 {
		t.Errorf("score after release = %v, want 5", detail.Score)
	}
	sawExpected := false
	for _, q := range detail.Questions {
		if q.ExpectedAnswer != nil {
			sawExpected = true
		}
	}
	if !sawExpected {
		t.Error("expected answer missing from released review view")
	}
}

func TestGetAttemptDetailDeniesStranger(t *testing.T) {
	svc, _, _, _ := newTestFixture()

	attempt, _ := svc.StartAttempt(7, 1)
	if _, err := svc.GetAttemptDetail(context.Background(), 99, attempt.ID); !errors.Is(err, util.ErrPermissionDenied) {
		t.Errorf("GetAttemptDetail() by stranger error = %v, want ErrPermissionDenied", err)
	}
}

func TestProcessExpiredAttempts(t *testing.T) {
	svc, attempts, _, _ := newTestFixture()
	ctx := context.Background()

	attempt, _ := svc.StartAttempt(7, 1)
	svc.SaveDraft(ctx, 7, attempt.ID, 101, AnswerDraft{SelectedOptionID: uintPtr(1002)})

	// 模拟超时扫描命中
	stored := attempts.attempts[attempt.ID]
	stored.StartedAt = time.Now().Add(-31 * time.Minute)
	attempts.expired = []model.AssessmentAttempt{*stored}

	if err := svc.ProcessExpiredAttempts(); err != nil {
		t.Fatalf("ProcessExpiredAttempts() error = %v", err)
	}

	final, _ := attempts.FindAttemptByID(attempt.ID)
	if final.Status != model.AttemptCompleted {
		t.Errorf("status = %s, want completed", final.Status)
	}
	if !final.IsTimeout {
		t.Error("isTimeout not set on auto-submitted attempt")
	}
	// 草稿即最终答案
	if final.Score != 5 {
		t.Errorf("score = %d, want 5", final.Score)
	}
}

func TestProcessExpiredAttemptsSkipsAlreadySubmitted(t *testing.T) {
	svc, attempts, _, _ := newTestFixture()
	ctx := context.Background()

	attempt, _ := svc.StartAttempt(7, 1)
	answers := map[uint]AnswerDraft{
		101: {SelectedOptionID: uintPtr(1002)},
		102: {TextAnswer: "x"},
	}
	if _, err := svc.SubmitAttempt(ctx, 7, attempt.ID, answers, false); err != nil {
		t.Fatalf("SubmitAttempt() error = %v", err)
	}

	// 扫描列表还带着旧快照，条件更新必须拒绝二次交卷
	snapshot := *attempts.attempts[attempt.ID]
	snapshot.Status = model.AttemptInProgress
	attempts.expired = []model.AssessmentAttempt{snapshot}

	if err := svc.ProcessExpiredAttempts(); err != nil {
		t.Fatalf("ProcessExpiredAttempts() error = %v", err)
	}

	final, _ := attempts.FindAttemptByID(attempt.ID)
	if final.IsTimeout {
		t.Error("manually submitted attempt flagged as timeout by sweeper")
	}
	if final.Score != 5 {
		t.Errorf("score overwritten by sweeper: %d, want 5", final.Score)
	}
}

func TestGetAttemptStatus(t *testing.T) {
	svc, _, _, _ := newTestFixture()

	info, err := svc.GetAttemptStatus(7, 1)
	if err != nil {
		t.Fatalf("GetAttemptStatus() error = %v", err)
	}
	if info.Attempted {
		t.Error("expected attempted=false before starting")
	}

	if _, err := svc.StartAttempt(7, 1); err != nil {
		t.Fatalf("StartAttempt() error = %v", err)
	}

	info, err = svc.GetAttemptStatus(7, 1)
	if err != nil {
		t.Fatalf("GetAttemptStatus() error = %v", err)
	}
	if !info.Attempted {
		t.Error("expected attempted=true after starting")
	}
}
