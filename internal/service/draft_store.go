package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// AnswerDraft 作答中的单题草稿，按题型二选一填写
type AnswerDraft struct {
	SelectedOptionID *uint  `json:"selectedOptionId,omitempty"`
	TextAnswer       string `json:"textAnswer,omitempty"`
}

// Empty 未作答：既没选选项也没写文字
func (d AnswerDraft) Empty() bool {
	return d.SelectedOptionID == nil && d.TextAnswer == ""
}

// DraftStore 作答草稿存取。草稿只在作答期间存在，交卷即清空，
// 丢失草稿不影响已提交的数据。
type DraftStore interface {
	SaveDraft(ctx context.Context, attemptID, questionID uint, draft AnswerDraft, ttl time.Duration) error
	GetDrafts(ctx context.Context, attemptID uint) (map[uint]AnswerDraft, error)
	ClearDrafts(ctx context.Context, attemptID uint) error
}

// RedisDraftStore 以 hash 存储一次作答的全部草稿，field 为题目ID
type RedisDraftStore struct {
	RDB *redis.Client
}

func NewRedisDraftStore(rdb *redis.Client) *RedisDraftStore {
	return &RedisDraftStore{RDB: rdb}
}

func draftKey(attemptID uint) string {
	return fmt.Sprintf("attempt:draft:%d", attemptID)
}

func (s *RedisDraftStore) SaveDraft(ctx context.Context, attemptID, questionID uint, draft AnswerDraft, ttl time.Duration) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return err
	}
	key := draftKey(attemptID)
	if err := s.RDB.HSet(ctx, key, fmt.Sprintf("%d", questionID), data).Err(); err != nil {
		return err
	}
	return s.RDB.Expire(ctx, key, ttl).Err()
}

func (s *RedisDraftStore) GetDrafts(ctx context.Context, attemptID uint) (map[uint]AnswerDraft, error) {
	fields, err := s.RDB.HGetAll(ctx, draftKey(attemptID)).Result()
	if err != nil {
		return nil, err
	}

	drafts := make(map[uint]AnswerDraft, len(fields))
	for field, raw := range fields {
		var qid uint
		if _, err := fmt.Sscanf(field, "%d", &qid); err != nil {
			continue
		}
		var d AnswerDraft
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			continue
		}
		drafts[qid] = d
	}
	return drafts, nil
}

func (s *RedisDraftStore) ClearDrafts(ctx context.Context, attemptID uint) error {
	return s.RDB.Del(ctx, draftKey(attemptID)).Err()
}
