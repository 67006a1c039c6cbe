package service

import (
	"bytes"
	"context"
	"encoding/json"
	"examhub_backend/internal/config"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode"
)

// EvaluationService 调用外部大模型接口为主观题给出建议分
type EvaluationService struct {
	mu     sync.RWMutex
	config config.AIConfig
	client *http.Client
}

func NewEvaluationService(cfg config.AIConfig) *EvaluationService {
	return &EvaluationService{
		config: cfg,
		client: &http.Client{},
	}
}

// UpdateConfig 配置热加载回调
func (s *EvaluationService) UpdateConfig(cfg config.AIConfig) {
	s.mu.Lock()
	s.config = cfg
	s.mu.Unlock()
}

type AIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatCompletionRequest struct {
	Model    string          `json:"model"`
	Messages []AIChatMessage `json:"messages"`
}

type ChatCompletionResponse struct {
	Choices []struct {
		Message AIChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

var scorePattern = regexp.MustCompile(`-?\d+`)

// SuggestScore 请求外部接口为一道主观题评分，返回 [0, maxPoints] 内的整数建议分
func (s *EvaluationService) SuggestScore(ctx context.Context, question, expectedAnswer, studentAnswer string, maxPoints int) (int, error) {
	s.mu.RLock()
	cfg := s.config
	s.mu.RUnlock()

	prompt := fmt.Sprintf(
		"请为下面这道主观题的学生作答评分。\n\n题目：%s\n满分：%d 分\n", question, maxPoints)
	if expectedAnswer != "" {
		prompt += fmt.Sprintf("参考答案：%s\n", expectedAnswer)
	}
	prompt += fmt.Sprintf("学生作答：%s\n\n只输出一个 0 到 %d 之间的整数分数，不要输出任何其他内容。", studentAnswer, maxPoints)

	messages := []AIChatMessage{
		{
			Role:    "system",
			Content: "你是一个严谨的阅卷助教，根据参考答案和题意为学生作答打分，只返回整数分数。",
		},
		{
			Role:    "user",
			Content: prompt,
		},
	}

	reqBody := ChatCompletionRequest{
		Model:    cfg.Model,
		Messages: messages,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", cfg.BaseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return 0, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("AI API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result ChatCompletionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, err
	}

	if len(result.Choices) == 0 {
		return 0, fmt.Errorf("AI returned no choices")
	}

	return parseSuggestedScore(result.Choices[0].Message.Content, maxPoints)
}

// parseSuggestedScore 从模型回复中提取首个整数并裁剪到 [0, maxPoints]
func parseSuggestedScore(content string, maxPoints int) (int, error) {
	match := scorePattern.FindString(content)
	if match == "" {
		return 0, fmt.Errorf("no score found in AI response: %q", content)
	}
	score, err := strconv.Atoi(match)
	if err != nil {
		return 0, err
	}
	return ClampScore(score, maxPoints), nil
}

// ClampScore 裁剪分数到 [0, maxPoints]
func ClampScore(score, maxPoints int) int {
	if score < 0 {
		return 0
	}
	if score > maxPoints {
		return maxPoints
	}
	return score
}

// KeywordMatchScore 本地兜底评分：取参考答案中长度大于 3 的词，
// 统计在学生作答词中双向子串命中的数量，按命中比例线性折算分数。
func KeywordMatchScore(expectedAnswer, studentAnswer string, maxPoints int) int {
	expectedWords := tokenizeWords(expectedAnswer)
	keywords := make([]string, 0, len(expectedWords))
	for _, w := range expectedWords {
		if len([]rune(w)) > 3 {
			keywords = append(keywords, w)
		}
	}
	if len(keywords) == 0 {
		return 0
	}

	studentWords := tokenizeWords(studentAnswer)
	matched := 0
	for _, kw := range keywords {
		for _, sw := range studentWords {
			if strings.Contains(sw, kw) || strings.Contains(kw, sw) {
				matched++
				break
			}
		}
	}

	score := int(math.Round(float64(maxPoints) * float64(matched) / float64(len(keywords))))
	return ClampScore(score, maxPoints)
}

// tokenizeWords 小写化并按非字母数字切词
func tokenizeWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
