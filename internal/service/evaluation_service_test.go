package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"examhub_backend/internal/config"
)

func TestKeywordMatchScore(t *testing.T) {
	tests := []struct {
		name      string
		expected  string
		student   string
		maxPoints int
		want      int
	}{
		{
			name:      "partial keyword overlap",
			expected:  "The mitochondria is the powerhouse of the cell",
			student:   "mitochondria produce energy",
			maxPoints: 10,
			// 关键词 mitochondria/powerhouse/cell 命中 1 个
			want: 3,
		},
		{
			name:      "full overlap",
			expected:  "The mitochondria is the powerhouse of the cell",
			student:   "the mitochondria is the powerhouse of the cell",
			maxPoints: 10,
			want:      10,
		},
		{
			name:      "no overlap",
			expected:  "photosynthesis converts sunlight",
			student:   "mitosis splits cells",
			maxPoints: 10,
			want:      0,
		},
		{
			name:      "empty student answer",
			expected:  "gravity pulls objects together",
			student:   "",
			maxPoints: 5,
			want:      0,
		},
		{
			name:      "no qualifying keywords",
			expected:  "a is b",
			student:   "a is b",
			maxPoints: 10,
			want:      0,
		},
		{
			name:      "substring match counts",
			expected:  "evaporation occurs",
			student:   "evaporations occurs quickly",
			maxPoints: 6,
			want:      6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := KeywordMatchScore(tt.expected, tt.student, tt.maxPoints)
			if got != tt.want {
				t.Errorf("KeywordMatchScore() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestClampScore(t *testing.T) {
	tests := []struct {
		score     int
		maxPoints int
		want      int
	}{
		{-5, 10, 0},
		{0, 10, 0},
		{7, 10, 7},
		{10, 10, 10},
		{15, 10, 10},
	}

	for _, tt := range tests {
		if got := ClampScore(tt.score, tt.maxPoints); got != tt.want {
			t.Errorf("ClampScore(%d, %d) = %d, want %d", tt.score, tt.maxPoints, got, tt.want)
		}
	}
}

func TestParseSuggestedScore(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		maxPoints int
		want      int
		wantErr   bool
	}{
		{name: "bare number", content: "7", maxPoints: 10, want: 7},
		{name: "number in sentence", content: "我给这个回答 8 分", maxPoints: 10, want: 8},
		{name: "negative clamped to zero", content: "-3", maxPoints: 10, want: 0},
		{name: "above max clamped", content: "15", maxPoints: 10, want: 10},
		{name: "no number", content: "无法评分", maxPoints: 10, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSuggestedScore(tt.content, tt.maxPoints)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseSuggestedScore() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseSuggestedScore() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSuggestScore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", got)
		}

		var req ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Messages) != 2 {
			t.Errorf("expected 2 messages, got %d", len(req.Messages))
		}

		resp := ChatCompletionResponse{}
		resp.Choices = []struct {
			Message AIChatMessage `json:"message"`
		}{
			{Message: AIChatMessage{Role: "assistant", Content: "8"}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	svc := NewEvaluationService(config.AIConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Model:   "test-model",
	})

	score, err := svc.SuggestScore(context.Background(), "什么是光合作用？", "植物利用光能合成有机物", "植物吸收阳光制造养分", 10)
	if err != nil {
		t.Fatalf("SuggestScore() error = %v", err)
	}
	if score != 8 {
		t.Errorf("SuggestScore() = %d, want 8", score)
	}
}

func TestSuggestScoreServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	svc := NewEvaluationService(config.AIConfig{BaseURL: server.URL, APIKey: "k", Model: "m"})

	if _, err := svc.SuggestScore(context.Background(), "q", "a", "b", 10); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestUpdateConfigSwitchesEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := ChatCompletionResponse{}
		resp.Choices = []struct {
			Message AIChatMessage `json:"message"`
		}{
			{Message: AIChatMessage{Role: "assistant", Content: "5"}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	svc := NewEvaluationService(config.AIConfig{BaseURL: "http://127.0.0.1:1", APIKey: "k", Model: "m"})
	svc.UpdateConfig(config.AIConfig{BaseURL: server.URL, APIKey: "k", Model: "m"})

	score, err := svc.SuggestScore(context.Background(), "q", "a", "b", 10)
	if err != nil {
		t.Fatalf("SuggestScore() after UpdateConfig error = %v", err)
	}
	if score != 5 {
		t.Errorf("SuggestScore() = %d, want 5", score)
	}
}
