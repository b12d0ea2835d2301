package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"golang.org/x/time/rate"

	"github.com/lamim/testforge/internal/config"
	"github.com/lamim/testforge/internal/metrics"
)

func TestChatCompletion_Success(t *testing.T) {
	// Create mock server
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Verify headers
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected Authorization header 'Bearer test-key', got '%s'", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected Content-Type 'application/json', got '%s'", r.Header.Get("Content-Type"))
		}

		// Return mock response
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{
			"id": "test-123",
			"object": "chat.completion",
			"created": 1234567890,
			"model": "test-model",
			"choices": [{
				"index": 0,
				"message": {
					"role": "assistant",
					"content": "Test response"
				},
				"finish_reason": "stop"
			}],
			"usage": {
				"prompt_tokens": 10,
				"completion_tokens": 5,
				"total_tokens": 15
			}
		}`))
	}))
	defer server.Close()

	// Create client
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	client := NewClient(logger, nil)

	// Create test config
	modelCfg := config.ModelConfig{
		BaseURL:            server.URL,
		ModelName:          "test-model",
		Temperature:        0.7,
		TopP:               1.0,
		MaxOutputTokens:    100,
		RateLimitPerMinute: 60,
	}

	// Make request
	resp, err := client.ChatCompletion(
		context.Background(),
		modelCfg,
		"test-key",
		[]Message{{Role: "user", Content: "Test message"}},
	)

	// Verify
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if resp == nil {
		t.Fatal("Expected response, got nil")
	}
	if len(resp.Choices) != 1 {
		t.Fatalf("Expected 1 choice, got %d", len(resp.Choices))
	}
	if resp.Choices[0].Message.Content != "Test response" {
		t.Errorf("Expected content 'Test response', got '%s'", resp.Choices[0].Message.Content)
	}
}

func TestChatCompletion_RateLimiting(t *testing.T) {
	callCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{
			"id": "test",
			"object": "chat.completion",
			"created": 1234567890,
			"model": "test",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "ok"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2}
		}`))
	}))
	defer server.Close()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	client := NewClient(logger, nil)

	modelCfg := config.ModelConfig{
		BaseURL:            server.URL,
		ModelName:          "test",
		RateLimitPerMinute: 60, // 1 per second
	}

	// Make 3 rapid requests; the burst of 5 lets them through without waiting
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := client.ChatCompletion(ctx, modelCfg, "test", []Message{{Role: "user", Content: "test"}})
		if err != nil {
			t.Fatalf("Request %d failed: %v", i, err)
		}
	}

	// Verify all requests completed
	if callCount != 3 {
		t.Errorf("Expected 3 API calls, got %d", callCount)
	}
}

func TestChatCompletion_RetryOn500(t *testing.T) {
	attemptCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attemptCount++
		if attemptCount < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error": {"message": "Server error"}}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{
			"id": "test",
			"object": "chat.completion",
			"created": 1234567890,
			"model": "test",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "success"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2}
		}`))
	}))
	defer server.Close()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	client := NewClient(logger, nil)
	client.maxRetries = 3
	client.baseRetryDelay = 1 // 1ms for fast testing

	modelCfg := config.ModelConfig{
		BaseURL:            server.URL,
		ModelName:          "test",
		RateLimitPerMinute: 1000,
	}

	resp, err := client.ChatCompletion(context.Background(), modelCfg, "test", []Message{{Role: "user", Content: "test"}})

	if err != nil {
		t.Fatalf("Expected success after retries, got error: %v", err)
	}
	if attemptCount != 3 {
		t.Errorf("Expected 3 attempts (2 retries), got %d", attemptCount)
	}
	if resp.Choices[0].Message.Content != "success" {
		t.Errorf("Expected 'success', got '%s'", resp.Choices[0].Message.Content)
	}
}

func TestComplete_SendsPromptsAndJSONMode(t *testing.T) {
	var got ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("Expected path /v1/chat/completions, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"test_points\": []}"}, "finish_reason": "stop"}]
		}`))
	}))
	defer server.Close()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	client := NewClient(logger, metrics.NewCollector(logger))

	modelCfg := config.ModelConfig{
		BaseURL:            server.URL + "/v1/",
		ModelName:          "json-model",
		RateLimitPerMinute: 600,
		UseJSONMode:        true,
	}

	content, err := client.Complete(context.Background(), modelCfg, "k", "be terse", "list test points")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if content != `{"test_points": []}` {
		t.Errorf("Unexpected content %q", content)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "list test points" {
		t.Errorf("Unexpected messages: %+v", got.Messages)
	}
	if got.ResponseFormat == nil || got.ResponseFormat.Type != "json_object" {
		t.Errorf("Expected json_object response format, got %+v", got.ResponseFormat)
	}
}

func TestChatCompletion_NoRetryOn400(t *testing.T) {
	attemptCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attemptCount++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "bad model", "type": "invalid_request_error", "code": "model_not_found"}}`))
	}))
	defer server.Close()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	client := NewClient(logger, nil)
	client.baseRetryDelay = 1

	modelCfg := config.ModelConfig{BaseURL: server.URL, ModelName: "missing", RateLimitPerMinute: 1000}

	_, err := client.ChatCompletion(context.Background(), modelCfg, "k", []Message{{Role: "user", Content: "x"}})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Code != "model_not_found" {
		t.Errorf("Unexpected error fields: %+v", apiErr)
	}
	if attemptCount != 1 {
		t.Errorf("Expected 1 attempt, got %d", attemptCount)
	}
}

func TestChatCompletion_MaxRetriesFromModelConfig(t *testing.T) {
	attemptCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attemptCount++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	client := NewClient(logger, nil)
	client.baseRetryDelay = 1

	modelCfg := config.ModelConfig{BaseURL: server.URL, ModelName: "flaky", RateLimitPerMinute: 1000, MaxRetries: 1}

	_, err := client.ChatCompletion(context.Background(), modelCfg, "k", []Message{{Role: "user", Content: "x"}})

	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if attemptCount != 2 {
		t.Errorf("Expected 2 attempts, got %d", attemptCount)
	}
}

func TestRateLimiterPool_ReusesLimiter(t *testing.T) {
	pool := NewRateLimiterPool(nil)

	first := pool.GetOrCreate("a:m", 60)
	second := pool.GetOrCreate("a:m", 120)
	if first != second {
		t.Error("Expected the existing limiter to be reused")
	}
	if first.Burst() != 12 {
		t.Errorf("Unexpected burst %d", first.Burst())
	}

	unlimited := pool.GetOrCreate("b:m", 0)
	if err := unlimited.Wait(context.Background()); err != nil {
		t.Errorf("Unlimited limiter should never block: %v", err)
	}
}

func TestLimitFor(t *testing.T) {
	tests := []struct {
		rpm       int
		wantBurst int
		unlimited bool
	}{
		{rpm: 0, wantBurst: 1, unlimited: true},
		{rpm: -5, wantBurst: 1, unlimited: true},
		{rpm: 10, wantBurst: 5},
		{rpm: 600, wantBurst: 120},
	}

	for _, tt := range tests {
		limit, burst := limitFor(tt.rpm)
		if burst != tt.wantBurst {
			t.Errorf("limitFor(%d) burst = %d, want %d", tt.rpm, burst, tt.wantBurst)
		}
		if tt.unlimited != (limit == rate.Inf) {
			t.Errorf("limitFor(%d) limit = %v, unlimited want %v", tt.rpm, limit, tt.unlimited)
		}
	}
}

func TestChatCompletion_NumericErrorCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "context too long", "type": "invalid_request_error", "code": 40001}}`))
	}))
	defer server.Close()

	client := NewClient(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})), nil)
	modelCfg := config.ModelConfig{BaseURL: server.URL, ModelName: "m", RateLimitPerMinute: 1000}

	_, err := client.ChatCompletion(context.Background(), modelCfg, "k", []Message{{Role: RoleUser, Content: "x"}})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.Code != "40001" {
		t.Errorf("Expected code 40001, got %q", apiErr.Code)
	}
	if apiErr.Retryable {
		t.Error("400 should not be retryable")
	}
}

func TestComplete_IgnoresReasoningContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"choices": [{
				"message": {"role": "assistant", "content": "{\"test_points\": []}", "reasoning_content": "thinking about login flows"},
				"finish_reason": "length"
			}],
			"usage": {"prompt_tokens": 3, "completion_tokens": 4, "total_tokens": 7}
		}`))
	}))
	defer server.Close()

	client := NewClient(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})), metrics.NewCollector(nil))
	modelCfg := config.ModelConfig{BaseURL: server.URL, ModelName: "reasoner", RateLimitPerMinute: 1000}

	got, err := client.Complete(context.Background(), modelCfg, "k", "", "generate")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != `{"test_points": []}` {
		t.Errorf("Complete() = %q", got)
	}
}

func TestIsStatusCodeRetryable(t *testing.T) {
	for code, want := range map[int]bool{
		http.StatusTooManyRequests:     true,
		http.StatusBadGateway:          true,
		http.StatusGatewayTimeout:      true,
		http.StatusBadRequest:          false,
		http.StatusUnauthorized:        false,
		http.StatusNotFound:            false,
		http.StatusInternalServerError: true,
	} {
		if got := isStatusCodeRetryable(code); got != want {
			t.Errorf("isStatusCodeRetryable(%d) = %v, want %v", code, got, want)
		}
	}
}
