package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"mindmovie/internal/services"
)

func textReply(text string) string {
	reply := map[string]any{
		"content":     []map[string]string{{"type": "text", "text": text}},
		"stop_reason": "end_turn",
	}
	encoded, _ := json.Marshal(reply)
	return string(encoded)
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	base := []Option{WithSleeper(func(time.Duration) {})}
	return NewClient(Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "claude-sonnet-4-20250514",
	}, append(base, opts...)...)
}

func TestCompleteSendsConversation(t *testing.T) {
	var gotBody messagesRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Errorf("missing version header")
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(textReply("Hello there")))
	})

	text, err := client.Complete(context.Background(), "be brief", []Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
		{Role: "user", Content: "how are you"},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if text != "Hello there" {
		t.Fatalf("text = %q", text)
	}
	if gotBody.System != "be brief" {
		t.Fatalf("system = %q", gotBody.System)
	}
	if len(gotBody.Messages) != 3 {
		t.Fatalf("messages = %d", len(gotBody.Messages))
	}
	if gotBody.MaxTokens <= 0 {
		t.Fatal("max_tokens not set")
	}
}

func TestCompleteRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(textReply("recovered")))
	})

	text, err := client.CompleteJSON(context.Background(), "", "prompt")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if text != "recovered" {
		t.Fatalf("text = %q", text)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestCompleteHonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	var slept time.Duration
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(textReply("ok")))
	}))
	defer server.Close()
	client := NewClient(Config{APIKey: "k", BaseURL: server.URL, Model: "m"},
		WithSleeper(func(d time.Duration) { slept = d }))

	if _, err := client.CompleteJSON(context.Background(), "", "prompt"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if slept != 7*time.Second {
		t.Fatalf("slept %s, want 7s from Retry-After", slept)
	}
}

func TestCompleteDoesNotRetryAuthFailure(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.CompleteJSON(context.Background(), "", "prompt")
	if !errors.Is(err, services.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestCompleteGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, WithRetryMaxAttempts(3))

	if _, err := client.CompleteJSON(context.Background(), "", "prompt"); err == nil {
		t.Fatal("expected failure after retries exhausted")
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestCompleteRequiresAPIKey(t *testing.T) {
	client := NewClient(Config{Model: "m"})
	_, err := client.CompleteJSON(context.Background(), "", "prompt")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestCompleteEmptyContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[],"stop_reason":"max_tokens"}`))
	}, WithRetryMaxAttempts(1))
	if _, err := client.CompleteJSON(context.Background(), "", "prompt"); err == nil {
		t.Fatal("expected error for empty content")
	}
}

func TestDecodeJSONPayload(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{"bare", `{"name":"a"}`, "a", false},
		{"fenced", "```json\n{\"name\":\"b\"}\n```", "b", false},
		{"fenced no lang", "```\n{\"name\":\"c\"}\n```", "c", false},
		{"prose wrapped", "Here you go:\n{\"name\":\"d\"}\nEnjoy!", "d", false},
		{"empty", "", "", true},
		{"not json", "sorry, I cannot do that", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got payload
			err := DecodeJSONPayload(tt.content, &got)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected decode error")
				}
				return
			}
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Name != tt.want {
				t.Fatalf("name = %q, want %q", got.Name, tt.want)
			}
		})
	}
}
