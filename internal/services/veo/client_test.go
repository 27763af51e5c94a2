package veo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"mindmovie/internal/services"
)

func instantSleeper(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func newTestServer(t *testing.T, pollsUntilDone int, clipData []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/models/", func(w http.ResponseWriter, r *http.Request) {
		var body submitRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode submit: %v", err)
		}
		if len(body.Instances) != 1 || body.Instances[0].Prompt == "" {
			t.Errorf("submit missing prompt: %+v", body)
		}
		json.NewEncoder(w).Encode(map[string]any{"name": "operations/op-1"})
	})
	mux.HandleFunc("/operations/op-1", func(w http.ResponseWriter, r *http.Request) {
		if int(polls.Add(1)) < pollsUntilDone {
			json.NewEncoder(w).Encode(map[string]any{"name": "operations/op-1", "done": false})
			return
		}
		server := "http://" + r.Host
		json.NewEncoder(w).Encode(map[string]any{
			"name": "operations/op-1",
			"done": true,
			"response": map[string]any{
				"generateVideoResponse": map[string]any{
					"generatedSamples": []map[string]any{
						{"video": map[string]string{"uri": server + "/files/clip.mp4"}},
					},
				},
			},
		})
	})
	mux.HandleFunc("/files/clip.mp4", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") == "" {
			t.Errorf("download missing api key header")
		}
		w.Write(clipData)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &polls
}

func TestGenerateClipFullFlow(t *testing.T) {
	clipData := []byte("fake mp4 bytes")
	server, polls := newTestServer(t, 3, clipData)
	client := NewClient(Config{
		APIKey:           "k",
		BaseURL:          server.URL,
		Model:            "veo-3.1-fast-generate-preview",
		Resolution:       "720p",
		AspectRatio:      "16:9",
		SubmitsPerMinute: 6000,
	}, WithSleeper(instantSleeper))

	output := filepath.Join(t.TempDir(), "scene_00.mp4")
	if err := client.GenerateClip(context.Background(), "sunrise over mountains", output); err != nil {
		t.Fatalf("generate: %v", err)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read clip: %v", err)
	}
	if string(data) != string(clipData) {
		t.Fatal("downloaded clip does not match server payload")
	}
	if polls.Load() != 3 {
		t.Fatalf("polls = %d, want 3", polls.Load())
	}
}

func TestGenerateClipPollTimeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/models/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"name": "operations/op-1"})
	})
	mux.HandleFunc("/operations/op-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"name": "operations/op-1", "done": false})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(Config{
		APIKey:           "k",
		BaseURL:          server.URL,
		Model:            "m",
		RequestTimeout:   time.Millisecond,
		SubmitsPerMinute: 6000,
	}, WithSleeper(instantSleeper))

	err := client.GenerateClip(context.Background(), "prompt", filepath.Join(t.TempDir(), "out.mp4"))
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestGenerateClipFilteredContent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/models/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"name": "operations/op-1"})
	})
	mux.HandleFunc("/operations/op-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"name": "operations/op-1",
			"done": true,
			"response": map[string]any{
				"generateVideoResponse": map[string]any{
					"generatedSamples":        []any{},
					"raiMediaFilteredCount":   1,
					"raiMediaFilteredReasons": []string{"safety"},
				},
			},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL, Model: "m", SubmitsPerMinute: 6000},
		WithSleeper(instantSleeper))
	err := client.GenerateClip(context.Background(), "prompt", filepath.Join(t.TempDir(), "out.mp4"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for filtered content, got %v", err)
	}
	if !strings.Contains(err.Error(), "safety") {
		t.Fatalf("error does not carry filter reason: %v", err)
	}
}

func TestGenerateClipOperationErrorClassification(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{3, services.ErrValidation},
		{8, services.ErrRateLimited},
		{13, services.ErrTransient},
		{14, services.ErrTransient},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("code_%d", tt.code), func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/models/", func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{"name": "operations/op-1"})
			})
			mux.HandleFunc("/operations/op-1", func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{
					"name":  "operations/op-1",
					"done":  true,
					"error": map[string]any{"code": tt.code, "message": "boom"},
				})
			})
			server := httptest.NewServer(mux)
			defer server.Close()

			client := NewClient(Config{APIKey: "k", BaseURL: server.URL, Model: "m", SubmitsPerMinute: 6000},
				WithSleeper(instantSleeper))
			err := client.GenerateClip(context.Background(), "prompt", filepath.Join(t.TempDir(), "out.mp4"))
			if !errors.Is(err, tt.want) {
				t.Fatalf("code %d: got %v, want marker %v", tt.code, err, tt.want)
			}
		})
	}
}

func TestGenerateClipAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "m", SubmitsPerMinute: 6000},
		WithSleeper(instantSleeper))
	err := client.GenerateClip(context.Background(), "prompt", filepath.Join(t.TempDir(), "out.mp4"))
	if !errors.Is(err, services.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestGenerateClipRequiresConfig(t *testing.T) {
	client := NewClient(Config{Model: "m"})
	err := client.GenerateClip(context.Background(), "prompt", "out.mp4")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	client = NewClient(Config{APIKey: "k", Model: "m"})
	err = client.GenerateClip(context.Background(), "  ", "out.mp4")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestClipSecondsFixed(t *testing.T) {
	client := NewClient(Config{APIKey: "k", Model: "m"})
	if client.ClipSeconds() != 8 {
		t.Fatalf("clip seconds = %d, want 8", client.ClipSeconds())
	}
}
