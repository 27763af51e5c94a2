package questionnaire

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"mindmovie/internal/services"
	"mindmovie/internal/services/anthropic"
)

type scriptedCompleter struct {
	replies []string
	calls   int
	gotLast []anthropic.Message
}

func (s *scriptedCompleter) Complete(ctx context.Context, system string, conversation []anthropic.Message) (string, error) {
	s.gotLast = conversation
	if s.calls >= len(s.replies) {
		return "", errors.New("script exhausted")
	}
	reply := s.replies[s.calls]
	s.calls++
	return reply, nil
}

func TestRunCompletesOnMarker(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{
		"What does a healthy week look like for you?",
		"Thank you for sharing so much.\n" + CompletionMarker,
	}}
	input := strings.NewReader("I wake up by the ocean\nI run every morning\n")
	var output strings.Builder
	engine, err := NewEngine(completer, input, &output)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	transcript, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !transcript.Completed {
		t.Fatal("transcript not marked complete")
	}
	if strings.Contains(output.String(), CompletionMarker) {
		t.Fatal("marker leaked into user output")
	}
	for _, message := range transcript.Messages {
		if strings.Contains(message.Content, CompletionMarker) {
			t.Fatal("marker leaked into transcript")
		}
	}
	// Opening question + 2 user answers + 2 assistant replies.
	if len(transcript.Messages) != 5 {
		t.Fatalf("transcript has %d messages, want 5", len(transcript.Messages))
	}
	if completer.gotLast[0].Role != "assistant" {
		t.Fatalf("conversation should open with the assistant question")
	}
}

func TestRunDoneCommandFinishesEarly(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{"And your career?"}}
	input := strings.NewReader("/done\n")
	var output strings.Builder
	engine, err := NewEngine(completer, input, &output)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	transcript, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !transcript.Completed {
		t.Fatal("early exit should mark transcript complete")
	}
	if completer.calls != 0 {
		t.Fatal("/done should not reach the model")
	}
}

func TestRunTurnLimit(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{"q1", "q2", "q3", "q4", "q5"}}
	input := strings.NewReader("a\nb\nc\nd\ne\n")
	var output strings.Builder
	engine, err := NewEngine(completer, input, &output, WithMaxTurns(3))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	_, err = engine.Run(context.Background())
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error at turn limit, got %v", err)
	}
}

func TestRunSkipsEmptyAnswers(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{"done\n" + CompletionMarker}}
	input := strings.NewReader("\nmy real answer\n")
	var output strings.Builder
	engine, err := NewEngine(completer, input, &output)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	transcript, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if completer.calls != 1 {
		t.Fatalf("model called %d times, want 1", completer.calls)
	}
	if !transcript.Completed {
		t.Fatal("transcript not complete")
	}
}

func TestRunPropagatesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	completer := &scriptedCompleter{}
	engine, err := NewEngine(completer, strings.NewReader("answer\n"), &strings.Builder{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if _, err := engine.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTranscriptRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.json")
	original := &Transcript{
		Messages: []anthropic.Message{
			{Role: "assistant", Content: "q"},
			{Role: "user", Content: "a"},
		},
		Completed: true,
	}
	if err := SaveTranscript(path, original); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadTranscript(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Messages) != 2 || !loaded.Completed {
		t.Fatalf("unexpected transcript: %+v", loaded)
	}
}
