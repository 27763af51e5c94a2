package questionnaire

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"mindmovie/internal/fileutil"
	"mindmovie/internal/logging"
	"mindmovie/internal/services"
	"mindmovie/internal/services/anthropic"
)

// defaultMaxTurns bounds the interview so a model that never emits the
// completion marker cannot loop forever.
const defaultMaxTurns = 40

// Completer is the LLM surface the engine needs.
type Completer interface {
	Complete(ctx context.Context, system string, conversation []anthropic.Message) (string, error)
}

// Transcript is the persisted outcome of an interview.
type Transcript struct {
	Messages    []anthropic.Message `json:"messages"`
	Completed   bool                `json:"completed"`
	CompletedAt time.Time           `json:"completed_at,omitempty"`
}

// Engine runs a turn-by-turn interview over the provided reader and writer.
type Engine struct {
	completer Completer
	in        *bufio.Reader
	out       io.Writer
	logger    *slog.Logger
	maxTurns  int
}

// Option customizes the engine.
type Option func(*Engine)

// WithMaxTurns bounds the number of question/answer exchanges.
func WithMaxTurns(turns int) Option {
	return func(e *Engine) {
		if turns > 0 {
			e.maxTurns = turns
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine builds an interview engine reading answers from in and writing
// questions to out.
func NewEngine(completer Completer, in io.Reader, out io.Writer, opts ...Option) (*Engine, error) {
	if completer == nil {
		return nil, fmt.Errorf("questionnaire: completer required")
	}
	if in == nil || out == nil {
		return nil, fmt.Errorf("questionnaire: input and output required")
	}
	engine := &Engine{
		completer: completer,
		in:        bufio.NewReader(in),
		out:       out,
		logger:    logging.NewNop(),
		maxTurns:  defaultMaxTurns,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// Run conducts the interview until the model signals completion, the user
// types /done, or the turn limit is reached. The returned transcript contains
// every exchange, marker stripped.
func (e *Engine) Run(ctx context.Context) (*Transcript, error) {
	transcript := &Transcript{}

	fmt.Fprintln(e.out, openingQuestion)
	fmt.Fprintln(e.out)
	transcript.Messages = append(transcript.Messages, anthropic.Message{Role: "assistant", Content: openingQuestion})

	for turn := 0; turn < e.maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return transcript, err
		}

		answer, err := e.readAnswer()
		if err != nil {
			return transcript, err
		}
		if answer == "" {
			fmt.Fprintln(e.out, "(Please share a few words, or type /done to finish early.)")
			continue
		}
		if strings.EqualFold(answer, "/done") {
			transcript.Completed = true
			transcript.CompletedAt = time.Now().UTC()
			e.logger.Info("interview finished early",
				logging.String(logging.FieldEventType, "questionnaire_done"),
				logging.Int("turns", turn+1))
			return transcript, nil
		}
		transcript.Messages = append(transcript.Messages, anthropic.Message{Role: "user", Content: answer})

		reply, err := e.completer.Complete(ctx, systemPrompt, transcript.Messages)
		if err != nil {
			return transcript, err
		}

		done := strings.Contains(reply, CompletionMarker)
		display := strings.TrimSpace(strings.ReplaceAll(reply, CompletionMarker, ""))
		transcript.Messages = append(transcript.Messages, anthropic.Message{Role: "assistant", Content: display})
		if display != "" {
			fmt.Fprintln(e.out, display)
			fmt.Fprintln(e.out)
		}
		if done {
			transcript.Completed = true
			transcript.CompletedAt = time.Now().UTC()
			e.logger.Info("interview complete",
				logging.String(logging.FieldEventType, "questionnaire_done"),
				logging.Int("turns", turn+1))
			return transcript, nil
		}
	}

	return transcript, services.Wrap(services.ErrValidation, "goal_extraction", "questionnaire",
		fmt.Sprintf("interview did not complete within %d turns", e.maxTurns), nil)
}

func (e *Engine) readAnswer() (string, error) {
	fmt.Fprint(e.out, "> ")
	line, err := e.in.ReadString('\n')
	if err == io.EOF && strings.TrimSpace(line) != "" {
		return strings.TrimSpace(line), nil
	}
	if err != nil {
		return "", fmt.Errorf("questionnaire: read answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// SaveTranscript writes the transcript as JSON through an atomic rename.
func SaveTranscript(path string, transcript *Transcript) error {
	data, err := json.MarshalIndent(transcript, "", "  ")
	if err != nil {
		return fmt.Errorf("questionnaire: encode transcript: %w", err)
	}
	return fileutil.WriteFileAtomic(path, data, 0o644)
}

// LoadTranscript reads a transcript previously written by SaveTranscript.
func LoadTranscript(path string) (*Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("questionnaire: read transcript: %w", err)
	}
	var transcript Transcript
	if err := json.Unmarshal(data, &transcript); err != nil {
		return nil, fmt.Errorf("questionnaire: decode transcript: %w", err)
	}
	return &transcript, nil
}
