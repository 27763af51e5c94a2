package logging

import (
	"log/slog"
	"time"
)

// Standardized structured logging keys.
const (
	// FieldEventType tags records with a machine-readable event name.
	FieldEventType = "event_type"
	// FieldStage carries the pipeline stage a record belongs to.
	FieldStage = "stage"
	// FieldRunID carries the pipeline run identifier.
	FieldRunID = "run_id"
	// FieldSceneIndex carries the scene an asset record belongs to.
	FieldSceneIndex = "scene_index"
	// FieldProvider carries the external provider name.
	FieldProvider = "provider"
)

type Attr = slog.Attr

func Any(key string, value any) Attr { return slog.Any(key, value) }

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Float64(key string, value float64) Attr { return slog.Float64(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

func attrsToArgs(attrs []Attr) []any {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return args
}

// Args converts attrs into the variadic any form slog methods accept.
func Args(attrs ...Attr) []any {
	return attrsToArgs(attrs)
}
