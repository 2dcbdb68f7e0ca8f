package logger

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    LogLevel
		wantErr bool
	}{
		{input: "debug", want: DebugLevel},
		{input: "info", want: InfoLevel},
		{input: "warn", want: WarnLevel},
		{input: "warning", want: WarnLevel},
		{input: "error", want: ErrorLevel},
		{input: "trace", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLogLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLogLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Fatalf("ParseLogLevel(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseLogFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    LogFormat
		wantErr bool
	}{
		{input: "json", want: JSONFormat},
		{input: "text", want: TextFormat},
		{input: "console", want: TextFormat},
		{input: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLogFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLogFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Fatalf("ParseLogFormat(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewZapLogger_AllConfigs(t *testing.T) {
	levels := []LogLevel{DebugLevel, InfoLevel, WarnLevel, ErrorLevel, LogLevel("bogus")}
	formats := []LogFormat{JSONFormat, TextFormat}

	for _, level := range levels {
		for _, format := range formats {
			log, err := NewZapLogger(Config{Level: level, Format: format})
			if err != nil {
				t.Fatalf("NewZapLogger(%q, %q) returned error: %v", level, format, err)
			}
			if log == nil {
				t.Fatalf("NewZapLogger(%q, %q) returned nil logger", level, format)
			}
		}
	}
}

func TestZapLogger_StructuredFields(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	log := NewZapLoggerFromCore(core)

	log.Info("job scheduled", "job_id", int64(42), "jobname", "nightly_backup")

	entries := observed.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Message != "job scheduled" {
		t.Fatalf("unexpected message: %q", entry.Message)
	}
	fields := entry.ContextMap()
	if fields["job_id"] != int64(42) {
		t.Fatalf("unexpected job_id field: %v", fields["job_id"])
	}
	if fields["jobname"] != "nightly_backup" {
		t.Fatalf("unexpected jobname field: %v", fields["jobname"])
	}
}

func TestZapLogger_With(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	log := NewZapLoggerFromCore(core)

	child := log.With("component", "scheduler")
	child.Warn("lock contention")

	entries := observed.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if entries[0].ContextMap()["component"] != "scheduler" {
		t.Fatal("expected component field from With()")
	}
}

func TestZapLogger_WithContext(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	log := NewZapLoggerFromCore(core)

	ctx := context.WithValue(context.Background(), "request_id", "req-123") //nolint:staticcheck
	log.WithContext(ctx).Info("handled")

	entries := observed.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if entries[0].ContextMap()["request_id"] != "req-123" {
		t.Fatal("expected request_id field from context")
	}

	// A context without a request ID must not add the field.
	log.WithContext(context.Background()).Info("no request id")
	entries = observed.All()
	if _, ok := entries[1].ContextMap()["request_id"]; ok {
		t.Fatal("did not expect request_id field")
	}
}

func TestZapLogger_LevelFiltering(t *testing.T) {
	core, observed := observer.New(zapcore.ErrorLevel)
	log := NewZapLoggerFromCore(core)

	log.Debug("dropped")
	log.Info("dropped")
	log.Warn("dropped")
	log.Error("kept")

	entries := observed.All()
	if len(entries) != 1 {
		t.Fatalf("expected only error entry, got %d entries", len(entries))
	}
	if entries[0].Level != zapcore.ErrorLevel {
		t.Fatalf("unexpected level: %v", entries[0].Level)
	}
}
