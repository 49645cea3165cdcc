package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  logrus.Level
	}{
		{"", logrus.InfoLevel},
		{"debug", logrus.DebugLevel},
		{"WARN", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := New(Options{Level: tt.level, Output: &bytes.Buffer{}})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if logger.GetLevel() != tt.want {
				t.Errorf("level: got %v, want %v", logger.GetLevel(), tt.want)
			}
		})
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNew_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Output: &buf, NoColors: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.WithField(TraceIDKey, "abc-123").Info("tool call")
	logger.Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, "tool call") || !strings.Contains(out, "abc-123") {
		t.Errorf("entry missing message or field: %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug entry written at info level: %q", out)
	}
}

func TestNew_File(t *testing.T) {
	file := filepath.Join(t.TempDir(), "face-count.log")
	logger, err := New(Options{File: file, Output: &bytes.Buffer{}, NoColors: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("to file")

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("log file content: %q", data)
	}
}
