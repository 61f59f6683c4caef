package logger

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// CaptureBuffer collects JSON log lines written by a capture logger.
// It is safe for concurrent writers such as event dispatcher workers.
type CaptureBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (c *CaptureBuffer) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

func (c *CaptureBuffer) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// Entries decodes every captured line into a field map.
func (c *CaptureBuffer) Entries(t *testing.T) []map[string]any {
	t.Helper()

	var entries []map[string]any
	scanner := bufio.NewScanner(strings.NewReader(c.String()))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry := map[string]any{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("captured log line is not JSON: %v\n%s", err, line)
		}
		entries = append(entries, entry)
	}
	return entries
}

// NewCaptureLogger returns a debug-level JSON logger writing into a fresh buffer.
func NewCaptureLogger(t *testing.T) (*slog.Logger, *CaptureBuffer) {
	t.Helper()

	buf := &CaptureBuffer{}
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

// NewCaptureContext is NewCaptureLogger with the logger already attached to a context.
func NewCaptureContext(t *testing.T) (context.Context, *CaptureBuffer) {
	t.Helper()

	log, buf := NewCaptureLogger(t)
	return WithLogger(context.Background(), log), buf
}

func AssertLogContains(t *testing.T, buf *CaptureBuffer, substr string) {
	t.Helper()

	if out := buf.String(); !strings.Contains(out, substr) {
		t.Errorf("log output does not contain %q:\n%s", substr, out)
	}
}

// AssertLogField passes when at least one captured entry has field set to want.
func AssertLogField(t *testing.T, buf *CaptureBuffer, field string, want any) {
	t.Helper()

	entries := buf.Entries(t)
	if len(entries) == 0 {
		t.Fatalf("no log entries captured")
	}
	for _, entry := range entries {
		if got, ok := entry[field]; ok && got == want {
			return
		}
	}
	t.Errorf("no log entry has %s=%v:\n%s", field, want, buf.String())
}
