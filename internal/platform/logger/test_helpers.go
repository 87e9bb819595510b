package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// Capture collects the JSON lines written by a test logger. Handlers in the
// broker and consumer packages log from their own goroutines, so writes are
// serialised.
type Capture struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (c *Capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

func (c *Capture) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// Entries decodes every record captured so far.
func (c *Capture) Entries() ([]map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(c.String()))
	var entries []map[string]any
	for {
		var entry map[string]any
		err := dec.Decode(&entry)
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
}

// NewTestLogger returns the debug-level logger New builds, writing into a
// fresh Capture.
func NewTestLogger(t *testing.T) (*slog.Logger, *Capture) {
	t.Helper()
	c := &Capture{}
	return New(c, "debug"), c
}

// NewCaptureContext is NewTestLogger attached to a background context, for
// code that resolves its logger with FromContext.
func NewCaptureContext(t *testing.T) (context.Context, *Capture) {
	t.Helper()
	l, c := NewTestLogger(t)
	return WithLogger(context.Background(), l), c
}

// AssertLogContains fails the test unless some captured line contains text.
func AssertLogContains(t *testing.T, c *Capture, text string) {
	t.Helper()
	if logs := c.String(); !strings.Contains(logs, text) {
		t.Errorf("no log line contains %q; captured:\n%s", text, logs)
	}
}

// AssertLogField fails the test unless some record has field set to want.
// Numbers decode as float64.
func AssertLogField(t *testing.T, c *Capture, field string, want any) {
	t.Helper()
	entries, err := c.Entries()
	if err != nil {
		t.Fatalf("decode captured logs: %v", err)
	}
	for _, entry := range entries {
		if got, ok := entry[field]; ok && got == want {
			return
		}
	}
	t.Errorf("no log record has %s=%v; captured:\n%s", field, want, c.String())
}
