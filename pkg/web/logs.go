package web

import (
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-posecam/pkg/hub"
)

// DefaultLogLines is how many log entries the dashboard keeps.
const DefaultLogLines = 500

// LogEntry represents a log line for the dashboard
type LogEntry struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// LogBuffer is an io.Writer that keeps the most recent log records and
// streams them to /ws/logs. Pass it to log.Init as a sink.
type LogBuffer struct {
	mu      sync.RWMutex
	entries []LogEntry
	max     int

	hub *hub.Hub
}

// NewLogBuffer creates a buffer holding up to max entries.
func NewLogBuffer(max int) *LogBuffer {
	if max <= 0 {
		max = DefaultLogLines
	}
	// The hub must not log through the buffer it serves.
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &LogBuffer{
		entries: make([]LogEntry, 0, max),
		max:     max,
		hub:     hub.New("logs", quiet),
	}
}

// Write records one log record per call.
func (b *LogBuffer) Write(p []byte) (int, error) {
	line := strings.TrimSpace(string(p))
	if line == "" {
		return len(p), nil
	}
	entry := LogEntry{
		Time:    time.Now().Format("15:04:05"),
		Level:   levelOf(line),
		Message: line,
	}

	b.mu.Lock()
	b.entries = append(b.entries, entry)
	if len(b.entries) > b.max {
		b.entries = b.entries[1:]
	}
	b.mu.Unlock()

	b.hub.BroadcastJSON(entry)
	return len(p), nil
}

// Entries returns a copy of the buffered entries, oldest first.
func (b *LogBuffer) Entries() []LogEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]LogEntry(nil), b.entries...)
}

// levelOf extracts the level from a slog text or JSON record.
func levelOf(line string) string {
	for _, key := range []string{"level=", `"level":"`} {
		i := strings.Index(line, key)
		if i < 0 {
			continue
		}
		rest := line[i+len(key):]
		if end := strings.IndexAny(rest, ` "`); end >= 0 {
			rest = rest[:end]
		}
		return strings.ToLower(rest)
	}
	return "info"
}
