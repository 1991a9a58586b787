// Package logging provides leveled logging and decision tracing for rendezvous.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - A DecisionLogger for structured JSONL traces of matcher decisions
//     (<dir>/decisions.jsonl)
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace is a custom slog level below Debug. At this level every matcher
// observation is logged to stderr as well as the decision trace.
const LevelTrace = slog.LevelDebug - 4

// DecisionsFile is the name of the decision trace inside the log directory.
const DecisionsFile = "decisions.jsonl"

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing text records to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, handlerOptions(level)))
}

// NewJSONLogger creates a leveled slog.Logger writing JSON records to w.
func NewJSONLogger(level string, w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, handlerOptions(level)))
}

func handlerOptions(level string) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
}

// DecisionLogger writes matcher decisions to a JSONL file, one line per
// event, each stamped with the session it belongs to.
// It is safe for concurrent use. A nil DecisionLogger is safe to use;
// all methods are no-ops on nil receiver.
type DecisionLogger struct {
	mu      sync.Mutex
	file    *os.File
	session string
	nowFunc func() time.Time
}

// NewDecisionLogger creates a decision logger writing to dir/decisions.jsonl.
// At "info" level (the default), returns nil and no file is created.
// At "debug" or "trace" level, the file is opened for append.
// Returns nil if the file cannot be opened. All methods are nil-safe.
func NewDecisionLogger(dir, level, session string) *DecisionLogger {
	if ParseLevel(level) == slog.LevelInfo {
		return nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}

	f, err := os.OpenFile(filepath.Join(dir, DecisionsFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}

	return &DecisionLogger{file: f, session: session, nowFunc: time.Now}
}

// Session returns the session ID stamped on every entry.
func (dl *DecisionLogger) Session() string {
	if dl == nil {
		return ""
	}
	return dl.session
}

// Log writes one event. "event", "session" and "time" keys are added; the
// caller's map is not mutated. Safe to call on nil receiver.
func (dl *DecisionLogger) Log(event string, fields map[string]any) {
	if dl == nil {
		return
	}

	entry := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		entry[k] = v
	}
	entry["event"] = event
	entry["session"] = dl.session

	dl.mu.Lock()
	defer dl.mu.Unlock()

	if dl.file == nil {
		return
	}
	entry["time"] = dl.nowFunc().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')
	_, _ = dl.file.Write(data)
}

// Close closes the underlying file. Safe to call on nil receiver.
func (dl *DecisionLogger) Close() {
	if dl == nil {
		return
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()

	if dl.file == nil {
		return
	}
	dl.file.Close()
	dl.file = nil
}
