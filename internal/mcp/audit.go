package mcp

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nvandessel/rendezvous/internal/constants"
	"github.com/nvandessel/rendezvous/internal/sanitize"
)

// AuditEntry represents a single audit log entry for an MCP tool invocation.
// It captures metadata about the call without including tokens.
type AuditEntry struct {
	Timestamp  time.Time         `json:"timestamp"`
	Tool       string            `json:"tool"`
	DurationMs int64             `json:"duration_ms"`
	Status     string            `json:"status"` // "success" or "error"
	Error      string            `json:"error,omitempty"`
	Params     map[string]string `json:"params,omitempty"` // sanitized metadata only
}

// AuditLogger appends audit entries to <dir>/audit.jsonl. It is safe for
// concurrent use. A nil AuditLogger is safe to use; all methods are no-ops
// on nil receiver.
type AuditLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewAuditLogger opens dir/audit.jsonl for append. If the file cannot be
// created, a warning is printed to stderr and nil is returned.
func NewAuditLogger(dir string) *AuditLogger {
	if err := os.MkdirAll(dir, 0700); err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot create audit log directory %s: %v\n", dir, err)
		return nil
	}

	path := filepath.Join(dir, constants.AuditFile)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot open audit log %s: %v\n", path, err)
		return nil
	}

	return &AuditLogger{file: f}
}

// Log appends entry as a single JSON line. Safe to call on nil receiver.
func (a *AuditLogger) Log(entry AuditEntry) {
	if a == nil {
		return
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return
	}
	_, _ = a.file.Write(data)
}

// Close closes the audit log file. Safe to call on nil receiver.
func (a *AuditLogger) Close() error {
	if a == nil {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

// Safe parameter names whose values may be logged verbatim.
var safeValueParams = map[string]bool{
	"epsilon":           true,
	"window_size":       true,
	"num_peers":         true,
	"num_trials":        true,
	"apply_geo_filter":  true,
	"geo_filter_factor": true,
	"seed":              true,
	"save":              true,
	"limit":             true,
	"measurements":      true, // callers pass the count, not the data
	"token_fingerprint": true,
	"id":                true,
}

// Parameters whose presence is logged but never their value.
var presenceOnlyParams = map[string]bool{
	"token": true,
	"salt":  true,
}

// sanitizeToolParams extracts safe metadata from tool parameters. Unknown
// keys are dropped, presence-only keys become "(set)" and "_param_count"
// records how many params were provided.
func sanitizeToolParams(params map[string]any) map[string]string {
	if params == nil {
		return nil
	}

	result := make(map[string]string, len(params)+1)
	for key, val := range params {
		switch {
		case safeValueParams[key]:
			result[key] = sanitize.Label(fmt.Sprintf("%v", val))
		case presenceOnlyParams[key]:
			if s, ok := val.(string); ok && s == "" {
				continue
			}
			result[key] = "(set)"
		}
	}
	result["_param_count"] = fmt.Sprintf("%d", len(params))

	return result
}

// auditTool logs a tool invocation.
func (s *Server) auditTool(toolName string, start time.Time, err error, params map[string]string) {
	status := "success"
	errMsg := ""
	if err != nil {
		status = "error"
		errMsg = sanitize.Label(err.Error())
	}

	s.auditLogger.Log(AuditEntry{
		Timestamp:  start,
		Tool:       toolName,
		DurationMs: time.Since(start).Milliseconds(),
		Status:     status,
		Error:      errMsg,
		Params:     params,
	})
}
