// Package session runs a matcher against a derived target over a stream of
// measurements and records every decision.
package session

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/nvandessel/rendezvous/internal/logging"
	"github.com/nvandessel/rendezvous/internal/matching"
	"github.com/nvandessel/rendezvous/internal/pattern"
	"github.com/nvandessel/rendezvous/internal/srt"
)

// Decision is the outcome of one observation.
type Decision struct {
	Index    int     `json:"index"`
	DeviceID string  `json:"device_id,omitempty"`
	Distance float32 `json:"distance"`
	Within   bool    `json:"within"`
	Matched  bool    `json:"matched"`
	Filled   int     `json:"filled"`

	// FirstMatch marks the observation on which the session first matched.
	FirstMatch bool `json:"first_match,omitempty"`
}

// Summary describes a session so far.
type Summary struct {
	Session         string `json:"session"`
	Fingerprint     string `json:"token_fingerprint"`
	Observations    int    `json:"observations"`
	Hits            int    `json:"hits"`
	Matched         bool   `json:"matched"`
	FirstMatchIndex int    `json:"first_match_index"` // -1 if never matched
}

// Options carries optional collaborators. Zero values disable them.
type Options struct {
	// ID names the session in logs. Empty generates one.
	ID string

	// Logger receives a trace record per observation and an info record on
	// the first match.
	Logger *slog.Logger

	// Decisions receives a JSONL entry per observation.
	Decisions *logging.DecisionLogger
}

// Session is a single matching session for one token and salt. It is not
// safe for concurrent use.
type Session struct {
	id          string
	fingerprint string
	target      pattern.Pattern
	matcher     *matching.Matcher
	logger      *slog.Logger
	decisions   *logging.DecisionLogger

	observations int
	hits         int
	firstMatch   int
}

// New derives the target pattern for token and salt and starts an empty
// session.
func New(token srt.Token, salt []byte, cfg matching.Config, opts Options) *Session {
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Session{
		id:          id,
		fingerprint: token.Fingerprint(),
		target:      srt.PatternFromToken(token, salt),
		matcher:     matching.NewMatcher(cfg),
		logger:      logger,
		decisions:   opts.Decisions,
		firstMatch:  -1,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Target returns the derived target pattern.
func (s *Session) Target() pattern.Pattern { return s.target }

// Config returns the matcher configuration.
func (s *Session) Config() matching.Config { return s.matcher.Config() }

// Observe feeds one measurement to the matcher.
func (s *Session) Observe(measured pattern.Pattern) Decision {
	return s.ObserveFrom("", measured)
}

// ObserveFrom is Observe for a measurement attributed to deviceID.
func (s *Session) ObserveFrom(deviceID string, measured pattern.Pattern) Decision {
	obs := s.matcher.Evaluate(measured, s.target)

	d := Decision{
		Index:    s.observations,
		DeviceID: deviceID,
		Distance: obs.Distance,
		Within:   obs.Within,
		Matched:  obs.Matched,
		Filled:   obs.Filled,
	}
	s.observations++
	if obs.Within {
		s.hits++
	}
	if obs.Matched && s.firstMatch < 0 {
		s.firstMatch = d.Index
		d.FirstMatch = true
		s.logger.Info("stable match", "session", s.id, "index", d.Index, "device", deviceID, "distance", d.Distance)
	}

	s.logger.Log(context.Background(), logging.LevelTrace, "observation",
		"session", s.id, "index", d.Index, "distance", d.Distance, "within", d.Within, "matched", d.Matched)
	s.decisions.Log("observation", map[string]any{
		"index":             d.Index,
		"device_id":         deviceID,
		"token_fingerprint": s.fingerprint,
		"distance":          d.Distance,
		"within":            d.Within,
		"matched":           d.Matched,
		"filled":            d.Filled,
	})

	return d
}

// Summary reports totals so far.
func (s *Session) Summary() Summary {
	return Summary{
		Session:         s.id,
		Fingerprint:     s.fingerprint,
		Observations:    s.observations,
		Hits:            s.hits,
		Matched:         s.firstMatch >= 0,
		FirstMatchIndex: s.firstMatch,
	}
}

// Reset clears the matcher window and counters.
func (s *Session) Reset() {
	s.matcher.Reset()
	s.observations = 0
	s.hits = 0
	s.firstMatch = -1
}

// Tracker keeps one session per device so that interleaved measurements
// from different devices never share a window. It is safe for concurrent
// use.
type Tracker struct {
	mu       sync.Mutex
	token    srt.Token
	salt     []byte
	cfg      matching.Config
	opts     Options
	sessions map[string]*Session
}

// NewTracker creates a tracker whose sessions share token, salt and cfg.
// opts.ID is used as a prefix for per-device session IDs.
func NewTracker(token srt.Token, salt []byte, cfg matching.Config, opts Options) *Tracker {
	return &Tracker{
		token:    token,
		salt:     append([]byte(nil), salt...),
		cfg:      cfg,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Observe routes a measurement to deviceID's session, creating it on first
// use.
func (t *Tracker) Observe(deviceID string, measured pattern.Pattern) Decision {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[deviceID]
	if !ok {
		opts := t.opts
		if opts.ID != "" {
			opts.ID = opts.ID + "/" + deviceID
		}
		s = New(t.token, t.salt, t.cfg, opts)
		t.sessions[deviceID] = s
	}
	return s.ObserveFrom(deviceID, measured)
}

// Summaries returns one summary per device.
func (t *Tracker) Summaries() map[string]Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]Summary, len(t.sessions))
	for device, s := range t.sessions {
		out[device] = s.Summary()
	}
	return out
}
