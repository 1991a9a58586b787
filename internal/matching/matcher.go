// Package matching decides, from a stream of noisy measurements, whether a
// stable match with a target pattern has occurred.
package matching

import (
	"github.com/nvandessel/rendezvous/internal/pattern"
)

// Config holds the threshold and smoothing window for a matching session.
type Config struct {
	// Epsilon is the maximum normalized Euclidean distance counted as a hit.
	Epsilon float32 `json:"epsilon" yaml:"epsilon"`

	// WindowSize is the number of consecutive hits required for a stable
	// match. Zero disables smoothing.
	WindowSize int `json:"window_size" yaml:"window_size"`
}

// NewConfig returns a Config, clamping negative inputs to zero.
func NewConfig(epsilon float32, windowSize int) Config {
	if epsilon < 0 {
		epsilon = 0
	}
	if windowSize < 0 {
		windowSize = 0
	}
	return Config{Epsilon: epsilon, WindowSize: windowSize}
}

// Observation is the full outcome of a single Evaluate call.
type Observation struct {
	Distance float32 `json:"distance"`
	Within   bool    `json:"within"`
	Matched  bool    `json:"matched"`
	// Filled is the number of outcomes currently held in the window.
	Filled int `json:"filled"`
}

// Matcher compares live measurements to a fixed target with temporal
// smoothing. It is not safe for concurrent use.
//
// A full window of hits is the same as the last WindowSize outcomes all being
// hits, so only the current run of consecutive hits is kept, capped at the
// window size. Memory does not depend on WindowSize.
type Matcher struct {
	cfg Config

	filled int // outcomes held, capped at WindowSize
	streak int // trailing consecutive hits, capped at WindowSize
}

// NewMatcher creates a matcher with an empty window.
func NewMatcher(cfg Config) *Matcher {
	return &Matcher{cfg: NewConfig(cfg.Epsilon, cfg.WindowSize)}
}

// Config returns the matcher's configuration.
func (m *Matcher) Config() Config {
	return m.cfg
}

// Len returns the number of outcomes currently held in the window.
func (m *Matcher) Len() int {
	return m.filled
}

// Observe records one measurement and reports whether the matcher is in the
// stably matched state.
func (m *Matcher) Observe(measured, target pattern.Pattern) bool {
	return m.Evaluate(measured, target).Matched
}

// Evaluate records one measurement and returns the distance and decision.
//
// With a zero window the decision is the instantaneous threshold test and no
// state is kept. Otherwise the matcher reports a match only once the window
// is full and every outcome in it is within threshold.
func (m *Matcher) Evaluate(measured, target pattern.Pattern) Observation {
	d := pattern.NormalizedDistance(measured, target)
	within := d <= m.cfg.Epsilon

	if m.cfg.WindowSize == 0 {
		return Observation{Distance: d, Within: within, Matched: within}
	}

	m.push(within)
	return Observation{
		Distance: d,
		Within:   within,
		Matched:  m.streak == m.cfg.WindowSize,
		Filled:   m.filled,
	}
}

// Reset clears the window.
func (m *Matcher) Reset() {
	m.filled = 0
	m.streak = 0
}

func (m *Matcher) push(within bool) {
	if m.filled < m.cfg.WindowSize {
		m.filled++
	}
	switch {
	case !within:
		m.streak = 0
	case m.streak < m.cfg.WindowSize:
		m.streak++
	}
}
