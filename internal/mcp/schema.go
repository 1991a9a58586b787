package mcp

import (
	"github.com/nvandessel/rendezvous/internal/pattern"
	"github.com/nvandessel/rendezvous/internal/session"
	"github.com/nvandessel/rendezvous/internal/simulation"
	"github.com/nvandessel/rendezvous/internal/store"
)

// DeriveInput defines the input for rendezvous_derive tool.
type DeriveInput struct {
	Token string `json:"token" jsonschema:"Shared token as 64 hex characters"`
	Salt  string `json:"salt" jsonschema:"Context salt, e.g. a date or place identifier"`
}

// DeriveOutput defines the output for rendezvous_derive tool.
type DeriveOutput struct {
	Fingerprint string                    `json:"token_fingerprint" jsonschema:"Short non-reversible token identifier"`
	Pattern     pattern.Pattern           `json:"pattern" jsonschema:"Target pattern in natural units"`
	Normalized  pattern.NormalizedPattern `json:"normalized" jsonschema:"Target pattern mapped into [0,1] per dimension"`
}

// MatchInput defines the input for rendezvous_match tool.
type MatchInput struct {
	Token        string            `json:"token" jsonschema:"Shared token as 64 hex characters"`
	Salt         string            `json:"salt" jsonschema:"Context salt used to derive the target"`
	Epsilon      *float32          `json:"epsilon,omitempty" jsonschema:"Normalized distance threshold (default from config)"`
	WindowSize   *int              `json:"window_size,omitempty" jsonschema:"Consecutive hits required for a stable match, 0 for instantaneous (default from config)"`
	Measurements []pattern.Pattern `json:"measurements" jsonschema:"Measured patterns in arrival order"`
}

// MatchOutput defines the output for rendezvous_match tool.
type MatchOutput struct {
	Target    pattern.Pattern    `json:"target" jsonschema:"Derived target pattern"`
	Decisions []session.Decision `json:"decisions" jsonschema:"One decision per measurement"`
	Summary   session.Summary    `json:"summary" jsonschema:"Totals over all measurements"`
}

// SimulateInput defines the input for rendezvous_simulate tool.
// Omitted fields fall back to the configured defaults.
type SimulateInput struct {
	Token           string   `json:"token,omitempty" jsonschema:"Shared token as 64 hex characters; a random token is used when omitted"`
	Salt            string   `json:"salt,omitempty" jsonschema:"Context salt"`
	NumPeers        *int     `json:"num_peers,omitempty" jsonschema:"Random peers sampled per trial"`
	NumTrials       *int     `json:"num_trials,omitempty" jsonschema:"Number of trials"`
	Epsilon         *float32 `json:"epsilon,omitempty" jsonschema:"Normalized distance threshold"`
	WindowSize      *int     `json:"window_size,omitempty" jsonschema:"Consecutive hits required for a stable match"`
	ApplyGeoFilter  *bool    `json:"apply_geo_filter,omitempty" jsonschema:"Shrink the candidate pool by the geographic filter factor"`
	GeoFilterFactor *float32 `json:"geo_filter_factor,omitempty" jsonschema:"Pool reduction factor when the geographic filter is on"`
	Seed            *uint64  `json:"seed,omitempty" jsonschema:"Seed for reproducible runs; random when omitted"`
	Save            bool     `json:"save,omitempty" jsonschema:"Store the run in history"`
}

// SimulateOutput defines the output for rendezvous_simulate tool.
type SimulateOutput struct {
	RunID       string            `json:"run_id,omitempty" jsonschema:"History ID when the run was saved"`
	Fingerprint string            `json:"token_fingerprint" jsonschema:"Fingerprint of the token used"`
	Config      simulation.Config `json:"config" jsonschema:"Effective simulation parameters"`
	Result      simulation.Result `json:"result" jsonschema:"Aggregate statistics"`
	Workers     int               `json:"workers" jsonschema:"Number of parallel workers"`
	Seed        uint64            `json:"seed" jsonschema:"Seed used, pass it back to reproduce the run"`
}

// HistoryInput defines the input for rendezvous_history tool.
type HistoryInput struct {
	ID    string `json:"id,omitempty" jsonschema:"Return only this run"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of runs, newest first (default 20)"`
}

// HistoryOutput defines the output for rendezvous_history tool.
type HistoryOutput struct {
	Runs  []store.Run `json:"runs" jsonschema:"Stored runs"`
	Count int         `json:"count" jsonschema:"Number of runs returned"`
}
