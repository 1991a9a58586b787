// Package constants provides named constants used throughout the rendezvous codebase.
// This centralizes magic numbers for better maintainability and documentation.
package constants

// Storage layout
const (
	// DirName is the per-user directory under $HOME holding config and history.
	DirName = ".rendezvous"

	// DatabaseFile is the SQLite run history inside DirName.
	DatabaseFile = "rendezvous.db"

	// AuditFile is the MCP tool audit log inside DirName.
	AuditFile = "audit.jsonl"
)

// Matching defaults
const (
	// DefaultEpsilon is the default normalized distance threshold.
	// The normalized space has diameter 3, so 0.2 is a tight neighborhood.
	DefaultEpsilon float32 = 0.2

	// DefaultWindowSize is the default number of consecutive hits required
	// for a stable match.
	DefaultWindowSize = 2
)

// Simulation defaults
const (
	// DefaultNumPeers is the number of random peers sampled per trial.
	DefaultNumPeers = 500

	// DefaultNumTrials is the number of Monte Carlo trials per run.
	DefaultNumTrials = 200

	// DefaultGeoFilterFactor reduces the candidate pool when the geographic
	// filter is enabled.
	DefaultGeoFilterFactor float32 = 1e6

	// MaxMCPTrialWork caps the matcher observations of a single MCP simulate
	// call: (num_peers+2)*num_trials*max(window_size,1).
	MaxMCPTrialWork = 10_000_000
)

// History defaults
const (
	// DefaultHistoryLimit is the number of runs listed when no limit is given.
	DefaultHistoryLimit = 20
)
