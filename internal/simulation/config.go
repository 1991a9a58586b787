package simulation

import "fmt"

// Config holds the input parameters of a simulation run.
type Config struct {
	NumPeers       int     `json:"num_peers" yaml:"num_peers"`
	NumTrials      int     `json:"num_trials" yaml:"num_trials"`
	Epsilon        float32 `json:"epsilon" yaml:"epsilon"`
	WindowSize     int     `json:"window_size" yaml:"window_size"`
	ApplyGeoFilter bool    `json:"apply_geo_filter" yaml:"apply_geo_filter"`
	// GeoFilterFactor reduces the candidate pool size (e.g. 1e6).
	GeoFilterFactor float32 `json:"geo_filter_factor" yaml:"geo_filter_factor"`
}

// Validate rejects negative counts and thresholds.
func (c Config) Validate() error {
	if c.NumPeers < 0 {
		return fmt.Errorf("num_peers must be non-negative, got %d", c.NumPeers)
	}
	if c.NumTrials < 0 {
		return fmt.Errorf("num_trials must be non-negative, got %d", c.NumTrials)
	}
	if c.Epsilon < 0 {
		return fmt.Errorf("epsilon must be non-negative, got %f", c.Epsilon)
	}
	if c.WindowSize < 0 {
		return fmt.Errorf("window_size must be non-negative, got %d", c.WindowSize)
	}
	if c.GeoFilterFactor < 0 {
		return fmt.Errorf("geo_filter_factor must be non-negative, got %f", c.GeoFilterFactor)
	}
	return nil
}

// Result holds aggregate statistics from a simulation run.
type Result struct {
	TotalTrials            int     `json:"total_trials" yaml:"total_trials"`
	TotalPeerSamples       int     `json:"total_peer_samples" yaml:"total_peer_samples"`
	SingleMatchCount       int     `json:"single_match_count" yaml:"single_match_count"`
	DoubleMatchCount       int     `json:"double_match_count" yaml:"double_match_count"`
	SingleMatchProbability float64 `json:"single_match_probability" yaml:"single_match_probability"`
	DoubleMatchProbability float64 `json:"double_match_probability" yaml:"double_match_probability"`
	EffectivePeerCount     float64 `json:"effective_peer_count" yaml:"effective_peer_count"`
	ExpectedMatchesInPool  float64 `json:"expected_matches_in_pool" yaml:"expected_matches_in_pool"`
	PoolMatchProbability   float64 `json:"pool_match_probability" yaml:"pool_match_probability"`
}
