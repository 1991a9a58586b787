package simulation

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/nvandessel/rendezvous/internal/matching"
	"github.com/nvandessel/rendezvous/internal/pattern"
	"github.com/nvandessel/rendezvous/internal/srt"
	"golang.org/x/sync/errgroup"
)

// Tally holds the raw counters accumulated over trials.
type Tally struct {
	Trials        int `json:"trials"`
	PeerSamples   int `json:"peer_samples"`
	SingleMatches int `json:"single_matches"`
	DoubleMatches int `json:"double_matches"`
}

// Add sums another tally into t.
func (t *Tally) Add(other Tally) {
	t.Trials += other.Trials
	t.PeerSamples += other.PeerSamples
	t.SingleMatches += other.SingleMatches
	t.DoubleMatches += other.DoubleMatches
}

// Options controls RunParallel.
type Options struct {
	// Workers is the number of goroutines. Values below 1 mean 1.
	Workers int
	// Seed seeds every worker's generator together with its index, so a run
	// is reproducible for a fixed (Seed, Workers) pair.
	Seed uint64
}

// NewSeed returns a random non-zero seed for callers that were not given one.
func NewSeed() uint64 {
	for {
		if s := rand.Uint64(); s != 0 {
			return s
		}
	}
}

// Run executes cfg.NumTrials trials sequentially using rng as the only
// source of randomness.
func Run(cfg Config, token srt.Token, salt []byte, rng *rand.Rand) Result {
	target := srt.PatternFromToken(token, salt)

	var tally Tally
	for i := 0; i < cfg.NumTrials; i++ {
		runTrial(cfg, target, rng, &tally)
	}
	return Finalize(cfg, tally)
}

// RunParallel splits the trials across opts.Workers goroutines. Each worker
// owns its generator and counters; the counters are summed once all workers
// finish. Cancellation is checked between trials.
func RunParallel(ctx context.Context, cfg Config, token srt.Token, salt []byte, opts Options) (Result, error) {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if cfg.NumTrials > 0 && workers > cfg.NumTrials {
		workers = cfg.NumTrials
	}

	target := srt.PatternFromToken(token, salt)
	tallies := make([]Tally, workers)

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := w * cfg.NumTrials / workers
		hi := (w + 1) * cfg.NumTrials / workers
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(opts.Seed, uint64(w)))
			for i := lo; i < hi; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				runTrial(cfg, target, rng, &tallies[w])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	var total Tally
	for _, t := range tallies {
		total.Add(t)
	}
	return Finalize(cfg, total), nil
}

// Finalize turns raw counters into probabilities and the pool extrapolation.
//
// The single-match rate is per peer sample while the double-match rate is per
// trial; the two denominators differ on purpose.
func Finalize(cfg Config, tally Tally) Result {
	single := float64(tally.SingleMatches) / float64(max(1, tally.PeerSamples))
	double := float64(tally.DoubleMatches) / float64(max(1, cfg.NumTrials))

	effective := float64(cfg.NumPeers)
	if cfg.ApplyGeoFilter && cfg.GeoFilterFactor > 0 {
		effective = math.Max(1, float64(cfg.NumPeers)/float64(cfg.GeoFilterFactor))
	}

	return Result{
		TotalTrials:            cfg.NumTrials,
		TotalPeerSamples:       tally.PeerSamples,
		SingleMatchCount:       tally.SingleMatches,
		DoubleMatchCount:       tally.DoubleMatches,
		SingleMatchProbability: single,
		DoubleMatchProbability: double,
		EffectivePeerCount:     effective,
		ExpectedMatchesInPool:  single * effective,
		PoolMatchProbability:   1 - math.Pow(1-single, effective),
	}
}

// runTrial samples cfg.NumPeers peers for the single-match count, then two
// more for the double-match check.
func runTrial(cfg Config, target pattern.Pattern, rng *rand.Rand, tally *Tally) {
	matchCfg := matching.NewConfig(cfg.Epsilon, cfg.WindowSize)

	for i := 0; i < cfg.NumPeers; i++ {
		if MatchesTarget(pattern.Random(rng), target, matchCfg) {
			tally.SingleMatches++
		}
		tally.PeerSamples++
	}

	peerA := pattern.Random(rng)
	peerB := pattern.Random(rng)
	if MatchesTarget(peerA, target, matchCfg) && MatchesTarget(peerB, target, matchCfg) {
		tally.DoubleMatches++
	}
	tally.Trials++
}

// MatchesTarget reports whether a fresh matcher fed max(window, 1) repeated
// observations of measured reaches the stably matched state. Every repeat
// has the outcome of the first one, so the window fills with hits exactly
// when the first observation is within threshold.
func MatchesTarget(measured, target pattern.Pattern, cfg matching.Config) bool {
	return matching.NewMatcher(cfg).Evaluate(measured, target).Within
}
