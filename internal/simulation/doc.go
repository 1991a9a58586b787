// Package simulation estimates false-positive (collision) rates of the
// rendezvous matcher with Monte Carlo trials over random peer populations.
//
// The simulator exercises the real derivation and matcher: the target is
// derived once from the token and salt, and every synthetic peer runs through
// a fresh matching.Matcher. Peers are sampled uniformly and independently per
// dimension, which is a simplifying assumption and not a sensor model.
//
// Usage:
//
//	cfg := simulation.Config{NumPeers: 500, NumTrials: 200, Epsilon: 0.15, WindowSize: 1}
//	rng := rand.New(rand.NewPCG(seed, 0))
//	result := simulation.Run(cfg, token, []byte("oracle-state"), rng)
//
// RunParallel splits trials across workers, each with its own generator, and
// sums the per-worker counts at the end.
package simulation
