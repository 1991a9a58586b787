package main

import (
	"fmt"
	"io"
	"os"

	"github.com/nvandessel/rendezvous/internal/sanitize"
	"github.com/nvandessel/rendezvous/internal/simulation"
	"github.com/nvandessel/rendezvous/internal/srt"
	"github.com/nvandessel/rendezvous/internal/store"
	"github.com/spf13/cobra"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Estimate accidental match rates among random peers",
		Long: `Run a Monte Carlo simulation: each trial samples random peers and counts
how many land within epsilon of the target, then checks whether two
independent peers both match. The per-sample rate is extrapolated to the
candidate pool, optionally reduced by a geographic filter.

Flags override the simulation section of the config file.

Examples:
  rendezvous simulate
  rendezvous simulate --peers 500 --trials 200 --epsilon 0.15 --window 1 --geo-filter
  rendezvous simulate --seed 7 --workers 4 --save --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			flags := cmd.Flags()

			if flags.Changed("peers") {
				cfg.Simulation.NumPeers, _ = flags.GetInt("peers")
			}
			if flags.Changed("trials") {
				cfg.Simulation.NumTrials, _ = flags.GetInt("trials")
			}
			if flags.Changed("epsilon") {
				cfg.Matching.Epsilon, _ = flags.GetFloat32("epsilon")
			}
			if flags.Changed("window") {
				cfg.Matching.WindowSize, _ = flags.GetInt("window")
			}
			if flags.Changed("geo-filter") {
				cfg.Simulation.ApplyGeoFilter, _ = flags.GetBool("geo-filter")
			}
			if flags.Changed("geo-factor") {
				cfg.Simulation.GeoFilterFactor, _ = flags.GetFloat32("geo-factor")
			}
			if flags.Changed("workers") {
				cfg.Simulation.Workers, _ = flags.GetInt("workers")
			}
			if flags.Changed("seed") {
				cfg.Simulation.Seed, _ = flags.GetUint64("seed")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			salt, _ := flags.GetString("salt")
			if err := sanitize.CheckSalt(salt); err != nil {
				return err
			}

			var token srt.Token
			if hex, _ := flags.GetString("token"); hex != "" || os.Getenv("RENDEZVOUS_TOKEN") != "" {
				if token, err = resolveToken(cmd); err != nil {
					return err
				}
			} else if token, err = srt.Generate(tokenSource); err != nil {
				return fmt.Errorf("failed to generate token: %w", err)
			}

			seed := cfg.Simulation.Seed
			if seed == 0 {
				seed = simulation.NewSeed()
			}
			workers := cfg.Workers()
			params := cfg.SimulationParams()
			logger := newCommandLogger(cmd, cfg)

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			logger.Debug("starting simulation", "peers", params.NumPeers, "trials", params.NumTrials,
				"workers", workers, "seed", seed, "token_fingerprint", token.Fingerprint())
			result, err := simulation.RunParallel(ctx, params, token, []byte(salt), simulation.Options{
				Workers: workers,
				Seed:    seed,
			})
			if err != nil {
				return fmt.Errorf("simulation failed: %w", err)
			}

			run := store.Run{
				TokenFingerprint: token.Fingerprint(),
				Salt:             salt,
				Config:           params,
				Result:           result,
				Workers:          workers,
				Seed:             seed,
			}

			if save, _ := flags.GetBool("save"); save {
				runStore, err := store.NewSQLiteRunStore(cfg.Store.Dir)
				if err != nil {
					return fmt.Errorf("failed to open run store: %w", err)
				}
				defer runStore.Close()

				id, err := runStore.SaveRun(ctx, run)
				if err != nil {
					return fmt.Errorf("failed to save run: %w", err)
				}
				run.ID = id
				logger.Info("saved run", "id", id, "path", runStore.Path())
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), run)
			}
			printSimulation(cmd.OutOrStdout(), run)
			return nil
		},
	}
	addTokenFlags(cmd)
	cmd.Flags().Int("peers", 0, "Random peers sampled per trial (overrides config)")
	cmd.Flags().Int("trials", 0, "Number of trials (overrides config)")
	cmd.Flags().Float32("epsilon", 0, "Normalized distance threshold (overrides config)")
	cmd.Flags().Int("window", 0, "Consecutive hits required, 0 for instantaneous (overrides config)")
	cmd.Flags().Bool("geo-filter", false, "Divide the candidate pool by the geographic filter factor")
	cmd.Flags().Float32("geo-factor", 0, "Geographic filter factor (overrides config)")
	cmd.Flags().Int("workers", 0, "Parallel workers, 0 for one per CPU (overrides config)")
	cmd.Flags().Uint64("seed", 0, "Seed for a reproducible run, 0 for random (overrides config)")
	cmd.Flags().Bool("save", false, "Store the run in history")
	return cmd
}

// printSimulation writes a human-readable run summary.
func printSimulation(w io.Writer, run store.Run) {
	c, r := run.Config, run.Result
	row := func(label, format string, args ...any) {
		fmt.Fprintf(w, "  %-26s "+format+"\n", append([]any{label + ":"}, args...)...)
	}

	fmt.Fprintln(w, "Simulation summary:")
	if run.ID != "" {
		row("run id", "%s", run.ID)
	}
	row("token fingerprint", "%s", run.TokenFingerprint)
	row("seed", "%d (%d workers)", run.Seed, run.Workers)
	row("peers x trials", "%d x %d", c.NumPeers, c.NumTrials)
	row("epsilon / window", "%g / %d", c.Epsilon, c.WindowSize)
	if c.ApplyGeoFilter {
		row("geographic filter", "1/%g", c.GeoFilterFactor)
	}
	fmt.Fprintln(w)
	row("total_trials", "%d", r.TotalTrials)
	row("total_peer_samples", "%d", r.TotalPeerSamples)
	row("single_match_count", "%d", r.SingleMatchCount)
	row("double_match_count", "%d", r.DoubleMatchCount)
	row("single_match_probability", "%.6g", r.SingleMatchProbability)
	row("double_match_probability", "%.6g", r.DoubleMatchProbability)
	row("effective_peer_count", "%g", r.EffectivePeerCount)
	row("expected_matches_in_pool", "%.6g", r.ExpectedMatchesInPool)
	row("pool_match_probability", "%.6g", r.PoolMatchProbability)
}
