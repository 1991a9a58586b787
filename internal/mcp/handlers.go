package mcp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/rendezvous/internal/constants"
	"github.com/nvandessel/rendezvous/internal/matching"
	"github.com/nvandessel/rendezvous/internal/pattern"
	"github.com/nvandessel/rendezvous/internal/ratelimit"
	"github.com/nvandessel/rendezvous/internal/sanitize"
	"github.com/nvandessel/rendezvous/internal/session"
	"github.com/nvandessel/rendezvous/internal/simulation"
	"github.com/nvandessel/rendezvous/internal/srt"
	"github.com/nvandessel/rendezvous/internal/store"
)

const (
	recentRunsURI  = "rendezvous://runs/recent"
	runURIPrefix   = "rendezvous://runs/"
	maxMeasurement = 10_000
)

// registerTools registers all rendezvous MCP tools and resources.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "rendezvous_derive",
		Description: "Derive the target sensory pattern for a shared token and context salt",
	}, s.handleDerive)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "rendezvous_match",
		Description: "Feed measured patterns through a matcher and report per-measurement decisions",
	}, s.handleMatch)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "rendezvous_simulate",
		Description: "Estimate accidental match rates among random peers with a Monte Carlo simulation",
	}, s.handleSimulate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "rendezvous_history",
		Description: "List saved simulation runs or fetch one by ID",
	}, s.handleHistory)

	s.server.AddResource(&sdk.Resource{
		URI:         recentRunsURI,
		Name:        "rendezvous-recent-runs",
		Description: "Most recent saved simulation runs with their match probabilities.",
		MIMEType:    "text/markdown",
	}, s.handleRecentRunsResource)

	s.server.AddResourceTemplate(&sdk.ResourceTemplate{
		URITemplate: runURIPrefix + "{id}",
		Name:        "rendezvous-run",
		Description: "Full parameters and statistics of one saved simulation run.",
		MIMEType:    "text/markdown",
	}, s.handleRunResource)
}

// parseTokenAndSalt validates the shared inputs of derive and match.
func parseTokenAndSalt(token, salt string) (srt.Token, error) {
	if token == "" {
		return srt.Token{}, fmt.Errorf("'token' parameter is required")
	}
	t, err := srt.ParseHex(token)
	if err != nil {
		return srt.Token{}, fmt.Errorf("invalid token: %w", err)
	}
	if err := sanitize.CheckSalt(salt); err != nil {
		return srt.Token{}, err
	}
	return t, nil
}

// handleDerive implements the rendezvous_derive tool.
func (s *Server) handleDerive(ctx context.Context, req *sdk.CallToolRequest, args DeriveInput) (_ *sdk.CallToolResult, _ DeriveOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("rendezvous_derive", start, retErr, sanitizeToolParams(map[string]any{
			"token": args.Token, "salt": args.Salt,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "rendezvous_derive"); err != nil {
		return nil, DeriveOutput{}, err
	}

	token, err := parseTokenAndSalt(args.Token, args.Salt)
	if err != nil {
		return nil, DeriveOutput{}, err
	}

	target := srt.PatternFromToken(token, []byte(args.Salt))
	s.logger.Debug("derived target", "token_fingerprint", token.Fingerprint())

	return nil, DeriveOutput{
		Fingerprint: token.Fingerprint(),
		Pattern:     target,
		Normalized:  pattern.Normalize(target),
	}, nil
}

// handleMatch implements the rendezvous_match tool.
func (s *Server) handleMatch(ctx context.Context, req *sdk.CallToolRequest, args MatchInput) (_ *sdk.CallToolResult, _ MatchOutput, retErr error) {
	start := time.Now()
	defer func() {
		params := map[string]any{
			"token": args.Token, "salt": args.Salt, "measurements": len(args.Measurements),
		}
		if args.Epsilon != nil {
			params["epsilon"] = *args.Epsilon
		}
		if args.WindowSize != nil {
			params["window_size"] = *args.WindowSize
		}
		s.auditTool("rendezvous_match", start, retErr, sanitizeToolParams(params))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "rendezvous_match"); err != nil {
		return nil, MatchOutput{}, err
	}

	token, err := parseTokenAndSalt(args.Token, args.Salt)
	if err != nil {
		return nil, MatchOutput{}, err
	}
	if len(args.Measurements) > maxMeasurement {
		return nil, MatchOutput{}, fmt.Errorf("too many measurements: %d (max %d)", len(args.Measurements), maxMeasurement)
	}

	cfg := s.settings.MatchingParams()
	if args.Epsilon != nil {
		if *args.Epsilon < 0 {
			return nil, MatchOutput{}, fmt.Errorf("epsilon must be non-negative, got %f", *args.Epsilon)
		}
		cfg.Epsilon = *args.Epsilon
	}
	if args.WindowSize != nil {
		if *args.WindowSize < 0 {
			return nil, MatchOutput{}, fmt.Errorf("window_size must be non-negative, got %d", *args.WindowSize)
		}
		cfg.WindowSize = *args.WindowSize
	}

	sess := session.New(token, []byte(args.Salt), matching.NewConfig(cfg.Epsilon, cfg.WindowSize), session.Options{
		Logger:    s.logger,
		Decisions: s.decisions,
	})

	decisions := make([]session.Decision, 0, len(args.Measurements))
	for _, m := range args.Measurements {
		if err := ctx.Err(); err != nil {
			return nil, MatchOutput{}, err
		}
		decisions = append(decisions, sess.Observe(m))
	}

	return nil, MatchOutput{
		Target:    sess.Target(),
		Decisions: decisions,
		Summary:   sess.Summary(),
	}, nil
}

// simulationWork is the number of matcher observations a run performs. Each
// sampled peer is observed max(window_size,1) times.
func simulationWork(cfg simulation.Config) float64 {
	return (float64(cfg.NumPeers) + 2) * float64(cfg.NumTrials) * float64(max(cfg.WindowSize, 1))
}

// handleSimulate implements the rendezvous_simulate tool.
func (s *Server) handleSimulate(ctx context.Context, req *sdk.CallToolRequest, args SimulateInput) (_ *sdk.CallToolResult, _ SimulateOutput, retErr error) {
	start := time.Now()
	cfg := s.settings.SimulationParams()
	seed := s.settings.Simulation.Seed
	defer func() {
		s.auditTool("rendezvous_simulate", start, retErr, sanitizeToolParams(map[string]any{
			"token": args.Token, "salt": args.Salt,
			"num_peers": cfg.NumPeers, "num_trials": cfg.NumTrials,
			"epsilon": cfg.Epsilon, "window_size": cfg.WindowSize,
			"apply_geo_filter": cfg.ApplyGeoFilter, "seed": seed, "save": args.Save,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "rendezvous_simulate"); err != nil {
		return nil, SimulateOutput{}, err
	}

	if args.NumPeers != nil {
		cfg.NumPeers = *args.NumPeers
	}
	if args.NumTrials != nil {
		cfg.NumTrials = *args.NumTrials
	}
	if args.Epsilon != nil {
		cfg.Epsilon = *args.Epsilon
	}
	if args.WindowSize != nil {
		cfg.WindowSize = *args.WindowSize
	}
	if args.ApplyGeoFilter != nil {
		cfg.ApplyGeoFilter = *args.ApplyGeoFilter
	}
	if args.GeoFilterFactor != nil {
		cfg.GeoFilterFactor = *args.GeoFilterFactor
	}
	if args.Seed != nil {
		seed = *args.Seed
	}
	if err := cfg.Validate(); err != nil {
		return nil, SimulateOutput{}, err
	}
	if work := simulationWork(cfg); work > constants.MaxMCPTrialWork {
		return nil, SimulateOutput{}, fmt.Errorf("simulation too large: (num_peers+2)*num_trials*max(window_size,1) = %.0f exceeds %d", work, constants.MaxMCPTrialWork)
	}
	if err := sanitize.CheckSalt(args.Salt); err != nil {
		return nil, SimulateOutput{}, err
	}

	var token srt.Token
	if args.Token == "" {
		generated, err := srt.Generate(rand.Reader)
		if err != nil {
			return nil, SimulateOutput{}, fmt.Errorf("failed to generate token: %w", err)
		}
		token = generated
	} else {
		parsed, err := srt.ParseHex(args.Token)
		if err != nil {
			return nil, SimulateOutput{}, fmt.Errorf("invalid token: %w", err)
		}
		token = parsed
	}
	if seed == 0 {
		seed = simulation.NewSeed()
	}

	workers := s.settings.Workers()
	result, err := simulation.RunParallel(ctx, cfg, token, []byte(args.Salt), simulation.Options{
		Workers: workers,
		Seed:    seed,
	})
	if err != nil {
		return nil, SimulateOutput{}, fmt.Errorf("simulation failed: %w", err)
	}
	s.logger.Info("simulation finished",
		"trials", result.TotalTrials, "single_p", result.SingleMatchProbability, "double_p", result.DoubleMatchProbability)

	out := SimulateOutput{
		Fingerprint: token.Fingerprint(),
		Config:      cfg,
		Result:      result,
		Workers:     workers,
		Seed:        seed,
	}
	if args.Save {
		id, err := s.store.SaveRun(ctx, store.Run{
			TokenFingerprint: out.Fingerprint,
			Salt:             args.Salt,
			Config:           cfg,
			Result:           result,
			Workers:          workers,
			Seed:             seed,
		})
		if err != nil {
			return nil, SimulateOutput{}, fmt.Errorf("failed to save run: %w", err)
		}
		out.RunID = id
	}

	return nil, out, nil
}

// handleHistory implements the rendezvous_history tool.
func (s *Server) handleHistory(ctx context.Context, req *sdk.CallToolRequest, args HistoryInput) (_ *sdk.CallToolResult, _ HistoryOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("rendezvous_history", start, retErr, sanitizeToolParams(map[string]any{
			"id": args.ID, "limit": args.Limit,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "rendezvous_history"); err != nil {
		return nil, HistoryOutput{}, err
	}

	if args.ID != "" {
		run, err := s.store.GetRun(ctx, args.ID)
		if err != nil {
			return nil, HistoryOutput{}, fmt.Errorf("failed to get run %s: %w", args.ID, err)
		}
		return nil, HistoryOutput{Runs: []store.Run{*run}, Count: 1}, nil
	}

	if args.Limit < 0 {
		return nil, HistoryOutput{}, fmt.Errorf("limit must be non-negative, got %d", args.Limit)
	}
	limit := args.Limit
	if limit == 0 {
		limit = constants.DefaultHistoryLimit
	}

	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, HistoryOutput{}, fmt.Errorf("failed to list runs: %w", err)
	}
	if runs == nil {
		runs = []store.Run{}
	}
	return nil, HistoryOutput{Runs: runs, Count: len(runs)}, nil
}

// handleRecentRunsResource returns the latest saved runs as a markdown table.
func (s *Server) handleRecentRunsResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	runs, err := s.store.ListRuns(ctx, constants.DefaultHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("# Recent Simulation Runs\n\n")
	if len(runs) == 0 {
		sb.WriteString("No saved runs yet. Run `rendezvous_simulate` with `save: true`.\n")
	} else {
		sb.WriteString("| ID | Created | Peers | Trials | Epsilon | Window | P(single) | P(double) |\n")
		sb.WriteString("|---|---|---|---|---|---|---|---|\n")
		for _, r := range runs {
			fmt.Fprintf(&sb, "| %s | %s | %d | %d | %g | %d | %.6g | %.6g |\n",
				r.ID, r.CreatedAt.UTC().Format(time.RFC3339), r.Config.NumPeers, r.Config.NumTrials,
				r.Config.Epsilon, r.Config.WindowSize, r.Result.SingleMatchProbability, r.Result.DoubleMatchProbability)
		}
		fmt.Fprintf(&sb, "\n---\n*%d runs shown, details via %s{id}*\n", len(runs), runURIPrefix)
	}

	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      recentRunsURI,
				MIMEType: "text/markdown",
				Text:     sb.String(),
			},
		},
	}, nil
}

// handleRunResource returns full details for one saved run.
func (s *Server) handleRunResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	uri := req.Params.URI
	if !strings.HasPrefix(uri, runURIPrefix) {
		return nil, fmt.Errorf("invalid URI format: %s", uri)
	}
	id := strings.TrimPrefix(uri, runURIPrefix)
	if id == "" {
		return nil, fmt.Errorf("run ID is required")
	}

	run, err := s.store.GetRun(ctx, id)
	if errors.Is(err, store.ErrRunNotFound) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Run: %s\n\n", run.ID)
	fmt.Fprintf(&sb, "**Created:** %s\n", run.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&sb, "**Token fingerprint:** %s\n", run.TokenFingerprint)
	fmt.Fprintf(&sb, "**Salt:** %s\n", sanitize.Label(run.Salt))
	fmt.Fprintf(&sb, "**Seed:** %d (%d workers)\n\n", run.Seed, run.Workers)

	sb.WriteString("## Parameters\n\n")
	fmt.Fprintf(&sb, "- Peers per trial: %d\n", run.Config.NumPeers)
	fmt.Fprintf(&sb, "- Trials: %d\n", run.Config.NumTrials)
	fmt.Fprintf(&sb, "- Epsilon: %g\n", run.Config.Epsilon)
	fmt.Fprintf(&sb, "- Window size: %d\n", run.Config.WindowSize)
	fmt.Fprintf(&sb, "- Geographic filter: %v (factor %g)\n\n", run.Config.ApplyGeoFilter, run.Config.GeoFilterFactor)

	sb.WriteString("## Results\n\n")
	fmt.Fprintf(&sb, "- Peer samples: %d\n", run.Result.TotalPeerSamples)
	fmt.Fprintf(&sb, "- Single matches: %d (p = %.6g)\n", run.Result.SingleMatchCount, run.Result.SingleMatchProbability)
	fmt.Fprintf(&sb, "- Double matches: %d (p = %.6g)\n", run.Result.DoubleMatchCount, run.Result.DoubleMatchProbability)
	fmt.Fprintf(&sb, "- Effective pool: %g peers\n", run.Result.EffectivePeerCount)
	fmt.Fprintf(&sb, "- Expected accidental matches in pool: %.6g\n", run.Result.ExpectedMatchesInPool)
	fmt.Fprintf(&sb, "- P(at least one accidental match): %.6g\n", run.Result.PoolMatchProbability)

	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      uri,
				MIMEType: "text/markdown",
				Text:     sb.String(),
			},
		},
	}, nil
}
