package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/nvandessel/rendezvous/internal/logging"
	"github.com/nvandessel/rendezvous/internal/sanitize"
	"github.com/nvandessel/rendezvous/internal/session"
	"github.com/nvandessel/rendezvous/internal/stream"
	"github.com/spf13/cobra"
)

func newMatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match a stream of measured patterns against the derived target",
		Long: `Read measured patterns, one JSON record per line, and report after each
one whether a stable match with the target has occurred.

Records are either objects with the nine pattern fields or arrays of nine
numbers in canonical order. Blank lines and lines starting with # are
skipped.

Examples:
  rendezvous match --token <hex> --salt cafe --input readings.jsonl
  sensor-dump | rendezvous match --token <hex> --salt cafe --window 3 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			token, err := resolveToken(cmd)
			if err != nil {
				return err
			}
			salt, _ := cmd.Flags().GetString("salt")
			if err := sanitize.CheckSalt(salt); err != nil {
				return err
			}

			if cmd.Flags().Changed("epsilon") {
				cfg.Matching.Epsilon, _ = cmd.Flags().GetFloat32("epsilon")
			}
			if cmd.Flags().Changed("window") {
				cfg.Matching.WindowSize, _ = cmd.Flags().GetInt("window")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			input := cmd.InOrStdin()
			if inputPath, _ := cmd.Flags().GetString("input"); inputPath != "-" {
				f, closeInput, err := stream.OpenInput(inputPath)
				if err != nil {
					return err
				}
				defer closeInput()
				input = f
			}

			sessionID, _ := cmd.Flags().GetString("session")
			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			strict, _ := cmd.Flags().GetBool("strict")
			logger := newCommandLogger(cmd, cfg)

			dl := logging.NewDecisionLogger(cfg.Store.Dir, cfg.Logging.Level, sessionID)
			defer dl.Close()

			sess := session.New(token, []byte(salt), cfg.MatchingParams(), session.Options{
				ID:        sessionID,
				Logger:    logger,
				Decisions: dl,
			})

			return runMatch(cmd.OutOrStdout(), stream.NewReader(input), sess, matchOptions{
				json:   jsonOutput(cmd),
				strict: strict,
				warn: func(err error) {
					logger.Warn("skipping measurement", "error", sanitize.Label(err.Error()))
				},
			})
		},
	}
	addTokenFlags(cmd)
	cmd.Flags().StringP("input", "i", "-", "Measurement file, - for stdin")
	cmd.Flags().Float32("epsilon", 0, "Normalized distance threshold (overrides config)")
	cmd.Flags().Int("window", 0, "Consecutive hits required, 0 for instantaneous (overrides config)")
	cmd.Flags().String("session", "", "Session ID for the decision trace (default random)")
	cmd.Flags().Bool("strict", false, "Fail on the first malformed record instead of skipping it")
	return cmd
}

type matchOptions struct {
	json   bool
	strict bool
	warn   func(error)
}

// runMatch feeds every record from r to sess and writes one line per
// decision followed by a summary.
func runMatch(out io.Writer, r *stream.Reader, sess *session.Session, opts matchOptions) error {
	for {
		measured, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		var lineErr *stream.LineError
		if errors.As(err, &lineErr) && !opts.strict {
			if opts.warn != nil {
				opts.warn(err)
			}
			continue
		}
		if err != nil {
			return err
		}

		d := sess.Observe(measured)
		if opts.json {
			if err := stream.WriteJSONL(out, d); err != nil {
				return err
			}
			continue
		}
		if d.Matched {
			fmt.Fprintf(out, "rendezvous triggered at index %d\n", d.Index)
		} else {
			fmt.Fprintf(out, "no match at index %d\n", d.Index)
		}
	}

	sum := sess.Summary()
	if opts.json {
		return stream.WriteJSONL(out, map[string]any{"summary": sum})
	}
	fmt.Fprintf(out, "\n%d observations, %d within threshold", sum.Observations, sum.Hits)
	if sum.Matched {
		fmt.Fprintf(out, ", first match at index %d\n", sum.FirstMatchIndex)
	} else {
		fmt.Fprintln(out, ", no stable match")
	}
	return nil
}
