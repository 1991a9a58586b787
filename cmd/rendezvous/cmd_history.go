package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/nvandessel/rendezvous/internal/constants"
	"github.com/nvandessel/rendezvous/internal/sanitize"
	"github.com/nvandessel/rendezvous/internal/store"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect saved simulation runs",
		Long: `Runs saved with 'rendezvous simulate --save' are kept in
<store.dir>/rendezvous.db.

Examples:
  rendezvous history list               # Newest runs first
  rendezvous history list --all --json  # Everything, machine readable
  rendezvous history show <id>          # One run in full
  rendezvous history delete <id>`,
	}

	cmd.AddCommand(
		newHistoryListCmd(),
		newHistoryShowCmd(),
		newHistoryDeleteCmd(),
	)

	return cmd
}

// openRunStore loads config and opens the SQLite run history.
func openRunStore(cmd *cobra.Command) (*store.SQLiteRunStore, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	s, err := store.NewSQLiteRunStore(cfg.Store.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	return s, nil
}

func newHistoryListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			if all, _ := cmd.Flags().GetBool("all"); all {
				limit = 0
			} else if limit < 1 {
				return fmt.Errorf("--limit must be at least 1, got %d", limit)
			}

			s, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.ListRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOutput(cmd) {
				if runs == nil {
					runs = []store.Run{}
				}
				return writeJSON(out, map[string]any{"runs": runs, "count": len(runs)})
			}

			if len(runs) == 0 {
				fmt.Fprintln(out, "No saved runs. Use 'rendezvous simulate --save' to record one.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tPEERS\tTRIALS\tEPSILON\tP(SINGLE)\tP(DOUBLE)")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%g\t%.4g\t%.4g\n",
					r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Config.NumPeers, r.Config.NumTrials,
					r.Config.Epsilon, r.Result.SingleMatchProbability, r.Result.DoubleMatchProbability)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Int("limit", constants.DefaultHistoryLimit, "Maximum number of runs")
	cmd.Flags().Bool("all", false, "List every run")
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one saved run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			run, err := s.GetRun(cmd.Context(), args[0])
			if errors.Is(err, store.ErrRunNotFound) {
				return fmt.Errorf("run not found: %s", sanitize.Label(args[0]))
			}
			if err != nil {
				return fmt.Errorf("failed to get run: %w", err)
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), run)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s, salt %q\n\n",
				run.CreatedAt.Local().Format(time.RFC3339), sanitize.Label(run.Salt))
			printSimulation(cmd.OutOrStdout(), *run)
			return nil
		},
	}
}

func newHistoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.DeleteRun(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, store.ErrRunNotFound) {
					return fmt.Errorf("run not found: %s", sanitize.Label(args[0]))
				}
				return fmt.Errorf("failed to delete run: %w", err)
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"status": "deleted", "id": args[0]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
			return nil
		},
	}
}
