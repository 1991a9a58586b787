package main

import (
	"fmt"
	"strings"

	"github.com/nvandessel/rendezvous/internal/pattern"
	"github.com/nvandessel/rendezvous/internal/sanitize"
	"github.com/nvandessel/rendezvous/internal/srt"
	"github.com/spf13/cobra"
)

func newDeriveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive the target pattern for a token and salt",
		Long: `Derive the sensory pattern both parties aim to experience.

The same token and salt always give the same pattern; changing the salt
(for example to a new date) gives an unrelated one.

Examples:
  rendezvous derive --token <hex> --salt 2025-06-01
  rendezvous derive --token <hex> --salt cafe --normalized --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := resolveToken(cmd)
			if err != nil {
				return err
			}
			salt, _ := cmd.Flags().GetString("salt")
			if err := sanitize.CheckSalt(salt); err != nil {
				return err
			}
			normalized, _ := cmd.Flags().GetBool("normalized")

			target := srt.PatternFromToken(token, []byte(salt))
			out := cmd.OutOrStdout()

			if jsonOutput(cmd) {
				result := map[string]any{
					"token_fingerprint": token.Fingerprint(),
					"pattern":           target,
				}
				if normalized {
					result["normalized"] = pattern.Normalize(target)
				}
				return writeJSON(out, result)
			}

			fmt.Fprintf(out, "Target pattern (token %s):\n", token.Fingerprint())
			vec := target.Vector()
			norm := pattern.Normalize(target).Vector()
			for i, d := range pattern.Dimensions {
				line := fmt.Sprintf("  %-16s %10.4f %-3s", d.Name+":", vec[i], d.Unit)
				if normalized {
					line += fmt.Sprintf("  (%.4f)", norm[i])
				}
				fmt.Fprintln(out, strings.TrimRight(line, " "))
			}
			return nil
		},
	}
	addTokenFlags(cmd)
	cmd.Flags().Bool("normalized", false, "Also show the pattern mapped into [0,1]")
	return cmd
}
