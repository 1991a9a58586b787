package main

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/nvandessel/rendezvous/internal/srt"
	"github.com/spf13/cobra"
)

// tokenSource is swapped in tests for deterministic tokens.
var tokenSource io.Reader = rand.Reader

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Generate and inspect rendezvous tokens",
		Long: `A rendezvous token is a 32-byte secret shared out of band by the parties
who want to meet. It is written as 64 hex characters.

Examples:
  rendezvous token generate              # New random token
  rendezvous token generate --count 3    # Several tokens
  rendezvous token fingerprint <hex>     # Short identifier safe to log`,
	}

	cmd.AddCommand(
		newTokenGenerateCmd(),
		newTokenFingerprintCmd(),
	)

	return cmd
}

func newTokenGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a random token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			count, _ := cmd.Flags().GetInt("count")
			if count < 1 {
				return fmt.Errorf("--count must be at least 1, got %d", count)
			}

			type generated struct {
				Token       string `json:"token"`
				Fingerprint string `json:"token_fingerprint"`
			}
			tokens := make([]generated, 0, count)
			for i := 0; i < count; i++ {
				t, err := srt.Generate(tokenSource)
				if err != nil {
					return fmt.Errorf("failed to generate token: %w", err)
				}
				tokens = append(tokens, generated{Token: t.Hex(), Fingerprint: t.Fingerprint()})
			}

			out := cmd.OutOrStdout()
			if jsonOutput(cmd) {
				if count == 1 {
					return writeJSON(out, tokens[0])
				}
				return writeJSON(out, tokens)
			}
			for _, t := range tokens {
				fmt.Fprintln(out, t.Token)
			}
			return nil
		},
	}
	cmd.Flags().Int("count", 1, "Number of tokens to generate")
	return cmd
}

func newTokenFingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint <hex>",
		Short: "Print the fingerprint of a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := srt.ParseHex(args[0])
			if err != nil {
				return fmt.Errorf("invalid token: %w", err)
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"token_fingerprint": t.Fingerprint()})
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.Fingerprint())
			return nil
		},
	}
}
