package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/hookgate/internal/webhook"
)

func newSignCmd() *cobra.Command {
	var secretEnv string
	cmd := &cobra.Command{
		Use:   "sign [FILE]",
		Short: "Print the X-Hub-Signature-256 value for a payload",
		Long: `Print the X-Hub-Signature-256 header value for FILE (or stdin), keyed by
the secret in the named environment variable. Useful for replaying
deliveries with curl.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, ok := os.LookupEnv(secretEnv)
			if !ok || secret == "" {
				return fmt.Errorf("environment variable %s is not set", secretEnv)
			}

			var body []byte
			var err error
			if len(args) == 1 && args[0] != "-" {
				body, err = os.ReadFile(args[0])
			} else {
				body, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("read payload: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), webhook.Sign([]byte(secret), body))
			return nil
		},
	}
	cmd.Flags().StringVar(&secretEnv, "secret-env", "GITHUB_WEBHOOK_SECRET", "environment variable holding the secret")
	return cmd
}
