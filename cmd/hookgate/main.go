package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "config.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hookgate",
		Short: "Verify GitHub webhook deliveries and route them to handlers",
		Long: `hookgate authenticates GitHub webhook deliveries with the shared secret
(X-Hub-Signature-256), classifies them by X-GitHub-Event and runs the
handlers configured for that event, in order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", defaultConfigPath, "path to config file or directory")

	root.AddCommand(
		newServeCmd(),
		newConfigCmd(),
		newSignCmd(),
		newVersionCmd(),
	)
	return root
}

func configPath(cmd *cobra.Command) string {
	p, err := cmd.Flags().GetString("config")
	if err != nil || p == "" {
		return defaultConfigPath
	}
	return p
}
