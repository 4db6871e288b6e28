package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/hookgate/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate and seal configuration",
	}
	cmd.AddCommand(newConfigCheckCmd(), newConfigHashCmd())
	return cmd
}

func newConfigCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath(cmd))
			if err != nil {
				return err
			}

			events := make(map[string]int)
			for _, h := range cfg.Handlers {
				events[h.Event]++
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration valid: %s\n", configPath(cmd))
			fmt.Fprintf(out, "  listen:   %s%s\n", cfg.Server.Listen, cfg.Server.Path)
			fmt.Fprintf(out, "  handlers: %d across %d event(s)\n", len(cfg.Handlers), len(events))
			return nil
		},
	}
}

func newConfigHashCmd() *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Compute BLAKE3 checksums for the configuration file",
		Long: `Compute BLAKE3 checksums for the configuration file. With --write the
.checksums manifest is written next to it and verified on every load.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, file, err := resolveConfigTarget(configPath(cmd))
			if err != nil {
				return err
			}

			report, err := config.GenerateChecksumsWithReport(dir, []string{file}, !write)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, f := range report.Files {
				if !f.Exists {
					fmt.Fprintf(out, "  %s: missing\n", f.Filename)
					continue
				}
				fmt.Fprintf(out, "  %s: %s\n", f.Filename, f.Hash)
			}
			if report.Written {
				fmt.Fprintf(out, "Wrote %s\n", report.ChecksumPath)
			} else {
				fmt.Fprintln(out, "Dry run; pass --write to update .checksums")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "write the .checksums manifest")
	return cmd
}

// resolveConfigTarget splits path into its directory and file name. A
// directory resolves to its config.yaml.
func resolveConfigTarget(path string) (string, string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", "", fmt.Errorf("config file not found: %s", abs)
	}
	if info.IsDir() {
		return abs, "config.yaml", nil
	}
	return filepath.Dir(abs), filepath.Base(abs), nil
}
