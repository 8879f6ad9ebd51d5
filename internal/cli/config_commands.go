package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rescale/interlink-transfers/internal/config"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the simulator configuration",
		Long: `Configuration management commands for interlink-transfers.

Commands:
  init  - Write a configuration file with default values
  show  - Display current configuration
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// resolveConfigPath returns --config or the default path.
func resolveConfigPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultConfigPath()
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with default values",
		Long: `Write transfers.conf with default values.

Use --force to overwrite an existing configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			configPath, err := resolveConfigPath()
			if err != nil {
				return fmt.Errorf("failed to determine config path: %w", err)
			}

			if !force {
				if _, err := os.Stat(configPath); err == nil {
					fmt.Fprintf(out, "Configuration already exists at: %s\n", configPath)
					fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			if err := config.SaveSimConfig(config.NewSimConfig(), configPath); err != nil {
				return err
			}
			GetLogger().Debug().Str("path", configPath).Msg("configuration written")
			fmt.Fprintf(out, "✓ Configuration written to %s\n", configPath)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")
	return cmd
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			configPath, err := resolveConfigPath()
			if err != nil {
				return fmt.Errorf("failed to determine config path: %w", err)
			}

			cfg, err := config.LoadSimConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			fmt.Fprintln(out, "Current Configuration")
			fmt.Fprintln(out, "=====================")
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Engine:")
			fmt.Fprintf(out, "  Chunk Size:    %d bytes\n", cfg.Engine.ChunkSize)
			fmt.Fprintf(out, "  Poll Interval: %v\n", cfg.PollInterval())
			if cfg.Engine.RateBytesPerSec == 0 {
				fmt.Fprintln(out, "  Rate:          unthrottled")
			} else {
				fmt.Fprintf(out, "  Rate:          %d bytes/s\n", cfg.Engine.RateBytesPerSec)
			}
			if cfg.Engine.MaxConcurrent > 0 {
				fmt.Fprintf(out, "  Concurrency:   %d\n", cfg.Engine.MaxConcurrent)
			}
			if cfg.Engine.TotalRateBytesPerSec > 0 {
				fmt.Fprintf(out, "  Total Rate:    %d bytes/s\n", cfg.Engine.TotalRateBytesPerSec)
			}
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Display:")
			fmt.Fprintf(out, "  Locale:  %s\n", cfg.Display.Locale)
			fmt.Fprintf(out, "  Refresh: %v\n", cfg.RefreshInterval())
			fmt.Fprintf(out, "  Mode:    %s\n", cfg.Display.Mode)
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Simulation:")
			fmt.Fprintf(out, "  Uploads:      %d\n", cfg.Simulation.Uploads)
			fmt.Fprintf(out, "  Downloads:    %d\n", cfg.Simulation.Downloads)
			fmt.Fprintf(out, "  Size Range:   %d - %d bytes\n", cfg.Simulation.MinSize, cfg.Simulation.MaxSize)
			fmt.Fprintf(out, "  Failure Rate: %g\n", cfg.Simulation.FailureRate)
			fmt.Fprintln(out)

			fmt.Fprintf(out, "Configuration file: %s\n", configPath)
			if _, err := os.Stat(configPath); os.IsNotExist(err) {
				fmt.Fprintln(out, "  (file does not exist - using defaults)")
			}
			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(out, "  ✗ invalid: %v\n", err)
			}
			return nil
		},
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			configPath, err := resolveConfigPath()
			if err != nil {
				return fmt.Errorf("failed to determine config path: %w", err)
			}
			fmt.Fprintln(out, configPath)

			if _, err := os.Stat(configPath); err != nil {
				fmt.Fprintln(out, "Status: File does not exist")
				fmt.Fprintln(out, "Create a configuration file with: interlink-transfers config init")
			} else {
				fmt.Fprintln(out, "Status: ✓ File exists")
			}
			return nil
		},
	}
}
