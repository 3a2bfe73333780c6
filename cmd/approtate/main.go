package main

import (
	"fmt"
	"os"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"

	"github.com/systmms/approtate/cmd/approtate/commands"
	"github.com/systmms/approtate/internal/config"
	dserrors "github.com/systmms/approtate/internal/errors"
	"github.com/systmms/approtate/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", dserrors.SimplifyError(err))
	}
	memguard.Purge()
	os.Exit(commands.ExitCode(err))
}

func run() error {
	// Global flags
	var (
		configFile string
		noColor    bool
		debug      bool
		logFormat  string
	)

	cfg := &config.Config{}
	rt := &commands.Runtime{}
	info := commands.BuildInfo{Version: version, Commit: commit, Date: date}

	rootCmd := &cobra.Command{
		Use:   "approtate",
		Short: "Rotate an Azure AD application's client secret",
		Long: `approtate rotates the client secret of an Azure AD application: it
creates a new password credential with the current secret, stores the new
secret in a vault and removes expired credentials.`,
		Version:       info.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if logFormat != "text" && logFormat != "json" {
				return fmt.Errorf("invalid --log-format %q (use text or json)", logFormat)
			}

			cfg.Path = configFile
			// Without --config a missing default file is fine: app settings
			// in the environment can carry the whole configuration.
			cfg.Optional = !cmd.Flags().Changed("config")
			cfg.Logger = logging.NewWithOptions(logging.Options{
				Debug:   debug,
				NoColor: noColor,
				JSON:    logFormat == "json",
			})
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath, "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(
		commands.NewRunCommand(cfg, rt),
		commands.NewServeCommand(cfg, rt),
		commands.NewValidateCommand(cfg, rt),
		commands.NewHistoryCommand(cfg),
		commands.NewVersionCommand(info),
		commands.NewCompletionCommand(),
	)

	return rootCmd.Execute()
}
