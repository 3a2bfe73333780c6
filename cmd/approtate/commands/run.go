package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/approtate/internal/config"
)

// NewRunCommand creates the run command
func NewRunCommand(cfg *config.Config, rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Rotate the client secret once",
		Long: `Run performs a single rotation:

  1. Read the current client secret from the vault
  2. Create a new password credential on the application
  3. Store the new secret in the vault
  4. Remove expired password credentials

The command exits 1 when a stage fails and 2 when a new credential was
created but could not be stored, which needs manual reconciliation.`,
		Example: `  # Rotate using approtate.yaml in the current directory
  approtate run

  # Rotate using app settings only
  TenantId=... ClientId=... ClientSecretName=... AppObjectId=... KeyVaultURI=... approtate run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := rotateOnce(cmd.Context(), cmd, cfg, rt, nil)
			if result != nil {
				printRunSummary(cmd, result)
			}
			if err != nil {
				return fmt.Errorf("rotation failed: %w", err)
			}
			return nil
		},
	}

	return cmd
}
