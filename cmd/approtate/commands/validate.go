package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/approtate/internal/config"
	"github.com/systmms/approtate/internal/notifications"
	"github.com/systmms/approtate/internal/scheduler"
)

// NewValidateCommand creates the validate command
func NewValidateCommand(cfg *config.Config, rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration without contacting any service",
		Long: `Validate loads the configuration file and environment overrides, checks
every required setting, the cron schedule and the notification providers,
and prints the effective settings. It makes no network calls.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd, cfg); err != nil {
				return err
			}
			def := cfg.Definition

			if err := def.Validate(); err != nil {
				return err
			}
			sched, err := scheduler.Parse(def.Schedule)
			if err != nil {
				return err
			}
			manager, err := notifications.NewManagerFromConfig(def.Notifications, cfg.Logger)
			if err != nil {
				return err
			}

			rc := def.Rotation().WithDefaults()
			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "Tenant:\t%s\n", rc.TenantID)
			_, _ = fmt.Fprintf(w, "Client:\t%s\n", rc.ClientID)
			_, _ = fmt.Fprintf(w, "Application object:\t%s\n", rc.AppObjectID)
			_, _ = fmt.Fprintf(w, "Secret name:\t%s\n", rc.SecretName)
			_, _ = fmt.Fprintf(w, "Vault:\t%s (%s)\n", def.Vault.TypeOrDefault(), rc.VaultURL)
			_, _ = fmt.Fprintf(w, "Cloud:\t%s\n", def.Cloud)
			_, _ = fmt.Fprintf(w, "Validity:\t%d days\n", int(rc.Validity/(24*time.Hour)))
			_, _ = fmt.Fprintf(w, "Prune policy:\t%s\n", rc.PrunePolicy)
			_, _ = fmt.Fprintf(w, "Schedule:\t%s (next: %s)\n", def.Schedule,
				sched.Next(rt.clock().Now()).Format(time.RFC3339))
			if manager != nil {
				for _, p := range manager.Providers() {
					_, _ = fmt.Fprintf(w, "Notifications:\t%s\n", p.Name())
				}
			}
			_ = w.Flush()

			_, _ = fmt.Fprintln(out, "✅ Configuration is valid")
			return nil
		},
	}

	return cmd
}
