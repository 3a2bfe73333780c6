package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/systmms/approtate/internal/config"
	"github.com/systmms/approtate/pkg/rotation"
)

// NewHistoryCommand creates the history command
func NewHistoryCommand(cfg *config.Config) *cobra.Command {
	var (
		historyLimit  int
		historyFormat string
		historyAll    bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past rotation runs",
		Long: `Display the local record of rotation runs, newest first.

Each run shows when it finished, its outcome, the stage it stopped at and
the credential it created. By default only runs of the configured
application are listed.`,
		Example: `  # Show the last 20 runs
  approtate history

  # Show every recorded run of every application as JSON
  approtate history --all --limit 0 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch historyFormat {
			case "table", "json", "yaml":
			default:
				return fmt.Errorf("invalid format %q (use table, json or yaml)", historyFormat)
			}

			if err := loadConfig(cmd, cfg); err != nil {
				return err
			}
			def := cfg.Definition

			appObjectID := def.AppObjectID
			if historyAll {
				appObjectID = ""
			}

			runs, err := historyStore(def, cfg.Logger).List(appObjectID, historyLimit)
			if err != nil {
				return fmt.Errorf("failed to read history: %w", err)
			}

			out := cmd.OutOrStdout()
			switch historyFormat {
			case "json":
				return outputHistoryJSON(out, runs)
			case "yaml":
				return outputHistoryYAML(out, runs)
			default:
				return outputHistoryTable(out, runs)
			}
		},
	}

	cmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of runs to show (0 for all)")
	cmd.Flags().StringVar(&historyFormat, "format", "table", "Output format: table, json, yaml")
	cmd.Flags().BoolVar(&historyAll, "all", false, "Include runs of every application")

	return cmd
}

func outputHistoryTable(out io.Writer, runs []rotation.Result) error {
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(out, "No rotation history found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "FINISHED\tRUN\tOUTCOME\tSTAGE\tCREATED\tREMOVED\tDURATION\tERROR")
	_, _ = fmt.Fprintln(w, "--------\t---\t-------\t-----\t-------\t-------\t--------\t-----")

	for i := range runs {
		r := &runs[i]

		stage := "-"
		if r.FailedStage != "" {
			stage = string(r.FailedStage)
		}
		created := "-"
		if r.Created != nil {
			created = r.Created.KeyID
		}
		errorMsg := "-"
		if r.Error != "" {
			errorMsg = r.Error
			if len(errorMsg) > 50 {
				errorMsg = errorMsg[:47] + "..."
			}
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.FinishedAt.Format("2006-01-02 15:04:05"),
			r.RunID,
			formatOutcome(r.Outcome),
			stage,
			created,
			len(r.Removed),
			formatDuration(r.Duration()),
			errorMsg,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "\nShowing %d run(s)\n", len(runs))
	return nil
}

func outputHistoryJSON(out io.Writer, runs []rotation.Result) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(runs)
}

func outputHistoryYAML(out io.Writer, runs []rotation.Result) error {
	encoder := yaml.NewEncoder(out)
	defer func() { _ = encoder.Close() }()
	return encoder.Encode(runs)
}
