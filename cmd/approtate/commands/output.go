package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/approtate/pkg/rotation"
)

func printRunSummary(cmd *cobra.Command, result *rotation.Result) {
	out := cmd.OutOrStdout()

	_, _ = fmt.Fprintf(out, "Run %s: %s\n", result.RunID, formatOutcome(result.Outcome))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, step := range result.Steps {
		detail := step.Message
		if step.Error != "" {
			detail = step.Error
		}
		_, _ = fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", step.Stage, step.Status, formatDuration(step.Duration), detail)
	}
	_ = w.Flush()

	if result.Created != nil {
		_, _ = fmt.Fprintf(out, "New credential: %s\n", result.Created.KeyID)
	}
	if len(result.Removed) > 0 {
		_, _ = fmt.Fprintf(out, "Removed %d expired credential(s)\n", len(result.Removed))
	}
	if result.Outcome == rotation.OutcomeInconsistent {
		_, _ = fmt.Fprintln(out, "Manual reconciliation required: the new credential is not stored in the vault.")
	}
}

func formatOutcome(outcome rotation.Outcome) string {
	switch outcome {
	case rotation.OutcomeSucceeded:
		return "✅ Succeeded"
	case rotation.OutcomeFailed:
		return "❌ Failed"
	case rotation.OutcomeInconsistent:
		return "⚠️ Inconsistent"
	default:
		return string(outcome)
	}
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "-"
	}

	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	} else if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	} else if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}
