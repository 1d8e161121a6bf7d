package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"waasp/internal/audit"
)

func newAuditCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit log operations",
		Long:  "Commands for querying, summarising and pruning the decision audit log.",
	}
	cmd.AddCommand(newAuditListCmd(rt), newAuditStatsCmd(rt), newAuditCleanupCmd(rt))
	return cmd
}

func newAuditListCmd(rt *runtime) *cobra.Command {
	var (
		f      audit.Filter
		action string
		format string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show audit entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validFormat(format); err != nil {
				return err
			}
			if action != "" {
				a, err := audit.ParseAction(action)
				if err != nil {
					return fmt.Errorf("%w: %q", err, action)
				}
				f.Action = a
			}
			if f.Limit < 0 || f.Offset < 0 {
				return fmt.Errorf("--limit and --offset must be >= 0")
			}

			a, ctx, err := rt.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.Audit.Query(ctx, f)
			if err != nil {
				return err
			}
			if format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), list)
			}
			return writeEntries(cmd.OutOrStdout(), list)
		},
	}
	cmd.Flags().StringVar(&f.SenderID, "sender", "", "Filter by sender_id")
	cmd.Flags().StringVar(&action, "action", "", "Filter by action kind")
	cmd.Flags().StringVarP(&f.Channel, "channel", "c", "", "Filter by channel")
	cmd.Flags().IntVarP(&f.Limit, "limit", "n", audit.DefaultLimit, "Maximum entries (capped at 1000)")
	cmd.Flags().IntVar(&f.Offset, "offset", 0, "Entries to skip")
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "Output format: text or json")
	return cmd
}

func newAuditStatsCmd(rt *runtime) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Count audit entries by action",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validFormat(format); err != nil {
				return err
			}
			a, ctx, err := rt.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.Audit.Stats(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if format == formatJSON {
				return writeJSON(out, st)
			}
			fmt.Fprintf(out, "Total entries: %d\n", st.TotalEntries)
			actions := make([]string, 0, len(st.ByAction))
			for k := range st.ByAction {
				actions = append(actions, string(k))
			}
			sort.Strings(actions)
			for _, k := range actions {
				fmt.Fprintf(out, "  %-16s %d\n", k, st.ByAction[audit.Action(k)])
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "Output format: text or json")
	return cmd
}

func newAuditCleanupCmd(rt *runtime) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete audit entries older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, err := rt.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			j := *a.Janitor
			if cmd.Flags().Changed("days") {
				if days <= 0 {
					return fmt.Errorf("--days must be > 0")
				}
				j.Retention = time.Duration(days) * 24 * time.Hour
			}
			n, err := j.RunOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d audit entries older than %d days\n", n, int(j.Retention.Hours()/24))
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Retention in days (default AUDIT_RETENTION_DAYS)")
	return cmd
}
