package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"waasp/internal/whitelist"
)

func newCheckCmd(rt *runtime) *cobra.Command {
	var (
		channel, preview, format string
	)
	cmd := &cobra.Command{
		Use:   "check <sender_id>",
		Short: "Check whether a sender is allowed",
		Long:  "Resolves the sender (channel record first, then global) and records the decision in the audit log.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validFormat(format); err != nil {
				return err
			}
			a, ctx, err := rt.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Whitelist.Check(ctx, whitelist.CheckRequest{
				SenderID:       args[0],
				Channel:        optString(channel),
				MessagePreview: optString(preview),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == formatJSON {
				return writeJSON(out, res)
			}
			fmt.Fprintf(out, "%s  %s (%s)\n", strings.ToUpper(string(res.Action())), args[0], res.TrustLevel)
			if res.Name != nil {
				fmt.Fprintf(out, "  name:   %s\n", *res.Name)
			}
			fmt.Fprintf(out, "  reason: %s\n", res.Reason)
			return nil
		},
	}
	cmd.Flags().StringVarP(&channel, "channel", "c", "", "Channel (e.g. whatsapp, telegram)")
	cmd.Flags().StringVar(&preview, "preview", "", "Message preview to store with the decision")
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "Output format: text or json")
	return cmd
}
