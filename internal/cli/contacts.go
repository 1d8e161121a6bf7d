package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"waasp/internal/contacts"
	"waasp/internal/whitelist"
)

func newAddCmd(rt *runtime) *cobra.Command {
	var name, trust, channel, notes string
	cmd := &cobra.Command{
		Use:   "add <sender_id>",
		Short: "Add a contact to the whitelist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lvl := warnTrust(cmd.ErrOrStderr(), trust)

			a, ctx, err := rt.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			c, err := a.Whitelist.Add(ctx, whitelist.AddRequest{
				SenderID:   args[0],
				TrustLevel: lvl,
				Channel:    optString(channel),
				Name:       optString(name),
				Notes:      optString(notes),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s) on %s\n", c.SenderID, c.TrustLevel, channelOrGlobal(c.Channel))
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name")
	cmd.Flags().StringVarP(&trust, "trust", "t", string(contacts.TrustTrusted), "Trust level: sovereign, trusted, limited, blocked")
	cmd.Flags().StringVarP(&channel, "channel", "c", "", "Restrict to one channel (default: all channels)")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-text notes")
	return cmd
}

func newUpdateCmd(rt *runtime) *cobra.Command {
	var name, trust, channel, notes string
	cmd := &cobra.Command{
		Use:   "update <sender_id>",
		Short: "Update an existing contact",
		Long:  "Only the flags given are changed. Pass an empty value (--name \"\") to clear name or notes.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			req := whitelist.UpdateRequest{SenderID: args[0], Channel: optString(channel)}
			if flags.Changed("trust") {
				lvl := warnTrust(cmd.ErrOrStderr(), trust)
				req.TrustLevel = &lvl
			}
			if flags.Changed("name") {
				req.Name = &name
			}
			if flags.Changed("notes") {
				req.Notes = &notes
			}
			if req.TrustLevel == nil && req.Name == nil && req.Notes == nil {
				return fmt.Errorf("nothing to update: pass --trust, --name or --notes")
			}

			a, ctx, err := rt.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			c, err := a.Whitelist.Update(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s (%s) on %s\n", c.SenderID, c.TrustLevel, channelOrGlobal(c.Channel))
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name")
	cmd.Flags().StringVarP(&trust, "trust", "t", "", "Trust level: sovereign, trusted, limited, blocked")
	cmd.Flags().StringVarP(&channel, "channel", "c", "", "Channel of the record to update (default: global record)")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-text notes")
	return cmd
}

func newListCmd(rt *runtime) *cobra.Command {
	var trust, channel, format string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List whitelist contacts, newest first",
		Long:  "With --channel, lists records for that channel plus global records.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validFormat(format); err != nil {
				return err
			}
			var f whitelist.ListFilter
			if trust != "" {
				lvl := warnTrust(cmd.ErrOrStderr(), trust)
				f.TrustLevel = &lvl
			}
			f.Channel = optString(channel)

			a, ctx, err := rt.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.Whitelist.List(ctx, f)
			if err != nil {
				return err
			}
			if format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), list)
			}
			return writeContacts(cmd.OutOrStdout(), list)
		},
	}
	cmd.Flags().StringVarP(&trust, "trust", "t", "", "Filter by trust level")
	cmd.Flags().StringVarP(&channel, "channel", "c", "", "Filter by channel (includes global records)")
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "Output format: text or json")
	return cmd
}

func newRemoveCmd(rt *runtime) *cobra.Command {
	var channel string
	cmd := &cobra.Command{
		Use:   "remove <sender_id>",
		Short: "Remove a contact from the whitelist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, err := rt.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			removed, err := a.Whitelist.Remove(ctx, args[0], optString(channel))
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintf(cmd.OutOrStdout(), "Not found: %s on %s\n", args[0], channelOrGlobal(optString(channel)))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s on %s\n", args[0], channelOrGlobal(optString(channel)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&channel, "channel", "c", "", "Channel of the record to remove (default: global record)")
	return cmd
}
