package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"waasp/internal/audit"
	"waasp/internal/contacts"
)

const (
	formatText = "text"
	formatJSON = "json"
)

func validFormat(f string) error {
	if f != formatText && f != formatJSON {
		return fmt.Errorf("unknown format %q (want text or json)", f)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orDash(p *string) string {
	if p == nil || *p == "" {
		return "-"
	}
	return *p
}

func channelOrGlobal(p *string) string {
	if p == nil {
		return "(all)"
	}
	return *p
}

func writeContacts(w io.Writer, list []contacts.Contact) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No contacts found.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SENDER\tCHANNEL\tTRUST\tNAME\tCREATED")
	for _, c := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			c.SenderID, channelOrGlobal(c.Channel), c.TrustLevel, orDash(c.Name), c.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func writeEntries(w io.Writer, list []audit.Entry) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No audit entries found.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTION\tSENDER\tCHANNEL\tREASON")
	for _, e := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Format(time.RFC3339), strings.ToUpper(string(e.Action)), e.SenderID, orDash(e.Channel), orDash(e.DecisionReason))
	}
	return tw.Flush()
}

// warnTrust parses free text forgivingly, warning when it fell back to blocked.
func warnTrust(w io.Writer, raw string) contacts.TrustLevel {
	lvl := contacts.ParseTrustLevel(raw)
	if _, err := contacts.ValidateTrustLevel(raw); err != nil {
		fmt.Fprintf(w, "Warning: unknown trust level %q, using %q\n", raw, lvl)
	}
	return lvl
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
