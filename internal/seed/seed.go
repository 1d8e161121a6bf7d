package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"waasp/internal/contacts"
	"waasp/internal/whitelist"
)

// Entry is one contact in a seed file.
type Entry struct {
	SenderID   string  `yaml:"sender_id"`
	Channel    *string `yaml:"channel,omitempty"`
	TrustLevel string  `yaml:"trust_level,omitempty"`
	Name       *string `yaml:"name,omitempty"`
	Notes      *string `yaml:"notes,omitempty"`
}

// File is a YAML list of contacts to bulk-load:
//
//	contacts:
//	  - sender_id: "+447375862225"
//	    channel: whatsapp
//	    trust_level: trusted
//	    name: Test User
type File struct {
	Contacts []Entry `yaml:"contacts"`
}

// Result counts what Apply did.
type Result struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

// Parse decodes a seed file. Unknown keys and unknown trust levels are
// errors: seed files are operator input, not free text.
func Parse(r io.Reader) (File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return File{}, nil
		}
		return File{}, fmt.Errorf("failed to parse seed file: %w", err)
	}
	for i, e := range f.Contacts {
		if e.TrustLevel == "" {
			continue
		}
		if _, err := contacts.ValidateTrustLevel(e.TrustLevel); err != nil {
			return File{}, fmt.Errorf("contacts[%d]: trust_level %q: %w", i, e.TrustLevel, err)
		}
	}
	return f, nil
}

// Load reads and parses the seed file at path.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("seed file %q: %w", path, err)
	}
	return Parse(bytes.NewReader(data))
}

// Apply adds every entry through the whitelist service, so each one is
// validated and audited like a manual add. Existing pairs are skipped.
func Apply(ctx context.Context, svc *whitelist.Service, f File) (Result, error) {
	var res Result
	for i, e := range f.Contacts {
		req := whitelist.AddRequest{
			SenderID: e.SenderID,
			Channel:  e.Channel,
			Name:     e.Name,
			Notes:    e.Notes,
		}
		if e.TrustLevel != "" {
			lvl, err := contacts.ValidateTrustLevel(e.TrustLevel)
			if err != nil {
				return res, fmt.Errorf("contacts[%d]: %w", i, err)
			}
			req.TrustLevel = lvl
		}

		_, err := svc.Add(ctx, req)
		switch {
		case errors.Is(err, whitelist.ErrAlreadyExists):
			res.Skipped++
		case err != nil:
			return res, fmt.Errorf("contacts[%d] (%s): %w", i, e.SenderID, err)
		default:
			res.Added++
		}
	}
	return res, nil
}
