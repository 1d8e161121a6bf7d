package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"waasp/internal/store"
	"waasp/internal/whitelist"
	"waasp/pkg/logger"
)

// userMessage turns a command error into the line shown to the operator.
// Storage failures get a fixed message; their cause goes to the verbose log.
func userMessage(err error) string {
	switch {
	case errors.Is(err, store.ErrUnavailable):
		return "storage unavailable (rerun with --verbose for details)"
	case errors.Is(err, context.Canceled):
		return "interrupted"
	case errors.Is(err, whitelist.ErrInvalidArgument):
		return "invalid input: " + strings.TrimPrefix(err.Error(), whitelist.ErrInvalidArgument.Error()+": ")
	case errors.Is(err, whitelist.ErrAlreadyExists):
		return "contact already exists"
	case errors.Is(err, whitelist.ErrNotFound):
		return "contact not found"
	}
	return err.Error()
}

func reportError(w io.Writer, err error, verbose bool) {
	if errors.Is(err, store.ErrUnavailable) {
		logger.NewCLI(w, verbose).Debug("storage failure", "err", err)
	}
	fmt.Fprintf(w, "Error: %s\n", userMessage(err))
}
