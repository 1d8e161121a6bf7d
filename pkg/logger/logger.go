package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

const serviceName = "waasp"

// New returns the server logger: JSON on stdout, debug level in local and dev.
func New(appEnv string) *slog.Logger {
	return NewJSON(os.Stdout, appEnv)
}

// NewJSON is New writing to w. Every record carries service=waasp.
func NewJSON(w io.Writer, appEnv string) *slog.Logger {
	level := slog.LevelInfo
	if appEnv == "local" || appEnv == "dev" {
		level = slog.LevelDebug
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("service", serviceName)
}

// levelSilent is above every level the services log at.
const levelSilent = slog.LevelError + 4

// NewCLI returns a text logger for the waasp command, writing to w (stderr).
// It is silent unless verbose: service logs carry storage errors verbatim.
func NewCLI(w io.Writer, verbose bool) *slog.Logger {
	level := levelSilent
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

type ctxKey struct{}

// With returns ctx carrying l for services further down the call.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From returns the logger carried by ctx, or slog.Default().
func From(ctx context.Context) *slog.Logger {
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}
