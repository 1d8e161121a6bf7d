package contacts

import (
	"context"

	"waasp/internal/store"
)

// Resolve applies channel precedence: an exact channel record wins,
// otherwise the global record applies. Scopes are never merged.
func Resolve(ctx context.Context, q store.Querier, senderID string, channel *string) (Contact, bool, error) {
	if channel != nil {
		c, ok, err := FindExact(ctx, q, senderID, channel, false)
		if err != nil || ok {
			return c, ok, err
		}
	}
	return FindExact(ctx, q, senderID, nil, false)
}
