// Package secrets resolves configuration secrets addressed by a scope and a
// key, for example the layout-model API key or the strategy override payload.
// Sources are composable; see Multi and Cached.
package secrets

import "context"

type Source interface {
	// Get retrieves the secret stored under (scope, key).
	// Returns ("", nil) when the secret does not exist.
	Get(ctx context.Context, scope, key string) (string, error)
}
