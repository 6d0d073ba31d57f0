package common

import "context"

// Adapter turns a validated request into a provider call and reports a
// normalized ProviderResponse. Returned errors wrap ErrTransient or
// ErrPermanent so the worker can decide whether to retry.
type Adapter interface {
	Send(ctx context.Context, msg *ValidatedMessage) (*ProviderResponse, error)
}
