package common

import "context"

// Gateway abstracts the broker connection orders and contracts go through.
type Gateway interface {
	// ResolveContract qualifies a descriptor and returns the venue's canonical id.
	ResolveContract(ctx context.Context, c Contract) (string, error)
	// ValidAccounts lists the accounts managed by this connection.
	ValidAccounts(ctx context.Context) ([]string, error)
	// NextOrderIDBlock reserves n consecutive order ids and returns the first.
	NextOrderIDBlock(ctx context.Context, n int) (int64, error)
	// Submit places one order against a resolved contract id.
	Submit(ctx context.Context, contractID string, req OrderRequest) error
}
