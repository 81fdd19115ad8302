package peers

import (
	"context"

	"swapnet/types"
)

// MembershipProvider supplies the current network membership snapshot.
type MembershipProvider interface {
	Snapshot(ctx context.Context) ([]types.Peer, error)
}

// Transport carries requests to a peer. Implementations should honour ctx,
// callers do not rely on it.
type Transport interface {
	Ping(ctx context.Context, peer types.Peer) error
	Send(ctx context.Context, peer types.Peer, req types.SwapRequest) ([]byte, error)
}

// StaticMembership serves a fixed snapshot, usually from the config file.
type StaticMembership []types.Peer

func (m StaticMembership) Snapshot(ctx context.Context) ([]types.Peer, error) {
	out := make([]types.Peer, len(m))
	copy(out, m)
	return out, nil
}
