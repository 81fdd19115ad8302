package coordinator

import (
	"errors"
	"math/rand"
	"time"

	"swapnet/PeerRPC"
	"swapnet/config"
	"swapnet/dispatch"
	"swapnet/peers"
	"swapnet/redis"

	"go.uber.org/zap"
)

// FromConfig wires the store, membership, selector and dispatcher described by cfg.
// The caller owns the returned coordinator's store and must Close it.
func FromConfig(cfg *config.Configuration, logger *zap.Logger) (*SwapCoordinator, error) {
	var membership peers.MembershipProvider
	switch {
	case cfg.Membership.Endpoint != "":
		membership = PeerRPC.NewMembershipClient(cfg.Membership.Endpoint, cfg.Dispatch.Timeout)
	case len(cfg.Membership.Peers) > 0:
		membership = peers.StaticMembership(cfg.Membership.Peers)
	default:
		return nil, errors.New("no membership endpoint or static peers configured")
	}

	seed := cfg.Selector.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	transport := PeerRPC.NewTransport(cfg.Dispatch.Timeout, logger)
	selector := peers.NewSelector(transport, peers.SelectorConfig{
		TopRatio:     cfg.Selector.TopRatio,
		ProbeTimeout: cfg.Selector.ProbeTimeout,
		SampleCount:  cfg.Selector.SampleCount,
	}, rand.New(rand.NewSource(seed)), logger)
	dispatcher := dispatch.NewDispatcher(transport, cfg.Dispatch.Timeout, logger)

	store := redis.NewSwapStore(redis.NewClient(cfg.Redis, logger))

	return New(store, membership, selector, dispatcher, cfg.Selector.SampleCount, logger), nil
}
