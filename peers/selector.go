package peers

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"swapnet/types"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultTopRatio     = 0.1
	DefaultProbeTimeout = 3 * time.Second
	DefaultSampleCount  = 1
)

var errProbeTimeout = errors.New("probe timed out")

type SelectorConfig struct {
	TopRatio     float64
	ProbeTimeout time.Duration
	SampleCount  int
}

// Options narrows a single selection. Hotkeys, when set, replaces ranking.
type Options struct {
	Hotkeys []string
}

// Selector turns a membership snapshot into the peers usable for one dispatch.
type Selector struct {
	transport Transport
	cfg       SelectorConfig
	logger    *zap.Logger

	rngMtx sync.Mutex
	rng    *rand.Rand
}

// NewSelector uses rng for sampling; pass a seeded source for reproducible picks.
func NewSelector(transport Transport, cfg SelectorConfig, rng *rand.Rand, logger *zap.Logger) *Selector {
	if cfg.TopRatio <= 0 || cfg.TopRatio > 1 {
		cfg.TopRatio = DefaultTopRatio
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.SampleCount < 1 {
		cfg.SampleCount = DefaultSampleCount
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{transport: transport, cfg: cfg, rng: rng, logger: logger}
}

// Rank orders peers by stake, highest first, and keeps round(ratio*len) of
// them. Equal stakes keep snapshot order. A snapshot too small for the ratio
// yields no peers.
func Rank(snapshot []types.Peer, ratio float64) []types.Peer {
	if len(snapshot) == 0 || ratio <= 0 {
		return nil
	}

	ranked := make([]types.Peer, len(snapshot))
	copy(ranked, snapshot)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Stake > ranked[j].Stake
	})

	count := int(math.Round(ratio * float64(len(ranked))))
	if count > len(ranked) {
		count = len(ranked)
	}
	return ranked[:count]
}

// Explicit picks the named peers from the snapshot, in snapshot order.
// Unknown and repeated hotkeys are ignored.
func Explicit(snapshot []types.Peer, hotkeys []string) []types.Peer {
	wanted := make(map[string]bool, len(hotkeys))
	for _, hk := range hotkeys {
		wanted[hk] = true
	}

	out := make([]types.Peer, 0, len(hotkeys))
	for _, p := range snapshot {
		if wanted[p.Hotkey] {
			out = append(out, p)
			// first occurrence wins
			delete(wanted, p.Hotkey)
		}
	}
	return out
}

// Probe pings every candidate at once and returns those that answered
// within the probe timeout, in candidate order. Peers already flagged
// unavailable are dropped without a network call.
func (s *Selector) Probe(ctx context.Context, candidates []types.Peer) []types.Peer {
	if len(candidates) == 0 {
		return nil
	}

	keep := make([]bool, len(candidates))
	reasons := make([]string, len(candidates))

	var g errgroup.Group
	for i, p := range candidates {
		i, p := i, p
		if !p.Available {
			reasons[i] = "flagged unavailable"
			continue
		}
		g.Go(func() error {
			err := s.ping(ctx, p)
			if err != nil {
				reasons[i] = err.Error()
				return nil
			}
			keep[i] = true
			return nil
		})
	}
	_ = g.Wait()

	out := make([]types.Peer, 0, len(candidates))
	for i, p := range candidates {
		if keep[i] {
			out = append(out, p)
			continue
		}
		s.logger.Debug("peer rejected", zap.String("hotkey", p.Hotkey), zap.String("address", p.Address), zap.String("reason", reasons[i]))
	}
	s.logger.Info("peer liveness probe completed",
		zap.Int("accepted", len(out)),
		zap.Int("rejected", len(candidates)-len(out)),
		zap.Int("total", len(candidates)))
	return out
}

// ping returns once the transport answers or the probe timeout passes,
// whichever comes first.
func (s *Selector) ping(parent context.Context, p types.Peer) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.ProbeTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.transport.Ping(ctx, p)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errProbeTimeout
		}
		return ctx.Err()
	}
}

// Select ranks (or takes the explicit hotkeys) and probes. An empty
// result means no peer is available and is not an error.
func (s *Selector) Select(ctx context.Context, snapshot []types.Peer, opts Options) []types.Peer {
	var candidates []types.Peer
	if len(opts.Hotkeys) > 0 {
		candidates = Explicit(snapshot, opts.Hotkeys)
	} else {
		candidates = Rank(snapshot, s.cfg.TopRatio)
	}
	s.logger.Debug("peer candidates ranked", zap.Int("snapshot", len(snapshot)), zap.Int("candidates", len(candidates)))
	return s.Probe(ctx, candidates)
}

// Sample draws up to k distinct peers uniformly at random. k < 1 uses the
// configured sample count.
func (s *Selector) Sample(usable []types.Peer, k int) []types.Peer {
	if k < 1 {
		k = s.cfg.SampleCount
	}
	if k > len(usable) {
		k = len(usable)
	}
	if k == 0 {
		return nil
	}

	s.rngMtx.Lock()
	perm := s.rng.Perm(len(usable))
	s.rngMtx.Unlock()

	out := make([]types.Peer, k)
	for i := 0; i < k; i++ {
		out[i] = usable[perm[i]]
	}
	return out
}
