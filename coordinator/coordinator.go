package coordinator

import (
	"context"
	"errors"
	"fmt"

	"swapnet/dispatch"
	"swapnet/peers"
	"swapnet/redis"
	"swapnet/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// stat fields kept per hotkey
const (
	StatSwapsWon       = "swaps_won"
	StatSwapsWonWeekly = "swaps_won_weekly"
	statDispatchPrefix = "dispatch_"
)

var (
	ErrSwapNotFound   = errors.New("swap not found")
	ErrUnboundAccount = errors.New("no hotkey bound to account")
)

// SwapSubmission is a swap created on chain and handed over for fulfilment.
type SwapSubmission struct {
	ChainName string
	SwapID    string
	Output    bool
	Info      []byte

	// Hotkeys bypasses stake ranking when set
	Hotkeys []string
}

type RequestResult struct {
	RequestID string                   `json:"request_id"`
	SwapID    string                   `json:"swap_id"`
	Usable    []types.Peer             `json:"usable"`
	Selected  []types.Peer             `json:"selected"`
	Outcomes  map[string]types.Outcome `json:"outcomes"`

	// Skipped is set when no peer passed selection; nothing was sent
	Skipped bool `json:"skipped"`
}

type WinnerResult struct {
	SwapID string              `json:"swap_id"`
	Hotkey string              `json:"hotkey"`
	Total  int64               `json:"total"`
	Weekly types.WeeklyHistory `json:"weekly"`
}

// SwapCoordinator drives a swap from request to finalization.
type SwapCoordinator struct {
	store      *redis.SwapStore
	membership peers.MembershipProvider
	selector   *peers.Selector
	dispatcher *dispatch.Dispatcher
	sampleSize int
	logger     *zap.Logger
}

func New(store *redis.SwapStore, membership peers.MembershipProvider, selector *peers.Selector, dispatcher *dispatch.Dispatcher, sampleSize int, logger *zap.Logger) *SwapCoordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SwapCoordinator{
		store:      store,
		membership: membership,
		selector:   selector,
		dispatcher: dispatcher,
		sampleSize: sampleSize,
		logger:     logger,
	}
}

func (c *SwapCoordinator) Store() *redis.SwapStore {
	return c.store
}

// UsablePeers fetches the membership snapshot and returns the peers that
// pass ranking and the liveness probe.
func (c *SwapCoordinator) UsablePeers(ctx context.Context, hotkeys []string) ([]types.Peer, error) {
	snapshot, err := c.membership.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot get membership snapshot: %w", err)
	}
	return c.selector.Select(ctx, snapshot, peers.Options{Hotkeys: hotkeys}), nil
}

// RequestSwap records the swap and asks sampled peers to fulfil it. Only
// backend and membership failures are returned as errors; individual peer
// failures show up in the outcomes.
func (c *SwapCoordinator) RequestSwap(ctx context.Context, sub SwapSubmission) (*RequestResult, error) {
	swapID := types.NormalizeSwapID(sub.SwapID)
	if swapID == "" {
		return nil, fmt.Errorf("%w: empty swap id", redis.ErrInvalidKey)
	}

	if err := c.store.StoreSwap(ctx, swapID, sub.Info); err != nil {
		return nil, fmt.Errorf("cannot store swap %s: %w", swapID, err)
	}

	usable, err := c.UsablePeers(ctx, sub.Hotkeys)
	if err != nil {
		return nil, err
	}

	res := &RequestResult{
		RequestID: uuid.New().String(),
		SwapID:    swapID,
		Usable:    usable,
		Outcomes:  map[string]types.Outcome{},
	}
	log := c.logger.With(zap.String("request_id", res.RequestID), zap.String("swap_id", swapID))

	if len(usable) == 0 {
		log.Warn("no peers available, swap request skipped")
		res.Skipped = true
		return res, nil
	}

	res.Selected = c.selector.Sample(usable, c.sampleSize)
	for _, p := range res.Selected {
		log.Info("selected peer", zap.Int("uid", p.UID), zap.String("hotkey", p.Hotkey), zap.String("address", p.Address))
	}

	req := types.SwapRequest{
		ID:        res.RequestID,
		ChainName: sub.ChainName,
		SwapID:    swapID,
		Output:    sub.Output,
	}
	res.Outcomes = c.dispatcher.Dispatch(ctx, req, res.Selected)

	// per-peer counters are informational, a failure here does not fail the request
	for hotkey, o := range res.Outcomes {
		if _, err := c.store.IncrementTotalStat(ctx, hotkey, statDispatchPrefix+string(o.Status), 1); err != nil {
			log.Warn("cannot update dispatch stat", zap.String("hotkey", hotkey), zap.Error(err))
		}
	}

	return res, nil
}

// RecordWinner drops the swap record and credits the hotkey bound to the
// winning account. The winner itself is decided by the swap contract.
// A swap is credited at most once: after a stat failure the record is
// already gone and a retry returns ErrSwapNotFound.
func (c *SwapCoordinator) RecordWinner(ctx context.Context, swapID, winnerAccount string) (*WinnerResult, error) {
	swapID = types.NormalizeSwapID(swapID)

	_, found, err := c.store.RetrieveSwap(ctx, swapID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrSwapNotFound, swapID)
	}

	hotkey, found, err := c.store.RetrieveHotkey(ctx, winnerAccount)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrUnboundAccount, winnerAccount)
	}

	if err := c.store.DeleteSwap(ctx, swapID); err != nil {
		return nil, fmt.Errorf("cannot delete finalized swap: %w", err)
	}

	total, err := c.store.IncrementTotalStat(ctx, hotkey, StatSwapsWon, 1)
	if err != nil {
		return nil, fmt.Errorf("cannot update total stat for swap %s: %w", swapID, err)
	}
	weekly, err := c.store.RecordDailyStat(ctx, hotkey, StatSwapsWonWeekly, 1)
	if err != nil {
		return nil, fmt.Errorf("cannot update weekly stat for swap %s: %w", swapID, err)
	}

	c.logger.Info("swap finalized", zap.String("swap_id", swapID), zap.String("winner", winnerAccount), zap.String("hotkey", hotkey), zap.Int64("total_won", total))
	return &WinnerResult{SwapID: swapID, Hotkey: hotkey, Total: total, Weekly: weekly}, nil
}
