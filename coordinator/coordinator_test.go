package coordinator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"testing"
	"time"

	"swapnet/config"
	"swapnet/dispatch"
	"swapnet/peers"
	"swapnet/redis"
	"swapnet/types"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeTransport struct {
	mtx   sync.Mutex
	down  map[string]bool
	sent  []types.SwapRequest
	pings int
}

func (f *fakeTransport) Ping(ctx context.Context, peer types.Peer) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.pings++
	if f.down[peer.Hotkey] {
		return errors.New("unreachable")
	}
	return nil
}

func (f *fakeTransport) Send(ctx context.Context, peer types.Peer, req types.SwapRequest) ([]byte, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.sent = append(f.sent, req)
	return []byte(`{"accepted":true}`), nil
}

type failingMembership struct{}

func (failingMembership) Snapshot(ctx context.Context) ([]types.Peer, error) {
	return nil, errors.New("metagraph node unreachable")
}

// ten peers, hk-9 has the highest stake
func tenPeers() peers.StaticMembership {
	out := make(peers.StaticMembership, 10)
	for i := range out {
		out[i] = types.Peer{UID: i, Hotkey: fmt.Sprintf("hk-%d", i), Stake: float64(100 * (i + 1)), Address: fmt.Sprintf("10.0.0.%d:8091", i), Available: true}
	}
	return out
}

func newTestStore(t *testing.T) *redis.SwapStore {
	t.Helper()
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	client := redis.NewClient(config.RedisConfig{Host: mr.Host(), Port: port, DB: 1, DecodeResponses: true}, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = client.Close() })
	return redis.NewSwapStore(client)
}

func newCoordinator(t *testing.T, membership peers.MembershipProvider, transport *fakeTransport) *SwapCoordinator {
	t.Helper()
	logger := zaptest.NewLogger(t)
	selector := peers.NewSelector(transport, peers.SelectorConfig{TopRatio: 0.1, ProbeTimeout: 100 * time.Millisecond}, rand.New(rand.NewSource(1)), logger)
	dispatcher := dispatch.NewDispatcher(transport, time.Second, logger)
	return New(newTestStore(t), membership, selector, dispatcher, 1, logger)
}

func TestRequestSwapDispatchesToTopPeer(t *testing.T) {
	transport := &fakeTransport{down: map[string]bool{}}
	c := newCoordinator(t, tenPeers(), transport)
	ctx := context.Background()

	res, err := c.RequestSwap(ctx, SwapSubmission{ChainName: "ethereum", SwapID: "0xAB", Info: []byte(`{"amount":"1"}`)})
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	require.Len(t, res.Selected, 1)
	assert.Equal(t, "hk-9", res.Selected[0].Hotkey)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, types.StatusOK, res.Outcomes["hk-9"].Status)

	require.Len(t, transport.sent, 1)
	assert.Equal(t, types.SwapRequest{ID: res.RequestID, ChainName: "ethereum", SwapID: "0xab", Output: false}, transport.sent[0])

	info, found, err := c.Store().RetrieveSwap(ctx, "0xab")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte(`{"amount":"1"}`), info)

	answered, err := c.Store().TotalStat(ctx, "hk-9", "dispatch_ok")
	require.NoError(t, err)
	assert.Equal(t, int64(1), answered)
}

func TestRequestSwapSkippedWhenTopPeerDown(t *testing.T) {
	transport := &fakeTransport{down: map[string]bool{"hk-9": true}}
	c := newCoordinator(t, tenPeers(), transport)

	res, err := c.RequestSwap(context.Background(), SwapSubmission{ChainName: "ethereum", SwapID: "0x01"})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, res.Usable)
	assert.Empty(t, res.Outcomes)
	assert.Empty(t, transport.sent)
	assert.Equal(t, 1, transport.pings)
}

func TestRequestSwapSkippedWhenSnapshotTooSmall(t *testing.T) {
	transport := &fakeTransport{down: map[string]bool{}}
	c := newCoordinator(t, tenPeers()[:4], transport)

	res, err := c.RequestSwap(context.Background(), SwapSubmission{ChainName: "ethereum", SwapID: "0x05"})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, res.Usable)
	assert.Empty(t, res.Selected)
	assert.Empty(t, res.Outcomes)
	assert.Zero(t, transport.pings)
	assert.Empty(t, transport.sent)
}

func TestRequestSwapExplicitHotkeys(t *testing.T) {
	transport := &fakeTransport{down: map[string]bool{}}
	c := newCoordinator(t, tenPeers(), transport)

	res, err := c.RequestSwap(context.Background(), SwapSubmission{ChainName: "bnb", SwapID: "0x02", Output: true, Hotkeys: []string{"hk-2"}})
	require.NoError(t, err)
	require.Len(t, res.Selected, 1)
	assert.Equal(t, "hk-2", res.Selected[0].Hotkey)
	assert.True(t, transport.sent[0].Output)
}

func TestRequestSwapMembershipFailure(t *testing.T) {
	c := newCoordinator(t, failingMembership{}, &fakeTransport{})

	_, err := c.RequestSwap(context.Background(), SwapSubmission{SwapID: "0x03"})
	assert.ErrorContains(t, err, "membership snapshot")
}

func TestRequestSwapEmptyID(t *testing.T) {
	c := newCoordinator(t, tenPeers(), &fakeTransport{})

	_, err := c.RequestSwap(context.Background(), SwapSubmission{SwapID: "  "})
	assert.ErrorIs(t, err, redis.ErrInvalidKey)
}

func TestRecordWinner(t *testing.T) {
	c := newCoordinator(t, tenPeers(), &fakeTransport{down: map[string]bool{}})
	ctx := context.Background()
	account := "0x2bA64EFB7A4Ec8983E22A49c81fa216AC33f383A"

	_, err := c.RequestSwap(ctx, SwapSubmission{ChainName: "ethereum", SwapID: "0x04"})
	require.NoError(t, err)

	_, err = c.RecordWinner(ctx, "0x04", account)
	assert.ErrorIs(t, err, ErrUnboundAccount)

	require.NoError(t, c.Store().StoreHotkey(ctx, account, "hk-9"))
	res, err := c.RecordWinner(ctx, "0x04", account)
	require.NoError(t, err)
	assert.Equal(t, "hk-9", res.Hotkey)
	assert.Equal(t, int64(1), res.Total)
	require.Len(t, res.Weekly, 1)
	assert.Equal(t, int64(1), res.Weekly[0].Count)

	_, found, err := c.Store().RetrieveSwap(ctx, "0x04")
	require.NoError(t, err)
	assert.False(t, found)

	_, err = c.RecordWinner(ctx, "0x04", account)
	assert.ErrorIs(t, err, ErrSwapNotFound)
}

func TestRecordWinnerCreditsAtMostOnce(t *testing.T) {
	c := newCoordinator(t, tenPeers(), &fakeTransport{down: map[string]bool{}})
	ctx := context.Background()
	account := "0x2bA64EFB7A4Ec8983E22A49c81fa216AC33f383A"

	require.NoError(t, c.Store().StoreSwap(ctx, "0x06", []byte(`{}`)))
	require.NoError(t, c.Store().StoreHotkey(ctx, account, "hk-9"))
	// a weekly value that does not decode makes the second stat update fail
	require.NoError(t, c.Store().SetTotalStat(ctx, "hk-9", StatSwapsWonWeekly, 5))

	_, err := c.RecordWinner(ctx, "0x06", account)
	assert.ErrorIs(t, err, redis.ErrCorrupt)

	_, err = c.RecordWinner(ctx, "0x06", account)
	assert.ErrorIs(t, err, ErrSwapNotFound)

	total, err := c.Store().TotalStat(ctx, "hk-9", StatSwapsWon)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}
