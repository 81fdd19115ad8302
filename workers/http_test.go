package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"swapnet/config"
	"swapnet/coordinator"
	"swapnet/dispatch"
	"swapnet/peers"
	"swapnet/redis"
	"swapnet/types"
	"swapnet/workers/handlers"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const account = "0x2bA64EFB7A4Ec8983E22A49c81fa216AC33f383A"

type echoTransport struct{}

func (echoTransport) Ping(ctx context.Context, peer types.Peer) error { return nil }

func (echoTransport) Send(ctx context.Context, peer types.Peer, req types.SwapRequest) ([]byte, error) {
	return []byte(fmt.Sprintf(`{"hotkey":%q,"swap_id":%q}`, peer.Hotkey, req.SwapID)), nil
}

func newTestServer(t *testing.T) (*httptest.Server, *miniredis.Miniredis) {
	t.Helper()
	logger := zaptest.NewLogger(t)

	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	client := redis.NewClient(config.RedisConfig{Host: mr.Host(), Port: port, DB: 1, DecodeResponses: true}, logger)
	t.Cleanup(func() { _ = client.Close() })
	store := redis.NewSwapStore(client)

	membership := make(peers.StaticMembership, 10)
	for i := range membership {
		membership[i] = types.Peer{UID: i, Hotkey: fmt.Sprintf("hk-%d", i), Stake: float64(i), Address: "127.0.0.1:1", Available: true}
	}

	selector := peers.NewSelector(echoTransport{}, peers.SelectorConfig{TopRatio: 0.2}, rand.New(rand.NewSource(1)), logger)
	dispatcher := dispatch.NewDispatcher(echoTransport{}, time.Second, logger)
	api := &handlers.API{
		Coordinator: coordinator.New(store, membership, selector, dispatcher, 1, logger),
		Store:       store,
		Logger:      logger,
	}

	srv := httptest.NewServer(NewRouter(api))
	t.Cleanup(srv.Close)
	return srv, mr
}

func doJSON(t *testing.T, method, url string, body interface{}, out interface{}) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthAndState(t *testing.T) {
	srv, mr := newTestServer(t)

	assert.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/health", nil, nil))
	assert.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/state", nil, nil))

	mr.Close()
	var state handlers.APIStateResponse
	assert.Equal(t, http.StatusServiceUnavailable, doJSON(t, http.MethodGet, srv.URL+"/state", nil, &state))
	assert.Equal(t, "error", state.Status)
}

func TestSwapLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	var res coordinator.RequestResult
	code := doJSON(t, http.MethodPost, srv.URL+"/swaps", handlers.SwapRequestBody{
		ChainName: "ethereum",
		SwapID:    "0xABCD",
		Info:      json.RawMessage(`{"amount":"5"}`),
	}, &res)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "0xabcd", res.SwapID)
	assert.False(t, res.Skipped)
	require.Len(t, res.Selected, 1)
	// top 20% of ten peers
	assert.Contains(t, []string{"hk-9", "hk-8"}, res.Selected[0].Hotkey)
	assert.Len(t, res.Outcomes, 1)

	var list handlers.APISwapListResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/swaps", nil, &list))
	assert.Equal(t, []string{"0xabcd"}, list.SwapIDs)

	var swap handlers.APISwapResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/swaps/0xAbCd", nil, &swap))
	assert.JSONEq(t, `{"amount":"5"}`, string(swap.Info))

	// winner without a binding
	assert.Equal(t, http.StatusUnprocessableEntity, doJSON(t, http.MethodPost, srv.URL+"/swaps/0xabcd/winner", handlers.WinnerBody{Account: account}, nil))

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPut, srv.URL+"/hotkeys/"+account, handlers.HotkeyBody{Hotkey: "hk-9"}, nil))

	var winner coordinator.WinnerResult
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, srv.URL+"/swaps/0xabcd/winner", handlers.WinnerBody{Account: account}, &winner))
	assert.Equal(t, "hk-9", winner.Hotkey)
	assert.Equal(t, int64(1), winner.Total)

	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodGet, srv.URL+"/swaps/0xabcd", nil, nil))

	var total handlers.APIStatResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/stats/hk-9/"+coordinator.StatSwapsWon, nil, &total))
	require.NotNil(t, total.Total)
	assert.Equal(t, int64(1), *total.Total)
}

func TestRequestSwapValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	var resp handlers.APIResponse
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, srv.URL+"/swaps", handlers.SwapRequestBody{ChainName: "ethereum"}, &resp))
	assert.Equal(t, "swap_id", resp.Field)

	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, srv.URL+"/swaps", handlers.SwapRequestBody{SwapID: "0x01"}, &resp))
	assert.Equal(t, "chain_name", resp.Field)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/swaps", bytes.NewBufferString("{nope"))
	require.NoError(t, err)
	r, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusBadRequest, r.StatusCode)
}

func TestHotkeyBinding(t *testing.T) {
	srv, _ := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPut, srv.URL+"/hotkeys/not-an-address", handlers.HotkeyBody{Hotkey: "hk"}, nil))
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPut, srv.URL+"/hotkeys/"+account, handlers.HotkeyBody{}, nil))
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodGet, srv.URL+"/hotkeys/"+account, nil, nil))

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPut, srv.URL+"/hotkeys/"+account, handlers.HotkeyBody{Hotkey: "hk-1"}, nil))

	var got handlers.APIHotkeyResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/hotkeys/"+account, nil, &got))
	assert.Equal(t, "hk-1", got.Hotkey)

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodDelete, srv.URL+"/hotkeys/"+account, nil, nil))
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodGet, srv.URL+"/hotkeys/"+account, nil, nil))
}

func TestStatsDefaults(t *testing.T) {
	srv, _ := newTestServer(t)

	var total handlers.APIStatResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/stats/nobody/swaps_won", nil, &total))
	require.NotNil(t, total.Total)
	assert.Zero(t, *total.Total)

	var weekly handlers.APIStatResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/stats/nobody/swaps_won_weekly/weekly", nil, &weekly))
	require.Len(t, weekly.Weekly, 1)
	assert.Equal(t, types.DayOrdinal(time.Now()), weekly.Weekly[0].Day)
	assert.Zero(t, weekly.Weekly[0].Count)
}

func TestPeersPreview(t *testing.T) {
	srv, _ := newTestServer(t)

	var resp handlers.APIPeersResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/peers", nil, &resp))
	require.Len(t, resp.Peers, 2)
	assert.Equal(t, "hk-9", resp.Peers[0].Hotkey)
	assert.Equal(t, "hk-8", resp.Peers[1].Hotkey)

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/peers?hotkeys=hk-1,hk-3", nil, &resp))
	require.Len(t, resp.Peers, 2)
	assert.Equal(t, "hk-1", resp.Peers[0].Hotkey)
}
