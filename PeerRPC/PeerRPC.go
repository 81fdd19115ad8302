package PeerRPC

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"swapnet/types"

	"github.com/patrickmn/go-cache"
	"github.com/ybbus/jsonrpc"
	"go.uber.org/zap"
)

// JSON-RPC methods served by peers
const (
	MethodPing        = "ping"
	MethodSwapRequest = "swap_request"
	MethodMetagraph   = "metagraph"
)

// ErrRPC wraps error objects returned by the remote side
var ErrRPC = errors.New("peer rpc error")

// Transport talks JSON-RPC over HTTP to peer endpoints. Clients are
// cached per endpoint so repeated dispatches reuse connections.
type Transport struct {
	httpClient *http.Client
	clients    *cache.Cache
	logger     *zap.Logger
}

// NewTransport bounds every HTTP round trip by timeout; per-call contexts
// can cut it shorter.
func NewTransport(timeout time.Duration, logger *zap.Logger) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{
		httpClient: &http.Client{Timeout: timeout},
		clients:    cache.New(10*time.Minute, 20*time.Minute),
		logger:     logger,
	}
}

// Endpoint turns a peer address into a URL; bare host:port means plain http.
func Endpoint(address string) string {
	if strings.Contains(address, "://") {
		return address
	}
	return "http://" + address
}

func (t *Transport) client(address string) jsonrpc.RPCClient {
	url := Endpoint(address)
	if c, ok := t.clients.Get(url); ok {
		return c.(jsonrpc.RPCClient)
	}
	c := jsonrpc.NewClientWithOpts(url, &jsonrpc.RPCClientOpts{HTTPClient: t.httpClient})
	t.clients.Set(url, c, cache.DefaultExpiration)
	return c
}

func (t *Transport) Ping(ctx context.Context, peer types.Peer) error {
	_, err := call(ctx, t.client(peer.Address), MethodPing)
	return err
}

// Send returns the peer's result object as raw JSON.
func (t *Transport) Send(ctx context.Context, peer types.Peer, req types.SwapRequest) ([]byte, error) {
	resp, err := call(ctx, t.client(peer.Address), MethodSwapRequest, req)
	if err != nil {
		t.logger.Debug("swap request failed", zap.String("hotkey", peer.Hotkey), zap.Error(err))
		return nil, err
	}

	payload, err := json.Marshal(resp.Result)
	if err != nil {
		return nil, fmt.Errorf("cannot marshal result from %s: %w", peer.Hotkey, err)
	}
	return payload, nil
}

// call runs a JSON-RPC call and gives up when ctx is done. The client has
// no context support, so an abandoned call finishes in the background
// bounded by the HTTP client timeout.
func call(ctx context.Context, client jsonrpc.RPCClient, method string, params ...interface{}) (*jsonrpc.RPCResponse, error) {
	type reply struct {
		resp *jsonrpc.RPCResponse
		err  error
	}
	done := make(chan reply, 1)
	go func() {
		resp, err := client.Call(method, params...)
		done <- reply{resp: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		if r.resp == nil {
			return nil, fmt.Errorf("%w: %s: empty response", ErrRPC, method)
		}
		if r.resp.Error != nil {
			return nil, fmt.Errorf("%w: %s: %d %s", ErrRPC, method, r.resp.Error.Code, r.resp.Error.Message)
		}
		return r.resp, nil
	}
}

// MembershipClient fetches the metagraph snapshot from a network node.
type MembershipClient struct {
	client jsonrpc.RPCClient
}

func NewMembershipClient(endpoint string, timeout time.Duration) *MembershipClient {
	return &MembershipClient{
		client: jsonrpc.NewClientWithOpts(Endpoint(endpoint), &jsonrpc.RPCClientOpts{
			HTTPClient: &http.Client{Timeout: timeout},
		}),
	}
}

func (m *MembershipClient) Snapshot(ctx context.Context) ([]types.Peer, error) {
	resp, err := call(ctx, m.client, MethodMetagraph)
	if err != nil {
		return nil, fmt.Errorf("cannot fetch metagraph: %w", err)
	}

	var snapshot []types.Peer
	if err := resp.GetObject(&snapshot); err != nil {
		return nil, fmt.Errorf("cannot decode metagraph: %w", err)
	}
	return snapshot, nil
}
