package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"swapnet/peers"
	"swapnet/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultTimeout = 12 * time.Second

// Dispatcher fans a request out to peers and collects one outcome per peer.
type Dispatcher struct {
	transport peers.Transport
	timeout   time.Duration
	logger    *zap.Logger
}

func NewDispatcher(transport peers.Transport, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{transport: transport, timeout: timeout, logger: logger}
}

type result struct {
	hotkey  string
	outcome types.Outcome
}

// Dispatch sends req to every distinct peer concurrently and returns an
// outcome keyed by hotkey for each of them. A peer that does not answer
// within the timeout gets a timeout outcome; nothing is retried.
func (d *Dispatcher) Dispatch(ctx context.Context, req types.SwapRequest, targets []types.Peer) map[string]types.Outcome {
	outcomes := make(map[string]types.Outcome, len(targets))
	if len(targets) == 0 {
		return outcomes
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	distinct := make([]types.Peer, 0, len(targets))
	seen := make(map[string]bool, len(targets))
	for _, p := range targets {
		if seen[p.Hotkey] {
			continue
		}
		seen[p.Hotkey] = true
		distinct = append(distinct, p)
	}

	log := d.logger.With(zap.String("request_id", req.ID), zap.String("swap_id", req.SwapID))
	log.Info("dispatching swap request", zap.String("chain", req.ChainName), zap.Bool("output", req.Output), zap.Int("peers", len(distinct)))

	results := make(chan result, len(distinct))
	for _, p := range distinct {
		go func(p types.Peer) {
			results <- result{hotkey: p.Hotkey, outcome: d.send(ctx, req, p)}
		}(p)
	}

	// arrival order
	for range distinct {
		r := <-results
		outcomes[r.hotkey] = r.outcome
		log.Debug("peer responded",
			zap.String("hotkey", r.hotkey),
			zap.String("status", string(r.outcome.Status)),
			zap.Duration("latency", r.outcome.Latency),
			zap.String("error", r.outcome.Err))
	}

	log.Info("dispatch completed", zap.Any("summary", Summarize(outcomes)))
	return outcomes
}

func (d *Dispatcher) send(parent context.Context, req types.SwapRequest, p types.Peer) types.Outcome {
	ctx, cancel := context.WithTimeout(parent, d.timeout)
	defer cancel()

	type reply struct {
		payload []byte
		err     error
	}
	done := make(chan reply, 1)
	start := time.Now()
	go func() {
		payload, err := d.transport.Send(ctx, p, req)
		done <- reply{payload: payload, err: err}
	}()

	out := types.Outcome{Peer: p}
	select {
	case r := <-done:
		out.Latency = time.Since(start)
		switch {
		case errors.Is(r.err, context.DeadlineExceeded):
			out.Status = types.StatusTimeout
			out.Err = r.err.Error()
		case r.err != nil:
			out.Status = types.StatusError
			out.Err = r.err.Error()
		default:
			out.Status = types.StatusOK
			out.Payload = payloadJSON(r.payload)
		}
	case <-ctx.Done():
		out.Latency = time.Since(start)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			out.Status = types.StatusTimeout
		} else {
			out.Status = types.StatusError
		}
		out.Err = ctx.Err().Error()
	}
	return out
}

// payloads that are not JSON are carried as a JSON string
func payloadJSON(payload []byte) json.RawMessage {
	if len(payload) == 0 {
		return nil
	}
	if json.Valid(payload) {
		return json.RawMessage(payload)
	}
	quoted, _ := json.Marshal(string(payload))
	return quoted
}

// Summarize counts outcomes per status.
func Summarize(outcomes map[string]types.Outcome) map[types.OutcomeStatus]int {
	summary := make(map[types.OutcomeStatus]int, 3)
	for _, o := range outcomes {
		summary[o.Status]++
	}
	return summary
}
