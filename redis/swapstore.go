package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"swapnet/types"

	"github.com/gomodule/redigo/redis"
	"go.uber.org/zap"
)

const (
	swapsHash   = "validator_swaps"
	hotkeysHash = "hotkeys"
	statsPrefix = "stats:"

	// MaxWeeklyEntries bounds histories maintained by RecordDailyStat
	MaxWeeklyEntries = 7
)

// SwapStore keeps swap records, hotkey bindings and per-hotkey statistics
// in separate hashes, so clearing swaps never touches bindings or stats.
type SwapStore struct {
	client *Client
	now    func() time.Time
	logger *zap.Logger
}

type SwapStoreOption func(*SwapStore)

// WithClock sets the clock used to date weekly entries
func WithClock(now func() time.Time) SwapStoreOption {
	return func(s *SwapStore) { s.now = now }
}

func NewSwapStore(client *Client, opts ...SwapStoreOption) *SwapStore {
	s := &SwapStore{client: client, now: time.Now, logger: client.logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func statsKey(hotkey string) string {
	return statsPrefix + hotkey
}

func (s *SwapStore) StoreSwap(ctx context.Context, swapID string, info []byte) error {
	swapID = types.NormalizeSwapID(swapID)
	if swapID == "" {
		return ErrInvalidKey
	}

	// info is kept as a JSON string so a damaged record fails to decode
	data, err := json.Marshal(string(info))
	if err != nil {
		return fmt.Errorf("cannot marshal swap %s to JSON: %w", swapID, err)
	}

	_, err = s.client.do(ctx, "HSET", swapsHash, swapID, data)
	return err
}

func (s *SwapStore) RetrieveSwap(ctx context.Context, swapID string) ([]byte, bool, error) {
	swapID = types.NormalizeSwapID(swapID)
	if swapID == "" {
		return nil, false, ErrInvalidKey
	}

	data, found, err := s.client.fetch(ctx, "HGET", swapsHash, swapID)
	if err != nil || !found {
		return nil, false, err
	}

	var info string
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, false, fmt.Errorf("%w: swap %s: %w", ErrCorrupt, swapID, err)
	}
	return []byte(info), true, nil
}

func (s *SwapStore) DeleteSwap(ctx context.Context, swapID string) error {
	swapID = types.NormalizeSwapID(swapID)
	if swapID == "" {
		return ErrInvalidKey
	}
	_, err := s.client.do(ctx, "HDEL", swapsHash, swapID)
	return err
}

// ListSwapIDs returns the ids of all stored swaps, sorted
func (s *SwapStore) ListSwapIDs(ctx context.Context) ([]string, error) {
	ids, err := redis.Strings(s.client.do(ctx, "HKEYS", swapsHash))
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// ClearSwaps removes every swap record and nothing else.
func (s *SwapStore) ClearSwaps(ctx context.Context) error {
	_, err := s.client.do(ctx, "DEL", swapsHash)
	return err
}

func (s *SwapStore) StoreHotkey(ctx context.Context, account, hotkey string) error {
	account = types.NormalizeAccount(account)
	if account == "" || hotkey == "" {
		return ErrInvalidKey
	}
	_, err := s.client.do(ctx, "HSET", hotkeysHash, account, hotkey)
	return err
}

func (s *SwapStore) RetrieveHotkey(ctx context.Context, account string) (string, bool, error) {
	account = types.NormalizeAccount(account)
	if account == "" {
		return "", false, ErrInvalidKey
	}
	data, found, err := s.client.fetch(ctx, "HGET", hotkeysHash, account)
	if err != nil || !found {
		return "", false, err
	}
	return string(data), true, nil
}

func (s *SwapStore) DeleteHotkey(ctx context.Context, account string) error {
	account = types.NormalizeAccount(account)
	if account == "" {
		return ErrInvalidKey
	}
	_, err := s.client.do(ctx, "HDEL", hotkeysHash, account)
	return err
}

func (s *SwapStore) SetTotalStat(ctx context.Context, hotkey, field string, value int64) error {
	if hotkey == "" || field == "" {
		return ErrInvalidKey
	}
	_, err := s.client.do(ctx, "HSET", statsKey(hotkey), field, value)
	return err
}

// IncrementTotalStat adds delta atomically and returns the new total.
func (s *SwapStore) IncrementTotalStat(ctx context.Context, hotkey, field string, delta int64) (int64, error) {
	if hotkey == "" || field == "" {
		return 0, ErrInvalidKey
	}
	return redis.Int64(s.client.do(ctx, "HINCRBY", statsKey(hotkey), field, delta))
}

// TotalStat returns 0 for a field that was never written.
func (s *SwapStore) TotalStat(ctx context.Context, hotkey, field string) (int64, error) {
	if hotkey == "" || field == "" {
		return 0, ErrInvalidKey
	}

	data, found, err := s.client.fetch(ctx, "HGET", statsKey(hotkey), field)
	if err != nil || !found {
		return 0, err
	}

	value, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: stat %s/%s: %w", ErrCorrupt, hotkey, field, err)
	}
	return value, nil
}

// StoreWeeklyStat overwrites the history as given; no trimming happens here.
func (s *SwapStore) StoreWeeklyStat(ctx context.Context, hotkey, field string, history types.WeeklyHistory) error {
	if hotkey == "" || field == "" {
		return ErrInvalidKey
	}
	if history == nil {
		history = types.WeeklyHistory{}
	}

	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("cannot marshal weekly stat %s/%s to JSON: %w", hotkey, field, err)
	}

	_, err = s.client.do(ctx, "HSET", statsKey(hotkey), field, data)
	return err
}

// WeeklyStat returns [{today: 0}] for a field that was never written.
func (s *SwapStore) WeeklyStat(ctx context.Context, hotkey, field string) (types.WeeklyHistory, error) {
	if hotkey == "" || field == "" {
		return nil, ErrInvalidKey
	}

	data, found, err := s.client.fetch(ctx, "HGET", statsKey(hotkey), field)
	if err != nil {
		return nil, err
	}
	if !found {
		return types.WeeklyHistory{{Day: types.DayOrdinal(s.now()), Count: 0}}, nil
	}

	var history types.WeeklyHistory
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("%w: weekly stat %s/%s: %w", ErrCorrupt, hotkey, field, err)
	}
	return history, nil
}

// RecordDailyStat adds delta to today's entry, starting a new one if the
// last entry is older, and keeps the last MaxWeeklyEntries days.
// Read-modify-write: concurrent writers on the same field may lose updates.
func (s *SwapStore) RecordDailyStat(ctx context.Context, hotkey, field string, delta int64) (types.WeeklyHistory, error) {
	history, err := s.WeeklyStat(ctx, hotkey, field)
	if err != nil {
		return nil, err
	}

	today := types.DayOrdinal(s.now())
	if n := len(history); n > 0 && history[n-1].Day == today {
		history[n-1].Count += delta
	} else {
		history = append(history, types.DayCount{Day: today, Count: delta})
	}
	if len(history) > MaxWeeklyEntries {
		history = history[len(history)-MaxWeeklyEntries:]
	}

	if err := s.StoreWeeklyStat(ctx, hotkey, field, history); err != nil {
		return nil, err
	}
	return history, nil
}

// HotkeyStats returns every raw stat field stored for hotkey.
func (s *SwapStore) HotkeyStats(ctx context.Context, hotkey string) (map[string]string, error) {
	if hotkey == "" {
		return nil, ErrInvalidKey
	}
	stats, err := redis.StringMap(s.client.do(ctx, "HGETALL", statsKey(hotkey)))
	if errors.Is(err, redis.ErrNil) {
		return map[string]string{}, nil
	}
	return stats, err
}

func (s *SwapStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *SwapStore) Close() error {
	s.logger.Debug("closing swap store")
	return s.client.Close()
}
