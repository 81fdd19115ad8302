package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Peer is a network participant as seen in a membership snapshot.
// Hotkey is the identity used for dispatch and statistics.
type Peer struct {
	UID       int     `json:"uid" yaml:"uid"`
	Hotkey    string  `json:"hotkey" yaml:"hotkey"`
	Stake     float64 `json:"stake" yaml:"stake"`
	Address   string  `json:"address" yaml:"address"` // host:port or full URL of the peer endpoint
	Available bool    `json:"available" yaml:"available"`
}

// SwapRequest asks a peer to fulfil one side of a swap.
// Output=false is an input-request.
type SwapRequest struct {
	ID        string `json:"id"` // correlation id, not the swap id
	ChainName string `json:"chain_name"`
	SwapID    string `json:"swap_id"`
	Output    bool   `json:"output"`
}

type OutcomeStatus string

const (
	StatusOK      OutcomeStatus = "ok"
	StatusTimeout OutcomeStatus = "timeout"
	StatusError   OutcomeStatus = "error"
)

// Outcome is the single collected result for one targeted peer
type Outcome struct {
	Peer    Peer            `json:"peer"`
	Status  OutcomeStatus   `json:"status"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Err     string          `json:"error,omitempty"`
	Latency time.Duration   `json:"latency"`
}

// SwapRecord is a swap tracked between request and finalization.
// Info is owned by the caller and never interpreted here.
type SwapRecord struct {
	ID   string `json:"id"`
	Info []byte `json:"info"`
}

// NormalizeSwapID lower-cases hex swap ids of any length so the same swap
// never gets two records. Non-hex ids are returned unchanged.
func NormalizeSwapID(id string) string {
	id = strings.TrimSpace(id)
	if !strings.HasPrefix(id, "0x") && !strings.HasPrefix(id, "0X") {
		return id
	}
	digits := id[2:]
	padded := digits
	if len(padded)%2 == 1 {
		padded = "0" + padded
	}
	if _, err := hexutil.Decode("0x" + padded); err != nil {
		return id
	}
	return "0x" + strings.ToLower(digits)
}

// NormalizeAccount lower-cases EVM addresses, same as the address book keys.
func NormalizeAccount(account string) string {
	account = strings.TrimSpace(account)
	if common.IsHexAddress(account) {
		return strings.ToLower(common.HexToAddress(account).Hex())
	}
	return account
}

// ordinal of 1970-01-01 counting 0001-01-01 as day 1
const unixEpochOrdinal = 719163

// DayOrdinal returns the proleptic Gregorian ordinal of t's calendar date.
func DayOrdinal(t time.Time) int64 {
	y, m, d := t.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return midnight.Unix()/86400 + unixEpochOrdinal
}

// DayCount is a single {date: count} entry of a weekly history.
type DayCount struct {
	Day   int64
	Count int64
}

func (d DayCount) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]int64{strconv.FormatInt(d.Day, 10): d.Count})
}

func (d *DayCount) UnmarshalJSON(data []byte) error {
	var m map[string]int64
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if len(m) != 1 {
		return fmt.Errorf("day entry must have exactly one key, got %d", len(m))
	}
	for k, v := range m {
		day, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid day ordinal %q: %w", k, err)
		}
		d.Day = day
		d.Count = v
	}
	return nil
}

// WeeklyHistory is ordered oldest first
type WeeklyHistory []DayCount
