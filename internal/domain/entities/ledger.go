package entities

import (
	"math/big"
	"strconv"
	"time"
)

// NativeTokenType is the coin store of the native coin, used when a caller omits a token type
const NativeTokenType = "0x1::coin::CoinStore<0x1::aptos_coin::AptosCoin>"

// EventKind classifies a ledger event as value entering or leaving an account
type EventKind string

const (
	EventDeposit    EventKind = "deposit"
	EventWithdrawal EventKind = "withdrawal"
)

// LedgerEvent is one deposit or withdrawal recorded on the ledger
type LedgerEvent struct {
	Kind           EventKind `json:"kind"`
	Amount         *big.Int  `json:"-"`
	AmountString   string    `json:"amount"`
	TokenType      string    `json:"token_type"`
	Timestamp      time.Time `json:"timestamp"`
	SequenceNumber uint64    `json:"sequence_number"`
	Version        uint64    `json:"version"`
}

// EventCursor selects a page of an event stream by sequence number.
// A nil Start asks for the newest Limit events.
type EventCursor struct {
	Start *uint64
	Limit int
}

// LatestEvents is the cursor of the newest page of an event stream
func LatestEvents(limit int) EventCursor {
	return EventCursor{Limit: limit}
}

// EventsFrom is the cursor of limit events starting at sequence number start
func EventsFrom(start uint64, limit int) EventCursor {
	return EventCursor{Start: &start, Limit: limit}
}

// String is the cache cursor form of c
func (c EventCursor) String() string {
	if c.Start == nil {
		return "latest:" + strconv.Itoa(c.Limit)
	}
	return strconv.FormatUint(*c.Start, 10) + ":" + strconv.Itoa(c.Limit)
}

// TransactionPayload is the entry function call of a transaction
type TransactionPayload struct {
	Function      string   `json:"function"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []any    `json:"arguments"`
}

// TransactionEvent is a value-transfer event emitted by a transaction
type TransactionEvent struct {
	Type           string `json:"type"`
	AccountAddress string `json:"account_address"`
	Amount         string `json:"amount"`
}

// RawTransaction is one record of an account's transaction feed
type RawTransaction struct {
	Version        uint64             `json:"version"`
	Hash           string             `json:"hash"`
	Sender         string             `json:"sender"`
	SequenceNumber uint64             `json:"sequence_number"`
	Success        bool               `json:"success"`
	Timestamp      time.Time          `json:"timestamp"`
	GasUsed        uint64             `json:"gas_used"`
	GasUnitPrice   uint64             `json:"gas_unit_price"`
	Payload        TransactionPayload `json:"payload"`
	Events         []TransactionEvent `json:"events"`
}

// Direction of value movement relative to the queried account
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// WalletTransaction is a transaction classified relative to one account
type WalletTransaction struct {
	Version      uint64    `json:"version"`
	Hash         string    `json:"hash"`
	Timestamp    time.Time `json:"timestamp"`
	Direction    Direction `json:"direction"`
	Sender       string    `json:"sender"`
	Recipient    string    `json:"recipient"`
	Amount       *big.Int  `json:"-"`
	AmountString string    `json:"amount"`
	Function     string    `json:"function,omitempty"`
	Success      bool      `json:"success"`
	GasFee       string    `json:"gas_fee"`
}

// CoinBalance is a coin store held by an account
type CoinBalance struct {
	TokenType       string   `json:"token_type"`
	Amount          *big.Int `json:"-"`
	AmountString    string   `json:"amount"`
	AmountFormatted string   `json:"amount_formatted"`
}

// AccountSnapshot is point-in-time account metadata
type AccountSnapshot struct {
	Address           string        `json:"address"`
	SequenceNumber    uint64        `json:"sequence_number"`
	AuthenticationKey string        `json:"authentication_key"`
	Balances          []CoinBalance `json:"balances"`
	FetchedAt         time.Time     `json:"fetched_at"`
}

// DateRange is an inclusive time window
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the inclusive window
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// DefaultDateRange returns the window of the last days days ending at now
func DefaultDateRange(now time.Time, days int) DateRange {
	return DateRange{Start: now.AddDate(0, 0, -days), End: now}
}

// Fetch stop reasons
const (
	StopExhausted = "exhausted"
	StopLookahead = "lookahead"
	StopMaxPages  = "max_pages"
)

// TransactionFetchResult is the window-filtered output of a paginated fetch
type TransactionFetchResult struct {
	Transactions   []WalletTransaction
	PagesFetched   int
	RecordsScanned int
	StopReason     string
}

// CacheStats counts request cache lookups
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// HitRatio is hits over total lookups, zero when nothing was looked up
func (s CacheStats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Sub returns the counters accumulated since prev
func (s CacheStats) Sub(prev CacheStats) CacheStats {
	return CacheStats{Hits: s.Hits - prev.Hits, Misses: s.Misses - prev.Misses}
}
