package testutil

import (
	"fmt"
	"math/big"
	"time"

	"github.com/bimakw/ledger-analyzer/internal/domain/entities"
)

// Common test addresses
const (
	AliceAddress   = "0x1111111111111111111111111111111111111111111111111111111111111111"
	BobAddress     = "0x2222222222222222222222222222222222222222222222222222222222222222"
	CharlieAddress = "0x3333333333333333333333333333333333333333333333333333333333333333"
	InvalidAddress = "0x1234"
)

// TestAddress returns a distinct valid address for index n
func TestAddress(n int) string {
	return fmt.Sprintf("0x%064x", n)
}

// BaseTime is a fixed reference instant for tests
var BaseTime = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// TestWindow returns the thirty days ending at BaseTime
func TestWindow() entities.DateRange {
	return entities.DateRange{Start: BaseTime.AddDate(0, 0, -30), End: BaseTime}
}

// CreateTestEvent creates a ledger event with default values
func CreateTestEvent(opts ...EventOption) entities.LedgerEvent {
	e := entities.LedgerEvent{
		Kind:           entities.EventDeposit,
		Amount:         big.NewInt(100000000), // 1 APT
		AmountString:   "100000000",
		TokenType:      entities.NativeTokenType,
		Timestamp:      BaseTime.Add(-time.Hour),
		SequenceNumber: 1,
		Version:        1000,
	}

	for _, opt := range opts {
		opt(&e)
	}

	return e
}

// EventOption is a function that modifies a test event
type EventOption func(*entities.LedgerEvent)

func WithKind(kind entities.EventKind) EventOption {
	return func(e *entities.LedgerEvent) {
		e.Kind = kind
	}
}

func WithAmount(amount string) EventOption {
	return func(e *entities.LedgerEvent) {
		v, _ := new(big.Int).SetString(amount, 10)
		e.Amount = v
		e.AmountString = amount
	}
}

func WithTimestamp(ts time.Time) EventOption {
	return func(e *entities.LedgerEvent) {
		e.Timestamp = ts
	}
}

func WithTokenType(tokenType string) EventOption {
	return func(e *entities.LedgerEvent) {
		e.TokenType = tokenType
	}
}

func WithSequence(seq uint64) EventOption {
	return func(e *entities.LedgerEvent) {
		e.SequenceNumber = seq
	}
}

func WithVersion(version uint64) EventOption {
	return func(e *entities.LedgerEvent) {
		e.Version = version
	}
}

// CreateTestTransaction creates a raw transaction sent by sender
func CreateTestTransaction(version uint64, sender string, ts time.Time) entities.RawTransaction {
	return entities.RawTransaction{
		Version:        version,
		Hash:           fmt.Sprintf("0x%064x", version),
		Sender:         sender,
		SequenceNumber: version,
		Success:        true,
		Timestamp:      ts,
		GasUsed:        10,
		GasUnitPrice:   100,
		Payload: entities.TransactionPayload{
			Function: "0x1::aptos_account::transfer",
		},
	}
}

// CreateTestResult creates a successful wallet result with the given totals
func CreateTestResult(address, deposits, withdrawals string, txCount int) entities.WalletAnalysisResult {
	d, _ := new(big.Int).SetString(deposits, 10)
	w, _ := new(big.Int).SetString(withdrawals, 10)
	depositCount, withdrawalCount := 0, 0
	if d.Sign() > 0 {
		depositCount = 1
	}
	if w.Sign() > 0 {
		withdrawalCount = 1
	}
	return entities.WalletAnalysisResult{
		Address:          address,
		TokenFlow:        entities.NewTokenFlow(entities.NativeTokenType, d, w, depositCount, withdrawalCount),
		TransactionCount: txCount,
		HasActivity:      depositCount+withdrawalCount > 0,
	}
}
