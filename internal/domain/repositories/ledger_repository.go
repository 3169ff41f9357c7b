package repositories

import (
	"context"

	"github.com/bimakw/ledger-analyzer/internal/domain/entities"
)

// LedgerRepository defines the read operations against the remote ledger
type LedgerRepository interface {
	// FetchDepositEvents retrieves one page of the deposit events of a coin store
	FetchDepositEvents(ctx context.Context, address, tokenType string, cursor entities.EventCursor) ([]entities.LedgerEvent, error)

	// FetchWithdrawalEvents retrieves one page of the withdrawal events of a coin store
	FetchWithdrawalEvents(ctx context.Context, address, tokenType string, cursor entities.EventCursor) ([]entities.LedgerEvent, error)

	// FetchAccountSnapshot retrieves account metadata and coin balances
	FetchAccountSnapshot(ctx context.Context, address string) (*entities.AccountSnapshot, error)

	// FetchTransactionPage retrieves one newest-first page of the account's transactions
	FetchTransactionPage(ctx context.Context, address string, offset, pageSize int) ([]entities.RawTransaction, error)

	// CacheStats returns cumulative request cache counters
	CacheStats() entities.CacheStats
}

// TransactionFetcher bounds an account's transaction feed to a time window
type TransactionFetcher interface {
	FetchTransactions(ctx context.Context, address string, window entities.DateRange) (*entities.TransactionFetchResult, error)
}
