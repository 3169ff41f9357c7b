package ledger

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/ledger-analyzer/internal/config"
	"github.com/bimakw/ledger-analyzer/internal/domain/entities"
	"github.com/bimakw/ledger-analyzer/internal/domain/repositories"
)

// Ensure Fetcher implements TransactionFetcher
var _ repositories.TransactionFetcher = (*Fetcher)(nil)

// TransactionPager retrieves pages of an account's newest-first transaction feed
type TransactionPager interface {
	FetchTransactionPage(ctx context.Context, address string, offset, pageSize int) ([]entities.RawTransaction, error)
}

// Fetcher walks an account's transaction feed backwards until a time window is covered
type Fetcher struct {
	pager  TransactionPager
	config config.AnalyzerConfig
	logger *zap.Logger
}

// NewFetcher creates a new transaction fetcher
func NewFetcher(pager TransactionPager, cfg config.AnalyzerConfig, logger *zap.Logger) *Fetcher {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.LookaheadLimit <= 0 {
		cfg.LookaheadLimit = 3
	}
	return &Fetcher{
		pager:  pager,
		config: cfg,
		logger: logger,
	}
}

// FetchTransactions returns the account's transactions with timestamps inside window.
//
// Pages are requested from offset 0. The loop stops when a page comes back
// short (history exhausted), or when LookaheadLimit consecutive pages have
// their newest record before window.Start. A page reaching into the window
// resets that counter.
func (f *Fetcher) FetchTransactions(ctx context.Context, address string, window entities.DateRange) (*entities.TransactionFetchResult, error) {
	if window.End.Before(window.Start) {
		return nil, fmt.Errorf("%w: window end %s is before start %s",
			entities.ErrInvalidRequest, window.End.Format(time.RFC3339), window.Start.Format(time.RFC3339))
	}

	var (
		records        []entities.RawTransaction
		offset         int
		pages          int
		consecutiveOld int
		stopReason     string
	)

	for {
		if f.config.MaxPages > 0 && pages >= f.config.MaxPages {
			stopReason = entities.StopMaxPages
			f.logger.Warn("Transaction fetch hit page ceiling",
				zap.String("address", address),
				zap.Int("max_pages", f.config.MaxPages),
			)
			break
		}

		page, err := f.pager.FetchTransactionPage(ctx, address, offset, f.config.PageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch transactions at offset %d: %w", offset, err)
		}
		pages++
		offset += f.config.PageSize
		records = append(records, page...)

		if len(page) < f.config.PageSize {
			stopReason = entities.StopExhausted
			break
		}

		if newestTimestamp(page).Before(window.Start) {
			consecutiveOld++
		} else {
			consecutiveOld = 0
		}

		if consecutiveOld >= f.config.LookaheadLimit {
			stopReason = entities.StopLookahead
			break
		}
	}

	fetchPagesTotal.WithLabelValues(stopReason).Add(float64(pages))

	inWindow := make([]entities.RawTransaction, 0, len(records))
	for _, tx := range records {
		if window.Contains(tx.Timestamp) {
			inWindow = append(inWindow, tx)
		}
	}

	f.logger.Debug("Fetched transactions",
		zap.String("address", address),
		zap.Int("pages", pages),
		zap.Int("scanned", len(records)),
		zap.Int("in_window", len(inWindow)),
		zap.String("stop_reason", stopReason),
	)

	return &entities.TransactionFetchResult{
		Transactions:   ClassifyTransactions(inWindow, address),
		PagesFetched:   pages,
		RecordsScanned: len(records),
		StopReason:     stopReason,
	}, nil
}

// newestTimestamp returns the latest timestamp on a page
func newestTimestamp(page []entities.RawTransaction) time.Time {
	var newest time.Time
	for _, tx := range page {
		if tx.Timestamp.After(newest) {
			newest = tx.Timestamp
		}
	}
	return newest
}
