package services

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/ledger-analyzer/internal/config"
	"github.com/bimakw/ledger-analyzer/internal/domain/entities"
	"github.com/bimakw/ledger-analyzer/internal/domain/repositories"
)

// WalletAnalyzer produces one analysis result per address and never fails
type WalletAnalyzer interface {
	AnalyzeWallet(ctx context.Context, address string, tokenTypes []string, window entities.DateRange, opts entities.AnalysisOptions) entities.WalletAnalysisResult
}

// Aggregator turns fetched ledger events into wallet analysis results
type Aggregator struct {
	ledger  repositories.LedgerRepository
	fetcher repositories.TransactionFetcher
	config  config.AnalyzerConfig
	logger  *zap.Logger
}

// NewAggregator creates a new event aggregator
func NewAggregator(
	ledger repositories.LedgerRepository,
	fetcher repositories.TransactionFetcher,
	cfg config.AnalyzerConfig,
	logger *zap.Logger,
) *Aggregator {
	if cfg.EventLimit <= 0 {
		cfg.EventLimit = 100
	}
	if cfg.MaxEventPages <= 0 {
		cfg.MaxEventPages = 50
	}
	return &Aggregator{
		ledger:  ledger,
		fetcher: fetcher,
		config:  cfg,
		logger:  logger,
	}
}

// AggregationInput is everything fetched for one address
type AggregationInput struct {
	Address      string
	TokenTypes   []string
	Window       entities.DateRange
	Events       []entities.LedgerEvent
	Transactions []entities.WalletTransaction
	Truncated    bool
	Account      *entities.AccountSnapshot
	Options      entities.AnalysisOptions
	RecentLimit  int
}

// AnalyzeWallet fetches and aggregates one address. Failures are returned as
// failure-shaped results.
func (a *Aggregator) AnalyzeWallet(
	ctx context.Context,
	address string,
	tokenTypes []string,
	window entities.DateRange,
	opts entities.AnalysisOptions,
) entities.WalletAnalysisResult {
	start := time.Now()
	tokenTypes = normalizeTokenTypes(tokenTypes)

	result, err := a.analyze(ctx, address, tokenTypes, window, opts)
	if err != nil {
		a.logger.Warn("Wallet analysis failed",
			zap.String("address", address),
			zap.Error(err),
		)
		result = FailedResult(address, tokenTypes[0], err)
	}

	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	return result
}

func (a *Aggregator) analyze(
	ctx context.Context,
	address string,
	tokenTypes []string,
	window entities.DateRange,
	opts entities.AnalysisOptions,
) (entities.WalletAnalysisResult, error) {
	address, err := entities.NormalizeAddress(address)
	if err != nil {
		return entities.WalletAnalysisResult{}, err
	}

	fetched, err := a.fetcher.FetchTransactions(ctx, address, window)
	if err != nil {
		return entities.WalletAnalysisResult{}, fmt.Errorf("failed to fetch transactions: %w", err)
	}
	clock := newEventClock(window, fetched.Transactions)

	var (
		events    []entities.LedgerEvent
		truncated bool
	)
	for _, tokenType := range tokenTypes {
		deposits, cut, err := a.fetchEventStream(ctx, a.ledger.FetchDepositEvents, address, tokenType, clock)
		if err != nil {
			return entities.WalletAnalysisResult{}, fmt.Errorf("failed to fetch deposit events: %w", err)
		}
		truncated = truncated || cut
		withdrawals, cut, err := a.fetchEventStream(ctx, a.ledger.FetchWithdrawalEvents, address, tokenType, clock)
		if err != nil {
			return entities.WalletAnalysisResult{}, fmt.Errorf("failed to fetch withdrawal events: %w", err)
		}
		truncated = truncated || cut
		events = append(events, deposits...)
		events = append(events, withdrawals...)
	}
	if truncated {
		a.logger.Warn("Event streams truncated at page ceiling",
			zap.String("address", address),
			zap.Int("max_event_pages", a.config.MaxEventPages),
		)
	}

	var account *entities.AccountSnapshot
	if opts.IncludeAccountInfo {
		account, err = a.ledger.FetchAccountSnapshot(ctx, address)
		if err != nil {
			return entities.WalletAnalysisResult{}, fmt.Errorf("failed to fetch account snapshot: %w", err)
		}
	}

	return Aggregate(AggregationInput{
		Address:      address,
		TokenTypes:   tokenTypes,
		Window:       window,
		Events:       events,
		Transactions: fetched.Transactions,
		Truncated:    truncated,
		Account:      account,
		Options:      opts,
		RecentLimit:  a.config.RecentTxLimit,
	}), nil
}

type eventPageFunc func(ctx context.Context, address, tokenType string, cursor entities.EventCursor) ([]entities.LedgerEvent, error)

// fetchEventStream pages one event stream backwards from its newest page until
// it reaches sequence zero, a page older than the window, or the page ceiling.
// The bool result reports a stop at the ceiling.
func (a *Aggregator) fetchEventStream(
	ctx context.Context,
	fetch eventPageFunc,
	address, tokenType string,
	clock eventClock,
) ([]entities.LedgerEvent, bool, error) {
	var events []entities.LedgerEvent
	cursor := entities.LatestEvents(a.config.EventLimit)
	for page := 1; ; page++ {
		batch, err := fetch(ctx, address, tokenType, cursor)
		if err != nil {
			return nil, false, err
		}
		if len(batch) == 0 {
			return events, false, nil
		}
		events = append(events, batch...)

		oldest, newest := batch[0], batch[0]
		for _, ev := range batch[1:] {
			if ev.SequenceNumber < oldest.SequenceNumber {
				oldest = ev
			}
			if ev.SequenceNumber > newest.SequenceNumber {
				newest = ev
			}
		}
		if oldest.SequenceNumber == 0 || clock.before(newest) {
			return events, false, nil
		}
		if page >= a.config.MaxEventPages {
			return events, true, nil
		}

		start := uint64(0)
		if limit := uint64(a.config.EventLimit); oldest.SequenceNumber > limit {
			start = oldest.SequenceNumber - limit
		}
		cursor = entities.EventsFrom(start, int(oldest.SequenceNumber-start))
	}
}

// eventClock places events in time. The event endpoints carry no timestamp,
// so an event takes the timestamp of the window transaction with its version.
type eventClock struct {
	window entities.DateRange
	stamps map[uint64]time.Time
	floor  uint64
}

func newEventClock(window entities.DateRange, txs []entities.WalletTransaction) eventClock {
	c := eventClock{window: window, stamps: make(map[uint64]time.Time, len(txs))}
	for _, tx := range txs {
		if !window.Contains(tx.Timestamp) {
			continue
		}
		c.stamps[tx.Version] = tx.Timestamp
		if len(c.stamps) == 1 || tx.Version < c.floor {
			c.floor = tx.Version
		}
	}
	return c
}

func (c eventClock) timestamp(ev entities.LedgerEvent) (time.Time, bool) {
	if !ev.Timestamp.IsZero() {
		return ev.Timestamp, true
	}
	ts, ok := c.stamps[ev.Version]
	return ts, ok
}

func (c eventClock) inWindow(ev entities.LedgerEvent) bool {
	ts, ok := c.timestamp(ev)
	return ok && c.window.Contains(ts)
}

// before reports whether ev precedes the window
func (c eventClock) before(ev entities.LedgerEvent) bool {
	if ts, ok := c.timestamp(ev); ok {
		return ts.Before(c.window.Start)
	}
	if len(c.stamps) == 0 {
		return true
	}
	return ev.Version < c.floor
}

// Aggregate sums in-window events per token type in exact integer arithmetic.
// Events are placed in time by their own timestamp or by the window transaction
// of the same version. Events that cannot be placed are not counted.
func Aggregate(in AggregationInput) entities.WalletAnalysisResult {
	tokenTypes := normalizeTokenTypes(in.TokenTypes)
	clock := newEventClock(in.Window, in.Transactions)

	type totals struct {
		deposits, withdrawals *big.Int
		depositCount          int
		withdrawalCount       int
	}
	byToken := make(map[string]*totals, len(tokenTypes))
	for _, t := range tokenTypes {
		byToken[t] = &totals{deposits: new(big.Int), withdrawals: new(big.Int)}
	}

	counted := 0
	for _, ev := range in.Events {
		if !clock.inWindow(ev) {
			continue
		}
		tokenType := ev.TokenType
		if tokenType == "" {
			tokenType = entities.NativeTokenType
		}
		t, ok := byToken[tokenType]
		if !ok || ev.Amount == nil {
			continue
		}
		switch ev.Kind {
		case entities.EventDeposit:
			t.deposits.Add(t.deposits, ev.Amount)
			t.depositCount++
		case entities.EventWithdrawal:
			t.withdrawals.Add(t.withdrawals, ev.Amount)
			t.withdrawalCount++
		default:
			continue
		}
		counted++
	}

	flows := make([]entities.TokenFlow, 0, len(tokenTypes))
	for _, tokenType := range tokenTypes {
		t := byToken[tokenType]
		flows = append(flows, entities.NewTokenFlow(tokenType, t.deposits, t.withdrawals, t.depositCount, t.withdrawalCount))
	}

	result := entities.WalletAnalysisResult{
		Address:          in.Address,
		TokenFlow:        flows[0],
		TransactionCount: len(in.Transactions),
		HasActivity:      counted > 0,
		EventsTruncated:  in.Truncated,
	}
	if len(flows) > 1 {
		result.TokenFlows = flows
	}

	for _, tx := range in.Transactions {
		if tx.Direction == entities.DirectionOutbound {
			result.OutboundCount++
		} else {
			result.InboundCount++
		}
	}

	if in.Options.IncludeAccountInfo {
		result.Account = in.Account
	}
	if in.Options.IncludeTransactions {
		recent := in.Transactions
		if in.RecentLimit > 0 && len(recent) > in.RecentLimit {
			recent = recent[:in.RecentLimit]
		}
		result.RecentTransactions = append([]entities.WalletTransaction(nil), recent...)
	}

	return result
}

// FailedResult is a zeroed result carrying the error descriptor
func FailedResult(address, tokenType string, err error) entities.WalletAnalysisResult {
	if tokenType == "" {
		tokenType = entities.NativeTokenType
	}
	return entities.WalletAnalysisResult{
		Address:   address,
		TokenFlow: entities.ZeroTokenFlow(tokenType),
		Error:     entities.NewErrorInfo(err),
	}
}

// normalizeTokenTypes drops empty and duplicate entries, defaulting to the native coin
func normalizeTokenTypes(tokenTypes []string) []string {
	seen := make(map[string]struct{}, len(tokenTypes))
	out := make([]string, 0, len(tokenTypes))
	for _, t := range tokenTypes {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		out = append(out, entities.NativeTokenType)
	}
	return out
}
