package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/bimakw/ledger-analyzer/internal/domain/entities"
	"github.com/bimakw/ledger-analyzer/internal/domain/repositories"
)

// MockCall records one call made on a mock
type MockCall struct {
	Method string
	Args   []interface{}
}

// MockLedgerRepository is a mock implementation of LedgerRepository
type MockLedgerRepository struct {
	mu    sync.RWMutex
	calls []MockCall

	deposits    map[string][]entities.LedgerEvent
	withdrawals map[string][]entities.LedgerEvent
	accounts    map[string]*entities.AccountSnapshot

	// Function hooks for custom behavior
	FetchDepositEventsFunc    func(ctx context.Context, address, tokenType string, cursor entities.EventCursor) ([]entities.LedgerEvent, error)
	FetchWithdrawalEventsFunc func(ctx context.Context, address, tokenType string, cursor entities.EventCursor) ([]entities.LedgerEvent, error)
	FetchAccountSnapshotFunc  func(ctx context.Context, address string) (*entities.AccountSnapshot, error)
	FetchTransactionPageFunc  func(ctx context.Context, address string, offset, pageSize int) ([]entities.RawTransaction, error)

	Hits   atomic.Int64
	Misses atomic.Int64
}

var _ repositories.LedgerRepository = (*MockLedgerRepository)(nil)

func NewMockLedgerRepository() *MockLedgerRepository {
	return &MockLedgerRepository{
		deposits:    make(map[string][]entities.LedgerEvent),
		withdrawals: make(map[string][]entities.LedgerEvent),
		accounts:    make(map[string]*entities.AccountSnapshot),
	}
}

func (m *MockLedgerRepository) record(method string, args ...interface{}) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Method: method, Args: args})
	m.mu.Unlock()
}

// Calls returns a copy of the recorded calls
func (m *MockLedgerRepository) Calls() []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]MockCall(nil), m.calls...)
}

// CallCount returns how often method was called
func (m *MockLedgerRepository) CallCount(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// AddEvents stores events for an address, split by kind
func (m *MockLedgerRepository) AddEvents(address string, events ...entities.LedgerEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range events {
		if ev.Kind == entities.EventWithdrawal {
			m.withdrawals[address] = append(m.withdrawals[address], ev)
		} else {
			m.deposits[address] = append(m.deposits[address], ev)
		}
	}
}

// SetAccount stores the snapshot returned for an address
func (m *MockLedgerRepository) SetAccount(snapshot *entities.AccountSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[snapshot.Address] = snapshot
}

func (m *MockLedgerRepository) FetchDepositEvents(ctx context.Context, address, tokenType string, cursor entities.EventCursor) ([]entities.LedgerEvent, error) {
	m.record("FetchDepositEvents", address, tokenType, cursor)
	if m.FetchDepositEventsFunc != nil {
		return m.FetchDepositEventsFunc(ctx, address, tokenType, cursor)
	}
	return m.pageEvents(m.deposits, address, tokenType, cursor), nil
}

func (m *MockLedgerRepository) FetchWithdrawalEvents(ctx context.Context, address, tokenType string, cursor entities.EventCursor) ([]entities.LedgerEvent, error) {
	m.record("FetchWithdrawalEvents", address, tokenType, cursor)
	if m.FetchWithdrawalEventsFunc != nil {
		return m.FetchWithdrawalEventsFunc(ctx, address, tokenType, cursor)
	}
	return m.pageEvents(m.withdrawals, address, tokenType, cursor), nil
}

// pageEvents serves a stream the way the ledger does: a nil start returns the
// newest events, otherwise events with sequence numbers in [start, start+limit)
func (m *MockLedgerRepository) pageEvents(store map[string][]entities.LedgerEvent, address, tokenType string, cursor entities.EventCursor) []entities.LedgerEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stream := make([]entities.LedgerEvent, 0)
	for _, ev := range store[address] {
		if ev.TokenType == tokenType {
			stream = append(stream, ev)
		}
	}
	sort.SliceStable(stream, func(i, j int) bool {
		return stream[i].SequenceNumber < stream[j].SequenceNumber
	})

	if cursor.Start == nil {
		if cursor.Limit > 0 && len(stream) > cursor.Limit {
			stream = stream[len(stream)-cursor.Limit:]
		}
		return stream
	}
	out := make([]entities.LedgerEvent, 0)
	end := *cursor.Start + uint64(cursor.Limit)
	for _, ev := range stream {
		if ev.SequenceNumber >= *cursor.Start && ev.SequenceNumber < end {
			out = append(out, ev)
		}
	}
	return out
}

func (m *MockLedgerRepository) FetchAccountSnapshot(ctx context.Context, address string) (*entities.AccountSnapshot, error) {
	m.record("FetchAccountSnapshot", address)
	if m.FetchAccountSnapshotFunc != nil {
		return m.FetchAccountSnapshotFunc(ctx, address)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if snapshot, ok := m.accounts[address]; ok {
		return snapshot, nil
	}
	return &entities.AccountSnapshot{Address: address, Balances: []entities.CoinBalance{}}, nil
}

func (m *MockLedgerRepository) FetchTransactionPage(ctx context.Context, address string, offset, pageSize int) ([]entities.RawTransaction, error) {
	m.record("FetchTransactionPage", address, offset, pageSize)
	if m.FetchTransactionPageFunc != nil {
		return m.FetchTransactionPageFunc(ctx, address, offset, pageSize)
	}
	return []entities.RawTransaction{}, nil
}

func (m *MockLedgerRepository) CacheStats() entities.CacheStats {
	return entities.CacheStats{Hits: m.Hits.Load(), Misses: m.Misses.Load()}
}

// MockTransactionFetcher is a mock implementation of TransactionFetcher
type MockTransactionFetcher struct {
	FetchTransactionsFunc func(ctx context.Context, address string, window entities.DateRange) (*entities.TransactionFetchResult, error)

	calls atomic.Int64
}

var _ repositories.TransactionFetcher = (*MockTransactionFetcher)(nil)

func NewMockTransactionFetcher() *MockTransactionFetcher {
	return &MockTransactionFetcher{}
}

func (m *MockTransactionFetcher) FetchTransactions(ctx context.Context, address string, window entities.DateRange) (*entities.TransactionFetchResult, error) {
	m.calls.Add(1)
	if m.FetchTransactionsFunc != nil {
		return m.FetchTransactionsFunc(ctx, address, window)
	}
	return &entities.TransactionFetchResult{
		Transactions: []entities.WalletTransaction{},
		StopReason:   entities.StopExhausted,
	}, nil
}

// CallCount returns how often FetchTransactions was called
func (m *MockTransactionFetcher) CallCount() int {
	return int(m.calls.Load())
}

// MockReportRepository is an in-memory implementation of ReportRepository
type MockReportRepository struct {
	mu      sync.RWMutex
	reports map[string]entities.Report

	SaveFunc func(ctx context.Context, report *entities.Report) error
}

var _ repositories.ReportRepository = (*MockReportRepository)(nil)

func NewMockReportRepository() *MockReportRepository {
	return &MockReportRepository{
		reports: make(map[string]entities.Report),
	}
}

func (m *MockReportRepository) Save(ctx context.Context, report *entities.Report) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, report)
	}
	if report == nil {
		return errors.New("nil report")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[report.ID] = *report
	return nil
}

func (m *MockReportRepository) GetByID(ctx context.Context, id string) (*entities.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	report, ok := m.reports[id]
	if !ok {
		return nil, nil
	}
	return &report, nil
}

func (m *MockReportRepository) ListByOwner(ctx context.Context, owner string, limit, offset int) ([]entities.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]entities.Report, 0)
	for _, r := range m.reports {
		if r.Owner == owner {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if offset >= len(out) {
		return []entities.Report{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Count returns the number of stored reports
func (m *MockReportRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.reports)
}

// MockWalletAnalyzer is a mock wallet analyzer
type MockWalletAnalyzer struct {
	AnalyzeWalletFunc func(ctx context.Context, address string, tokenTypes []string, window entities.DateRange, opts entities.AnalysisOptions) entities.WalletAnalysisResult

	mu        sync.Mutex
	addresses []string
}

func NewMockWalletAnalyzer() *MockWalletAnalyzer {
	return &MockWalletAnalyzer{}
}

func (m *MockWalletAnalyzer) AnalyzeWallet(ctx context.Context, address string, tokenTypes []string, window entities.DateRange, opts entities.AnalysisOptions) entities.WalletAnalysisResult {
	m.mu.Lock()
	m.addresses = append(m.addresses, address)
	m.mu.Unlock()

	if m.AnalyzeWalletFunc != nil {
		return m.AnalyzeWalletFunc(ctx, address, tokenTypes, window, opts)
	}
	tokenType := entities.NativeTokenType
	if len(tokenTypes) > 0 {
		tokenType = tokenTypes[0]
	}
	return entities.WalletAnalysisResult{
		Address:   address,
		TokenFlow: entities.ZeroTokenFlow(tokenType),
	}
}

// Addresses returns the analyzed addresses in call order
func (m *MockWalletAnalyzer) Addresses() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.addresses...)
}

// MockHealthChecker is a mock implementation of HealthChecker
type MockHealthChecker struct {
	mu sync.Mutex

	Error error
	calls int
}

func NewMockHealthChecker(healthy bool) *MockHealthChecker {
	var err error
	if !healthy {
		err = errors.New("health check failed")
	}
	return &MockHealthChecker{Error: err}
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.Error
}

// CallCount returns how often HealthCheck was called
func (m *MockHealthChecker) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
