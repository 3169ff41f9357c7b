package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bimakw/ledger-analyzer/internal/domain/entities"
	"github.com/bimakw/ledger-analyzer/internal/testutil"
)

func newTestBatchService(analyzer WalletAnalyzer, stats CacheStatsSource) *BatchService {
	s := NewBatchService(analyzer, stats, testAnalyzerConfig(), zap.NewNop())
	s.now = func() time.Time { return testutil.BaseTime }
	return s
}

func TestBatchService_IsolatesFailuresAndKeepsOrder(t *testing.T) {
	addresses := []string{
		testutil.TestAddress(1),
		testutil.TestAddress(2),
		testutil.TestAddress(3),
		testutil.TestAddress(4),
		testutil.TestAddress(5),
	}

	analyzer := testutil.NewMockWalletAnalyzer()
	analyzer.AnalyzeWalletFunc = func(ctx context.Context, address string, tokenTypes []string, window entities.DateRange, opts entities.AnalysisOptions) entities.WalletAnalysisResult {
		// Finish in reverse order to prove results are collected by index
		if address == testutil.TestAddress(1) {
			time.Sleep(20 * time.Millisecond)
		}
		if address == testutil.TestAddress(3) {
			return FailedResult(address, tokenTypes[0], entities.ErrRemoteUnavailable)
		}
		return testutil.CreateTestResult(address, "100", "0", 1)
	}

	stats := testutil.NewMockLedgerRepository()
	s := newTestBatchService(analyzer, stats)

	job, err := s.RunBatch(context.Background(), BatchRequest{Addresses: addresses, IncludeProgress: true})
	require.NoError(t, err)

	require.Len(t, job.Results, 5)
	for i, r := range job.Results {
		assert.Equal(t, addresses[i], r.Address)
	}
	assert.True(t, job.Results[2].Failed())
	assert.Equal(t, entities.KindRemoteUnavailable, job.Results[2].Error.Kind)

	assert.Equal(t, 4, job.Stats.Successful)
	assert.Equal(t, 1, job.Stats.Failed)
	assert.InDelta(t, 80.0, job.Stats.SuccessRate, 1e-9)
	assert.True(t, job.PartialFailure)
	assert.Len(t, job.FailedErrors(), 1)
	assert.NotEmpty(t, job.ID)

	// batch size 2 over 5 addresses
	require.Len(t, job.Progress, 3)
	assert.Equal(t, 5, job.Progress[2].Processed)
	assert.InDelta(t, 100.0, job.Progress[2].Percent, 1e-9)
	assert.Equal(t, entities.PriorityNormal, job.Config.Priority)
}

func TestBatchService_EmptyInput(t *testing.T) {
	analyzer := testutil.NewMockWalletAnalyzer()
	s := newTestBatchService(analyzer, testutil.NewMockLedgerRepository())

	_, err := s.RunBatch(context.Background(), BatchRequest{})

	assert.ErrorIs(t, err, entities.ErrInvalidRequest)
	assert.Empty(t, analyzer.Addresses())
}

func TestBatchService_AllInvalid(t *testing.T) {
	analyzer := testutil.NewMockWalletAnalyzer()
	s := newTestBatchService(analyzer, testutil.NewMockLedgerRepository())

	_, err := s.RunBatch(context.Background(), BatchRequest{
		Addresses: []string{"0x1", "nope", testutil.InvalidAddress},
	})

	assert.ErrorIs(t, err, entities.ErrInvalidRequest)
	assert.Empty(t, analyzer.Addresses())
}

func TestBatchService_InvalidAmongValid(t *testing.T) {
	analyzer := testutil.NewMockWalletAnalyzer()
	s := newTestBatchService(analyzer, testutil.NewMockLedgerRepository())

	job, err := s.RunBatch(context.Background(), BatchRequest{
		Addresses: []string{testutil.AliceAddress, testutil.InvalidAddress, testutil.BobAddress},
	})
	require.NoError(t, err)

	require.Len(t, job.Results, 3)
	assert.False(t, job.Results[0].Failed())
	require.True(t, job.Results[1].Failed())
	assert.Equal(t, entities.KindInvalidAddress, job.Results[1].Error.Kind)
	assert.Equal(t, testutil.InvalidAddress, job.Results[1].Address)
	assert.False(t, job.Results[2].Failed())
	assert.ElementsMatch(t, []string{testutil.AliceAddress, testutil.BobAddress}, analyzer.Addresses())
}

func TestBatchService_InvertedWindow(t *testing.T) {
	analyzer := testutil.NewMockWalletAnalyzer()
	s := newTestBatchService(analyzer, testutil.NewMockLedgerRepository())

	_, err := s.RunBatch(context.Background(), BatchRequest{
		Addresses: []string{testutil.AliceAddress},
		DateRange: entities.DateRange{Start: testutil.BaseTime, End: testutil.BaseTime.Add(-time.Hour)},
	})

	assert.ErrorIs(t, err, entities.ErrInvalidRequest)
	assert.Empty(t, analyzer.Addresses())
}

func TestBatchService_DefaultWindow(t *testing.T) {
	var got entities.DateRange
	analyzer := testutil.NewMockWalletAnalyzer()
	analyzer.AnalyzeWalletFunc = func(ctx context.Context, address string, tokenTypes []string, window entities.DateRange, opts entities.AnalysisOptions) entities.WalletAnalysisResult {
		got = window
		assert.Equal(t, []string{entities.NativeTokenType}, tokenTypes)
		return testutil.CreateTestResult(address, "0", "0", 0)
	}
	s := newTestBatchService(analyzer, testutil.NewMockLedgerRepository())

	job, err := s.RunBatch(context.Background(), BatchRequest{Addresses: []string{testutil.AliceAddress}})
	require.NoError(t, err)

	assert.Equal(t, testutil.BaseTime, got.End)
	assert.Equal(t, testutil.BaseTime.AddDate(0, 0, -30), got.Start)
	assert.Equal(t, got, job.DateRange)
	assert.False(t, job.PartialFailure)
}

func TestBatchService_ConcurrencyCeiling(t *testing.T) {
	tests := []struct {
		priority entities.Priority
		want     int64
	}{
		{entities.PriorityLow, 1},
		{entities.PriorityNormal, 3},
		{entities.PriorityHigh, 5},
	}

	for _, tt := range tests {
		t.Run(string(tt.priority), func(t *testing.T) {
			var inFlight, peak atomic.Int64
			analyzer := testutil.NewMockWalletAnalyzer()
			analyzer.AnalyzeWalletFunc = func(ctx context.Context, address string, tokenTypes []string, window entities.DateRange, opts entities.AnalysisOptions) entities.WalletAnalysisResult {
				n := inFlight.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				inFlight.Add(-1)
				return testutil.CreateTestResult(address, "1", "0", 0)
			}

			cfg := testAnalyzerConfig()
			cfg.BatchSize = 10
			s := NewBatchService(analyzer, testutil.NewMockLedgerRepository(), cfg, zap.NewNop())

			addresses := make([]string, 10)
			for i := range addresses {
				addresses[i] = testutil.TestAddress(i)
			}

			_, err := s.RunBatch(context.Background(), BatchRequest{Addresses: addresses, Priority: tt.priority})
			require.NoError(t, err)
			assert.LessOrEqual(t, peak.Load(), tt.want)
		})
	}
}

func TestBatchService_CancellationFailsRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	analyzer := testutil.NewMockWalletAnalyzer()
	analyzer.AnalyzeWalletFunc = func(ctx context.Context, address string, tokenTypes []string, window entities.DateRange, opts entities.AnalysisOptions) entities.WalletAnalysisResult {
		cancel()
		return testutil.CreateTestResult(address, "1", "0", 0)
	}

	cfg := testAnalyzerConfig()
	cfg.BatchSize = 1
	s := NewBatchService(analyzer, testutil.NewMockLedgerRepository(), cfg, zap.NewNop())

	job, err := s.RunBatch(ctx, BatchRequest{
		Addresses: []string{testutil.AliceAddress, testutil.BobAddress, testutil.CharlieAddress},
	})
	require.NoError(t, err)

	assert.False(t, job.Results[0].Failed())
	for _, r := range job.Results[1:] {
		require.True(t, r.Failed())
		assert.Equal(t, entities.KindCanceled, r.Error.Kind)
	}
	assert.Len(t, analyzer.Addresses(), 1)
}

func TestBatchService_PanicBecomesFailedResult(t *testing.T) {
	analyzer := testutil.NewMockWalletAnalyzer()
	analyzer.AnalyzeWalletFunc = func(ctx context.Context, address string, tokenTypes []string, window entities.DateRange, opts entities.AnalysisOptions) entities.WalletAnalysisResult {
		if address == testutil.BobAddress {
			panic("unexpected payload")
		}
		return testutil.CreateTestResult(address, "1", "0", 0)
	}
	s := newTestBatchService(analyzer, testutil.NewMockLedgerRepository())

	job, err := s.RunBatch(context.Background(), BatchRequest{
		Addresses: []string{testutil.AliceAddress, testutil.BobAddress},
	})
	require.NoError(t, err)

	assert.False(t, job.Results[0].Failed())
	require.True(t, job.Results[1].Failed())
	assert.Contains(t, job.Results[1].Error.Message, "unexpected payload")
}

func TestBatchService_CacheStatsDelta(t *testing.T) {
	stats := testutil.NewMockLedgerRepository()
	stats.Hits.Store(10)
	stats.Misses.Store(10)

	analyzer := testutil.NewMockWalletAnalyzer()
	analyzer.AnalyzeWalletFunc = func(ctx context.Context, address string, tokenTypes []string, window entities.DateRange, opts entities.AnalysisOptions) entities.WalletAnalysisResult {
		stats.Hits.Add(3)
		stats.Misses.Add(1)
		return testutil.CreateTestResult(address, "1", "0", 0)
	}
	s := newTestBatchService(analyzer, stats)

	job, err := s.RunBatch(context.Background(), BatchRequest{Addresses: []string{testutil.AliceAddress}})
	require.NoError(t, err)

	assert.Equal(t, int64(3), job.Stats.CacheHits)
	assert.Equal(t, int64(1), job.Stats.CacheMisses)
	assert.InDelta(t, 0.75, job.Stats.CacheHitRatio, 1e-9)
}
