package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bimakw/ledger-analyzer/internal/domain/entities"
	"github.com/bimakw/ledger-analyzer/internal/domain/repositories"
	"github.com/bimakw/ledger-analyzer/internal/testutil"
)

func newTestAnalysisService(analyzer WalletAnalyzer, reports repositories.ReportRepository) *AnalysisService {
	cfg := testAnalyzerConfig()
	batch := newTestBatchService(analyzer, testutil.NewMockLedgerRepository())
	s := NewAnalysisService(analyzer, batch, newTestAssembler(), reports, cfg, zap.NewNop())
	s.now = func() time.Time { return testutil.BaseTime }
	return s
}

func TestAnalysisService_Analyze(t *testing.T) {
	analyzer := testutil.NewMockWalletAnalyzer()
	analyzer.AnalyzeWalletFunc = func(ctx context.Context, address string, tokenTypes []string, window entities.DateRange, opts entities.AnalysisOptions) entities.WalletAnalysisResult {
		return testutil.CreateTestResult(address, "200000000", "50000000", 3)
	}
	reports := testutil.NewMockReportRepository()
	s := newTestAnalysisService(analyzer, reports)

	report, err := s.Analyze(context.Background(), AnalysisRequest{
		Owner:     "user-1",
		Addresses: []string{testutil.AliceAddress, testutil.BobAddress},
		Options:   entities.AnalysisOptions{IncludeTransactions: true},
	})
	require.NoError(t, err)

	assert.Equal(t, "user-1", report.Owner)
	assert.Equal(t, 2, report.Summary.WalletCount)
	assert.Equal(t, "500000000", report.Summary.TotalVolume)
	assert.Equal(t, []string{testutil.AliceAddress, testutil.BobAddress}, report.Parameters.Addresses)
	assert.Equal(t, []string{entities.NativeTokenType}, report.Parameters.TokenTypes)
	assert.Equal(t, 2, report.Parameters.BatchSize)
	assert.Equal(t, entities.PriorityNormal, report.Parameters.Priority)
	assert.True(t, report.Parameters.Options.IncludeTransactions)
	assert.Equal(t, testutil.BaseTime, report.Parameters.DateRange.End)

	assert.Equal(t, 1, reports.Count())
	stored, err := s.GetReport(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, report.ID, stored.ID)
}

func TestAnalysisService_Analyze_ValidationError(t *testing.T) {
	reports := testutil.NewMockReportRepository()
	s := newTestAnalysisService(testutil.NewMockWalletAnalyzer(), reports)

	_, err := s.Analyze(context.Background(), AnalysisRequest{Owner: "user-1"})

	assert.ErrorIs(t, err, entities.ErrInvalidRequest)
	assert.Equal(t, 0, reports.Count())
}

func TestAnalysisService_Analyze_SaveFailure(t *testing.T) {
	reports := testutil.NewMockReportRepository()
	reports.SaveFunc = func(ctx context.Context, report *entities.Report) error {
		return errors.New("connection reset")
	}
	s := newTestAnalysisService(testutil.NewMockWalletAnalyzer(), reports)

	_, err := s.Analyze(context.Background(), AnalysisRequest{Addresses: []string{testutil.AliceAddress}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save report")
}

func TestAnalysisService_Analyze_WithoutStorage(t *testing.T) {
	s := newTestAnalysisService(testutil.NewMockWalletAnalyzer(), nil)

	report, err := s.Analyze(context.Background(), AnalysisRequest{Addresses: []string{testutil.AliceAddress}})
	require.NoError(t, err)
	assert.NotEmpty(t, report.ID)

	_, err = s.GetReport(context.Background(), report.ID)
	assert.ErrorIs(t, err, entities.ErrNotFound)

	list, err := s.ListReports(context.Background(), "", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAnalysisService_AnalyzeWallet(t *testing.T) {
	var gotTokens []string
	var gotWindow entities.DateRange
	analyzer := testutil.NewMockWalletAnalyzer()
	analyzer.AnalyzeWalletFunc = func(ctx context.Context, address string, tokenTypes []string, window entities.DateRange, opts entities.AnalysisOptions) entities.WalletAnalysisResult {
		gotTokens = tokenTypes
		gotWindow = window
		return testutil.CreateTestResult(address, "1", "0", 1)
	}
	s := newTestAnalysisService(analyzer, nil)

	upper := "0x" + "AB" + testutil.AliceAddress[4:]
	result, err := s.AnalyzeWallet(context.Background(), upper, entities.NativeTokenType, entities.DateRange{}, entities.AnalysisOptions{})
	require.NoError(t, err)

	assert.Equal(t, "0xab"+testutil.AliceAddress[4:], result.Address)
	assert.Equal(t, []string{entities.NativeTokenType}, gotTokens)
	assert.Equal(t, testutil.BaseTime.AddDate(0, 0, -30), gotWindow.Start)
}

func TestAnalysisService_AnalyzeWallet_Invalid(t *testing.T) {
	analyzer := testutil.NewMockWalletAnalyzer()
	s := newTestAnalysisService(analyzer, nil)

	_, err := s.AnalyzeWallet(context.Background(), testutil.InvalidAddress, "", entities.DateRange{}, entities.AnalysisOptions{})
	assert.ErrorIs(t, err, entities.ErrInvalidAddress)

	_, err = s.AnalyzeWallet(context.Background(), testutil.AliceAddress, "", entities.DateRange{
		Start: testutil.BaseTime,
		End:   testutil.BaseTime.Add(-time.Second),
	}, entities.AnalysisOptions{})
	assert.ErrorIs(t, err, entities.ErrInvalidRequest)

	assert.Empty(t, analyzer.Addresses())
}

func TestAnalysisService_GetReport_Missing(t *testing.T) {
	s := newTestAnalysisService(testutil.NewMockWalletAnalyzer(), testutil.NewMockReportRepository())

	_, err := s.GetReport(context.Background(), "missing")

	assert.ErrorIs(t, err, entities.ErrNotFound)
}

func TestAnalysisService_ListReports(t *testing.T) {
	reports := testutil.NewMockReportRepository()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, reports.Save(ctx, &entities.Report{
			ID:        testutil.TestAddress(i),
			Owner:     "user-1",
			CreatedAt: testutil.BaseTime.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, reports.Save(ctx, &entities.Report{ID: "other", Owner: "user-2"}))

	s := newTestAnalysisService(testutil.NewMockWalletAnalyzer(), reports)

	list, err := s.ListReports(ctx, "user-1", 0, -5)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, testutil.TestAddress(2), list[0].ID)

	list, err = s.ListReports(ctx, "user-1", 1, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, testutil.TestAddress(1), list[0].ID)

	list, err = s.ListReports(ctx, "nobody", 500, 0)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}
