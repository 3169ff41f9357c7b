package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/ledger-analyzer/internal/application/services"
	"github.com/bimakw/ledger-analyzer/internal/config"
	"github.com/bimakw/ledger-analyzer/internal/domain/entities"
	"github.com/bimakw/ledger-analyzer/internal/presentation/middleware"
	"github.com/bimakw/ledger-analyzer/internal/testutil"
)

func setupAnalysisHandlerTest() (http.Handler, *testutil.MockWalletAnalyzer, *testutil.MockReportRepository) {
	analyzer := testutil.NewMockWalletAnalyzer()
	reports := testutil.NewMockReportRepository()
	logger := zap.NewNop()

	cfg := config.AnalyzerConfig{
		BatchSize:             10,
		DefaultWindowDays:     30,
		LowPriorityWorkers:    1,
		NormalPriorityWorkers: 2,
		HighPriorityWorkers:   4,
	}
	batch := services.NewBatchService(analyzer, testutil.NewMockLedgerRepository(), cfg, logger)
	service := services.NewAnalysisService(analyzer, batch, services.NewReportAssembler(), reports, cfg, logger)
	handler := NewAnalysisHandler(service, 3, logger)

	r := chi.NewRouter()
	r.Use(middleware.Identity())
	handler.RegisterRoutes(r)

	return r, analyzer, reports
}

func doRequest(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set(middleware.UserIDHeader, "user-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAnalysisHandler_CreateAnalysis_Success(t *testing.T) {
	h, analyzer, reports := setupAnalysisHandlerTest()
	analyzer.AnalyzeWalletFunc = func(ctx context.Context, address string, tokenTypes []string, window entities.DateRange, opts entities.AnalysisOptions) entities.WalletAnalysisResult {
		return testutil.CreateTestResult(address, "150000000", "0", 2)
	}

	body := `{"addresses":["` + testutil.AliceAddress + `","` + testutil.BobAddress + `"],"start_date":"2024-01-01","end_date":"2024-01-31"}`
	rec := doRequest(h, http.MethodPost, "/analyses", body)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var response ReportResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Data == nil {
		t.Fatal("expected report data")
	}
	if response.Data.Owner != "user-1" {
		t.Errorf("expected owner user-1, got %s", response.Data.Owner)
	}
	if response.Data.Summary.TotalVolume != "300000000" {
		t.Errorf("expected total volume 300000000, got %s", response.Data.Summary.TotalVolume)
	}
	if response.Data.Summary.TotalVolumeFormatted != "3" {
		t.Errorf("expected formatted volume 3, got %s", response.Data.Summary.TotalVolumeFormatted)
	}
	if got := response.Data.Parameters.DateRange.End.Format("2006-01-02"); got != "2024-01-31" {
		t.Errorf("expected end date 2024-01-31, got %s", got)
	}
	if reports.Count() != 1 {
		t.Errorf("expected 1 stored report, got %d", reports.Count())
	}
}

func TestAnalysisHandler_CreateAnalysis_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"addresses":`},
		{"unknown field", `{"addresses":["` + testutil.AliceAddress + `"],"wallets":[]}`},
		{"empty addresses", `{"addresses":[]}`},
		{"too many addresses", `{"addresses":["` + testutil.TestAddress(1) + `","` + testutil.TestAddress(2) + `","` + testutil.TestAddress(3) + `","` + testutil.TestAddress(4) + `"]}`},
		{"bad date", `{"addresses":["` + testutil.AliceAddress + `"],"start_date":"yesterday"}`},
		{"inverted window", `{"addresses":["` + testutil.AliceAddress + `"],"start_date":"2024-02-01","end_date":"2024-01-01"}`},
		{"unknown priority", `{"addresses":["` + testutil.AliceAddress + `"],"priority":"urgent"}`},
		{"all invalid", `{"addresses":["0x1234","nope"]}`},
		{"negative batch size", `{"addresses":["` + testutil.AliceAddress + `"],"batch_size":-1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, analyzer, reports := setupAnalysisHandlerTest()

			rec := doRequest(h, http.MethodPost, "/analyses", tt.body)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d: %s", rec.Code, rec.Body.String())
			}
			if len(analyzer.Addresses()) != 0 {
				t.Errorf("expected no analyzer calls, got %d", len(analyzer.Addresses()))
			}
			if reports.Count() != 0 {
				t.Errorf("expected no stored reports, got %d", reports.Count())
			}
		})
	}
}

func TestAnalysisHandler_CreateBatch(t *testing.T) {
	h, analyzer, reports := setupAnalysisHandlerTest()
	analyzer.AnalyzeWalletFunc = func(ctx context.Context, address string, tokenTypes []string, window entities.DateRange, opts entities.AnalysisOptions) entities.WalletAnalysisResult {
		if address == testutil.BobAddress {
			return services.FailedResult(address, tokenTypes[0], entities.ErrRemoteUnavailable)
		}
		return testutil.CreateTestResult(address, "1", "0", 1)
	}

	body := `{"addresses":["` + testutil.AliceAddress + `","` + testutil.BobAddress + `","0x1234"],"batch_size":1,"priority":"high","include_progress":true}`
	rec := doRequest(h, http.MethodPost, "/analyses/batch", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var response BatchJobResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	job := response.Data
	if len(job.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(job.Results))
	}
	if job.Results[0].Error != nil {
		t.Errorf("expected first address to succeed, got %v", job.Results[0].Error)
	}
	if job.Results[1].Error == nil || job.Results[1].Error.Kind != entities.KindRemoteUnavailable {
		t.Errorf("expected remote_unavailable for second address, got %v", job.Results[1].Error)
	}
	if job.Results[2].Error == nil || job.Results[2].Error.Kind != entities.KindInvalidAddress {
		t.Errorf("expected invalid_address for third address, got %v", job.Results[2].Error)
	}
	if !job.PartialFailure {
		t.Error("expected partial failure")
	}
	if len(job.Progress) != 3 {
		t.Errorf("expected 3 progress entries, got %d", len(job.Progress))
	}
	if job.Config.Priority != entities.PriorityHigh {
		t.Errorf("expected priority high, got %s", job.Config.Priority)
	}
	if reports.Count() != 0 {
		t.Errorf("batch jobs should not be stored, got %d reports", reports.Count())
	}
}

func TestAnalysisHandler_GetWalletAnalysis(t *testing.T) {
	h, analyzer, _ := setupAnalysisHandlerTest()
	var gotOpts entities.AnalysisOptions
	var gotTokens []string
	analyzer.AnalyzeWalletFunc = func(ctx context.Context, address string, tokenTypes []string, window entities.DateRange, opts entities.AnalysisOptions) entities.WalletAnalysisResult {
		gotOpts = opts
		gotTokens = tokenTypes
		return testutil.CreateTestResult(address, "100000000", "0", 1)
	}

	rec := doRequest(h, http.MethodGet, "/wallets/"+testutil.AliceAddress+"/analysis?include_account=true&include_transactions=1&token_type=0x1::coin::Other", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var response WalletAnalysisResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Data.Address != testutil.AliceAddress {
		t.Errorf("expected address %s, got %s", testutil.AliceAddress, response.Data.Address)
	}
	if response.Data.TotalDepositsFormatted != "1" {
		t.Errorf("expected deposits 1, got %s", response.Data.TotalDepositsFormatted)
	}
	if !gotOpts.IncludeAccountInfo || !gotOpts.IncludeTransactions {
		t.Errorf("expected both options set, got %+v", gotOpts)
	}
	if len(gotTokens) != 1 || gotTokens[0] != "0x1::coin::Other" {
		t.Errorf("expected token type from query, got %v", gotTokens)
	}
}

func TestAnalysisHandler_GetWalletAnalysis_InvalidAddress(t *testing.T) {
	h, analyzer, _ := setupAnalysisHandlerTest()

	rec := doRequest(h, http.MethodGet, "/wallets/0x1234/analysis", "")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}

	var response ErrorResponse
	json.NewDecoder(rec.Body).Decode(&response)

	if response.Kind != entities.KindInvalidAddress {
		t.Errorf("expected kind invalid_address, got %s", response.Kind)
	}
	if len(analyzer.Addresses()) != 0 {
		t.Error("analyzer should not be called for an invalid address")
	}
}

func TestAnalysisHandler_GetWalletAnalysis_RemoteFailure(t *testing.T) {
	h, analyzer, _ := setupAnalysisHandlerTest()
	analyzer.AnalyzeWalletFunc = func(ctx context.Context, address string, tokenTypes []string, window entities.DateRange, opts entities.AnalysisOptions) entities.WalletAnalysisResult {
		return services.FailedResult(address, tokenTypes[0], entities.ErrRemoteUnavailable)
	}

	rec := doRequest(h, http.MethodGet, "/wallets/"+testutil.AliceAddress+"/analysis", "")

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}

	var response WalletAnalysisResponse
	json.NewDecoder(rec.Body).Decode(&response)

	if response.Data == nil || response.Data.Error == nil {
		t.Fatal("expected failure descriptor in response")
	}
	if response.Data.Error.Kind != entities.KindRemoteUnavailable {
		t.Errorf("expected kind remote_unavailable, got %s", response.Data.Error.Kind)
	}
}

func TestAnalysisHandler_GetReport(t *testing.T) {
	h, _, reports := setupAnalysisHandlerTest()
	reports.Save(context.Background(), &entities.Report{ID: "r-1", Owner: "user-1", CreatedAt: testutil.BaseTime})

	rec := doRequest(h, http.MethodGet, "/reports/r-1", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var response ReportResponse
	json.NewDecoder(rec.Body).Decode(&response)

	if response.Data == nil || response.Data.ID != "r-1" {
		t.Errorf("expected report r-1, got %+v", response.Data)
	}
}

func TestAnalysisHandler_GetReport_NotFound(t *testing.T) {
	h, _, _ := setupAnalysisHandlerTest()

	rec := doRequest(h, http.MethodGet, "/reports/missing", "")

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}

	var response ErrorResponse
	json.NewDecoder(rec.Body).Decode(&response)

	if response.Kind != entities.KindNotFound {
		t.Errorf("expected kind not_found, got %s", response.Kind)
	}
}

func TestAnalysisHandler_ListReports(t *testing.T) {
	h, _, reports := setupAnalysisHandlerTest()
	ctx := context.Background()
	reports.Save(ctx, &entities.Report{ID: "a", Owner: "user-1", CreatedAt: testutil.BaseTime})
	reports.Save(ctx, &entities.Report{ID: "b", Owner: "user-1", CreatedAt: testutil.BaseTime.Add(1)})
	reports.Save(ctx, &entities.Report{ID: "c", Owner: "user-2", CreatedAt: testutil.BaseTime})

	rec := doRequest(h, http.MethodGet, "/reports?limit=500&offset=-1", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var response ReportListResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Limit != 20 || response.Offset != 0 {
		t.Errorf("expected defaults limit=20 offset=0, got limit=%d offset=%d", response.Limit, response.Offset)
	}
	if len(response.Data) != 2 {
		t.Fatalf("expected 2 reports for user-1, got %d", len(response.Data))
	}
	if response.Data[0].ID != "b" {
		t.Errorf("expected newest report first, got %s", response.Data[0].ID)
	}
}

func TestParseDate(t *testing.T) {
	start, err := parseDate("2024-01-31", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start.Hour() != 0 || start.Day() != 31 {
		t.Errorf("expected start of day, got %v", start)
	}

	end, err := parseDate("2024-01-31", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if end.Day() != 31 || end.Hour() != 23 || end.Minute() != 59 {
		t.Errorf("expected end of day, got %v", end)
	}

	ts, err := parseDate("2024-01-31T12:00:00+02:00", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.Hour() != 10 || ts.Location().String() != "UTC" {
		t.Errorf("expected 10:00 UTC, got %v", ts)
	}

	if _, err := parseDate("31/01/2024", false); err == nil {
		t.Error("expected error for unsupported layout")
	}

	zero, err := parseDate("  ", false)
	if err != nil || !zero.IsZero() {
		t.Errorf("expected zero time for blank input, got %v, %v", zero, err)
	}
}
