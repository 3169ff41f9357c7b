package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/ledger-analyzer/internal/application/services"
	"github.com/bimakw/ledger-analyzer/internal/domain/entities"
	"github.com/bimakw/ledger-analyzer/internal/presentation/middleware"
)

const maxRequestBody = 1 << 20

// AnalysisHandler handles HTTP requests for wallet analyses and reports
type AnalysisHandler struct {
	service      *services.AnalysisService
	maxAddresses int
	logger       *zap.Logger
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(service *services.AnalysisService, maxAddresses int, logger *zap.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		service:      service,
		maxAddresses: maxAddresses,
		logger:       logger,
	}
}

// RegisterRoutes registers the analysis routes
func (h *AnalysisHandler) RegisterRoutes(r chi.Router) {
	r.Post("/analyses", h.CreateAnalysis)
	r.Post("/analyses/batch", h.CreateBatch)
	r.Get("/wallets/{address}/analysis", h.GetWalletAnalysis)
	r.Get("/reports", h.ListReports)
	r.Get("/reports/{id}", h.GetReport)
}

// AnalysisRequest is the body of POST /analyses and POST /analyses/batch
type AnalysisRequest struct {
	Addresses           []string `json:"addresses"`
	TokenType           string   `json:"token_type"`
	TokenTypes          []string `json:"token_types"`
	StartDate           string   `json:"start_date"`
	EndDate             string   `json:"end_date"`
	IncludeTransactions bool     `json:"include_transactions"`
	IncludeAccountInfo  bool     `json:"include_account_info"`
	BatchSize           int      `json:"batch_size"`
	Priority            string   `json:"priority"`
	IncludeProgress     bool     `json:"include_progress"`
}

// ReportResponse wraps a report for API response
type ReportResponse struct {
	Data *entities.Report `json:"data"`
}

// ReportListResponse wraps a page of reports for API response
type ReportListResponse struct {
	Data   []entities.Report `json:"data"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// BatchJobResponse wraps a batch job for API response
type BatchJobResponse struct {
	Data *entities.BatchJob `json:"data"`
}

// WalletAnalysisResponse wraps a single wallet result for API response
type WalletAnalysisResponse struct {
	Data *entities.WalletAnalysisResult `json:"data"`
}

func (h *AnalysisHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (services.BatchRequest, error) {
	var body AnalysisRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return services.BatchRequest{}, fmt.Errorf("invalid request body: %w", err)
	}

	if len(body.Addresses) == 0 {
		return services.BatchRequest{}, fmt.Errorf("addresses must not be empty")
	}
	if h.maxAddresses > 0 && len(body.Addresses) > h.maxAddresses {
		return services.BatchRequest{}, fmt.Errorf("at most %d addresses per request, got %d", h.maxAddresses, len(body.Addresses))
	}

	window, err := parseDateRange(body.StartDate, body.EndDate)
	if err != nil {
		return services.BatchRequest{}, err
	}

	priority, err := entities.ParsePriority(body.Priority)
	if err != nil {
		return services.BatchRequest{}, err
	}

	tokenTypes := body.TokenTypes
	if body.TokenType != "" {
		tokenTypes = append([]string{body.TokenType}, tokenTypes...)
	}

	return services.BatchRequest{
		Addresses:  body.Addresses,
		TokenTypes: tokenTypes,
		DateRange:  window,
		Options: entities.AnalysisOptions{
			IncludeAccountInfo:  body.IncludeAccountInfo,
			IncludeTransactions: body.IncludeTransactions,
		},
		BatchSize:       body.BatchSize,
		Priority:        priority,
		IncludeProgress: body.IncludeProgress,
	}, nil
}

// CreateAnalysis handles POST /analyses
func (h *AnalysisHandler) CreateAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := h.decodeRequest(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.service.Analyze(ctx, services.AnalysisRequest{
		Owner:      middleware.UserIDFromContext(ctx),
		Addresses:  req.Addresses,
		TokenTypes: req.TokenTypes,
		DateRange:  req.DateRange,
		Options:    req.Options,
		BatchSize:  req.BatchSize,
		Priority:   req.Priority,
	})
	if err != nil {
		h.logger.Error("Failed to create analysis", zap.Error(err))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, ReportResponse{Data: report})
}

// CreateBatch handles POST /analyses/batch
func (h *AnalysisHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeRequest(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.service.AnalyzeBatch(r.Context(), req)
	if err != nil {
		h.logger.Error("Failed to run batch analysis", zap.Error(err))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, BatchJobResponse{Data: job})
}

// GetWalletAnalysis handles GET /wallets/{address}/analysis
func (h *AnalysisHandler) GetWalletAnalysis(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	if err := entities.ValidateAddress(address); err != nil {
		respondServiceError(w, err)
		return
	}

	q := r.URL.Query()
	window, err := parseDateRange(q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := entities.AnalysisOptions{
		IncludeAccountInfo:  parseBool(q.Get("include_account")),
		IncludeTransactions: parseBool(q.Get("include_transactions")),
	}

	result, err := h.service.AnalyzeWallet(r.Context(), address, q.Get("token_type"), window, opts)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	status := http.StatusOK
	if result.Failed() {
		status = statusForKind(result.Error.Kind)
	}
	respondJSON(w, status, WalletAnalysisResponse{Data: result})
}

// GetReport handles GET /reports/{id}
func (h *AnalysisHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	report, err := h.service.GetReport(r.Context(), id)
	if err != nil {
		if entities.KindOf(err) != entities.KindNotFound {
			h.logger.Error("Failed to get report", zap.String("id", id), zap.Error(err))
		}
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, ReportResponse{Data: report})
}

// ListReports handles GET /reports
func (h *AnalysisHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	limit := 20
	offset := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if o, err := strconv.Atoi(v); err == nil && o >= 0 {
			offset = o
		}
	}

	owner := middleware.UserIDFromContext(r.Context())
	reports, err := h.service.ListReports(r.Context(), owner, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list reports", zap.Error(err))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, ReportListResponse{Data: reports, Limit: limit, Offset: offset})
}
