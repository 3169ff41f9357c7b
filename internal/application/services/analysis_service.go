package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/ledger-analyzer/internal/config"
	"github.com/bimakw/ledger-analyzer/internal/domain/entities"
	"github.com/bimakw/ledger-analyzer/internal/domain/repositories"
)

const (
	defaultReportLimit = 20
	maxReportLimit     = 100
)

// AnalysisService is the entry point of the analysis pipeline
type AnalysisService struct {
	analyzer  WalletAnalyzer
	batch     *BatchService
	assembler *ReportAssembler
	reports   repositories.ReportRepository
	config    config.AnalyzerConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewAnalysisService creates a new analysis service. reports may be nil,
// in which case reports are returned but not stored.
func NewAnalysisService(
	analyzer WalletAnalyzer,
	batch *BatchService,
	assembler *ReportAssembler,
	reports repositories.ReportRepository,
	cfg config.AnalyzerConfig,
	logger *zap.Logger,
) *AnalysisService {
	if cfg.DefaultWindowDays <= 0 {
		cfg.DefaultWindowDays = 30
	}
	return &AnalysisService{
		analyzer:  analyzer,
		batch:     batch,
		assembler: assembler,
		reports:   reports,
		config:    cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// AnalysisRequest is a full analysis producing a report
type AnalysisRequest struct {
	Owner      string
	Addresses  []string
	TokenTypes []string
	DateRange  entities.DateRange
	Options    entities.AnalysisOptions
	BatchSize  int
	Priority   entities.Priority
}

// Analyze runs the batch pipeline over the request and assembles a report
func (s *AnalysisService) Analyze(ctx context.Context, req AnalysisRequest) (*entities.Report, error) {
	job, err := s.batch.RunBatch(ctx, BatchRequest{
		Addresses:  req.Addresses,
		TokenTypes: req.TokenTypes,
		DateRange:  req.DateRange,
		Options:    req.Options,
		BatchSize:  req.BatchSize,
		Priority:   req.Priority,
	})
	if err != nil {
		return nil, err
	}

	report := s.assembler.Assemble(entities.ReportParameters{
		Addresses:  job.Addresses,
		TokenTypes: job.TokenTypes,
		DateRange:  job.DateRange,
		Options:    job.Options,
		BatchSize:  job.Config.BatchSize,
		Priority:   job.Config.Priority,
	}, req.Owner, job.Results)

	if s.reports != nil {
		if err := s.reports.Save(ctx, report); err != nil {
			return nil, fmt.Errorf("failed to save report: %w", err)
		}
	}

	s.logger.Info("Analysis report created",
		zap.String("report_id", report.ID),
		zap.String("owner", req.Owner),
		zap.Int("wallets", report.Summary.WalletCount),
		zap.Int("failed", report.Summary.FailedWallets),
		zap.Bool("persisted", s.reports != nil),
	)

	return report, nil
}

// AnalyzeBatch runs the batch pipeline without assembling a report
func (s *AnalysisService) AnalyzeBatch(ctx context.Context, req BatchRequest) (*entities.BatchJob, error) {
	return s.batch.RunBatch(ctx, req)
}

// AnalyzeWallet analyzes a single address. Only validation problems are
// returned as errors; remote failures are carried by the result.
func (s *AnalysisService) AnalyzeWallet(
	ctx context.Context,
	address, tokenType string,
	window entities.DateRange,
	opts entities.AnalysisOptions,
) (*entities.WalletAnalysisResult, error) {
	address, err := entities.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}

	window, err = resolveWindow(window, s.now(), s.config.DefaultWindowDays)
	if err != nil {
		return nil, err
	}

	result := s.analyzer.AnalyzeWallet(ctx, address, normalizeTokenTypes([]string{tokenType}), window, opts)
	if result.Failed() {
		walletsAnalyzedTotal.WithLabelValues("failed").Inc()
	} else {
		walletsAnalyzedTotal.WithLabelValues("success").Inc()
	}
	return &result, nil
}

// GetReport retrieves a stored report
func (s *AnalysisService) GetReport(ctx context.Context, id string) (*entities.Report, error) {
	if s.reports == nil {
		return nil, fmt.Errorf("%w: report storage is not configured", entities.ErrNotFound)
	}

	report, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	if report == nil {
		return nil, fmt.Errorf("%w: report %s", entities.ErrNotFound, id)
	}
	return report, nil
}

// ListReports retrieves the newest reports of an owner
func (s *AnalysisService) ListReports(ctx context.Context, owner string, limit, offset int) ([]entities.Report, error) {
	if s.reports == nil {
		return []entities.Report{}, nil
	}
	if limit <= 0 {
		limit = defaultReportLimit
	}
	if limit > maxReportLimit {
		limit = maxReportLimit
	}
	if offset < 0 {
		offset = 0
	}

	reports, err := s.reports.ListByOwner(ctx, owner, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	if reports == nil {
		reports = []entities.Report{}
	}
	return reports, nil
}
