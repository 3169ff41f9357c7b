package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bimakw/ledger-analyzer/internal/config"
	"github.com/bimakw/ledger-analyzer/internal/domain/entities"
)

// CacheStatsSource exposes the request cache counters of the ledger client
type CacheStatsSource interface {
	CacheStats() entities.CacheStats
}

// BatchService analyzes many addresses in sequential batches with bounded concurrency
type BatchService struct {
	analyzer WalletAnalyzer
	stats    CacheStatsSource
	config   config.AnalyzerConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewBatchService creates a new batch orchestrator
func NewBatchService(
	analyzer WalletAnalyzer,
	stats CacheStatsSource,
	cfg config.AnalyzerConfig,
	logger *zap.Logger,
) *BatchService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.DefaultWindowDays <= 0 {
		cfg.DefaultWindowDays = 30
	}
	return &BatchService{
		analyzer: analyzer,
		stats:    stats,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// BatchRequest describes one batch analysis
type BatchRequest struct {
	Addresses       []string
	TokenTypes      []string
	DateRange       entities.DateRange
	Options         entities.AnalysisOptions
	BatchSize       int
	Priority        entities.Priority
	IncludeProgress bool
}

// preparedBatch is a validated request with defaults applied
type preparedBatch struct {
	request    BatchRequest
	normalized []string
	invalid    []error
	validCount int
}

func (s *BatchService) prepare(req BatchRequest) (*preparedBatch, error) {
	if len(req.Addresses) == 0 {
		return nil, fmt.Errorf("%w: no addresses provided", entities.ErrInvalidRequest)
	}

	window, err := resolveWindow(req.DateRange, s.now(), s.config.DefaultWindowDays)
	if err != nil {
		return nil, err
	}
	req.DateRange = window

	if req.BatchSize < 0 {
		return nil, fmt.Errorf("%w: batch size must not be negative, got %d", entities.ErrInvalidRequest, req.BatchSize)
	}
	if req.BatchSize == 0 {
		req.BatchSize = s.config.BatchSize
	}
	if req.Priority == "" {
		req.Priority = entities.PriorityNormal
	}
	if _, err := entities.ParsePriority(string(req.Priority)); err != nil {
		return nil, err
	}
	req.TokenTypes = normalizeTokenTypes(req.TokenTypes)

	p := &preparedBatch{
		request:    req,
		normalized: make([]string, len(req.Addresses)),
		invalid:    make([]error, len(req.Addresses)),
	}
	for i, addr := range req.Addresses {
		normalized, err := entities.NormalizeAddress(addr)
		if err != nil {
			p.invalid[i] = err
			p.normalized[i] = addr
			continue
		}
		p.normalized[i] = normalized
		p.validCount++
	}

	if p.validCount == 0 {
		return nil, fmt.Errorf("%w: none of the %d addresses are valid", entities.ErrInvalidRequest, len(req.Addresses))
	}

	return p, nil
}

// RunBatch analyzes every address and returns the job with results in input order.
// Per-address failures are recorded in the results; only request validation errors are returned.
func (s *BatchService) RunBatch(ctx context.Context, req BatchRequest) (*entities.BatchJob, error) {
	p, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	req = p.request

	job := &entities.BatchJob{
		ID:         uuid.NewString(),
		Addresses:  p.normalized,
		TokenTypes: req.TokenTypes,
		DateRange:  req.DateRange,
		Options:    req.Options,
		Config: entities.BatchConfig{
			BatchSize:       req.BatchSize,
			Priority:        req.Priority,
			IncludeProgress: req.IncludeProgress,
		},
		StartedAt: s.now().UTC(),
	}

	total := len(p.normalized)
	totalBatches := (total + req.BatchSize - 1) / req.BatchSize
	workers := s.workersFor(req.Priority)
	results := make([]entities.WalletAnalysisResult, total)
	cacheBefore := s.stats.CacheStats()
	started := time.Now()

	s.logger.Info("Starting batch analysis",
		zap.String("job_id", job.ID),
		zap.Int("addresses", total),
		zap.Int("invalid", total-p.validCount),
		zap.Int("batches", totalBatches),
		zap.Int("workers", workers),
		zap.String("priority", string(req.Priority)),
	)

	successful, failed := 0, 0
	for batch := 0; batch < totalBatches; batch++ {
		from := batch * req.BatchSize
		to := min(from+req.BatchSize, total)

		var g errgroup.Group
		g.SetLimit(workers)

		for i := from; i < to; i++ {
			if p.invalid[i] != nil {
				results[i] = FailedResult(p.normalized[i], req.TokenTypes[0], p.invalid[i])
				continue
			}
			i := i
			g.Go(func() error {
				results[i] = s.analyzeOne(ctx, p.normalized[i], req)
				return nil
			})
		}
		_ = g.Wait()

		for i := from; i < to; i++ {
			if results[i].Failed() {
				failed++
				walletsAnalyzedTotal.WithLabelValues("failed").Inc()
			} else {
				successful++
				walletsAnalyzedTotal.WithLabelValues("success").Inc()
			}
		}

		if req.IncludeProgress {
			progress := entities.BatchProgress{
				Batch:        batch + 1,
				TotalBatches: totalBatches,
				Processed:    to,
				Total:        total,
				Percent:      float64(to) / float64(total) * 100,
				Successful:   successful,
				Failed:       failed,
			}
			job.Progress = append(job.Progress, progress)

			s.logger.Info("Batch progress",
				zap.String("job_id", job.ID),
				zap.Int("batch", progress.Batch),
				zap.Int("total_batches", totalBatches),
				zap.Int("processed", to),
				zap.Int("total", total),
			)
		}
	}

	elapsed := time.Since(started)
	batchDuration.Observe(elapsed.Seconds())
	cache := s.stats.CacheStats().Sub(cacheBefore)

	job.Results = results
	job.PartialFailure = failed > 0 && successful > 0
	job.CompletedAt = s.now().UTC()
	job.Stats = buildStats(total, successful, failed, elapsed, cache)

	s.logger.Info("Batch analysis completed",
		zap.String("job_id", job.ID),
		zap.Int("successful", successful),
		zap.Int("failed", failed),
		zap.Duration("duration", elapsed),
		zap.Float64("cache_hit_ratio", job.Stats.CacheHitRatio),
	)

	return job, nil
}

// analyzeOne isolates one address: cancellation and panics become failed results
func (s *BatchService) analyzeOne(ctx context.Context, address string, req BatchRequest) (result entities.WalletAnalysisResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Wallet analysis panicked",
				zap.String("address", address),
				zap.Any("panic", r),
			)
			result = FailedResult(address, req.TokenTypes[0], fmt.Errorf("analysis panicked: %v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return FailedResult(address, req.TokenTypes[0], err)
	}
	return s.analyzer.AnalyzeWallet(ctx, address, req.TokenTypes, req.DateRange, req.Options)
}

// workersFor maps a priority onto a concurrency ceiling of at least one
func (s *BatchService) workersFor(priority entities.Priority) int {
	var n int
	switch priority {
	case entities.PriorityLow:
		n = s.config.LowPriorityWorkers
	case entities.PriorityHigh:
		n = s.config.HighPriorityWorkers
	default:
		n = s.config.NormalPriorityWorkers
	}
	if n < 1 {
		n = 1
	}
	return n
}

func buildStats(total, successful, failed int, elapsed time.Duration, cache entities.CacheStats) entities.BatchStats {
	stats := entities.BatchStats{
		TotalAddresses:  total,
		Successful:      successful,
		Failed:          failed,
		TotalDurationMs: elapsed.Milliseconds(),
		CacheHits:       cache.Hits,
		CacheMisses:     cache.Misses,
		CacheHitRatio:   cache.HitRatio(),
	}
	if total > 0 {
		stats.SuccessRate = float64(successful) / float64(total) * 100
		stats.AverageDurationMs = float64(elapsed.Milliseconds()) / float64(total)
	}
	if secs := elapsed.Seconds(); secs > 0 {
		stats.AddressesPerSecond = float64(total) / secs
	}
	return stats
}

// resolveWindow applies the default window and rejects inverted ranges
func resolveWindow(window entities.DateRange, now time.Time, days int) (entities.DateRange, error) {
	if window.End.IsZero() {
		window.End = now.UTC()
	}
	if window.Start.IsZero() {
		window.Start = entities.DefaultDateRange(window.End, days).Start
	}
	if window.End.Before(window.Start) {
		return entities.DateRange{}, fmt.Errorf("%w: start date %s is after end date %s",
			entities.ErrInvalidRequest, window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339))
	}
	return window, nil
}
