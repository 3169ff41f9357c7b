package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/ledger-analyzer/internal/application/services"
	"github.com/bimakw/ledger-analyzer/internal/config"
	"github.com/bimakw/ledger-analyzer/internal/domain/entities"
	"github.com/bimakw/ledger-analyzer/internal/domain/repositories"
	"github.com/bimakw/ledger-analyzer/internal/infrastructure/cache"
	"github.com/bimakw/ledger-analyzer/internal/infrastructure/database"
	"github.com/bimakw/ledger-analyzer/internal/infrastructure/ledger"
	"github.com/bimakw/ledger-analyzer/internal/infrastructure/logging"
)

const dateLayout = "2006-01-02"

// Exit codes
const (
	exitOK             = 0
	exitFailure        = 1
	exitPartialFailure = 2
)

type options struct {
	batch        bool
	start        string
	end          string
	tokenType    string
	transactions bool
	account      bool
	save         bool
	priority     string
	batchSize    int
	owner        string
}

func main() {
	os.Exit(run())
}

func run() int {
	var opts options
	flag.BoolVar(&opts.batch, "batch", false, "print the batch job instead of an assembled report")
	flag.StringVar(&opts.start, "start", "", "window start (YYYY-MM-DD or RFC3339), default 30 days before -end")
	flag.StringVar(&opts.end, "end", "", "window end (YYYY-MM-DD or RFC3339), default now")
	flag.StringVar(&opts.tokenType, "token", entities.NativeTokenType, "coin type to analyze")
	flag.BoolVar(&opts.transactions, "transactions", false, "attach recent transactions")
	flag.BoolVar(&opts.account, "account", false, "attach account snapshot")
	flag.BoolVar(&opts.save, "save", false, "persist the report to PostgreSQL")
	flag.StringVar(&opts.priority, "priority", "normal", "batch priority: low, normal or high")
	flag.IntVar(&opts.batchSize, "batch-size", 0, "addresses per batch, default from ANALYZER_BATCH_SIZE")
	flag.StringVar(&opts.owner, "owner", "", "owner recorded on the report")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] ADDRESS...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	addresses := flag.Args()
	if len(addresses) == 0 {
		flag.Usage()
		return exitFailure
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return exitFailure
	}

	// Logs go to stderr so stdout stays valid JSON
	cfg.Log.Format = "console"
	cfg.Log.Output = "stderr"
	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		return exitFailure
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	window, err := parseWindow(opts.start, opts.end)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitFailure
	}
	priority, err := entities.ParsePriority(opts.priority)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitFailure
	}

	var pageCache ledger.PageCache
	if redisCache, err := cache.NewRedisCache(cfg.Redis, logger); err != nil {
		logger.Debug("Redis unavailable, using in-memory page cache", zap.Error(err))
	} else {
		defer redisCache.Close()
		pageCache = redisCache
	}

	var reports repositories.ReportRepository
	if opts.save && !opts.batch {
		db, err := database.NewPostgresDB(ctx, cfg.Database, logger)
		if err != nil {
			logger.Error("Database unavailable, report will not be saved", zap.Error(err))
		} else {
			defer db.Close()
			repo := database.NewReportRepo(db.DB())
			if err := repo.EnsureSchema(ctx); err != nil {
				logger.Error("Failed to prepare reports table", zap.Error(err))
			} else {
				reports = repo
			}
		}
	}

	client := ledger.NewClient(cfg.Ledger, pageCache, logger)
	defer client.Close()

	fetcher := ledger.NewFetcher(client, cfg.Analyzer, logger)
	aggregator := services.NewAggregator(client, fetcher, cfg.Analyzer, logger)
	batchService := services.NewBatchService(aggregator, client, cfg.Analyzer, logger)
	analysisService := services.NewAnalysisService(
		aggregator,
		batchService,
		services.NewReportAssembler(),
		reports,
		cfg.Analyzer,
		logger,
	)

	var (
		output  interface{}
		partial bool
	)

	if opts.batch {
		job, err := analysisService.AnalyzeBatch(ctx, services.BatchRequest{
			Addresses:  addresses,
			TokenTypes: []string{opts.tokenType},
			DateRange:  window,
			Options: entities.AnalysisOptions{
				IncludeAccountInfo:  opts.account,
				IncludeTransactions: opts.transactions,
			},
			BatchSize:       opts.batchSize,
			Priority:        priority,
			IncludeProgress: true,
		})
		if err != nil {
			logger.Error("Batch analysis failed", zap.Error(err))
			return exitFailure
		}
		output = job
		partial = job.Stats.Failed > 0
	} else {
		report, err := analysisService.Analyze(ctx, services.AnalysisRequest{
			Owner:      opts.owner,
			Addresses:  addresses,
			TokenTypes: []string{opts.tokenType},
			DateRange:  window,
			Options: entities.AnalysisOptions{
				IncludeAccountInfo:  opts.account,
				IncludeTransactions: opts.transactions,
			},
			BatchSize: opts.batchSize,
			Priority:  priority,
		})
		if err != nil {
			logger.Error("Analysis failed", zap.Error(err))
			return exitFailure
		}
		output = report
		partial = report.Summary.FailedWallets > 0
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(output); err != nil {
		logger.Error("Failed to write output", zap.Error(err))
		return exitFailure
	}

	if partial {
		logger.Warn("Some wallets could not be analyzed", zap.Error(entities.ErrPartialBatchFailure))
		return exitPartialFailure
	}
	return exitOK
}

// parseWindow turns the -start/-end flags into a date range; a bare end date covers the whole day
func parseWindow(start, end string) (entities.DateRange, error) {
	var window entities.DateRange
	var err error
	if window.Start, err = parseFlagDate(start, false); err != nil {
		return window, fmt.Errorf("invalid -start: %w", err)
	}
	if window.End, err = parseFlagDate(end, true); err != nil {
		return window, fmt.Errorf("invalid -end: %w", err)
	}
	return window, nil
}

func parseFlagDate(s string, endOfDay bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, errors.New("expected YYYY-MM-DD or RFC3339, got " + s)
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return t, nil
}
