package entities

import (
	"fmt"
	"strings"
	"time"
)

// Priority raises the concurrency ceiling of a batch job
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// ParsePriority parses a priority name, empty means normal
func ParsePriority(s string) (Priority, error) {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case "", PriorityNormal:
		return PriorityNormal, nil
	case PriorityLow:
		return PriorityLow, nil
	case PriorityHigh:
		return PriorityHigh, nil
	}
	return "", fmt.Errorf("%w: unknown priority %q", ErrInvalidRequest, s)
}

// BatchConfig holds the caller-supplied batch parameters
type BatchConfig struct {
	BatchSize       int      `json:"batch_size"`
	Priority        Priority `json:"priority"`
	IncludeProgress bool     `json:"include_progress"`
}

// BatchProgress is recorded after each completed batch
type BatchProgress struct {
	Batch        int     `json:"batch"`
	TotalBatches int     `json:"total_batches"`
	Processed    int     `json:"processed"`
	Total        int     `json:"total"`
	Percent      float64 `json:"percent"`
	Successful   int     `json:"successful"`
	Failed       int     `json:"failed"`
}

// BatchStats are the aggregate counters of a finished job
type BatchStats struct {
	TotalAddresses     int     `json:"total_addresses"`
	Successful         int     `json:"successful"`
	Failed             int     `json:"failed"`
	SuccessRate        float64 `json:"success_rate"`
	TotalDurationMs    int64   `json:"total_duration_ms"`
	AverageDurationMs  float64 `json:"average_duration_ms"`
	AddressesPerSecond float64 `json:"addresses_per_second"`
	CacheHits          int64   `json:"cache_hits"`
	CacheMisses        int64   `json:"cache_misses"`
	CacheHitRatio      float64 `json:"cache_hit_ratio"`
}

// BatchJob is one batch analysis run and its results in input order
type BatchJob struct {
	ID             string                 `json:"id"`
	Addresses      []string               `json:"addresses"`
	TokenTypes     []string               `json:"token_types"`
	DateRange      DateRange              `json:"date_range"`
	Options        AnalysisOptions        `json:"options"`
	Config         BatchConfig            `json:"config"`
	Results        []WalletAnalysisResult `json:"results"`
	Stats          BatchStats             `json:"stats"`
	Progress       []BatchProgress        `json:"progress,omitempty"`
	PartialFailure bool                   `json:"partial_failure"`
	StartedAt      time.Time              `json:"started_at"`
	CompletedAt    time.Time              `json:"completed_at"`
}

// FailedErrors lists the failure descriptors of the job, if any
func (j *BatchJob) FailedErrors() []ErrorInfo {
	var out []ErrorInfo
	for _, r := range j.Results {
		if r.Error != nil {
			out = append(out, *r.Error)
		}
	}
	return out
}
