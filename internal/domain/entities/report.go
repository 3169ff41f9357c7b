package entities

import "time"

// ReportParameters records how a report was produced
type ReportParameters struct {
	Addresses  []string        `json:"addresses"`
	TokenTypes []string        `json:"token_types"`
	DateRange  DateRange       `json:"date_range"`
	Options    AnalysisOptions `json:"options"`
	BatchSize  int             `json:"batch_size"`
	Priority   Priority        `json:"priority"`
}

// ReportSummary holds totals across all wallets of a report
type ReportSummary struct {
	WalletCount          int       `json:"wallet_count"`
	SuccessfulWallets    int       `json:"successful_wallets"`
	FailedWallets        int       `json:"failed_wallets"`
	ActiveWallets        int       `json:"active_wallets"`
	TotalVolume          string    `json:"total_volume"`
	TotalVolumeFormatted string    `json:"total_volume_formatted"`
	TotalTransactions    int       `json:"total_transactions"`
	DateRange            DateRange `json:"date_range"`
}

// Report is the immutable artifact of one analysis run
type Report struct {
	ID         string                 `json:"id"`
	Owner      string                 `json:"owner"`
	CreatedAt  time.Time              `json:"created_at"`
	Parameters ReportParameters       `json:"parameters"`
	Summary    ReportSummary          `json:"summary"`
	Wallets    []WalletAnalysisResult `json:"wallets"`
	Insights   []string               `json:"insights"`
}
