package entities

import (
	"math/big"
	"time"
)

// AnalysisOptions selects optional attachments of a wallet analysis
type AnalysisOptions struct {
	IncludeAccountInfo  bool `json:"include_account_info"`
	IncludeTransactions bool `json:"include_transactions"`
}

// TokenFlow is the deposit/withdrawal summary of one token type
type TokenFlow struct {
	TokenType                 string   `json:"token_type"`
	TotalDeposits             *big.Int `json:"-"`
	TotalWithdrawals          *big.Int `json:"-"`
	NetFlow                   *big.Int `json:"-"`
	TotalDepositsString       string   `json:"total_deposits"`
	TotalWithdrawalsString    string   `json:"total_withdrawals"`
	NetFlowString             string   `json:"net_flow"`
	TotalDepositsFormatted    string   `json:"total_deposits_formatted"`
	TotalWithdrawalsFormatted string   `json:"total_withdrawals_formatted"`
	NetFlowFormatted          string   `json:"net_flow_formatted"`
	DepositCount              int      `json:"deposit_count"`
	WithdrawalCount           int      `json:"withdrawal_count"`
}

// NewTokenFlow builds a flow from exact totals and derives the net flow
func NewTokenFlow(tokenType string, deposits, withdrawals *big.Int, depositCount, withdrawalCount int) TokenFlow {
	if deposits == nil {
		deposits = new(big.Int)
	}
	if withdrawals == nil {
		withdrawals = new(big.Int)
	}
	net := new(big.Int).Sub(deposits, withdrawals)
	decimals := DecimalsFor(tokenType)

	return TokenFlow{
		TokenType:                 tokenType,
		TotalDeposits:             deposits,
		TotalWithdrawals:          withdrawals,
		NetFlow:                   net,
		TotalDepositsString:       deposits.String(),
		TotalWithdrawalsString:    withdrawals.String(),
		NetFlowString:             net.String(),
		TotalDepositsFormatted:    FormatAmount(deposits, decimals),
		TotalWithdrawalsFormatted: FormatAmount(withdrawals, decimals),
		NetFlowFormatted:          FormatAmount(net, decimals),
		DepositCount:              depositCount,
		WithdrawalCount:           withdrawalCount,
	}
}

// ZeroTokenFlow is an empty flow for a token type
func ZeroTokenFlow(tokenType string) TokenFlow {
	return NewTokenFlow(tokenType, nil, nil, 0, 0)
}

// Volume is total deposits plus total withdrawals
func (f TokenFlow) Volume() *big.Int {
	v := new(big.Int)
	if f.TotalDeposits != nil {
		v.Add(v, f.TotalDeposits)
	}
	if f.TotalWithdrawals != nil {
		v.Add(v, f.TotalWithdrawals)
	}
	return v
}

// WalletAnalysisResult is the aggregation output for one address.
// The embedded flow is the primary (first requested) token type.
type WalletAnalysisResult struct {
	Address string `json:"address"`
	TokenFlow

	TransactionCount int  `json:"transaction_count"`
	InboundCount     int  `json:"inbound_count"`
	OutboundCount    int  `json:"outbound_count"`
	HasActivity      bool `json:"has_activity"`

	TokenFlows         []TokenFlow         `json:"token_flows,omitempty"`
	Account            *AccountSnapshot    `json:"account,omitempty"`
	RecentTransactions []WalletTransaction `json:"recent_transactions,omitempty"`

	// EventsTruncated is set when an event stream hit the page ceiling before
	// reaching the start of the window
	EventsTruncated bool `json:"events_truncated,omitempty"`

	ProcessingTimeMs int64      `json:"processing_time_ms"`
	Error            *ErrorInfo `json:"error,omitempty"`
}

// Failed reports whether the result is a failure descriptor
func (r WalletAnalysisResult) Failed() bool {
	return r.Error != nil
}

// ProcessingTime returns the recorded analysis duration
func (r WalletAnalysisResult) ProcessingTime() time.Duration {
	return time.Duration(r.ProcessingTimeMs) * time.Millisecond
}

// restoreAmounts rebuilds the exact totals from their string forms after decoding
func (f *TokenFlow) restoreAmounts() {
	if v, ok := ParseMinorUnits(f.TotalDepositsString); ok {
		f.TotalDeposits = v
	}
	if v, ok := ParseMinorUnits(f.TotalWithdrawalsString); ok {
		f.TotalWithdrawals = v
	}
	if v, ok := new(big.Int).SetString(f.NetFlowString, 10); ok {
		f.NetFlow = v
	}
}

// RestoreAmounts rebuilds the big integer totals of a decoded result
func (r *WalletAnalysisResult) RestoreAmounts() {
	r.TokenFlow.restoreAmounts()
	for i := range r.TokenFlows {
		r.TokenFlows[i].restoreAmounts()
	}
}
