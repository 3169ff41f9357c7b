package services

import (
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/bimakw/ledger-analyzer/internal/domain/entities"
)

// ReportAssembler folds wallet results into a single report
type ReportAssembler struct {
	now   func() time.Time
	newID func() string
}

// NewReportAssembler creates a new report assembler
func NewReportAssembler() *ReportAssembler {
	return &ReportAssembler{
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Assemble builds a report from copies of params and results
func (a *ReportAssembler) Assemble(
	params entities.ReportParameters,
	owner string,
	results []entities.WalletAnalysisResult,
) *entities.Report {
	wallets := append([]entities.WalletAnalysisResult(nil), results...)
	params.Addresses = append([]string(nil), params.Addresses...)
	params.TokenTypes = append([]string(nil), params.TokenTypes...)

	volume := new(big.Int)
	summary := entities.ReportSummary{
		WalletCount: len(wallets),
		DateRange:   params.DateRange,
	}

	for _, w := range wallets {
		if w.Failed() {
			summary.FailedWallets++
			continue
		}
		summary.SuccessfulWallets++
		if w.HasActivity {
			summary.ActiveWallets++
		}
		volume.Add(volume, w.Volume())
		summary.TotalTransactions += w.TransactionCount
	}

	summary.TotalVolume = volume.String()
	summary.TotalVolumeFormatted = entities.FormatAmount(volume, volumeDecimals(params.TokenTypes))

	reportsCreatedTotal.Inc()

	return &entities.Report{
		ID:         a.newID(),
		Owner:      owner,
		CreatedAt:  a.now().UTC(),
		Parameters: params,
		Summary:    summary,
		Wallets:    wallets,
		Insights:   deriveInsights(wallets),
	}
}

// volumeDecimals picks the display scale of the primary token type
func volumeDecimals(tokenTypes []string) int {
	if len(tokenTypes) == 0 {
		return entities.NativeDecimals
	}
	return entities.DecimalsFor(tokenTypes[0])
}

func deriveInsights(wallets []entities.WalletAnalysisResult) []string {
	insights := make([]string, 0, 4)

	var (
		inactive  int
		outflow   int
		failed    int
		topIndex  = -1
		topVolume = new(big.Int)
	)

	for i, w := range wallets {
		if w.Failed() {
			failed++
			continue
		}
		if !w.HasActivity {
			inactive++
			continue
		}
		if w.NetFlow != nil && w.NetFlow.Sign() < 0 {
			outflow++
		}
		if v := w.Volume(); v.Cmp(topVolume) > 0 {
			topVolume = v
			topIndex = i
		}
	}

	if inactive > 0 {
		insights = append(insights, fmt.Sprintf("%d wallet(s) had no activity in the selected period", inactive))
	}
	if topIndex >= 0 {
		top := wallets[topIndex]
		insights = append(insights, fmt.Sprintf("Highest volume wallet: %s with %s",
			top.Address, entities.FormatAmount(topVolume, entities.DecimalsFor(top.TokenType))))
	}
	if outflow > 0 {
		insights = append(insights, fmt.Sprintf("%d wallet(s) had a net outflow", outflow))
	}
	if failed > 0 {
		insights = append(insights, fmt.Sprintf("%d wallet(s) could not be analyzed", failed))
	}

	return insights
}
