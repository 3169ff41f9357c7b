package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/bimakw/ledger-analyzer/internal/domain/entities"
	"github.com/bimakw/ledger-analyzer/internal/domain/repositories"
)

// Ensure ReportRepo implements ReportRepository
var _ repositories.ReportRepository = (*ReportRepo)(nil)

const reportSchema = `
	CREATE TABLE IF NOT EXISTS reports (
		id           UUID PRIMARY KEY,
		owner        TEXT NOT NULL DEFAULT '',
		wallet_count INTEGER NOT NULL,
		failed_count INTEGER NOT NULL,
		total_volume NUMERIC NOT NULL,
		start_date   TIMESTAMPTZ NOT NULL,
		end_date     TIMESTAMPTZ NOT NULL,
		document     JSONB NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_reports_owner_created ON reports (owner, created_at DESC);
`

// ReportRepo implements ReportRepository using PostgreSQL.
// The full report is stored as a JSONB document next to a few query columns.
type ReportRepo struct {
	db *sqlx.DB
}

// NewReportRepo creates a new report repository
func NewReportRepo(db *sqlx.DB) *ReportRepo {
	return &ReportRepo{db: db}
}

// EnsureSchema creates the reports table when missing
func (r *ReportRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, reportSchema); err != nil {
		return fmt.Errorf("failed to create reports schema: %w", err)
	}
	return nil
}

// reportRow is one stored report
type reportRow struct {
	ID        string    `db:"id"`
	Owner     string    `db:"owner"`
	Document  []byte    `db:"document"`
	CreatedAt time.Time `db:"created_at"`
}

// Save stores a report under its ID
func (r *ReportRepo) Save(ctx context.Context, report *entities.Report) error {
	document, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	query := `
		INSERT INTO reports (id, owner, wallet_count, failed_count, total_volume, start_date, end_date, document, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.ExecContext(ctx, query,
		report.ID,
		report.Owner,
		report.Summary.WalletCount,
		report.Summary.FailedWallets,
		report.Summary.TotalVolume,
		report.Summary.DateRange.Start,
		report.Summary.DateRange.End,
		document,
		report.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	return nil
}

// GetByID retrieves a report, returning nil when it does not exist
func (r *ReportRepo) GetByID(ctx context.Context, id string) (*entities.Report, error) {
	var row reportRow
	query := `SELECT id, owner, document, created_at FROM reports WHERE id = $1`

	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	return row.decode()
}

// ListByOwner retrieves the newest reports of an owner
func (r *ReportRepo) ListByOwner(ctx context.Context, owner string, limit, offset int) ([]entities.Report, error) {
	var rows []reportRow
	query := `
		SELECT id, owner, document, created_at
		FROM reports
		WHERE owner = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	if err := r.db.SelectContext(ctx, &rows, query, owner, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	reports := make([]entities.Report, 0, len(rows))
	for _, row := range rows {
		report, err := row.decode()
		if err != nil {
			return nil, err
		}
		reports = append(reports, *report)
	}

	return reports, nil
}

func (row reportRow) decode() (*entities.Report, error) {
	var report entities.Report
	if err := json.Unmarshal(row.Document, &report); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", row.ID, err)
	}
	report.ID = row.ID
	report.Owner = row.Owner
	report.CreatedAt = row.CreatedAt.UTC()
	for i := range report.Wallets {
		report.Wallets[i].RestoreAmounts()
	}
	return &report, nil
}
