package repositories

import (
	"context"

	"github.com/bimakw/ledger-analyzer/internal/domain/entities"
)

// ReportRepository defines the persistence operations for reports
type ReportRepository interface {
	// Save stores a report under its ID
	Save(ctx context.Context, report *entities.Report) error

	// GetByID retrieves a report, returning nil when it does not exist
	GetByID(ctx context.Context, id string) (*entities.Report, error)

	// ListByOwner retrieves the newest reports of an owner
	ListByOwner(ctx context.Context, owner string, limit, offset int) ([]entities.Report, error)
}
