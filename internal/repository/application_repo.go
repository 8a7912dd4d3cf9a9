package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/brokerkit/fundmatch/internal/models"
)

// ApplicationRepository persists application records.
type ApplicationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApplicationRepository creates a new application repository.
func NewApplicationRepository(db *sql.DB, logger *zap.Logger) *ApplicationRepository {
	return &ApplicationRepository{
		db:     db,
		logger: logger,
	}
}

// tableColumns reports the live column set of a table. Insert paths intersect
// their fields with this so schema drift degrades to narrower writes instead
// of failed ones.
func (r *ApplicationRepository) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("failed to inspect %s schema: %w", table, err)
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan %s schema row: %w", table, err)
		}
		columns[name] = true
	}
	return columns, rows.Err()
}

// Insert writes a clean record (no provenance fields exist on the model by
// construction). Outgoing fields are filtered to the columns the table
// actually has before the statement is built.
func (r *ApplicationRepository) Insert(ctx context.Context, record *models.ApplicationRecord) (int64, error) {
	columns, err := r.tableColumns(ctx, "applications")
	if err != nil {
		return 0, err
	}

	fields := map[string]any{
		"business_name":        record.BusinessName,
		"state":                record.State,
		"industry":             record.Industry,
		"time_in_business":     record.TimeInBusiness,
		"credit_score":         record.CreditScore,
		"avg_daily_balance":    record.AvgDailyBalance,
		"avg_monthly_revenue":  record.AvgMonthlyRevenue,
		"funding_requested":    record.FundingRequested,
		"funding_purpose":      record.FundingPurpose,
		"has_existing_loans":   record.HasExistingLoans,
		"has_prior_defaults":   record.HasPriorDefaults,
		"needs_first_position": record.NeedsFirstPos,
		"negative_days":        record.NegativeDays,
		"nsfs":                 record.NSFs,
		"largest_deposit":      record.LargestDeposit,
		"deposit_consistency":  record.DepositConsistency,
		"ending_balance":       record.EndingBalance,
	}

	var names []string
	for name := range fields {
		if columns[name] {
			names = append(names, name)
		} else {
			r.logger.Warn("Dropping field absent from applications schema",
				zap.String("column", name))
		}
	}
	if len(names) == 0 {
		return 0, fmt.Errorf("applications table shares no columns with the record")
	}
	sort.Strings(names)

	placeholders := make([]string, len(names))
	values := make([]any, len(names))
	for i, name := range names {
		placeholders[i] = "?"
		values[i] = fields[name]
	}

	query := fmt.Sprintf(
		"INSERT INTO applications (%s) VALUES (%s)",
		strings.Join(names, ", "),
		strings.Join(placeholders, ", "),
	)

	result, err := r.db.ExecContext(ctx, query, values...)
	if err != nil {
		r.logger.Error("Failed to insert application", zap.Error(err))
		return 0, fmt.Errorf("failed to insert application: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}

	record.ID = id
	return id, nil
}

// Get reads one application record by id.
func (r *ApplicationRepository) Get(ctx context.Context, id int64) (*models.ApplicationRecord, error) {
	query := `
		SELECT id, business_name, state, industry, time_in_business, credit_score,
			avg_daily_balance, avg_monthly_revenue, funding_requested, funding_purpose,
			has_existing_loans, has_prior_defaults, needs_first_position,
			negative_days, nsfs, largest_deposit, deposit_consistency, ending_balance,
			created_at, updated_at
		FROM applications WHERE id = ?
	`

	var record models.ApplicationRecord
	var purpose sql.NullString
	var priorDefaults, needsFirstPos sql.NullBool

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&record.ID, &record.BusinessName, &record.State, &record.Industry,
		&record.TimeInBusiness, &record.CreditScore, &record.AvgDailyBalance,
		&record.AvgMonthlyRevenue, &record.FundingRequested, &purpose,
		&record.HasExistingLoans, &priorDefaults, &needsFirstPos,
		&record.NegativeDays, &record.NSFs, &record.LargestDeposit,
		&record.DepositConsistency, &record.EndingBalance,
		&record.CreatedAt, &record.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get application %d: %w", id, err)
	}

	record.FundingPurpose = purpose.String
	if priorDefaults.Valid {
		record.HasPriorDefaults = &priorDefaults.Bool
	}
	if needsFirstPos.Valid {
		record.NeedsFirstPos = &needsFirstPos.Bool
	}

	return &record, nil
}
