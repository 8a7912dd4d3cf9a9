package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/brokerkit/fundmatch/internal/models"
	"github.com/brokerkit/fundmatch/pkg/database"
)

// LenderRepository persists lenders and their eligibility criteria. Criteria
// are stored as JSON: bounds come and go per lender (CSV imports routinely
// change which dimensions are constrained) and absent means unconstrained.
type LenderRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewLenderRepository creates a new lender repository.
func NewLenderRepository(db *database.DB, logger *zap.Logger) *LenderRepository {
	return &LenderRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a lender and its criteria in one transaction; a criteria
// failure rolls the lender row back.
func (r *LenderRepository) Create(ctx context.Context, lender *models.Lender) error {
	return r.db.WithTransaction(func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			"INSERT INTO lenders (owner_id, name, contact_email) VALUES (?, ?, ?)",
			lender.OwnerID, lender.Name, lender.Contact,
		)
		if err != nil {
			r.logger.Error("Failed to create lender", zap.Error(err))
			return fmt.Errorf("failed to create lender: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		lender.ID = id

		if lender.Criteria != nil {
			return r.saveCriteria(ctx, tx, id, lender.Criteria)
		}
		return nil
	})
}

// Update rewrites a lender's attributes and criteria in one transaction.
func (r *LenderRepository) Update(ctx context.Context, lender *models.Lender) error {
	return r.db.WithTransaction(func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"UPDATE lenders SET name = ?, contact_email = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
			lender.Name, lender.Contact, lender.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update lender %d: %w", lender.ID, err)
		}
		if lender.Criteria != nil {
			return r.saveCriteria(ctx, tx, lender.ID, lender.Criteria)
		}
		return nil
	})
}

// Delete removes a lender; criteria cascade.
func (r *LenderRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM lenders WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete lender %d: %w", id, err)
	}
	return nil
}

// List returns lenders with their criteria, scoped to an owner when ownerID
// is non-empty (admins pass "").
func (r *LenderRepository) List(ctx context.Context, ownerID string) ([]models.Lender, error) {
	query := `
		SELECT l.id, l.owner_id, l.name, COALESCE(l.contact_email, ''),
			COALESCE(c.criteria_json, ''), l.created_at, l.updated_at
		FROM lenders l
		LEFT JOIN lender_criteria c ON c.lender_id = l.id
	`
	args := []any{}
	if ownerID != "" {
		query += " WHERE l.owner_id = ?"
		args = append(args, ownerID)
	}
	query += " ORDER BY l.id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list lenders: %w", err)
	}
	defer rows.Close()

	var lenders []models.Lender
	for rows.Next() {
		var lender models.Lender
		var criteriaJSON string
		if err := rows.Scan(&lender.ID, &lender.OwnerID, &lender.Name, &lender.Contact,
			&criteriaJSON, &lender.CreatedAt, &lender.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lender: %w", err)
		}
		if criteriaJSON != "" {
			var criteria models.LenderCriteria
			if err := json.Unmarshal([]byte(criteriaJSON), &criteria); err != nil {
				r.logger.Warn("Skipping malformed lender criteria",
					zap.Int64("lender_id", lender.ID),
					zap.Error(err))
			} else {
				lender.Criteria = &criteria
			}
		}
		lenders = append(lenders, lender)
	}
	return lenders, rows.Err()
}

// GetCriteria reads one lender's criteria; nil when none are defined.
func (r *LenderRepository) GetCriteria(ctx context.Context, lenderID int64) (*models.LenderCriteria, error) {
	var criteriaJSON string
	err := r.db.QueryRowContext(ctx,
		"SELECT criteria_json FROM lender_criteria WHERE lender_id = ?", lenderID,
	).Scan(&criteriaJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get criteria for lender %d: %w", lenderID, err)
	}

	var criteria models.LenderCriteria
	if err := json.Unmarshal([]byte(criteriaJSON), &criteria); err != nil {
		return nil, fmt.Errorf("malformed criteria for lender %d: %w", lenderID, err)
	}
	return &criteria, nil
}

func (r *LenderRepository) saveCriteria(ctx context.Context, tx *sql.Tx, lenderID int64, criteria *models.LenderCriteria) error {
	data, err := json.Marshal(criteria)
	if err != nil {
		return fmt.Errorf("failed to marshal criteria: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO lender_criteria (lender_id, criteria_json) VALUES (?, ?)
		ON CONFLICT(lender_id) DO UPDATE SET criteria_json = excluded.criteria_json
	`, lenderID, string(data))
	if err != nil {
		return fmt.Errorf("failed to save criteria for lender %d: %w", lenderID, err)
	}
	return nil
}
