package database

import (
	"fmt"

	"go.uber.org/zap"
)

// Migration is one versioned schema change.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations are applied in order and tracked in schema_migrations.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_applications",
		SQL: `
			CREATE TABLE IF NOT EXISTS applications (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				business_name TEXT NOT NULL,
				state TEXT NOT NULL,
				industry TEXT NOT NULL,
				time_in_business INTEGER NOT NULL DEFAULT 0,
				credit_score INTEGER NOT NULL DEFAULT 0,
				avg_daily_balance REAL NOT NULL DEFAULT 0,
				avg_monthly_revenue REAL NOT NULL DEFAULT 0,
				funding_requested REAL NOT NULL DEFAULT 0,
				funding_purpose TEXT,
				has_existing_loans INTEGER NOT NULL DEFAULT 0,
				has_prior_defaults INTEGER,
				needs_first_position INTEGER,
				negative_days INTEGER NOT NULL DEFAULT 0,
				nsfs INTEGER NOT NULL DEFAULT 0,
				largest_deposit REAL NOT NULL DEFAULT 0,
				deposit_consistency REAL NOT NULL DEFAULT 0,
				ending_balance REAL NOT NULL DEFAULT 0,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);
		`,
	},
	{
		Version: 2,
		Name:    "create_lenders",
		SQL: `
			CREATE TABLE IF NOT EXISTS lenders (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				owner_id TEXT NOT NULL DEFAULT '',
				name TEXT NOT NULL,
				contact_email TEXT,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_lenders_owner ON lenders(owner_id);
		`,
	},
	{
		Version: 3,
		Name:    "create_lender_criteria",
		SQL: `
			CREATE TABLE IF NOT EXISTS lender_criteria (
				lender_id INTEGER PRIMARY KEY REFERENCES lenders(id) ON DELETE CASCADE,
				criteria_json TEXT NOT NULL
			);
		`,
	},
}

// Migrator applies pending schema migrations.
type Migrator struct {
	db     *DB
	logger *zap.Logger
}

// NewMigrator creates a new migrator
func NewMigrator(db *DB, logger *zap.Logger) *Migrator {
	return &Migrator{
		db:     db,
		logger: logger,
	}
}

// RunMigrations applies all pending migrations.
func (m *Migrator) RunMigrations() error {
	if err := m.createMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := m.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range migrations {
		if applied[migration.Version] {
			m.logger.Debug("Skipping applied migration",
				zap.Int("version", migration.Version),
				zap.String("name", migration.Name))
			continue
		}

		m.logger.Info("Applying migration",
			zap.Int("version", migration.Version),
			zap.String("name", migration.Name))

		if _, err := m.db.Exec(migration.SQL); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}
		if _, err := m.db.Exec(
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
			migration.Version, migration.Name,
		); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

func (m *Migrator) createMigrationsTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`
	_, err := m.db.Exec(query)
	return err
}

func (m *Migrator) getAppliedMigrations() (map[int]bool, error) {
	rows, err := m.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}
