package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brokerkit/fundmatch/internal/models"
	"github.com/brokerkit/fundmatch/pkg/database"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).RunMigrations())
	return db
}

func sampleRecord() *models.ApplicationRecord {
	return &models.ApplicationRecord{
		BusinessName:       "Acme Corp",
		State:              "CA",
		Industry:           "Restaurant",
		TimeInBusiness:     36,
		CreditScore:        700,
		AvgDailyBalance:    8000,
		AvgMonthlyRevenue:  40000,
		FundingRequested:   50000,
		FundingPurpose:     "equipment",
		HasExistingLoans:   true,
		NegativeDays:       1,
		NSFs:               2,
		LargestDeposit:     12000,
		DepositConsistency: 92.5,
		EndingBalance:      9000,
	}
}

func TestApplicationRepository_InsertAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewApplicationRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	record := sampleRecord()
	needsFirst := true
	record.NeedsFirstPos = &needsFirst

	id, err := repo.Insert(ctx, record)
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))
	assert.Equal(t, id, record.ID)

	loaded, err := repo.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, "Acme Corp", loaded.BusinessName)
	assert.Equal(t, "CA", loaded.State)
	assert.Equal(t, 700, loaded.CreditScore)
	assert.Equal(t, "equipment", loaded.FundingPurpose)
	assert.True(t, loaded.HasExistingLoans)
	assert.Equal(t, 2, loaded.NSFs)
	assert.InDelta(t, 92.5, loaded.DepositConsistency, 0.001)

	// Unknown stays unknown; answered stays answered.
	assert.Nil(t, loaded.HasPriorDefaults)
	require.NotNil(t, loaded.NeedsFirstPos)
	assert.True(t, *loaded.NeedsFirstPos)
}

func TestApplicationRepository_GetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewApplicationRepository(db.DB, zap.NewNop())

	loaded, err := repo.Get(context.Background(), 9999)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestApplicationRepository_InsertSurvivesSchemaDrift(t *testing.T) {
	db := setupTestDB(t)
	repo := NewApplicationRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	// Simulate an older deployment whose table lacks a newer column. The
	// insert must narrow itself to the surviving columns, not fail.
	_, err := db.Exec("ALTER TABLE applications DROP COLUMN deposit_consistency")
	require.NoError(t, err)

	id, err := repo.Insert(ctx, sampleRecord())
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))
}

func intPtr(v int) *int { return &v }

func TestLenderRepository_CRUD(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLenderRepository(db, zap.NewNop())
	ctx := context.Background()

	lender := &models.Lender{
		OwnerID: "broker-1",
		Name:    "Summit Capital",
		Contact: "deals@summit.example",
		Criteria: &models.LenderCriteria{
			MinCreditScore: intPtr(650),
			ExcludedStates: []string{"NY"},
		},
	}
	require.NoError(t, repo.Create(ctx, lender))
	require.Greater(t, lender.ID, int64(0))

	listed, err := repo.List(ctx, "broker-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "Summit Capital", listed[0].Name)
	require.NotNil(t, listed[0].Criteria)
	require.NotNil(t, listed[0].Criteria.MinCreditScore)
	assert.Equal(t, 650, *listed[0].Criteria.MinCreditScore)
	assert.Equal(t, []string{"NY"}, listed[0].Criteria.ExcludedStates)

	// Update rewrites attributes and upserts criteria.
	lender.Name = "Summit Capital Group"
	lender.Criteria.MinCreditScore = intPtr(600)
	require.NoError(t, repo.Update(ctx, lender))

	criteria, err := repo.GetCriteria(ctx, lender.ID)
	require.NoError(t, err)
	require.NotNil(t, criteria)
	assert.Equal(t, 600, *criteria.MinCreditScore)

	require.NoError(t, repo.Delete(ctx, lender.ID))

	listed, err = repo.List(ctx, "broker-1")
	require.NoError(t, err)
	assert.Empty(t, listed)

	// Criteria cascade with the lender.
	criteria, err = repo.GetCriteria(ctx, lender.ID)
	require.NoError(t, err)
	assert.Nil(t, criteria)
}

func TestLenderRepository_OwnerScoping(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLenderRepository(db, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Lender{OwnerID: "broker-1", Name: "A"}))
	require.NoError(t, repo.Create(ctx, &models.Lender{OwnerID: "broker-2", Name: "B"}))

	mine, err := repo.List(ctx, "broker-1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	assert.Equal(t, "A", mine[0].Name)

	// Empty owner is the admin view.
	all, err := repo.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestLenderRepository_CreateRollsBackOnCriteriaFailure(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLenderRepository(db, zap.NewNop())
	ctx := context.Background()

	// With the criteria table gone the second write in the transaction
	// fails; the lender row must not survive it.
	_, err := db.Exec("DROP TABLE lender_criteria")
	require.NoError(t, err)

	lender := &models.Lender{
		OwnerID:  "broker-1",
		Name:     "Summit Capital",
		Criteria: &models.LenderCriteria{MinCreditScore: intPtr(650)},
	}
	require.Error(t, repo.Create(ctx, lender))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM lenders").Scan(&count))
	assert.Equal(t, 0, count)
}

func TestLenderRepository_NoCriteriaStaysNil(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLenderRepository(db, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Lender{OwnerID: "broker-1", Name: "Bare"}))

	listed, err := repo.List(ctx, "broker-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Nil(t, listed[0].Criteria)
}
