// Package reconcile merges application-parser and bank-analyzer output into
// one ApplicationRecord, filling documented defaults for anything missing and
// flagging the record for mandatory human review. Provenance metadata is
// returned separately and never reaches the persisted record.
package reconcile

import (
	"math"

	"go.uber.org/zap"

	"github.com/brokerkit/fundmatch/internal/appparser"
	"github.com/brokerkit/fundmatch/internal/models"
)

// Reconciler merges and defaults pipeline output.
type Reconciler struct {
	logger *zap.Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(logger *zap.Logger) *Reconciler {
	return &Reconciler{logger: logger}
}

// Reconcile merges app-parsed fields with bank-derived ones. Bank financials
// win only where the application parser produced nothing. Every required
// field still missing after the merge is replaced with its documented default
// and recorded in the provenance; nothing is silently accepted.
func (r *Reconciler) Reconcile(app appparser.ParsedApplication, bank models.BankAnalysisResult) (models.ApplicationRecord, models.ExtractionProvenance) {
	var record models.ApplicationRecord
	var prov models.ExtractionProvenance

	bankUsable := bank.AnalysisSuccess

	missing := func(field string) {
		prov.MissingFields = append(prov.MissingFields, field)
	}

	if app.BusinessName != nil && *app.BusinessName != "" {
		record.BusinessName = *app.BusinessName
	} else {
		record.BusinessName = models.DefaultBusinessName
		missing(models.FieldBusinessName)
	}

	if app.CreditScore != nil {
		record.CreditScore = *app.CreditScore
	} else {
		record.CreditScore = models.DefaultCreditScore
		missing(models.FieldCreditScore)
	}

	if app.State != nil && *app.State != "" {
		record.State = *app.State
	} else {
		record.State = models.DefaultState
		missing(models.FieldState)
	}

	if app.Industry != nil && *app.Industry != "" {
		record.Industry = *app.Industry
	} else {
		record.Industry = models.DefaultIndustry
		missing(models.FieldIndustry)
	}

	if app.TimeInBusiness != nil {
		record.TimeInBusiness = *app.TimeInBusiness
	} else {
		record.TimeInBusiness = models.DefaultTimeInBusiness
		missing(models.FieldTimeInBusiness)
	}

	if app.FundingRequested != nil && *app.FundingRequested > 0 {
		record.FundingRequested = *app.FundingRequested
	} else {
		record.FundingRequested = models.DefaultFundingRequested
		missing(models.FieldFundingRequested)
	}

	if app.FundingPurpose != nil {
		record.FundingPurpose = *app.FundingPurpose
	}

	// Financials come from the bank analyzer; the application parser has no
	// competing values for these.
	if bankUsable && !math.IsNaN(bank.AvgDailyBalance) {
		record.AvgDailyBalance = bank.AvgDailyBalance
	} else {
		record.AvgDailyBalance = models.DefaultAvgDailyBalance
		missing(models.FieldAvgDailyBalance)
	}

	if bankUsable && !math.IsNaN(bank.AvgMonthlyRevenue) && bank.AvgMonthlyRevenue > 0 {
		record.AvgMonthlyRevenue = bank.AvgMonthlyRevenue
	} else {
		record.AvgMonthlyRevenue = models.DefaultAvgMonthlyRevenue
		missing(models.FieldAvgMonthlyRevenue)
	}

	if bankUsable {
		record.NegativeDays = bank.NegativeDays
		record.NSFs = bank.NSFDays
		record.MonthlyDeposits = bank.MonthlyDeposits
		record.DailyBalances = bank.DailyBalances
		record.LargestDeposit = bank.LargestDeposit
		record.DepositConsistency = bank.DepositConsistency
		record.EndingBalance = bank.EndingBalance
	}

	// Risk flags: explicit application answers win; bank heuristics fill the
	// gaps; unknown stays unknown rather than becoming false.
	if app.HasExistingLoans != nil {
		record.HasExistingLoans = *app.HasExistingLoans
	} else if bankUsable {
		record.HasExistingLoans = bank.ExistingMCACount > 0
	}

	record.HasPriorDefaults = app.HasPriorDefaults

	if app.NeedsFirstPos != nil {
		record.NeedsFirstPos = app.NeedsFirstPos
	} else if bankUsable {
		needs := bank.NeedsFirstPosition
		record.NeedsFirstPos = &needs
	}

	prov.Degraded = bank.Degraded
	if !bank.AnalysisSuccess && bank.ErrorMessage != "" {
		prov.Error = bank.ErrorMessage
	}
	prov.RequiresManualEntry = len(prov.MissingFields) > 0 || prov.Degraded || !bankUsable

	if prov.RequiresManualEntry {
		r.logger.Info("Record requires manual review",
			zap.Strings("missing_fields", prov.MissingFields),
			zap.Bool("degraded", prov.Degraded),
			zap.String("analysis_error", prov.Error))
	}

	return record, prov
}
