// Package matching scores candidate lenders against a confirmed application
// record with a weighted-criteria algorithm and parallel human-readable
// match/mismatch reasons.
package matching

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/brokerkit/fundmatch/internal/models"
)

// InputError reports a malformed application record passed to Match. Fatal to
// that call: matching operates only on records a human has confirmed, so
// scoring garbage is rejected, never defaulted.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid application record: %s %s", e.Field, e.Reason)
}

// Engine scores lenders against applications.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates a matching engine.
func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{logger: logger}
}

// ValidateRecord rejects records unfit for scoring before any lender is
// evaluated.
func ValidateRecord(app *models.ApplicationRecord) error {
	switch {
	case app == nil:
		return &InputError{Field: "record", Reason: "is nil"}
	case app.BusinessName == "":
		return &InputError{Field: "businessName", Reason: "is empty"}
	case app.CreditScore < 300 || app.CreditScore > 850:
		return &InputError{Field: "creditScore", Reason: fmt.Sprintf("must be 300-850, got %d", app.CreditScore)}
	case math.IsNaN(app.AvgMonthlyRevenue) || app.AvgMonthlyRevenue < 0:
		return &InputError{Field: "avgMonthlyRevenue", Reason: "must be a non-negative number"}
	case math.IsNaN(app.AvgDailyBalance) || app.AvgDailyBalance < 0:
		return &InputError{Field: "avgDailyBalance", Reason: "must be a non-negative number"}
	case math.IsNaN(app.FundingRequested) || app.FundingRequested <= 0:
		return &InputError{Field: "fundingRequested", Reason: "must be positive"}
	case app.TimeInBusiness < 0:
		return &InputError{Field: "timeInBusiness", Reason: "must be >= 0"}
	case app.State == "":
		return &InputError{Field: "state", Reason: "is empty"}
	}
	return nil
}

// Match scores every candidate lender independently and returns results
// ordered by descending score. Equal scores keep the input candidate order.
func (e *Engine) Match(app *models.ApplicationRecord, lenders []models.Lender) ([]models.MatchResult, error) {
	if err := ValidateRecord(app); err != nil {
		return nil, err
	}

	results := make([]models.MatchResult, 0, len(lenders))
	for _, lender := range lenders {
		results = append(results, e.scoreLender(app, lender))
	}

	// Stable: ties keep candidate order, no hidden re-sort.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].MatchScore > results[j].MatchScore
	})

	e.logger.Info("Matched application against lenders",
		zap.String("business", app.BusinessName),
		zap.Int("candidates", len(lenders)))

	return results, nil
}

// scoreLender evaluates one lender. Only dimensions the lender constrains
// count toward the score: an absent bound neither helps nor hurts.
func (e *Engine) scoreLender(app *models.ApplicationRecord, lender models.Lender) models.MatchResult {
	result := models.MatchResult{
		LenderID:        lender.ID,
		LenderName:      lender.Name,
		MatchReasons:    []string{},
		MismatchReasons: []string{},
	}

	c := lender.Criteria
	if c == nil {
		// Zero defined criteria scores 0: absence of constraints is not a
		// guaranteed fit.
		return result
	}

	total, satisfied := 0, 0
	check := func(pass bool, matchReason, mismatchReason string) {
		total++
		if pass {
			satisfied++
			result.MatchReasons = append(result.MatchReasons, matchReason)
		} else {
			result.MismatchReasons = append(result.MismatchReasons, mismatchReason)
		}
	}

	if c.MinCreditScore != nil {
		check(app.CreditScore >= *c.MinCreditScore,
			fmt.Sprintf("Credit score %d meets minimum %d", app.CreditScore, *c.MinCreditScore),
			fmt.Sprintf("Credit score %d below minimum %d", app.CreditScore, *c.MinCreditScore))
	}
	if c.MaxCreditScore != nil {
		check(app.CreditScore <= *c.MaxCreditScore,
			fmt.Sprintf("Credit score %d within maximum %d", app.CreditScore, *c.MaxCreditScore),
			fmt.Sprintf("Credit score %d above maximum %d", app.CreditScore, *c.MaxCreditScore))
	}
	if c.MinMonthlyRevenue != nil {
		check(app.AvgMonthlyRevenue >= *c.MinMonthlyRevenue,
			fmt.Sprintf("Monthly revenue $%.0f meets minimum $%.0f", app.AvgMonthlyRevenue, *c.MinMonthlyRevenue),
			fmt.Sprintf("Monthly revenue $%.0f below minimum $%.0f", app.AvgMonthlyRevenue, *c.MinMonthlyRevenue))
	}
	if c.MinDailyBalance != nil {
		check(app.AvgDailyBalance >= *c.MinDailyBalance,
			fmt.Sprintf("Daily balance $%.0f meets minimum $%.0f", app.AvgDailyBalance, *c.MinDailyBalance),
			fmt.Sprintf("Daily balance $%.0f below minimum $%.0f", app.AvgDailyBalance, *c.MinDailyBalance))
	}
	if c.MinTimeInBusiness != nil {
		check(app.TimeInBusiness >= *c.MinTimeInBusiness,
			fmt.Sprintf("Time in business %d months meets minimum %d", app.TimeInBusiness, *c.MinTimeInBusiness),
			fmt.Sprintf("Time in business %d months below minimum %d", app.TimeInBusiness, *c.MinTimeInBusiness))
	}
	// Funding range counts only when the lender defines both ends.
	if c.MinFundingAmount != nil && c.MaxFundingAmount != nil {
		check(app.FundingRequested >= *c.MinFundingAmount && app.FundingRequested <= *c.MaxFundingAmount,
			fmt.Sprintf("Funding request $%.0f within range $%.0f-$%.0f", app.FundingRequested, *c.MinFundingAmount, *c.MaxFundingAmount),
			fmt.Sprintf("Funding request $%.0f outside range $%.0f-$%.0f", app.FundingRequested, *c.MinFundingAmount, *c.MaxFundingAmount))
	}
	if c.AcceptsExistingLoans != nil {
		check(*c.AcceptsExistingLoans || !app.HasExistingLoans,
			"Existing loan position acceptable",
			"Lender does not accept existing loan positions")
	}
	if c.AcceptsPriorDefaults != nil && app.HasPriorDefaults != nil {
		check(*c.AcceptsPriorDefaults || !*app.HasPriorDefaults,
			"Prior default history acceptable",
			"Lender does not accept prior defaults")
	}
	if c.MaxPosition != nil {
		// The new advance takes the next position behind any existing ones.
		position := 1
		if app.HasExistingLoans {
			position = 2
		}
		check(position <= *c.MaxPosition,
			fmt.Sprintf("Position %d within lender maximum %d", position, *c.MaxPosition),
			fmt.Sprintf("Position %d exceeds lender maximum %d", position, *c.MaxPosition))
	}
	if c.MaxNegativeDays != nil {
		check(app.NegativeDays <= *c.MaxNegativeDays,
			fmt.Sprintf("%d negative days within allowed %d", app.NegativeDays, *c.MaxNegativeDays),
			fmt.Sprintf("%d negative days exceeds allowed %d", app.NegativeDays, *c.MaxNegativeDays))
	}
	// Exclusion lists are tested as inclusion against the complement: the
	// application passes when its value is NOT excluded. An empty list
	// constrains nothing and is skipped entirely.
	if len(c.ExcludedStates) > 0 {
		check(!containsFold(c.ExcludedStates, app.State),
			fmt.Sprintf("State %s accepted", app.State),
			fmt.Sprintf("State %s is excluded by this lender", app.State))
	}
	if len(c.ExcludedIndustries) > 0 {
		check(!containsFold(c.ExcludedIndustries, app.Industry),
			fmt.Sprintf("Industry %s accepted", app.Industry),
			fmt.Sprintf("Industry %s is excluded by this lender", app.Industry))
	}

	if total > 0 {
		result.MatchScore = int(math.Round(100 * float64(satisfied) / float64(total)))
	}
	return result
}

func containsFold(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), value) {
			return true
		}
	}
	return false
}
