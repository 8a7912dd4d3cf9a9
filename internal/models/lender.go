package models

import "time"

// Lender is a funding source a broker can place deals with.
type Lender struct {
	ID        int64           `json:"id"`
	OwnerID   string          `json:"owner_id,omitempty"`
	Name      string          `json:"name"`
	Contact   string          `json:"contact_email,omitempty"`
	Criteria  *LenderCriteria `json:"criteria,omitempty"`
	CreatedAt time.Time       `json:"created_at,omitempty"`
	UpdatedAt time.Time       `json:"updated_at,omitempty"`
}

// LenderCriteria holds a lender's eligibility bounds. A nil bound means the
// lender is unconstrained on that dimension; absence is never a hard failure.
type LenderCriteria struct {
	MinCreditScore       *int     `json:"min_credit_score,omitempty"`
	MaxCreditScore       *int     `json:"max_credit_score,omitempty"`
	MinMonthlyRevenue    *float64 `json:"min_monthly_revenue,omitempty"`
	MinDailyBalance      *float64 `json:"min_daily_balance,omitempty"`
	MinTimeInBusiness    *int     `json:"min_time_in_business,omitempty"` // months
	MinFundingAmount     *float64 `json:"min_funding_amount,omitempty"`
	MaxFundingAmount     *float64 `json:"max_funding_amount,omitempty"`
	MaxPosition          *int     `json:"max_position,omitempty"`
	AcceptsExistingLoans *bool    `json:"accepts_existing_loans,omitempty"`
	AcceptsPriorDefaults *bool    `json:"accepts_prior_defaults,omitempty"`
	MaxNegativeDays      *int     `json:"max_negative_days,omitempty"`
	ExcludedStates       []string `json:"excluded_states,omitempty"`
	ExcludedIndustries   []string `json:"excluded_industries,omitempty"`
}

// MatchResult scores one lender against one application. Transient: recomputed
// on every matching request, never persisted as the source of truth.
type MatchResult struct {
	LenderID        int64    `json:"lender_id"`
	LenderName      string   `json:"lender_name,omitempty"`
	MatchScore      int      `json:"match_score"` // 0-100, rounded
	MatchReasons    []string `json:"match_reasons"`
	MismatchReasons []string `json:"mismatch_reasons"`
}
