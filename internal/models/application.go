package models

import "time"

// ApplicationRecord is the canonical structured output of the document
// pipeline: business identity, financials derived from bank statements,
// and risk flags parsed from the funding application.
type ApplicationRecord struct {
	ID                 int64          `json:"id,omitempty"`
	BusinessName       string         `json:"business_name"`
	State              string         `json:"state"` // 2-letter code
	Industry           string         `json:"industry"`
	TimeInBusiness     int            `json:"time_in_business"` // months
	CreditScore        int            `json:"credit_score"`
	AvgDailyBalance    float64        `json:"avg_daily_balance"`
	AvgMonthlyRevenue  float64        `json:"avg_monthly_revenue"`
	FundingRequested   float64        `json:"funding_requested"`
	FundingPurpose     string         `json:"funding_purpose,omitempty"`
	HasExistingLoans   bool           `json:"has_existing_loans"`
	HasPriorDefaults   *bool          `json:"has_prior_defaults,omitempty"`
	NeedsFirstPos      *bool          `json:"needs_first_position,omitempty"`
	NegativeDays       int            `json:"negative_days"`
	NSFs               int            `json:"nsfs"`
	MonthlyDeposits    []float64      `json:"monthly_deposits,omitempty"` // chronological
	DailyBalances      []DailyBalance `json:"daily_balances,omitempty"`
	LargestDeposit     float64        `json:"largest_deposit"`
	DepositConsistency float64        `json:"deposit_consistency"` // 0-100
	EndingBalance      float64        `json:"ending_balance"`
	CreatedAt          time.Time      `json:"created_at,omitempty"`
	UpdatedAt          time.Time      `json:"updated_at,omitempty"`
}

// DailyBalance is one dated balance observation.
type DailyBalance struct {
	Date    time.Time `json:"date"`
	Balance float64   `json:"balance"`
}

// ExtractionProvenance carries pipeline quality metadata alongside an
// ApplicationRecord. It is kept out of the persisted record by construction:
// the reconciler returns it separately and the repository never sees it.
type ExtractionProvenance struct {
	MissingFields      []string `json:"missing_fields,omitempty"`
	RequiresManualEntry bool    `json:"requires_manual_entry"`
	Degraded           bool     `json:"degraded,omitempty"` // synthetic-estimate analysis path
	Error              string   `json:"error,omitempty"`
}

// Required field names evaluated by the reconciler's checklist. A record with
// any of these defaulted must carry RequiresManualEntry until re-saved by a
// human.
const (
	FieldBusinessName      = "businessName"
	FieldCreditScore       = "creditScore"
	FieldAvgDailyBalance   = "avgDailyBalance"
	FieldAvgMonthlyRevenue = "avgMonthlyRevenue"
	FieldTimeInBusiness    = "timeInBusiness"
	FieldState             = "state"
	FieldIndustry          = "industry"
	FieldFundingRequested  = "fundingRequested"
	FieldHasPriorDefaults  = "hasPriorDefaults"
	FieldNeedsFirstPos     = "needsFirstPosition"
)

// Documented defaults substituted for required fields the pipeline could not
// extract. Every substitution is recorded in ExtractionProvenance.
const (
	DefaultBusinessName      = "Unknown Business"
	DefaultCreditScore       = 650
	DefaultAvgDailyBalance   = 5000.0
	DefaultAvgMonthlyRevenue = 25000.0
	DefaultTimeInBusiness    = 24 // months
	DefaultState             = "CA"
	DefaultIndustry          = "Retail"
	DefaultFundingRequested  = 50000.0
)
