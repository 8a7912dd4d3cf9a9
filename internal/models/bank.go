package models

import "time"

// TransactionType classifies a bank statement line.
type TransactionType string

const (
	TransactionCredit TransactionType = "credit"
	TransactionDebit  TransactionType = "debit"
)

// Transaction is one parsed bank statement line. Internal to the analyzer:
// built and discarded within one analysis run, never persisted directly.
type Transaction struct {
	Date        time.Time
	Description string  // lower-cased
	Amount      float64 // non-negative magnitude
	Type        TransactionType
}

// BankAnalysisResult is the analyzer's output for one statement set.
type BankAnalysisResult struct {
	AvgDailyBalance       float64        `json:"avg_daily_balance"`
	AvgMonthlyRevenue     float64        `json:"avg_monthly_revenue"`
	NSFDays               int            `json:"nsf_days"`
	NegativeDays          int            `json:"negative_days"`
	ExistingMCACount      int            `json:"existing_mca_count"`
	RecentFundingDetected bool           `json:"recent_funding_detected"`
	MCALenders            []string       `json:"mca_lenders,omitempty"`
	DepositConsistency    float64        `json:"deposit_consistency"` // 0-100
	TotalDeposits         float64        `json:"total_deposits"`
	LargestDeposit        float64        `json:"largest_deposit"`
	EndingBalance         float64        `json:"ending_balance"`
	MonthlyDeposits       []float64      `json:"monthly_deposits,omitempty"` // chronological
	DailyBalances         []DailyBalance `json:"daily_balances,omitempty"`
	NeedsFirstPosition    bool           `json:"needs_first_position"`
	AnalysisSuccess       bool           `json:"analysis_success"`
	Degraded              bool           `json:"degraded"` // synthetic-estimate fallback produced the numbers
	ErrorMessage          string         `json:"error_message,omitempty"`
}
