package bankanalysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brokerkit/fundmatch/internal/extraction"
)

func txnTable(headers []string, rows ...[]any) *extraction.Table {
	table := &extraction.Table{Headers: headers}
	for _, raw := range rows {
		row := make(extraction.Row, len(headers))
		for i, header := range headers {
			row[header] = raw[i]
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

func TestAnalyzer_Analyze_StructuredDeposits(t *testing.T) {
	analyzer := NewAnalyzer(true, zap.NewNop())

	// Three months, $20,000 of deposits each month.
	table := txnTable(
		[]string{"date", "description", "amount"},
		[]any{"01/05/2024", "customer deposit", 12000.0},
		[]any{"01/20/2024", "customer deposit", 8000.0},
		[]any{"02/05/2024", "customer deposit", 12000.0},
		[]any{"02/20/2024", "customer deposit", 8000.0},
		[]any{"03/05/2024", "customer deposit", 12000.0},
		[]any{"03/20/2024", "customer deposit", 8000.0},
	)

	result := analyzer.Analyze([]SourceDoc{{FileName: "statement.csv", Table: table}})

	require.True(t, result.AnalysisSuccess)
	assert.False(t, result.Degraded)
	assert.InDelta(t, 20000.0, result.AvgMonthlyRevenue, 0.01)
	assert.Equal(t, []float64{20000, 20000, 20000}, result.MonthlyDeposits)
	assert.InDelta(t, 100.0, result.DepositConsistency, 0.01)
	assert.InDelta(t, 60000.0, result.TotalDeposits, 0.01)
	assert.InDelta(t, 12000.0, result.LargestDeposit, 0.01)
}

func TestAnalyzer_Analyze_SingleMonthRevenue(t *testing.T) {
	analyzer := NewAnalyzer(true, zap.NewNop())

	table := txnTable(
		[]string{"date", "description", "amount"},
		[]any{"04/01/2024", "deposit", 10000.0},
		[]any{"04/10/2024", "deposit", 10000.0},
		[]any{"04/20/2024", "deposit", 10000.0},
	)

	result := analyzer.Analyze([]SourceDoc{{FileName: "april.csv", Table: table}})

	require.True(t, result.AnalysisSuccess)
	assert.InDelta(t, 30000.0, result.AvgMonthlyRevenue, 0.01)
	// A single month of data is not inconsistency.
	assert.InDelta(t, 100.0, result.DepositConsistency, 0.01)
}

func TestAnalyzer_Analyze_RunningBalanceColumn(t *testing.T) {
	analyzer := NewAnalyzer(true, zap.NewNop())

	table := txnTable(
		[]string{"date", "description", "amount", "balance"},
		[]any{"05/01/2024", "deposit", 5000.0, 15000.0},
		[]any{"05/02/2024", "rent payment", -3000.0, 12000.0},
		[]any{"05/03/2024", "ach debit vendor", -13000.0, -1000.0},
	)

	result := analyzer.Analyze([]SourceDoc{{FileName: "may.csv", Table: table}})

	require.True(t, result.AnalysisSuccess)
	require.Len(t, result.DailyBalances, 3)
	assert.InDelta(t, -1000.0, result.EndingBalance, 0.01)
	assert.Equal(t, 1, result.NegativeDays)
	assert.InDelta(t, (15000.0+12000.0-1000.0)/3, result.AvgDailyBalance, 0.01)
}

func TestAnalyzer_Analyze_NSFAndMCADetection(t *testing.T) {
	analyzer := NewAnalyzer(true, zap.NewNop())

	table := txnTable(
		[]string{"date", "description", "amount"},
		[]any{"06/01/2024", "deposit", 9000.0},
		[]any{"06/03/2024", "insufficient funds fee", -35.0},
		[]any{"06/04/2024", "overdraft fee", -35.0},
		[]any{"06/05/2024", "ondeck daily payment", -450.0},
		[]any{"06/06/2024", "ondeck daily payment", -450.0},
		[]any{"06/07/2024", "credibly ach payment", -300.0},
	)

	result := analyzer.Analyze([]SourceDoc{{FileName: "june.csv", Table: table}})

	require.True(t, result.AnalysisSuccess)
	assert.Equal(t, 2, result.NSFDays)
	// Distinct matching descriptions, not per-payment counts.
	assert.Equal(t, 2, result.ExistingMCACount)
	assert.Equal(t, []string{"credibly", "ondeck"}, result.MCALenders)
	assert.False(t, result.NeedsFirstPosition)
	assert.False(t, result.RecentFundingDetected)
}

func TestAnalyzer_Analyze_RecentFundingAndRefinance(t *testing.T) {
	analyzer := NewAnalyzer(true, zap.NewNop())

	table := txnTable(
		[]string{"date", "description", "amount"},
		[]any{"07/01/2024", "forward financing funding credit", 40000.0},
		[]any{"07/05/2024", "forward financing daily payment", -500.0},
		[]any{"07/10/2024", "loan payoff wire", -10000.0},
	)

	result := analyzer.Analyze([]SourceDoc{{FileName: "july.csv", Table: table}})

	require.True(t, result.AnalysisSuccess)
	assert.True(t, result.RecentFundingDetected)
	assert.Equal(t, 1, result.ExistingMCACount)
	// Refinance intent means first position is still on the table.
	assert.True(t, result.NeedsFirstPosition)
}

func TestAnalyzer_Analyze_TextStatement(t *testing.T) {
	analyzer := NewAnalyzer(true, zap.NewNop())

	text := `Chase Business Checking
01/05/2024  remote online deposit       4,500.00   12,300.00
01/08/2024  card purchase amazon         -120.50   12,179.50
01/12/2024  zelle payment from acme     2,000.00   14,179.50`

	result := analyzer.Analyze([]SourceDoc{{FileName: "chase_jan.pdf", Text: text}})

	require.True(t, result.AnalysisSuccess)
	assert.False(t, result.Degraded)
	assert.InDelta(t, 6500.0, result.TotalDeposits, 0.01)
	require.NotEmpty(t, result.DailyBalances)
	assert.InDelta(t, 14179.50, result.EndingBalance, 0.01)
}

func TestAnalyzer_Analyze_BalanceOnlyStatement(t *testing.T) {
	analyzer := NewAnalyzer(true, zap.NewNop())

	// No transaction lines at all, only dated balances.
	text := `As of 01/15/2024 ending balance was $5,000.00
As of 01/16/2024 ending balance was $6,000.00`

	result := analyzer.Analyze([]SourceDoc{{FileName: "statement.pdf", Text: text}})

	require.True(t, result.AnalysisSuccess)
	assert.False(t, result.Degraded, "measured balances must win over the synthetic estimate")
	require.Len(t, result.DailyBalances, 2)
	assert.InDelta(t, 5500.0, result.AvgDailyBalance, 0.01)
	assert.InDelta(t, 6000.0, result.EndingBalance, 0.01)
}

func TestAnalyzer_Analyze_BankNSFPhrasing(t *testing.T) {
	analyzer := NewAnalyzer(true, zap.NewNop())

	// "od protection" is Bank of America phrasing only; the generic keyword
	// list does not contain it.
	text := `Bank of America Business Advantage
01/10/2024  od protection transfer fee     -35.00   1,200.00
01/12/2024  counter credit               3,000.00   4,200.00`

	result := analyzer.Analyze([]SourceDoc{{FileName: "bofa_jan.pdf", Text: text}})

	require.True(t, result.AnalysisSuccess)
	assert.Equal(t, 1, result.NSFDays)
	assert.InDelta(t, 3000.0, result.TotalDeposits, 0.01)
}

func TestAnalyzer_Analyze_PeriodBoundsBalances(t *testing.T) {
	analyzer := NewAnalyzer(true, zap.NewNop())

	// The 03/15 balance falls outside the stated January period and is a
	// footer artifact, not a daily balance.
	text := `Chase Business Checking
January 1, 2024 through January 31, 2024
01/05/2024  remote online deposit    4,500.00   12,300.00
03/15/2024  ending balance snapshot      0.50    9,999.99`

	result := analyzer.Analyze([]SourceDoc{{FileName: "chase_jan.pdf", Text: text}})

	require.True(t, result.AnalysisSuccess)
	require.Len(t, result.DailyBalances, 1)
	assert.InDelta(t, 12300.0, result.EndingBalance, 0.01)
}

func TestAnalyzer_Analyze_SyntheticEstimate(t *testing.T) {
	analyzer := NewAnalyzer(true, zap.NewNop())
	analyzer.now = func() time.Time { return time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC) }

	// Dollar tokens but nothing parseable as dated transactions.
	text := "Account summary. Typical balance around 4,000.00 with activity near 6,000.00 monthly."

	result := analyzer.Analyze([]SourceDoc{{FileName: "summary.pdf", Text: text}})

	require.True(t, result.AnalysisSuccess)
	assert.True(t, result.Degraded)
	// Median of the two tokens as the balance, double the mean as the deposit.
	assert.InDelta(t, 5000.0, result.AvgDailyBalance, 0.01)
	assert.InDelta(t, 10000.0, result.AvgMonthlyRevenue, 0.01)
}

func TestAnalyzer_Analyze_SyntheticDisabled(t *testing.T) {
	analyzer := NewAnalyzer(false, zap.NewNop())

	result := analyzer.Analyze([]SourceDoc{{FileName: "summary.pdf", Text: "balance around 4,000.00"}})

	assert.False(t, result.AnalysisSuccess)
	assert.NotEmpty(t, result.ErrorMessage)
}

func TestAnalyzer_Analyze_NoDocuments(t *testing.T) {
	analyzer := NewAnalyzer(true, zap.NewNop())

	result := analyzer.Analyze(nil)

	assert.False(t, result.AnalysisSuccess)
	assert.InDelta(t, FallbackAvgDailyBalance, result.AvgDailyBalance, 0.01)
	assert.InDelta(t, FallbackAvgMonthlyRevenue, result.AvgMonthlyRevenue, 0.01)
	assert.InDelta(t, FallbackDepositConsistency, result.DepositConsistency, 0.01)
	assert.True(t, result.NeedsFirstPosition)
	assert.NotEmpty(t, result.ErrorMessage)
}

func TestDepositConsistency(t *testing.T) {
	tests := []struct {
		name     string
		deposits []float64
		expected float64
	}{
		{name: "identical months", deposits: []float64{20000, 20000, 20000}, expected: 100},
		{name: "single month", deposits: []float64{12000}, expected: 100},
		{name: "empty", deposits: nil, expected: 100},
		{name: "all zero months", deposits: []float64{0, 0}, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, depositConsistency(tt.deposits), 0.01)
		})
	}

	// Variation lowers the score but stays within bounds.
	varied := depositConsistency([]float64{10000, 20000, 30000})
	assert.Greater(t, varied, 0.0)
	assert.Less(t, varied, 100.0)
}

func TestParseFlexibleDate(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected time.Time
		ok       bool
	}{
		{name: "US slash", raw: "01/15/2024", expected: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), ok: true},
		{name: "US dash", raw: "01-15-2024", expected: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), ok: true},
		{name: "ISO", raw: "2024-01-15", expected: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), ok: true},
		{name: "day first when over twelve", raw: "15/01/2024", expected: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), ok: true},
		{name: "two digit year", raw: "01/15/24", expected: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), ok: true},
		{name: "long form", raw: "Jan 15, 2024", expected: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), ok: true},
		{name: "garbage", raw: "not a date", ok: false},
		{name: "empty", raw: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, ok := parseFlexibleDate(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, parsed)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected float64
		ok       bool
	}{
		{name: "plain", raw: "1234.56", expected: 1234.56, ok: true},
		{name: "dollar and commas", raw: "$1,234.56", expected: 1234.56, ok: true},
		{name: "leading minus", raw: "-500.00", expected: -500, ok: true},
		{name: "parenthesized negative", raw: "(500.00)", expected: -500, ok: true},
		{name: "parenthesized with dollar", raw: "($1,500.00)", expected: -1500, ok: true},
		{name: "empty", raw: "", ok: false},
		{name: "words", raw: "void", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, ok := parseAmount(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.expected, amount, 0.001)
			}
		})
	}
}

func TestIdentifyBank(t *testing.T) {
	assert.Equal(t, "Chase", identifyBank("chase_statement.pdf", "").Name)
	assert.Equal(t, "Bank of America", identifyBank("stmt.pdf", "Bank of America Business Advantage").Name)
	assert.Equal(t, "Wells Fargo", identifyBank("wellsfargo-march.pdf", "").Name)
	assert.Equal(t, "Generic", identifyBank("statement.pdf", "First National Bank of Springfield").Name)
}
