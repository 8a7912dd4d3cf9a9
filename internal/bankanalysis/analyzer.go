// Package bankanalysis derives a financial profile (balances, revenue, NSF
// activity, existing advances) from bank statement text or tabular rows.
package bankanalysis

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/brokerkit/fundmatch/internal/extraction"
	"github.com/brokerkit/fundmatch/internal/models"
)

// minTransactionsForTable is the threshold below which the table-like path is
// considered to have failed and regex passes take over.
const minTransactionsForTable = 10

// Constants reported when analysis fails outright. Callers surface the run as
// needing manual review; these exist so downstream consumers never receive a
// null financial profile.
const (
	FallbackAvgDailyBalance    = 5000.0
	FallbackAvgMonthlyRevenue  = 25000.0
	FallbackDepositConsistency = 50.0
)

// SourceDoc is one extracted statement document.
type SourceDoc struct {
	FileName string
	Method   string // extraction method that produced it
	Text     string
	Table    *extraction.Table
}

// Analyzer turns statement documents into a BankAnalysisResult.
type Analyzer struct {
	syntheticFallback bool
	logger            *zap.Logger
	now               func() time.Time
}

// NewAnalyzer creates a bank statement analyzer. syntheticFallback permits
// the lossy estimate path when nothing parseable is found.
func NewAnalyzer(syntheticFallback bool, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		syntheticFallback: syntheticFallback,
		logger:            logger,
		now:               time.Now,
	}
}

// accumulator collects per-run state. Owned by a single analysis run; the
// docs were already merged in deterministic order by the caller.
type accumulator struct {
	balances        map[string]float64 // date key -> last balance seen that day
	balanceDates    map[string]time.Time
	transactions    []models.Transaction
	monthlyDeposits map[string]float64 // YYYY-MM -> deposit total
	seen            map[string]bool    // regex-pass dedupe
	nsfMatchers     []*regexp.Regexp   // bank-specific NSF phrasings seen this run
}

func newAccumulator() *accumulator {
	return &accumulator{
		balances:        make(map[string]float64),
		balanceDates:    make(map[string]time.Time),
		monthlyDeposits: make(map[string]float64),
		seen:            make(map[string]bool),
	}
}

func (acc *accumulator) addBalance(date time.Time, balance float64) {
	key := dateKey(date)
	acc.balances[key] = balance // last value wins for a calendar date
	acc.balanceDates[key] = date
}

func (acc *accumulator) addTransaction(txn models.Transaction, dedupe bool) {
	if dedupe {
		key := fmt.Sprintf("%s|%.2f|%s|%.20s", dateKey(txn.Date), txn.Amount, txn.Type, txn.Description)
		if acc.seen[key] {
			return
		}
		acc.seen[key] = true
	}
	acc.transactions = append(acc.transactions, txn)
	if txn.Type == models.TransactionCredit && !txn.Date.IsZero() {
		acc.monthlyDeposits[monthKey(txn.Date)] += txn.Amount
	}
}

func (acc *accumulator) addNSFMatcher(pattern *regexp.Regexp) {
	for _, existing := range acc.nsfMatchers {
		if existing == pattern {
			return
		}
	}
	acc.nsfMatchers = append(acc.nsfMatchers, pattern)
}

// matchesNSF checks a debit description against the NSF phrasings of the
// banks identified during this run.
func (acc *accumulator) matchesNSF(description string) bool {
	for _, pattern := range acc.nsfMatchers {
		if pattern.MatchString(description) {
			return true
		}
	}
	return false
}

// pruneBalances drops dated balances outside the statement period. Guards
// against balances anchored to header or footer dates.
func (acc *accumulator) pruneBalances(start, end time.Time) {
	for key, date := range acc.balanceDates {
		if date.Before(start) || date.After(end) {
			delete(acc.balances, key)
			delete(acc.balanceDates, key)
		}
	}
}

// merge folds another accumulator's findings in, deduplicating transactions
// against what is already present.
func (acc *accumulator) merge(other *accumulator) {
	for key, balance := range other.balances {
		acc.balances[key] = balance
		acc.balanceDates[key] = other.balanceDates[key]
	}
	for _, txn := range other.transactions {
		acc.addTransaction(txn, true)
	}
}

// Analyze processes statement documents in the given order and derives the
// financial profile. Any internal panic is converted to a failed result with
// documented constants; nothing propagates to the caller.
func (a *Analyzer) Analyze(docs []SourceDoc) (result models.BankAnalysisResult) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Bank analysis panicked", zap.Any("panic", r))
			result = a.failedResult(fmt.Sprintf("internal analysis error: %v", r))
		}
	}()

	if len(docs) == 0 {
		return a.failedResult("no bank statement documents provided")
	}

	acc := newAccumulator()
	degraded := false

	for _, doc := range docs {
		bank := identifyBank(doc.FileName, doc.Text)
		a.logger.Debug("Identified bank pattern set",
			zap.String("file", doc.FileName),
			zap.String("bank", bank.Name))

		if doc.Table != nil && len(doc.Table.Rows) > 0 {
			a.processTable(acc, doc.Table)
		} else {
			a.processText(acc, doc.Text, bank)
		}
	}

	if len(acc.transactions) == 0 && len(acc.balances) == 0 {
		if !a.syntheticFallback {
			return a.failedResult("no transactions or balances found")
		}
		if !a.applySyntheticEstimate(acc, docs) {
			return a.failedResult("no transactions or balances found")
		}
		degraded = true
	}

	result = a.deriveMetrics(acc)
	result.AnalysisSuccess = true
	result.Degraded = degraded

	if degraded {
		a.logger.Warn("Bank analysis degraded to synthetic estimate",
			zap.Float64("avg_daily_balance", result.AvgDailyBalance),
			zap.Float64("avg_monthly_revenue", result.AvgMonthlyRevenue))
	} else {
		a.logger.Info("Bank analysis completed",
			zap.Int("transactions", len(acc.transactions)),
			zap.Int("dated_balances", len(acc.balances)),
			zap.Float64("avg_monthly_revenue", result.AvgMonthlyRevenue))
	}

	return result
}

// Column synonym lists for the structured path, tried in order.
var (
	dateColumns        = []string{"date", "posting date", "transaction date", "post date", "posted"}
	amountColumns      = []string{"amount", "transaction amount", "amt", "value"}
	descriptionColumns = []string{"description", "details", "memo", "narrative", "transaction"}
	balanceColumns     = []string{"balance", "running balance", "ending balance", "current balance"}
	typeColumns        = []string{"type", "transaction type", "cr/dr", "dr/cr", "credit/debit"}
)

// findColumn fuzzy-matches headers against a synonym list.
func findColumn(headers []string, synonyms []string) string {
	for _, synonym := range synonyms {
		for _, header := range headers {
			if header == synonym {
				return header
			}
		}
	}
	for _, synonym := range synonyms {
		for _, header := range headers {
			if strings.Contains(header, synonym) || strings.Contains(synonym, header) {
				return header
			}
		}
	}
	return ""
}

func cellString(row extraction.Row, column string) string {
	if column == "" {
		return ""
	}
	switch v := row[column].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%v", v)
	default:
		return ""
	}
}

func cellAmount(row extraction.Row, column string) (float64, bool) {
	if column == "" {
		return 0, false
	}
	switch v := row[column].(type) {
	case float64:
		return v, true
	case string:
		return parseAmount(v)
	default:
		return 0, false
	}
}

// processTable runs the structured-data path over CSV/spreadsheet rows.
func (a *Analyzer) processTable(acc *accumulator, table *extraction.Table) {
	dateCol := findColumn(table.Headers, dateColumns)
	amountCol := findColumn(table.Headers, amountColumns)
	descCol := findColumn(table.Headers, descriptionColumns)
	balanceCol := findColumn(table.Headers, balanceColumns)
	typeCol := findColumn(table.Headers, typeColumns)

	if dateCol == "" || amountCol == "" {
		a.logger.Warn("Table missing date or amount column, skipping structured path",
			zap.Strings("headers", table.Headers))
		return
	}

	for _, row := range table.Rows {
		date, ok := parseFlexibleDate(cellString(row, dateCol))
		if !ok {
			continue
		}
		amount, ok := cellAmount(row, amountCol)
		if !ok {
			continue
		}

		if balance, ok := cellAmount(row, balanceCol); ok {
			acc.addBalance(date, balance)
		}

		description := strings.ToLower(strings.TrimSpace(cellString(row, descCol)))
		txnType := classify(amount, cellString(row, typeCol))

		acc.addTransaction(models.Transaction{
			Date:        date,
			Description: description,
			Amount:      math.Abs(amount),
			Type:        txnType,
		}, false)
	}
}

// classify decides credit vs debit by a type-column keyword, falling back to
// the amount's sign.
func classify(amount float64, typeCell string) models.TransactionType {
	switch t := strings.ToLower(strings.TrimSpace(typeCell)); {
	case t == "credit" || t == "cr" || t == "deposit":
		return models.TransactionCredit
	case t == "debit" || t == "dr" || t == "withdrawal":
		return models.TransactionDebit
	}
	if amount < 0 {
		return models.TransactionDebit
	}
	return models.TransactionCredit
}

var (
	// date + description + amount, one transaction per line
	lineTxnPattern = regexp.MustCompile(`(?m)^\s*(\d{1,2}[/-]\d{1,2}(?:[/-]\d{2,4})?)\s+(.{3,80}?)\s+\(?\$?\s*(-?[\d,]+\.\d{2})\)?\s*$`)
	// any date token, for anchoring bank-specific matches
	anyDatePattern = regexp.MustCompile(`\d{1,2}[/-]\d{1,2}(?:[/-]\d{2,4})?|\d{4}-\d{2}-\d{2}`)
	// any dollar-amount-looking token, for the synthetic estimate
	dollarTokenPattern = regexp.MustCompile(`\$?\s*([\d,]{1,12}\.\d{2})`)
)

// processText runs the unstructured-data path: table-like line clustering
// first, then line-level regex, then bank-specific patterns anchored to a
// nearby date. Each pass parses into its own candidate; the first pass that
// clears the transaction threshold wins, otherwise the richest candidate
// does. Passes re-read the same lines with different boundaries, so merging
// them would double-count.
func (a *Analyzer) processText(acc *accumulator, text string, bank BankPatterns) {
	if text == "" {
		return
	}
	acc.addNSFMatcher(bank.NSF)

	passes := []func(*accumulator, string){
		a.processClusteredLines,
		a.processLineRegex,
		func(dst *accumulator, s string) { a.processBankPatterns(dst, s, bank) },
	}

	var best *accumulator
	for _, pass := range passes {
		candidate := newAccumulator()
		pass(candidate, text)
		if len(candidate.transactions) >= minTransactionsForTable {
			best = candidate
			break
		}
		if best == nil || richer(candidate, best) {
			best = candidate
		}
	}

	if start, end, ok := statementPeriod(text, bank); ok {
		best.pruneBalances(start, end)
	}
	acc.merge(best)
}

// richer orders candidates by measured transactions, then by dated balances,
// so a balance-only statement keeps its balances instead of losing a tie to
// an empty pass.
func richer(a, b *accumulator) bool {
	if len(a.transactions) != len(b.transactions) {
		return len(a.transactions) > len(b.transactions)
	}
	return len(a.balances) > len(b.balances)
}

// statementPeriod extracts the statement's covering date range, if the bank's
// period pattern finds one.
func statementPeriod(text string, bank BankPatterns) (time.Time, time.Time, bool) {
	m := bank.Period.FindStringSubmatch(text)
	if len(m) < 3 {
		return time.Time{}, time.Time{}, false
	}
	start, okStart := parseFlexibleDate(m[1])
	end, okEnd := parseFlexibleDate(m[2])
	if !okStart || !okEnd || end.Before(start) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// processClusteredLines treats runs of 2+ spaces as column breaks, the
// text-layer analogue of position-clustered table rows.
func (a *Analyzer) processClusteredLines(acc *accumulator, text string) {
	splitter := regexp.MustCompile(`\s{2,}|\t+`)

	for _, line := range strings.Split(text, "\n") {
		fields := splitter.Split(strings.TrimSpace(line), -1)
		if len(fields) < 3 {
			continue
		}

		date, ok := parseFlexibleDate(fields[0])
		if !ok {
			continue
		}

		// Last numeric field may be a running balance; the one before it is
		// then the amount.
		last, lastOK := parseAmount(fields[len(fields)-1])
		if !lastOK {
			continue
		}

		amount := last
		descEnd := len(fields) - 1
		if prev, ok := parseAmount(fields[len(fields)-2]); ok && len(fields) >= 4 {
			amount = prev
			descEnd = len(fields) - 2
			acc.addBalance(date, last)
		}

		description := strings.ToLower(strings.Join(fields[1:descEnd], " "))
		acc.addTransaction(models.Transaction{
			Date:        date,
			Description: description,
			Amount:      math.Abs(amount),
			Type:        classify(amount, ""),
		}, true)
	}
}

// processLineRegex matches date+description+amount triples line by line.
func (a *Analyzer) processLineRegex(acc *accumulator, text string) {
	for _, m := range lineTxnPattern.FindAllStringSubmatch(text, -1) {
		date, ok := parseFlexibleDate(m[1])
		if !ok {
			continue
		}
		amount, ok := parseAmount(m[3])
		if !ok {
			continue
		}
		acc.addTransaction(models.Transaction{
			Date:        date,
			Description: strings.ToLower(strings.TrimSpace(m[2])),
			Amount:      math.Abs(amount),
			Type:        classify(amount, ""),
		}, true)
	}
}

// dateWindow is how far back (in characters) a bank-specific match looks for
// its anchoring date.
const dateWindow = 120

// processBankPatterns applies the bank's deposit/withdrawal/balance regexes,
// anchoring each match to the closest date in the preceding text window.
func (a *Analyzer) processBankPatterns(acc *accumulator, text string, bank BankPatterns) {
	anchor := func(end int) (time.Time, bool) {
		start := end - dateWindow
		if start < 0 {
			start = 0
		}
		dates := anyDatePattern.FindAllString(text[start:end], -1)
		if len(dates) == 0 {
			return time.Time{}, false
		}
		return parseFlexibleDate(dates[len(dates)-1])
	}

	apply := func(pattern *regexp.Regexp, txnType models.TransactionType) {
		for _, loc := range pattern.FindAllStringSubmatchIndex(text, -1) {
			if len(loc) < 4 {
				continue
			}
			amount, ok := parseAmount(text[loc[2]:loc[3]])
			if !ok {
				continue
			}
			date, ok := anchor(loc[0])
			if !ok {
				continue
			}
			description := strings.ToLower(strings.TrimSpace(text[loc[0]:min(loc[1], loc[0]+80)]))
			acc.addTransaction(models.Transaction{
				Date:        date,
				Description: description,
				Amount:      math.Abs(amount),
				Type:        txnType,
			}, true)
		}
	}

	apply(bank.Deposit, models.TransactionCredit)
	apply(bank.Withdrawal, models.TransactionDebit)

	for _, loc := range bank.Balance.FindAllStringSubmatchIndex(text, -1) {
		if len(loc) < 4 {
			continue
		}
		balance, ok := parseAmount(text[loc[2]:loc[3]])
		if !ok {
			continue
		}
		if date, ok := anchor(loc[0]); ok {
			acc.addBalance(date, balance)
		}
	}
}

// applySyntheticEstimate builds a lossy single-balance, single-deposit
// profile from bare dollar tokens: median token as the daily balance, one
// deposit at double the mean. Reported as degraded, never as measured fact.
func (a *Analyzer) applySyntheticEstimate(acc *accumulator, docs []SourceDoc) bool {
	var values []float64
	for _, doc := range docs {
		for _, m := range dollarTokenPattern.FindAllStringSubmatch(doc.Text, -1) {
			if v, ok := parseAmount(m[1]); ok && v > 0 {
				values = append(values, v)
			}
		}
	}
	if len(values) == 0 {
		return false
	}

	sort.Float64s(values)
	median := values[len(values)/2]
	if len(values)%2 == 0 {
		median = (values[len(values)/2-1] + values[len(values)/2]) / 2
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	today := a.now().UTC().Truncate(24 * time.Hour)
	acc.addBalance(today, median)
	acc.addTransaction(models.Transaction{
		Date:        today,
		Description: "estimated deposit (synthetic)",
		Amount:      mean * 2,
		Type:        models.TransactionCredit,
	}, false)

	return true
}

// deriveMetrics computes the result fields from the accumulated state.
func (a *Analyzer) deriveMetrics(acc *accumulator) models.BankAnalysisResult {
	result := models.BankAnalysisResult{}

	// Dated balances, chronological.
	keys := make([]string, 0, len(acc.balances))
	for key := range acc.balances {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		result.DailyBalances = append(result.DailyBalances, models.DailyBalance{
			Date:    acc.balanceDates[key],
			Balance: acc.balances[key],
		})
		if acc.balances[key] < 0 {
			result.NegativeDays++
		}
	}

	// Average daily balance: most recent 30 when available, else all.
	if n := len(result.DailyBalances); n > 0 {
		window := result.DailyBalances
		if n >= 30 {
			window = window[n-30:]
		}
		var sum float64
		for _, db := range window {
			sum += db.Balance
		}
		result.AvgDailyBalance = sum / float64(len(window))
		result.EndingBalance = result.DailyBalances[n-1].Balance
	}

	// Monthly deposits, chronological.
	monthKeys := make([]string, 0, len(acc.monthlyDeposits))
	for key := range acc.monthlyDeposits {
		monthKeys = append(monthKeys, key)
	}
	sort.Strings(monthKeys)
	for _, key := range monthKeys {
		result.MonthlyDeposits = append(result.MonthlyDeposits, acc.monthlyDeposits[key])
	}

	// Revenue: prefer the per-month map; otherwise span the deposit list.
	var firstDeposit, lastDeposit time.Time
	for _, txn := range acc.transactions {
		if txn.Type != models.TransactionCredit {
			continue
		}
		result.TotalDeposits += txn.Amount
		if txn.Amount > result.LargestDeposit {
			result.LargestDeposit = txn.Amount
		}
		if firstDeposit.IsZero() || txn.Date.Before(firstDeposit) {
			firstDeposit = txn.Date
		}
		if txn.Date.After(lastDeposit) {
			lastDeposit = txn.Date
		}
	}
	if len(monthKeys) > 0 {
		var total float64
		for _, key := range monthKeys {
			total += acc.monthlyDeposits[key]
		}
		result.AvgMonthlyRevenue = total / float64(len(monthKeys))
	} else if result.TotalDeposits > 0 {
		months := monthsBetween(firstDeposit, lastDeposit)
		result.AvgMonthlyRevenue = result.TotalDeposits / float64(months)
	}

	// NSF and existing-MCA detection over debit descriptions.
	mcaSeen := make(map[string]bool)
	mcaDescriptions := make(map[string]bool)
	refinanceIntent := false
	for _, txn := range acc.transactions {
		if containsAny(txn.Description, refinanceKeywords) {
			refinanceIntent = true
		}
		if txn.Type == models.TransactionCredit {
			if matchMCALender(txn.Description) != "" {
				result.RecentFundingDetected = true
			}
			continue
		}
		if containsAny(txn.Description, nsfKeywords) || acc.matchesNSF(txn.Description) {
			result.NSFDays++
		}
		if lender := matchMCALender(txn.Description); lender != "" {
			mcaSeen[lender] = true
			mcaDescriptions[txn.Description] = true
		}
	}
	result.ExistingMCACount = len(mcaDescriptions)
	for lender := range mcaSeen {
		result.MCALenders = append(result.MCALenders, lender)
	}
	sort.Strings(result.MCALenders)

	// First position: no existing advances, or refinance intent to replace
	// them rather than stack.
	result.NeedsFirstPosition = result.ExistingMCACount == 0 || refinanceIntent

	result.DepositConsistency = depositConsistency(result.MonthlyDeposits)

	return result
}

// monthsBetween returns the span in months, minimum 1.
func monthsBetween(first, last time.Time) int {
	if first.IsZero() || last.IsZero() || !last.After(first) {
		return 1
	}
	months := (last.Year()-first.Year())*12 + int(last.Month()) - int(first.Month())
	if months < 1 {
		return 1
	}
	return months
}

// depositConsistency is coefficient-of-variation based:
// max(0, min(100, 100*(1 - stdDev/mean))). Fewer than 2 months of data is
// 100: insufficient data is not inconsistency.
func depositConsistency(monthlyDeposits []float64) float64 {
	if len(monthlyDeposits) < 2 {
		return 100
	}

	var sum float64
	for _, v := range monthlyDeposits {
		sum += v
	}
	mean := sum / float64(len(monthlyDeposits))
	if mean == 0 {
		return 0
	}

	var variance float64
	for _, v := range monthlyDeposits {
		variance += (v - mean) * (v - mean)
	}
	stdDev := math.Sqrt(variance / float64(len(monthlyDeposits)))

	consistency := 100 * (1 - stdDev/mean)
	return math.Max(0, math.Min(100, consistency))
}

func (a *Analyzer) failedResult(message string) models.BankAnalysisResult {
	a.logger.Warn("Bank analysis failed", zap.String("reason", message))
	return models.BankAnalysisResult{
		AvgDailyBalance:    FallbackAvgDailyBalance,
		AvgMonthlyRevenue:  FallbackAvgMonthlyRevenue,
		DepositConsistency: FallbackDepositConsistency,
		NeedsFirstPosition: true,
		AnalysisSuccess:    false,
		ErrorMessage:       message,
	}
}
