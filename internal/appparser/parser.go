// Package appparser extracts funding application fields from free text with
// ordered regex cascades. A field that no pattern matches is left nil; absence
// is aggregated by the reconciler, never treated as an error here.
package appparser

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// maxBusinessAgeYears rejects implausible "established in" years.
const maxBusinessAgeYears = 150

// ParsedApplication holds the fields recovered from application text. Nil
// means the field could not be confidently extracted.
type ParsedApplication struct {
	BusinessName     *string
	CreditScore      *int
	State            *string
	Industry         *string
	TimeInBusiness   *int // months
	FundingRequested *float64
	FundingPurpose   *string
	HasExistingLoans *bool
	HasPriorDefaults *bool
	NeedsFirstPos    *bool
}

// Pattern cascades per field, most specific first; first match wins.
var (
	businessNamePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?im)^\s*(?:legal\s*)?business\s*name\s*[:\-]\s*(.+?)\s*$`),
		regexp.MustCompile(`(?im)^\s*company\s*(?:name)?\s*[:\-]\s*(.+?)\s*$`),
		regexp.MustCompile(`(?im)^\s*(?:dba|merchant)\s*[:\-]\s*(.+?)\s*$`),
	}

	creditScorePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)credit\s*score\s*[:\-]?\s*(\d{3})`),
		regexp.MustCompile(`(?i)fico(?:\s*score)?\s*[:\-]?\s*(\d{3})`),
	}

	statePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?im)^\s*(?:business\s*)?state\s*[:\-]\s*([A-Za-z][A-Za-z .]*?)\s*$`),
		regexp.MustCompile(`(?i)state\s*of\s*(?:incorporation|formation)\s*[:\-]?\s*([A-Za-z][A-Za-z .]*)`),
		regexp.MustCompile(`(?i),\s*([A-Z]{2})\s+\d{5}(?:-\d{4})?`), // city, ST zip
	}

	industryPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?im)^\s*industry\s*[:\-]\s*(.+?)\s*$`),
		regexp.MustCompile(`(?im)^\s*(?:business\s*)?type\s*of\s*business\s*[:\-]\s*(.+?)\s*$`),
		regexp.MustCompile(`(?im)^\s*business\s*type\s*[:\-]\s*(.+?)\s*$`),
	}

	timeYearsPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)time\s*in\s*business\s*[:\-]?\s*(\d+(?:\.\d+)?)\s*(?:\+\s*)?years?`),
		regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*years?\s*in\s*business`),
		regexp.MustCompile(`(?i)in\s*business\s*(?:for\s*)?(\d+(?:\.\d+)?)\s*years?`),
	}

	timeMonthsPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)time\s*in\s*business\s*[:\-]?\s*(\d+)\s*months?`),
		regexp.MustCompile(`(?i)(\d+)\s*months?\s*in\s*business`),
	}

	establishedPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)established\s*(?:in\s*)?[:\-]?\s*(\d{4})`),
		regexp.MustCompile(`(?i)founded\s*(?:in\s*)?[:\-]?\s*(\d{4})`),
		regexp.MustCompile(`(?i)in\s*business\s*since\s*[:\-]?\s*(\d{4})`),
	}

	fundingAmountPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)funding\s*(?:requested|amount|needed)\s*[:\-]?\s*\$?\s*([\d,]+(?:\.\d+)?)`),
		regexp.MustCompile(`(?i)(?:requested|desired|loan|advance)\s*amount\s*[:\-]?\s*\$?\s*([\d,]+(?:\.\d+)?)`),
		regexp.MustCompile(`(?i)(?:requesting|seeking)\s*\$\s*([\d,]+(?:\.\d+)?)`),
	}

	fundingPurposePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?im)^\s*(?:funding\s*)?purpose(?:\s*of\s*funds)?\s*[:\-]\s*(.+?)\s*$`),
		regexp.MustCompile(`(?im)^\s*use\s*of\s*funds\s*[:\-]\s*(.+?)\s*$`),
	}

	existingLoansPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)existing\s*(?:loans?|advances?|mcas?|positions?)\s*\??\s*[:\-]?\s*(yes|no|true|false|y|n)\b`),
		regexp.MustCompile(`(?i)(?:current|outstanding)\s*(?:loans?|advances?)\s*\??\s*[:\-]?\s*(yes|no|true|false|y|n)\b`),
	}

	priorDefaultsPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)prior\s*defaults?\s*\??\s*[:\-]?\s*(yes|no|true|false|y|n)\b`),
		regexp.MustCompile(`(?i)defaulted\s*(?:before|previously)?\s*\??\s*[:\-]?\s*(yes|no|true|false|y|n)\b`),
	}

	firstPositionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)first\s*position\s*(?:needed|required|only)?\s*\??\s*[:\-]?\s*(yes|no|true|false|y|n)\b`),
		regexp.MustCompile(`(?i)needs?\s*first\s*position\s*\??\s*[:\-]?\s*(yes|no|true|false|y|n)\b`),
	}
)

// Parser extracts application fields from free text.
type Parser struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewParser creates a new application field parser.
func NewParser(logger *zap.Logger) *Parser {
	return &Parser{logger: logger, now: time.Now}
}

// Parse extracts every field it can from text. fallbackName is the source
// filename, used to derive a business name when no in-text pattern matches.
func (p *Parser) Parse(text, fallbackName string) ParsedApplication {
	var parsed ParsedApplication

	if name := firstMatch(businessNamePatterns, text); name != "" {
		parsed.BusinessName = &name
	} else if fallback := nameFromFilename(fallbackName); fallback != "" {
		parsed.BusinessName = &fallback
	}

	if raw := firstMatch(creditScorePatterns, text); raw != "" {
		if score, err := strconv.Atoi(raw); err == nil && score >= 300 && score <= 850 {
			parsed.CreditScore = &score
		}
	}

	if raw := firstMatch(statePatterns, text); raw != "" {
		if code := NormalizeState(raw); code != "" {
			parsed.State = &code
		}
	}

	if raw := firstMatch(industryPatterns, text); raw != "" {
		industry := MatchIndustry(raw)
		if industry == "" {
			industry = strings.TrimSpace(raw)
		}
		parsed.Industry = &industry
	} else if industry := MatchIndustry(text); industry != "" {
		// No labeled field; fall back to vocabulary scan of the whole text.
		parsed.Industry = &industry
	}

	parsed.TimeInBusiness = p.parseTimeInBusiness(text)

	if raw := firstMatch(fundingAmountPatterns, text); raw != "" {
		if amount := parseCurrency(raw); amount != nil && *amount > 0 {
			parsed.FundingRequested = amount
		}
	}

	if purpose := firstMatch(fundingPurposePatterns, text); purpose != "" {
		parsed.FundingPurpose = &purpose
	}

	parsed.HasExistingLoans = parseBool(firstMatch(existingLoansPatterns, text))
	parsed.HasPriorDefaults = parseBool(firstMatch(priorDefaultsPatterns, text))
	parsed.NeedsFirstPos = parseBool(firstMatch(firstPositionPatterns, text))

	p.logger.Debug("Parsed application text",
		zap.Bool("has_name", parsed.BusinessName != nil),
		zap.Bool("has_credit_score", parsed.CreditScore != nil),
		zap.Bool("has_state", parsed.State != nil),
		zap.Bool("has_funding", parsed.FundingRequested != nil))

	return parsed
}

// parseTimeInBusiness tries "N years", then "N months", then "established in
// YYYY". Future or implausibly old established years leave the field unparsed.
func (p *Parser) parseTimeInBusiness(text string) *int {
	if raw := firstMatch(timeYearsPatterns, text); raw != "" {
		if years, err := strconv.ParseFloat(raw, 64); err == nil && years >= 0 {
			months := int(years * 12)
			return &months
		}
	}
	if raw := firstMatch(timeMonthsPatterns, text); raw != "" {
		if months, err := strconv.Atoi(raw); err == nil && months >= 0 {
			return &months
		}
	}
	if raw := firstMatch(establishedPatterns, text); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			return nil
		}
		currentYear := p.now().Year()
		if year > currentYear || currentYear-year > maxBusinessAgeYears {
			p.logger.Warn("Implausible established year, leaving time in business unparsed",
				zap.Int("year", year))
			return nil
		}
		months := (currentYear - year) * 12
		return &months
	}
	return nil
}

// firstMatch returns the first capture group of the first pattern that hits.
func firstMatch(patterns []*regexp.Regexp, text string) string {
	for _, pattern := range patterns {
		if m := pattern.FindStringSubmatch(text); len(m) > 1 {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// parseCurrency strips thousands separators and currency symbols. A
// non-numeric remainder means unparsed, not zero.
func parseCurrency(raw string) *float64 {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return nil
	}
	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &amount
}

// parseBool accepts yes/no/true/false/y/n case-insensitively; anything else
// is unknown (nil), not false.
func parseBool(raw string) *bool {
	t, f := true, false
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "true", "y":
		return &t
	case "no", "false", "n":
		return &f
	default:
		return nil
	}
}

// nameFromFilename derives a title-cased business name from a filename.
func nameFromFilename(fileName string) string {
	if fileName == "" {
		return ""
	}
	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	base = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(base)
	words := strings.Fields(base)
	if len(words) == 0 {
		return ""
	}
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
	}
	return strings.Join(words, " ")
}
