package bankanalysis

import (
	"strconv"
	"strings"
	"time"
)

var nativeDateLayouts = []string{
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	time.RFC3339,
}

// parseFlexibleDate handles MM/DD/YYYY, MM-DD-YYYY, YYYY-MM-DD and DD/MM/YYYY
// (detected when the first component exceeds 12), normalizing 2-digit years to
// the 2000s, with a native-layout fallback.
func parseFlexibleDate(raw string) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, false
	}

	sep := "/"
	if !strings.Contains(trimmed, "/") && strings.Contains(trimmed, "-") {
		sep = "-"
	}

	parts := strings.Split(trimmed, sep)
	if len(parts) == 3 {
		nums := make([]int, 3)
		ok := true
		for i, part := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				ok = false
				break
			}
			nums[i] = n
		}
		if ok {
			var year, month, day int
			switch {
			case nums[0] > 31: // YYYY-MM-DD
				year, month, day = nums[0], nums[1], nums[2]
			case nums[0] > 12: // DD/MM/YYYY
				day, month, year = nums[0], nums[1], nums[2]
			default: // MM/DD/YYYY
				month, day, year = nums[0], nums[1], nums[2]
			}
			if year < 100 {
				year += 2000
			}
			if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
				return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
			}
		}
	}

	for _, layout := range nativeDateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseAmount strips currency symbols and thousands separators, treating
// parenthesized or leading-minus values as negative.
func parseAmount(raw string) (float64, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(trimmed, "(") && strings.HasSuffix(trimmed, ")") {
		negative = true
		trimmed = trimmed[1 : len(trimmed)-1]
	}

	trimmed = strings.ReplaceAll(trimmed, "$", "")
	trimmed = strings.ReplaceAll(trimmed, ",", "")
	trimmed = strings.TrimSpace(trimmed)

	if strings.HasPrefix(trimmed, "-") {
		negative = true
		trimmed = trimmed[1:]
	}
	if trimmed == "" {
		return 0, false
	}

	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		value = -value
	}
	return value, true
}

// dateKey is the per-calendar-day accumulator key.
func dateKey(t time.Time) string { return t.Format("2006-01-02") }

// monthKey is the per-month deposit accumulator key.
func monthKey(t time.Time) string { return t.Format("2006-01") }
