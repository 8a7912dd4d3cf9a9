package appparser

import "strings"

// stateAbbreviations maps full US state names (lower-cased) to their 2-letter
// codes.
var stateAbbreviations = map[string]string{
	"alabama":        "AL",
	"alaska":         "AK",
	"arizona":        "AZ",
	"arkansas":       "AR",
	"california":     "CA",
	"colorado":       "CO",
	"connecticut":    "CT",
	"delaware":       "DE",
	"florida":        "FL",
	"georgia":        "GA",
	"hawaii":         "HI",
	"idaho":          "ID",
	"illinois":       "IL",
	"indiana":        "IN",
	"iowa":           "IA",
	"kansas":         "KS",
	"kentucky":       "KY",
	"louisiana":      "LA",
	"maine":          "ME",
	"maryland":       "MD",
	"massachusetts":  "MA",
	"michigan":       "MI",
	"minnesota":      "MN",
	"mississippi":    "MS",
	"missouri":       "MO",
	"montana":        "MT",
	"nebraska":       "NE",
	"nevada":         "NV",
	"new hampshire":  "NH",
	"new jersey":     "NJ",
	"new mexico":     "NM",
	"new york":       "NY",
	"north carolina": "NC",
	"north dakota":   "ND",
	"ohio":           "OH",
	"oklahoma":       "OK",
	"oregon":         "OR",
	"pennsylvania":   "PA",
	"rhode island":   "RI",
	"south carolina": "SC",
	"south dakota":   "SD",
	"tennessee":      "TN",
	"texas":          "TX",
	"utah":           "UT",
	"vermont":        "VT",
	"virginia":       "VA",
	"washington":     "WA",
	"west virginia":  "WV",
	"wisconsin":      "WI",
	"wyoming":        "WY",
}

var validStateCodes = func() map[string]bool {
	codes := make(map[string]bool, len(stateAbbreviations))
	for _, code := range stateAbbreviations {
		codes[code] = true
	}
	return codes
}()

// NormalizeState resolves a full state name or 2-letter code to the canonical
// 2-letter code, case-insensitively. Returns "" when unrecognized.
func NormalizeState(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) == 2 {
		code := strings.ToUpper(trimmed)
		if validStateCodes[code] {
			return code
		}
		return ""
	}
	return stateAbbreviations[strings.ToLower(trimmed)]
}
