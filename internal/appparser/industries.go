package appparser

import "strings"

// industryVocabulary maps canonical industry names to the keywords that hit
// them. Adding an industry is a data change, not a control-flow change.
var industryVocabulary = []struct {
	Name     string
	Keywords []string
}{
	{"Restaurant", []string{"restaurant", "food service", "cafe", "catering", "bar", "diner", "bakery"}},
	{"Retail", []string{"retail", "store", "shop", "boutique", "ecommerce", "e-commerce"}},
	{"Construction", []string{"construction", "contractor", "roofing", "plumbing", "hvac", "electrical", "remodeling"}},
	{"Trucking", []string{"trucking", "freight", "logistics", "transportation", "hauling"}},
	{"Medical", []string{"medical", "healthcare", "dental", "clinic", "chiropractic", "pharmacy"}},
	{"Auto", []string{"auto", "automotive", "car dealer", "repair shop", "body shop", "tire"}},
	{"Beauty", []string{"salon", "spa", "beauty", "barber", "nails"}},
	{"Professional Services", []string{"consulting", "accounting", "legal", "law firm", "marketing", "staffing"}},
	{"Manufacturing", []string{"manufacturing", "fabrication", "machining", "factory"}},
	{"Wholesale", []string{"wholesale", "distribution", "distributor", "supplier"}},
	{"Fitness", []string{"gym", "fitness", "yoga", "crossfit"}},
	{"Hospitality", []string{"hotel", "motel", "hospitality", "lodging"}},
	{"Landscaping", []string{"landscaping", "lawn care", "tree service"}},
	{"Cleaning", []string{"cleaning", "janitorial", "maid service"}},
}

// MatchIndustry fuzzy-matches free text against the curated vocabulary and
// returns the canonical industry name, or "" when nothing hits.
func MatchIndustry(raw string) string {
	lowered := strings.ToLower(raw)
	for _, entry := range industryVocabulary {
		for _, keyword := range entry.Keywords {
			if strings.Contains(lowered, keyword) {
				return entry.Name
			}
		}
	}
	return ""
}
