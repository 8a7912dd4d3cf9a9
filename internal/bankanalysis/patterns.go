package bankanalysis

import (
	"regexp"
	"strings"
)

// BankPatterns is one bank's statement pattern set. Adding a bank is a data
// change: append a registry entry, no control flow changes.
type BankPatterns struct {
	Name       string
	Keywords   []string // filename/content sniffing
	Balance    *regexp.Regexp
	Period     *regexp.Regexp
	Deposit    *regexp.Regexp
	Withdrawal *regexp.Regexp
	NSF        *regexp.Regexp
}

var bankRegistry = []BankPatterns{
	{
		Name:       "Chase",
		Keywords:   []string{"chase", "jpmorgan", "jp morgan"},
		Balance:    regexp.MustCompile(`(?i)(?:ending|beginning|daily)\s+balance\s*\$?\s*\(?(-?[\d,]+\.\d{2})\)?`),
		Period:     regexp.MustCompile(`(?i)(\w+ \d{1,2}, \d{4})\s*(?:through|to|-)\s*(\w+ \d{1,2}, \d{4})`),
		Deposit:    regexp.MustCompile(`(?i)(?:remote online deposit|deposit|online transfer from|zelle payment from)[^\n$]*\$?\s*([\d,]+\.\d{2})`),
		Withdrawal: regexp.MustCompile(`(?i)(?:card purchase|online payment|withdrawal|ach debit|zelle payment to)[^\n$]*\$?\s*([\d,]+\.\d{2})`),
		NSF:        regexp.MustCompile(`(?i)insufficient funds fee|returned item fee|overdraft fee`),
	},
	{
		Name:       "Bank of America",
		Keywords:   []string{"bank of america", "bankofamerica", "bofa"},
		Balance:    regexp.MustCompile(`(?i)(?:ending|beginning)\s+balance(?:\s+on\s+[\d/]+)?\s*\$?\s*\(?(-?[\d,]+\.\d{2})\)?`),
		Period:     regexp.MustCompile(`(?i)for\s+(\w+ \d{1,2}, \d{4})\s+to\s+(\w+ \d{1,2}, \d{4})`),
		Deposit:    regexp.MustCompile(`(?i)(?:counter credit|deposit|wire type:wire in|des:[\w ]*credit)[^\n$]*\$?\s*([\d,]+\.\d{2})`),
		Withdrawal: regexp.MustCompile(`(?i)(?:checkcard|purchase|des:[\w ]*debit|withdrawal)[^\n$]*\$?\s*([\d,]+\.\d{2})`),
		NSF:        regexp.MustCompile(`(?i)nsf:\s*returned item|overdraft item fee|od protection`),
	},
	{
		Name:       "Wells Fargo",
		Keywords:   []string{"wells fargo", "wellsfargo"},
		Balance:    regexp.MustCompile(`(?i)(?:ending daily|ending|beginning)\s+balance\s*\$?\s*\(?(-?[\d,]+\.\d{2})\)?`),
		Period:     regexp.MustCompile(`(?i)(\w+ \d{1,2}, \d{4})\s*-\s*(\w+ \d{1,2}, \d{4})`),
		Deposit:    regexp.MustCompile(`(?i)(?:edeposit|mobile deposit|deposit|transfer in)[^\n$]*\$?\s*([\d,]+\.\d{2})`),
		Withdrawal: regexp.MustCompile(`(?i)(?:purchase authorized|recurring payment|withdrawal|bill pay)[^\n$]*\$?\s*([\d,]+\.\d{2})`),
		NSF:        regexp.MustCompile(`(?i)nsf return item fee|overdraft fee|insufficient funds`),
	},
}

// genericPatterns is the mandatory fallback when no named bank matches.
var genericPatterns = BankPatterns{
	Name:       "Generic",
	Balance:    regexp.MustCompile(`(?i)balance[^\n$\d-]*\$?\s*\(?(-?[\d,]+\.\d{2})\)?`),
	Period:     regexp.MustCompile(`(?i)(\d{1,2}/\d{1,2}/\d{2,4})\s*(?:through|to|-)\s*(\d{1,2}/\d{1,2}/\d{2,4})`),
	Deposit:    regexp.MustCompile(`(?i)(?:deposit|credit|transfer in|payment received)[^\n$]*\$?\s*([\d,]+\.\d{2})`),
	Withdrawal: regexp.MustCompile(`(?i)(?:withdrawal|debit|purchase|payment to|fee)[^\n$]*\$?\s*([\d,]+\.\d{2})`),
	NSF:        regexp.MustCompile(`(?i)nsf|insufficient funds|overdraft|returned item`),
}

// identifyBank sniffs filename and content for known-bank keywords and
// returns the matching pattern set, falling back to the generic entry.
func identifyBank(fileName, content string) BankPatterns {
	haystack := strings.ToLower(fileName + " " + content)
	for _, bank := range bankRegistry {
		for _, keyword := range bank.Keywords {
			if strings.Contains(haystack, keyword) {
				return bank
			}
		}
	}
	return genericPatterns
}

// nsfKeywords flag NSF/overdraft events in debit descriptions.
var nsfKeywords = []string{
	"nsf",
	"insufficient funds",
	"overdraft",
	"od fee",
	"returned item",
	"uncollected funds",
	"return fee",
}

// mcaLenderFragments identify payments to known MCA lenders. Matched
// case-insensitively as substrings against debit descriptions.
var mcaLenderFragments = []string{
	"ondeck",
	"on deck capital",
	"kabbage",
	"forward financing",
	"rapid finance",
	"credibly",
	"fora financial",
	"fundbox",
	"bluevine",
	"can capital",
	"national funding",
	"square capital",
	"paypal working capital",
	"everest business funding",
	"libertas funding",
	"kalamata capital",
	"pearl capital",
	"knight capital funding",
}

// refinanceKeywords signal intent to replace, not stack, existing financing.
var refinanceKeywords = []string{
	"refinance",
	"refi",
	"consolidat",
	"payoff",
	"pay off",
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

// matchMCALender returns the first lender fragment found in a lower-cased
// description, or "".
func matchMCALender(description string) string {
	for _, fragment := range mcaLenderFragments {
		if strings.Contains(description, fragment) {
			return fragment
		}
	}
	return ""
}
