package sources

import "regexp"

// Warrant codes: exchange listed warrants start 03-08, OTC ones 70-73,
// with optional suffixes for puts, foreign underlyings, bull and bear
// contracts and their extendable variants.
var warrantPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^0[3-8]\d{4}$`),
	regexp.MustCompile(`^0[3-8]\d{3}[PFQCBXY]$`),
	regexp.MustCompile(`^7[0-3]\d{4}$`),
	regexp.MustCompile(`^7[0-3]\d{3}[PFQCBXY]$`),
}

// IsWarrant reports whether symbol follows a warrant coding rule
func IsWarrant(symbol string) bool {
	for _, re := range warrantPatterns {
		if re.MatchString(symbol) {
			return true
		}
	}
	return false
}
