package routing

import "strings"

// cancellationPhrases are the explicit signals brokers use when a load is
// gone. Only clear statements count; "we might cancel" style hedging is
// deliberately not matched.
var cancellationPhrases = []string{
	"already covered",
	"assigned to another carrier",
	"load is off",
	"load is cancelled",
	"load is canceled",
	"load has been cancelled",
	"load has been canceled",
	"no longer available",
	"please cancel",
	"cancel this load",
	"load fell through",
}

// companyQuestionMarkers are topics a broker asks about the carrier itself,
// answerable independent of the negotiation.
var companyQuestionMarkers = []string{
	"mc number",
	"mc#",
	"dot number",
	"your insurance",
	"insurance certificate",
	"certificate of insurance",
	"carrier packet",
	"w-9",
	"w9",
	"your authority",
	"operating authority",
	"about your company",
	"company info",
	"references",
}

// IsCancellation reports whether the text explicitly says the load is
// cancelled or unavailable.
func IsCancellation(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range cancellationPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// IsCompanyQuestion reports whether the text asks about the carrier company
// rather than the load.
func IsCompanyQuestion(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range companyQuestionMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
