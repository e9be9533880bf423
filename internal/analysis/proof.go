package analysis

import "strings"

// proofKeywords are the payment-proof terms scored against a vision
// description, stored unaccented; input text is de-accented before matching.
var proofKeywords = []string{
	"comprovante",
	"pagamento",
	"pix",
	"transferencia",
	"recibo",
	"banco",
	"valor",
	"data",
	"beneficiario",
	"pago",
}

// proofThreshold is the number of distinct keywords that declares a proof.
const proofThreshold = 3

var accentReplacer = strings.NewReplacer(
	"á", "a", "à", "a", "ã", "a", "â", "a",
	"é", "e", "ê", "e",
	"í", "i",
	"ó", "o", "ô", "o", "õ", "o",
	"ú", "u", "ü", "u",
	"ç", "c",
)

// IsPaymentProof reports whether a vision-analysis text describes a payment
// proof: at least proofThreshold distinct keywords present, case and accent
// insensitive. Pure function of the text.
func IsPaymentProof(text string) bool {
	normalized := accentReplacer.Replace(strings.ToLower(text))
	matches := 0
	for _, keyword := range proofKeywords {
		if strings.Contains(normalized, keyword) {
			matches++
			if matches >= proofThreshold {
				return true
			}
		}
	}
	return false
}
