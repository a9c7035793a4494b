package classifier

import "strings"

// Intent is the classified purpose of a customer message.
type Intent string

const (
	IntentNoInterest       Intent = "no interest"
	IntentHesitation       Intent = "hesitation"
	IntentAlreadyInsured   Intent = "already insured"
	IntentComparison       Intent = "comparison request"
	IntentQuote            Intent = "quote request"
	IntentGeneralInterest  Intent = "general interest"
	IntentSpecificInterest Intent = "specific interest"
	IntentExplanation      Intent = "explanation request"
	IntentOutOfScope       Intent = "out of scope"
)

// Product is an insurance product category.
type Product string

const (
	ProductAuto       Product = "auto insurance"
	ProductLife       Product = "life insurance"
	ProductHealth     Product = "health insurance"
	ProductTravel     Product = "travel insurance"
	ProductHome       Product = "home insurance"
	ProductRetirement Product = "retirement insurance"
)

// NoProduct is reported when no product was detected.
const NoProduct = "none"

// Zero-shot candidates are phrased in the customer's language; the model
// scores the hypothesis, not our internal label.
var intentHypotheses = []struct {
	intent Intent
	phrase string
}{
	{IntentGeneralInterest, "intérêt global"},
	{IntentSpecificInterest, "intérêt spécifique"},
	{IntentExplanation, "demande d'explication"},
	{IntentOutOfScope, "autre sujet"},
}

var productHypotheses = []struct {
	product Product
	phrase  string
}{
	{ProductAuto, "assurance auto"},
	{ProductLife, "assurance vie"},
	{ProductHealth, "assurance santé"},
	{ProductTravel, "assurance voyage"},
	{ProductHome, "assurance habitation"},
	{ProductRetirement, "assurance retraite"},
}

const (
	intentHypothesisTemplate  = "Ce client exprime {}."
	productHypothesisTemplate = "Ce client est intéressé par {}."
)

// Result is produced fresh for every inbound message.
type Result struct {
	Intent       Intent    `json:"intent"`
	IntentScore  float64   `json:"intent_score"`
	Products     []Product `json:"products"`
	ProductScore float64   `json:"product_score"`
}

// ProductLabel renders the product set, or "none".
func (r Result) ProductLabel() string {
	if len(r.Products) == 0 {
		return NoProduct
	}
	parts := make([]string, len(r.Products))
	for i, p := range r.Products {
		parts[i] = string(p)
	}
	return strings.Join(parts, ", ")
}

// HasProduct reports whether p was detected.
func (r Result) HasProduct(p Product) bool {
	for _, candidate := range r.Products {
		if candidate == p {
			return true
		}
	}
	return false
}
