package classifier

import "regexp"

// Rule is a high-precision phrasing that short-circuits the model.
// Patterns run against Normalize output, so they are written without accents.
type Rule struct {
	Intent         Intent
	Pattern        *regexp.Regexp
	Score          float64
	DetectProducts bool
}

// DefaultRules are evaluated in order; the first match wins.
func DefaultRules() []Rule {
	return []Rule{
		{
			Intent: IntentNoInterest,
			Pattern: regexp.MustCompile(
				`(pas\s+d['e]\s*(interet|besoin)|` +
					`\baucune?\b|` +
					`pas\s*(du tout|interesse)|` +
					`(ca|cela)\s+ne\s+m'interess(e|e pas)|` +
					`\bnon\s+merci\b|` +
					`\brefuse?\b|` +
					`\b(j'en veux pas|je n'ai pas besoin|inutile)\b)`),
			Score: 0.95,
		},
		{
			Intent: IntentHesitation,
			Pattern: regexp.MustCompile(
				`(pas\s*sure?\b|` +
					`hesite(r|z)?|` +
					`je\s*(vais|veux)?\s*y\s*reflechir|` +
					`je\s*(vais|voudrais)?\s*decider plus tard|` +
					`(je|on)\s+verra|` +
					`je\s*(vais|voudrais)?\s*y penser|` +
					`(besoin|donner)\s+du\s+temps|` +
					`\bj'y pense encore\b)`),
			Score:          0.8,
			DetectProducts: true,
		},
		{
			Intent: IntentAlreadyInsured,
			Pattern: regexp.MustCompile(
				`(deja|` +
					`(j'ai|nous avons)\s+une\s+autre\s+assurance|` +
					`assure\s+ailleurs|` +
					`je\s+suis\s+couvert|` +
					`(j'ai|nous avons)\s+une\s+couverture|` +
					`(mon|ma)\s+(banque|employeur)\s+me\s+couvre|` +
					`assure\s+autrement)`),
			Score:          0.9,
			DetectProducts: true,
		},
		{
			Intent: IntentComparison,
			Pattern: regexp.MustCompile(
				`(differences?|` +
					`comparer|comparaison|` +
					`(faire|avoir)\s+un\s+comparatif|` +
					`(quelle|quelles)\s+sont\s+les\s+options|` +
					`qu'est-ce qui\s+change)`),
			Score:          0.9,
			DetectProducts: true,
		},
		{
			Intent: IntentQuote,
			Pattern: regexp.MustCompile(
				`(devis|` +
					`tarifs?|` +
					`prix|cout|` +
					`combien\s+(ca|cela)\s+coute|` +
					`estimation|` +
					`montant|` +
					`offre\s+de\s+prix)`),
			Score:          0.9,
			DetectProducts: true,
		},
	}
}

func matchRule(rules []Rule, normalized string) (Rule, bool) {
	for _, rule := range rules {
		if rule.Pattern.MatchString(normalized) {
			return rule, true
		}
	}
	return Rule{}, false
}
