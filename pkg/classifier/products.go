package classifier

import "regexp"

type productKeyword struct {
	pattern *regexp.Regexp
	product Product
}

func keyword(word string, product Product) productKeyword {
	return productKeyword{pattern: regexp.MustCompile(`\b` + word + `\b`), product: product}
}

// Order matters: detected products are reported in dictionary order.
var productKeywords = []productKeyword{
	keyword("auto", ProductAuto),
	keyword("automobile", ProductAuto),
	keyword("voiture", ProductAuto),
	keyword("vie", ProductLife),
	keyword("sante", ProductHealth),
	keyword("maladie", ProductHealth),
	keyword("medecin", ProductHealth),
	keyword("voyage", ProductTravel),
	keyword("habitation", ProductHome),
	keyword("maison", ProductHome),
	keyword("logement", ProductHome),
	keyword("retraite", ProductRetirement),
	keyword("pension", ProductRetirement),
}

// DetectProducts returns every product mentioned in normalized text,
// each at most once.
func DetectProducts(normalized string) []Product {
	var found []Product
	seen := make(map[Product]bool)

	for _, kw := range productKeywords {
		if seen[kw.product] {
			continue
		}
		if kw.pattern.MatchString(normalized) {
			found = append(found, kw.product)
			seen[kw.product] = true
		}
	}
	return found
}
