package profile

import "strings"

const (
	TypeNaturalPerson = "personne_physique"
	TypeLegalEntity   = "personne_morale"
)

// Decision is the next best action derived from a profile.
type Decision string

const (
	DecisionPayExisting        Decision = "pay_existing"
	DecisionCollectMissingInfo Decision = "collect_missing_info"
	DecisionRecommendProduct   Decision = "recommend_product"
	DecisionNoAction           Decision = "no_action"
)

type ContactInfo struct {
	Email     string `json:"email,omitempty"`
	Telephone string `json:"telephone,omitempty"`
}

// Profile is a CRM customer record as served by the profile service.
type Profile struct {
	UserID              string      `json:"user_id"`
	Name                string      `json:"name"`
	Type                string      `json:"type"`
	PurchasedProducts   []string    `json:"purchased_products"`
	RecommendedProducts []string    `json:"recommended_products"`
	BillsDue            []string    `json:"bills_due"`
	ContactInfo         ContactInfo `json:"contact_info"`
	Sector              string      `json:"sector,omitempty"`
	Age                 int         `json:"age,omitempty"`
	FamilyStatus        string      `json:"family_status,omitempty"`

	MissingFields []string `json:"missing_fields"`
	Decision      Decision `json:"decision"`
}

// Derive fills MissingFields and Decision from the raw record.
func (p *Profile) Derive() {
	p.MissingFields = p.missingFields()

	switch {
	case len(p.BillsDue) > 0:
		p.Decision = DecisionPayExisting
	case len(p.MissingFields) > 0:
		p.Decision = DecisionCollectMissingInfo
	case len(p.RecommendedProducts) > 0:
		p.Decision = DecisionRecommendProduct
	default:
		p.Decision = DecisionNoAction
	}
}

func (p *Profile) missingFields() []string {
	missing := []string{}
	switch p.Type {
	case TypeLegalEntity:
		if strings.TrimSpace(p.Sector) == "" {
			missing = append(missing, "secteur d'activité")
		}
	case TypeNaturalPerson:
		if p.Age == 0 {
			missing = append(missing, "âge")
		}
		if strings.TrimSpace(p.FamilyStatus) == "" {
			missing = append(missing, "situation familiale")
		}
	}
	if strings.TrimSpace(p.ContactInfo.Email) == "" {
		missing = append(missing, "adresse e-mail")
	}
	if strings.TrimSpace(p.ContactInfo.Telephone) == "" {
		missing = append(missing, "numéro de téléphone")
	}
	return missing
}

// Snapshot flattens the profile into the map embedded in prompts.
func (p *Profile) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"user_id":              p.UserID,
		"name":                 p.Name,
		"type":                 p.Type,
		"purchased_products":   p.PurchasedProducts,
		"recommended_products": p.RecommendedProducts,
		"bills_due":            p.BillsDue,
		"contact_info":         map[string]interface{}{"email": p.ContactInfo.Email, "telephone": p.ContactInfo.Telephone},
		"sector":               p.Sector,
		"age":                  p.Age,
		"family_status":        p.FamilyStatus,
		"missing_fields":       p.MissingFields,
		"decision":             string(p.Decision),
	}
}
