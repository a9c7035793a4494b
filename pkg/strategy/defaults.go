package strategy

import "ai-sales-agent-be/pkg/classifier"

// Defaults returns the compiled-in strategy set. Instructions may contain
// {company_name}, substituted when the prompt is built.
func Defaults() []Entry {
	return []Entry{
		{
			Key:  Key(classifier.IntentNoInterest),
			Name: "no_interest",
			Instruction: "Le client décline l'offre ou indique n'avoir aucun intérêt. " +
				"Répondez avec respect et reconnaissance, confirmez que vous comprenez, " +
				"proposez une aide future si besoin (ex: recevoir des informations plus tard) " +
				"et terminez poliment sans insister.",
		},
		{
			Key:  Key(classifier.IntentHesitation),
			Name: "persuade",
			Instruction: "Le client est hésitant. Rassurez-le en identifiant les objections possibles, " +
				"mettez en avant la valeur, garanties et preuves sociales, proposez des options " +
				"à faible risque (essai, délai, conditions) et invitez-le à poser ses questions.",
			RequiresRetrieval: true,
			NeedsFollowup:     true,
		},
		{
			Key:  Key(classifier.IntentAlreadyInsured),
			Name: "compare",
			Instruction: "Le client indique être déjà assuré ailleurs. Soyez respectueux, proposez une " +
				"comparaison ciblée des garanties et tarifs en mettant en évidence les avantages " +
				"clés et les éventuelles lacunes de la couverture actuelle. Offrez un devis si souhaité.",
			RequiresRetrieval: true,
			NeedsFollowup:     true,
		},
		{
			Key:  Key(classifier.IntentOutOfScope),
			Name: "out_of_scope",
			Instruction: "Le message ne concerne pas les produits d'assurance. Répondez brièvement et poliment, " +
				"indiquez que le sujet est hors périmètre, puis redirigez la conversation vers un sujet " +
				"pertinent ou proposez d'ouvrir un canal approprié.",
		},
		{
			Key:  Key(classifier.IntentComparison),
			Name: "compare",
			Instruction: "Le client demande une comparaison entre produits/offres. Fournissez un résumé clair " +
				"des différences (couverture, exclusions, prix, avantages), proposez des recommandations " +
				"selon le profil du client et proposez d'envoyer un comparatif détaillé ou un devis.",
			RequiresRetrieval: true,
			NeedsFollowup:     true,
		},
		{
			Key:  Key(classifier.IntentQuote),
			Name: "quote",
			Instruction: "Le client demande un devis/tarif. Expliquez quelles informations sont nécessaires, " +
				"collectez-les poliment (ex: âge, usage, valeur assurée), donnez une estimation réaliste " +
				"ou indiquez quand vous enverrez une proposition formelle.",
			RequiresRetrieval: true,
			NeedsFollowup:     true,
		},
		{
			Key:  Key(classifier.IntentGeneralInterest),
			Name: "discovery",
			Instruction: "Le client montre un intérêt général pour l'assurance sans produit précis. " +
				"Présentez les principales catégories (auto, vie, santé, habitation, voyage, retraite), " +
				"expliquez brièvement à qui chacune s'adresse et invitez le client à préciser ses besoins.",
			RequiresRetrieval: true,
			NeedsFollowup:     true,
		},
		{
			Key:  Key(classifier.IntentSpecificInterest),
			Name: "recommend_product",
			Instruction: "Le client indique un intérêt pour un produit spécifique. Fournissez une recommandation " +
				"claire et ciblée sur ce produit : couverture, bénéfices concrets, exclusions importantes, " +
				"et un appel à l'action (demander un devis, planifier un appel).",
			RequiresRetrieval: true,
		},
		{
			Key:  Key(classifier.IntentExplanation),
			Name: "clarify",
			Instruction: "Le client demande des explications techniques ou commerciales. Donnez une réponse claire, " +
				"pédagogique et structurée (points clés, exemples, étapes). Si nécessaire, posez une ou deux " +
				"questions de clarification et proposez d'envoyer des ressources complémentaires.",
			RequiresRetrieval: true,
			NeedsFollowup:     true,
		},
		{
			Key:  KeyRemindUnpaidBill,
			Name: "remind_unpaid_bill",
			Instruction: "Le client a une ou plusieurs factures impayées (voir bills_due). Rappelez-lui " +
				"courtoisement l'échéance concernée au nom de {company_name}, précisez le contrat, " +
				"indiquez les moyens de paiement disponibles et proposez votre aide en cas de difficulté.",
			NeedsFollowup: true,
		},
		{
			Key:  KeyCollectMissingInfo,
			Name: "collect_missing_info",
			Instruction: "Certaines informations du client sont manquantes (voir missing_fields). Présentez-vous " +
				"au nom de {company_name} et demandez ces informations de manière indirecte et naturelle, " +
				"en expliquant qu'elles permettent de proposer une couverture adaptée.",
			NeedsFollowup: true,
		},
		{
			Key:  KeyRecommendProduct,
			Name: "recommend_product",
			Instruction: "Présentez au client le produit recommandé pour son profil (voir recommended_products). " +
				"Mettez en avant les bénéfices concrets liés à sa situation et à ses contrats actuels, " +
				"puis proposez un devis ou un rendez-vous.",
			NeedsFollowup: true,
		},
		{
			Key:  KeyGenericOutreach,
			Name: "generic_outreach",
			Instruction: "Présentez brièvement {company_name} et ses principales offres d'assurance " +
				"(auto, vie, santé, habitation, voyage, retraite) et invitez le client à indiquer ses besoins.",
			NeedsFollowup: true,
		},
	}
}

// RequiredKeys is every classifier label plus every initiation key.
func RequiredKeys(c *classifier.Classifier) []Key {
	var keys []Key
	for _, intent := range c.Vocabulary() {
		keys = append(keys, Key(intent))
	}
	return append(keys, InitiationKeys()...)
}

// NewDefaultTable builds the compiled-in table validated against c.
func NewDefaultTable(c *classifier.Classifier) (*Table, error) {
	return NewTable(Defaults(), RequiredKeys(c)...)
}
