package rules

import "github.com/opensource-finance/amlboard/internal/domain"

// DefaultRules returns the built-in keyword rules in priority order.
// Order matters: a scenario mentioning both "structuring" and "mixer" is
// STRUCTURING because that rule runs first.
func DefaultRules() []*domain.ClassificationRule {
	return []*domain.ClassificationRule{
		keywordRule("structuring-001", "Structuring", domain.TypologyStructuring, 10, "structuring", "sub-threshold"),
		keywordRule("payment-chain-001", "Payment chains and tax havens", domain.TypologyLayering, 20, "payment chain", "tax havens"),
		keywordRule("trafficking-001", "Wildlife and trafficking proceeds", domain.TypologyIntegration, 30, "wildlife", "trafficking"),
		keywordRule("sanctions-001", "Sanctions evasion", domain.TypologyIntegration, 40, "sanctioned", "bypass"),
		keywordRule("crypto-001", "Cryptocurrency mixing", domain.TypologyLayering, 50, "cryptocurrency", "mixer"),
		keywordRule("pep-001", "PEP and high-value deposits", domain.TypologyPlacement, 60, "pep", "high-value"),
		keywordRule("trade-001", "Trade-based laundering", domain.TypologyLayering, 70, "trade", "invoice"),
		keywordRule("geography-001", "High-risk geography", domain.TypologyPlacement, 80, "high-risk", "country"),
	}
}

func keywordRule(id, name string, t domain.Typology, priority int, keywords ...string) *domain.ClassificationRule {
	return &domain.ClassificationRule{
		ID:       id,
		Name:     name,
		Typology: t,
		Keywords: keywords,
		Priority: priority,
		Enabled:  true,
	}
}
