package provider

// effortBudgetFraction maps an effort level to a fraction of the model's
// declared [BudgetMin, BudgetMax] range, the basis for a concrete
// reasoning-token budget on budget-based models (e.g. Anthropic's
// extended thinking).
var effortBudgetFraction = map[ReasoningEffort]float64{
	EffortLow:      0.15,
	EffortMedium:   0.4,
	EffortHigh:     0.7,
	EffortAbsolute: 1.0,
	EffortMax:      1.0,
}

// ResolveThinkingBudget computes a reasoning-token budget for a
// budget-based model, clamped to [min, max]. Effort levels not in the
// table default to Medium's fraction.
func ResolveThinkingBudget(effort ReasoningEffort, min, max int) int {
	if max <= 0 {
		return 0
	}
	if min < 0 {
		min = 0
	}
	fraction, ok := effortBudgetFraction[effort]
	if !ok {
		fraction = effortBudgetFraction[EffortMedium]
	}
	budget := int(float64(max-min)*fraction) + min
	if budget < min {
		budget = min
	}
	if budget > max {
		budget = max
	}
	return budget
}

// ResolveAdaptiveEffort returns the effort enum to send for an adaptive
// reasoning model. Max is only permitted when the model declares
// max-support; otherwise it is downgraded to High.
func ResolveAdaptiveEffort(effort ReasoningEffort, supportsMax bool) ReasoningEffort {
	if effort == EffortMax && !supportsMax {
		return EffortHigh
	}
	return effort
}
