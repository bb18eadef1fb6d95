package provider

// ResolveToolChoice applies the substitutions spec 4.D requires before a
// request is sent: a forced single function is downgraded to Auto (with
// an injected system instruction naming the tool) when the model can't
// combine forced function calls with active reasoning, or to Required
// when exactly one tool is in play, since Required has the same effect
// with broader provider compatibility.
func ResolveToolChoice(choice ToolChoice, toolCount int, reasoningActive, supportsForcedFunctionWithReasoning bool) (resolved ToolChoice, injectedInstruction string) {
	if choice.Kind != ToolChoiceFunction {
		return choice, ""
	}

	if toolCount == 1 {
		return ToolChoice{Kind: ToolChoiceRequired}, ""
	}

	if reasoningActive && !supportsForcedFunctionWithReasoning {
		return ToolChoice{Kind: ToolChoiceAuto}, "You must call the \"" + choice.FunctionName + "\" tool to respond."
	}

	return choice, ""
}
