package orchestrator

// Evaluator is the Evaluator node. It never mutates state; it computes a
// routing Decision purely from the current snapshot.
type Evaluator struct{}

// NewEvaluator builds an Evaluator. It holds no state of its own.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate returns the routing decision for state and an EvaluationResult
// suitable for logging. The EvaluationResult is never persisted into state.
func (e *Evaluator) Evaluate(state AgentState) (Decision, EvaluationResult) {
	if state.Error != "" {
		return DecisionReplan, EvaluationResult{Decision: DecisionReplan, Reasoning: "state.error is set: " + state.Error}
	}
	if state.Plan == nil {
		return DecisionReplan, EvaluationResult{Decision: DecisionReplan, Reasoning: "no plan exists"}
	}
	if last, ok := state.LastResult(); ok && !last.Success {
		return DecisionReplan, EvaluationResult{Decision: DecisionReplan, Reasoning: "last task result failed: " + last.Error}
	}
	if state.CurrentTaskIndex < len(state.Plan.Tasks) {
		return DecisionContinue, EvaluationResult{Decision: DecisionContinue, Reasoning: "plan has remaining tasks"}
	}
	return DecisionFinalize, EvaluationResult{Decision: DecisionFinalize, Reasoning: "all tasks completed successfully"}
}
