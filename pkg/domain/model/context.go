package model

// ContextBundle is the bounded prompt context assembled for one user turn.
// Messages is the budget-enforced rolling window in chronological order;
// Instruction is the summary and episodic memory text appended to the
// system prompt. Not persisted.
type ContextBundle struct {
	Messages    []Message
	Instruction string
}
