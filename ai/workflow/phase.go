package workflow

// Phase is a stage in the task-workflow lifecycle.
type Phase string

const (
	// PhaseClassifying is the entry phase while the inbound message is being routed.
	PhaseClassifying Phase = "MESSAGE_CLASSIFYING"
	// PhaseInitialized means a workflow context exists and the completeness gate runs next.
	PhaseInitialized Phase = "INITIALIZED"
	// PhaseDecomposing means the decomposition model call is in flight.
	PhaseDecomposing Phase = "DECOMPOSING"
	// PhaseDecomposed means the task list is fixed.
	PhaseDecomposed Phase = "DECOMPOSED"
	// PhaseExecuting is re-asserted for every sub-task iteration.
	PhaseExecuting Phase = "EXECUTING"
	// PhaseExecuted means the cursor reached the end of the task list.
	PhaseExecuted Phase = "EXECUTED"
	// PhaseSummarizing means the synthesis model call is in flight.
	PhaseSummarizing Phase = "SUMMARIZING"
	// PhaseCompleted is the success terminal phase.
	PhaseCompleted Phase = "COMPLETED"
	// PhaseFailed is the failure terminal phase.
	PhaseFailed Phase = "FAILED"

	// PhaseAwaitingInputForDecomposition parks the workflow before decomposition
	// until the user supplies missing information. Returns to INITIALIZED.
	PhaseAwaitingInputForDecomposition Phase = "AWAITING_INPUT_FOR_DECOMPOSITION"
	// PhaseAwaitingInputForExecution parks the workflow before a sub-task.
	// Returns to EXECUTING.
	PhaseAwaitingInputForExecution Phase = "AWAITING_INPUT_FOR_EXECUTION"
)

// Terminal returns true for phases that end the workflow.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// AwaitingInput returns true while the workflow is parked in the session registry.
func (p Phase) AwaitingInput() bool {
	return p == PhaseAwaitingInputForDecomposition || p == PhaseAwaitingInputForExecution
}

// ResumeTarget returns the phase a suspension returns to once input arrives.
// For non-suspension phases it returns the phase itself.
func (p Phase) ResumeTarget() Phase {
	switch p {
	case PhaseAwaitingInputForDecomposition:
		return PhaseInitialized
	case PhaseAwaitingInputForExecution:
		return PhaseExecuting
	default:
		return p
	}
}
