package pipeline

import "fmt"

// RunState tracks the progress of one pipeline run.
type RunState string

const (
	StateCreated    RunState = "created"
	StateLogicDone  RunState = "logic_done"
	StateRenderDone RunState = "render_done"
	StateImagesDone RunState = "images_done"
	StateAudioDone  RunState = "audio_done"
	StateComplete   RunState = "complete"
	StateFailed     RunState = "failed"
)

// validTransitions maps each state to its allowed successors. Failed is
// reachable from any non-terminal state; complete and failed are terminal.
var validTransitions = map[RunState][]RunState{
	StateCreated:    {StateLogicDone, StateFailed},
	StateLogicDone:  {StateRenderDone, StateFailed},
	StateRenderDone: {StateImagesDone, StateFailed},
	StateImagesDone: {StateAudioDone, StateFailed},
	StateAudioDone:  {StateComplete, StateFailed},
}

// ValidateTransition checks whether a run state transition is valid.
// Terminal states (complete, failed) do not allow outgoing transitions.
func ValidateTransition(from, to RunState) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("invalid run transition from %s to %s", from, to)
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("invalid run transition from %s to %s", from, to)
}
