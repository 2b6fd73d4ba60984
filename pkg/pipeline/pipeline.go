package pipeline

import (
	"context"
	"fmt"

	"github.com/rhuss/spielwerk/pkg/game"
)

// Stage is one step of the generation pipeline. Run reads the fields named
// by RequiredFields from the context and writes exactly the fields the stage
// owns. Stages never touch fields owned by other stages.
type Stage interface {
	Name() string
	RequiredFields() []game.Field
	Run(ctx context.Context, gc *game.Context) error
}

// PreconditionError reports that a stage was invoked before the context
// fields it requires were populated. It indicates a wiring bug in the stage
// sequence, not a transient condition, and is never retried.
type PreconditionError struct {
	Stage  string
	Fields []game.Field
}

// Error implements the error interface.
func (e *PreconditionError) Error() string {
	return fmt.Sprintf("stage %s: missing required context fields %v", e.Stage, e.Fields)
}

// StageError wraps a stage failure with the stage name and the execution
// chain completed before the failure.
type StageError struct {
	Stage string
	Chain []string
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying cause for errors.Is/As inspection.
func (e *StageError) Unwrap() error {
	return e.Err
}
