// Package pipeline runs the multi-stage game generation sequence.
//
// A run threads a single game.Context through four stages in fixed order:
// logic, render, image, audio. The logic and render stages call a language
// model and are fatal on failure; the image and audio stages synthesize
// placeholder media locally and degrade to empty resource lists instead of
// failing the run. Each stage declares the context fields it requires, and
// the orchestrator verifies them before the stage runs.
//
// The Orchestrator is the outward API: Generate produces a new game from a
// prompt and Iterate produces an improved version of a previously stored
// game. Both persist the result to the conversation store only after the
// whole run succeeds.
package pipeline
