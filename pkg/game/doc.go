// Package game holds the domain model threaded through the generation
// pipeline: the per-run Context, the dual-shape LogicResult, and the
// feature-inference fallback used when a logic result arrives in its
// minimal legacy shape.
//
// The LogicResult is the package's central complexity. The logic backend is
// asked for a fully structured design (mechanics, UI, art, audio, effects,
// technical metadata, developer guidance) but only four fields are
// guaranteed: title, description, summary, and game type. Every consumer
// must therefore handle both shapes; Shape() exposes the discriminator,
// computed once at parse time, so consumers branch on a tag instead of
// probing individual fields.
package game
