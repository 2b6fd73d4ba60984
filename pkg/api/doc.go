// Package api defines the external types for the Spielwerk game-generation
// service.
//
// This package provides the data types exchanged at the HTTP boundary and
// stored by the persistence adapters: generation and iteration requests, the
// GameResult payload, conversation history records, token usage accounting,
// structured errors, and ID generation.
//
// The package performs no I/O. Pipeline-internal types (the run context, the
// dual-shape logic result) live in pkg/game; this package only carries what
// crosses the wire or the persistence boundary.
package api
