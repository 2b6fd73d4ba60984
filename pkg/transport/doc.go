// Package transport defines the handler interfaces and middleware chain for
// the spielwerk HTTP transport layer.
//
// The transport layer bridges external clients and the generation pipeline.
// It deserializes incoming requests into the core types defined in pkg/api,
// dispatches them, and serializes results back as JSON.
//
// # Handler Interfaces
//
// Three interfaces define the contract between the transport layer and the
// rest of the service:
//
//   - GameGenerator handles the generate and iterate operations. The
//     pipeline orchestrator implements it.
//   - ConversationStore handles conversation listing, retrieval, and
//     deletion. Both storage backends implement it.
//   - DocumentIngester handles administrative document ingestion for the
//     retrieval index. The retrieval sidecar implements it.
//
// Interfaces are defined here, at the consumer, so implementations depend
// on the transport contract rather than the other way around.
//
// # Middleware
//
// The middleware chain wraps http.Handler with cross-cutting concerns:
// panic recovery, request ID assignment (X-Request-ID), and structured
// logging via log/slog. Authentication and rate limiting come from
// pkg/auth and are applied the same way.
package transport
