// Package retrieval implements the best-effort RAG sidecar that enriches
// prompts with reference material from a vector store before a pipeline
// stage calls the model.
//
// The sidecar is strictly advisory: every failure path (embedding service
// down, vector store unreachable, empty collection) degrades to returning
// the prompt unchanged. Retrieval never fails a generation run.
package retrieval
