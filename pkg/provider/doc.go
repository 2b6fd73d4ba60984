// Package provider defines the protocol-agnostic interface for LLM inference
// backends. Each adapter implementation (openaicompat, anthropic) handles its
// own backend protocol translation internally. The interface operates on
// Spielwerk's own types (ChatRequest, ChatResponse), keeping backend protocol
// details invisible to the pipeline stages.
package provider
