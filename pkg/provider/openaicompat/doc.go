// Package openaicompat implements the ModelClient interface against any
// OpenAI-compatible Chat Completions backend (OpenAI, vLLM, LiteLLM,
// Ollama's compat endpoint). It supports both plain and streaming requests;
// streamed deltas are accumulated into a single response text.
package openaicompat
