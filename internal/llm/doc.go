// Package llm asks a chat model which of a list of file names match a
// natural-language query.
//
// OpenAIClient speaks the OpenAI chat-completions protocol, which Ollama also
// serves under /v1. Service pairs a default client (a local Ollama model) with
// an optional "hard" client (gpt-4o) for queries that need more reasoning.
//
// The model is told to answer with bare file names, one per line.
// ParseResponse is lenient about bullets, numbering and code fences that
// models add anyway.
package llm
