// Package llm is a JSON-only chat completion client for OpenRouter and other
// OpenAI-compatible endpoints.
//
// The fallback word-timing service sends a short audio clip with
// CompleteJSONWithAudio; doctor and preflight call HealthCheck. Requests are
// retried on HTTP 408, 429 and 5xx, empty replies and network timeouts with
// exponential backoff (1s doubling to 10s, five attempts by default),
// honouring Retry-After. DecodeLLMJSON tolerates fenced or chatty replies.
package llm
