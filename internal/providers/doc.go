// Package providers implements the Completer interface for each supported LLM
// provider.
//
// Supported providers: OpenAI (chat completions, the default) and Anthropic
// (messages). Both send a single user prompt and return the generated text.
//
// Non-2xx responses come back as *[APIError], whose message includes the HTTP
// status and the provider's error body. 5xx responses are retried inside the
// provider with exponential back-off; every other failure, including rate
// limits and oversized requests, is returned to the caller untouched so it
// can decide whether to shrink and retry.
//
// Use [New] to obtain a Completer by provider name and model string.
package providers
