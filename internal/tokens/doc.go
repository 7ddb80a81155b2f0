// Package tokens estimates request sizes in LLM tokens.
//
// The estimate is a fixed characters-per-token heuristic. It is only used to
// budget requests against a tokens-per-minute limit, so it favours being cheap
// and monotonic over being exact.
package tokens
