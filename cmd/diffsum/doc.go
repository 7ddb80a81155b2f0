// Diffsum turns a git diff into a short human-readable summary with an LLM.
//
// Requests share a tokens-per-minute budget persisted outside the process, so
// several invocations back off together instead of tripping the provider's
// rate limit. Oversized or rate-limited requests are retried with a truncated
// diff.
//
// Usage:
//
//	git diff | diffsum summarize "$OPENAI_API_KEY"   # stakeholder summary
//	diffsum describe --range origin/main..HEAD       # pull request description
//	diffsum ratelimit show                           # inspect the shared budget
//	diffsum hook install                             # draft commit messages
package main
