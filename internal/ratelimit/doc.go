// Package ratelimit implements a best-effort, cross-process tokens-per-minute
// limiter for outbound LLM requests.
//
// Token usage is tracked per model in a [Window] persisted through a [Store].
// The default [FileStore] keeps every window in one JSON file under the user
// cache directory, so separate invocations on the same machine back off
// together. [RedisStore] and [LibSQLStore] share the same records between
// machines. None of the stores lock: concurrent writers may overwrite each
// other, which can briefly over-admit but never corrupts output.
//
// [Limiter.AwaitBudget] never fails. Unreadable state is treated as empty and
// write failures are logged at debug level.
package ratelimit
