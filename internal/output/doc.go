// Package output writes generated text and renders rate limit state.
//
// [WriteText] sends a summary to a file or stdout. Window reports come in two
// formats:
//   - table: go-pretty terminal table (default)
//   - json:  structured JSON for scripts
//
// Use [GetWriter] to obtain a [Writer] for a given format string.
package output
