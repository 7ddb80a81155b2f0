// Package gitctx reads diffs from a git repository as an alternative to
// piping one on stdin.
//
// [Staged] returns the index against HEAD; [Range] returns the combined diff
// of a revision range. Both shell out to git and can drop file sections that
// match exclude globs.
package gitctx
