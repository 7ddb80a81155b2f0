// Package cli wires together the Cobra command tree for the diffsum binary.
//
// It defines the root command and all subcommands (summarize, describe,
// ratelimit, config, hook, version), binds flags, reads configuration, runs the
// summarizer, and maps failures to exit codes: 2 for missing input or usage
// errors and 1 for everything else.
package cli
