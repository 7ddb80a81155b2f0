// Package observability configures the zap logger shared by the CLI.
package observability
