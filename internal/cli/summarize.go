package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/diffsum/internal/config"
	"github.com/dshills/diffsum/internal/gitctx"
	"github.com/dshills/diffsum/internal/output"
	"github.com/dshills/diffsum/internal/prompt"
	"github.com/dshills/diffsum/internal/providers"
	"github.com/dshills/diffsum/internal/ratelimit"
	"github.com/dshills/diffsum/internal/redact"
	"github.com/dshills/diffsum/internal/summarize"
)

// Shared summary flags
var (
	flagProvider        string
	flagModel           string
	flagOut             string
	flagStaged          bool
	flagRange           string
	flagMergeBase       bool
	flagExclude         string
	flagContextLines    int
	flagMaxOutputTokens int
	flagNoRedact        bool
	flagTicket          string
)

var errEmptyDiff = errors.New("no diff provided on stdin")

func addSummaryFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagProvider, "provider", "", "LLM provider (openai, anthropic)")
	cmd.Flags().StringVar(&flagModel, "model", "", "Model name")
	cmd.Flags().StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
	cmd.Flags().BoolVar(&flagStaged, "staged", false, "Read the staged diff from git instead of stdin")
	cmd.Flags().StringVar(&flagRange, "range", "", "Read the diff for a revision range (e.g., origin/main..HEAD) from git")
	cmd.Flags().BoolVar(&flagMergeBase, "merge-base", true, "Use merge base for --range comparisons")
	cmd.Flags().StringVar(&flagExclude, "exclude", "", "Exclude file path globs from git diffs (comma-separated)")
	cmd.Flags().IntVar(&flagContextLines, "context-lines", 0, "Number of context lines in git diffs")
	cmd.Flags().IntVar(&flagMaxOutputTokens, "max-output-tokens", 0, "Maximum tokens to generate")
	cmd.Flags().BoolVar(&flagNoRedact, "no-redact", false, "Disable secret redaction (use with caution)")
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize [api-key]",
	Short: "Summarize a diff for non-technical readers",
	Long: "Summarize a git diff read from stdin (or from git with --staged/--range) as a short bullet list.\n" +
		"The API key defaults to the provider's environment variable.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSummary(cmd, args, prompt.Summary())
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe [api-key]",
	Short: "Write a pull request description for a diff",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSummary(cmd, args, prompt.PullRequest(flagTicket))
	},
}

func buildOverrides() map[string]string {
	m := make(map[string]string)
	if flagProvider != "" {
		m["provider"] = flagProvider
	}
	if flagModel != "" {
		m["model"] = flagModel
	}
	if flagMaxOutputTokens > 0 {
		m["max_output_tokens"] = strconv.Itoa(flagMaxOutputTokens)
	}
	return m
}

func buildDiffOpts() gitctx.DiffOptions {
	return gitctx.DiffOptions{
		ContextLines: flagContextLines,
		Exclude:      splitComma(flagExclude),
	}
}

func splitComma(s string) []string {
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// resolveAPIKey prefers the positional argument over the provider's
// environment variable.
func resolveAPIKey(args []string, provider string) string {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0])
	}
	return os.Getenv(providers.APIKeyEnv(provider))
}

// readDiff returns the diff from git when --staged or --range is set and
// from stdin otherwise.
func readDiff(ctx context.Context, stdin io.Reader) (string, error) {
	switch {
	case flagStaged && flagRange != "":
		return "", errors.New("--staged and --range are mutually exclusive")
	case flagStaged:
		res, err := gitctx.Staged(ctx, buildDiffOpts())
		if err != nil {
			return "", err
		}
		return res.Diff, nil
	case flagRange != "":
		res, err := gitctx.Range(ctx, flagRange, flagMergeBase, buildDiffOpts())
		if err != nil {
			return "", err
		}
		return res.Diff, nil
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(data), nil
}

func runSummary(cmd *cobra.Command, args []string, tmpl prompt.Template) error {
	stderr := cmd.ErrOrStderr()

	cfg, err := config.Load(flagConfig, buildOverrides())
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		exitCode = ExitFailure
		return nil
	}
	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		exitCode = ExitFailure
		return nil
	}
	defer func() { _ = logger.Sync() }()

	ctx := commandContext(cmd)

	apiKey := resolveAPIKey(args, cfg.Provider)
	if apiKey == "" {
		fmt.Fprintf(stderr, "Error: %v (pass it as an argument or set %s)\n",
			providers.ErrMissingAPIKey, providers.APIKeyEnv(cfg.Provider))
		exitCode = ExitUsageError
		return nil
	}

	diff, err := readDiff(ctx, cmd.InOrStdin())
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		exitCode = ExitFailure
		return nil
	}
	if strings.TrimSpace(diff) == "" {
		fmt.Fprintf(stderr, "Error: %v\n", errEmptyDiff)
		exitCode = ExitUsageError
		return nil
	}

	if flagNoRedact {
		cfg.Privacy.RedactSecrets = false
		fmt.Fprintln(stderr, "WARNING: secret redaction is disabled")
	}
	if cfg.Privacy.RedactSecrets {
		var stats redact.Stats
		diff, stats = redact.Diff(diff, cfg.Privacy.RedactPaths)
		if stats.Any() {
			logger.Info("redacted diff before sending",
				zap.Int("secrets", stats.Secrets),
				zap.Strings("files", stats.Files),
			)
		}
	}

	s, cleanup, err := buildSummarizer(ctx, cfg, apiKey, tmpl, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		exitCode = ExitFailure
		return nil
	}
	defer cleanup()

	text, err := s.Summarize(ctx, diff)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		exitCode = ExitFailure
		return nil
	}

	if err := output.WriteText(text, flagOut, cmd.OutOrStdout()); err != nil {
		fmt.Fprintf(stderr, "Error writing output: %v\n", err)
		exitCode = ExitFailure
	}
	return nil
}

// buildSummarizer wires the provider, the shared budget, and the retry
// settings. Test mode skips both the provider and the state store.
func buildSummarizer(ctx context.Context, cfg config.Config, apiKey string, tmpl prompt.Template, logger *zap.Logger) (*summarize.Summarizer, func(), error) {
	s := &summarize.Summarizer{
		Template:        tmpl,
		Model:           cfg.Model,
		MaxOutputTokens: cfg.MaxOutputTokens,
		Bounds:          cfg.Retry.Sizes,
		Backoff:         cfg.Backoff(),
		TestMode:        cfg.TestMode,
		Logger:          logger,
	}
	if cfg.TestMode {
		return s, func() {}, nil
	}

	completer, err := providers.New(cfg.Provider, cfg.Model, apiKey)
	if err != nil {
		return nil, nil, err
	}
	s.Completer = completer

	store := openStore(ctx, cfg, logger)
	s.Limiter = ratelimit.New(store, cfg.Limits(), ratelimit.WithLogger(logger))

	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Debug("closing rate limit store", zap.Error(err))
		}
	}
	return s, cleanup, nil
}

// openStore opens the configured backend and falls back to the local state
// file when it is unreachable, so a summary never fails on bookkeeping.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) ratelimit.Backend {
	store, err := ratelimit.OpenStore(ctx, cfg.Store())
	if err == nil {
		return store
	}
	logger.Warn("rate limit backend unavailable, using local state file",
		zap.String("backend", cfg.RateLimit.Backend),
		zap.Error(err),
	)
	fs, ferr := ratelimit.NewFileStore(cfg.RateLimit.StateFile)
	if ferr != nil {
		logger.Debug("local state file unavailable, budget is per-process", zap.Error(ferr))
		return ratelimit.NewMemoryStore()
	}
	return fs
}

func init() {
	for _, cmd := range []*cobra.Command{summarizeCmd, describeCmd} {
		addSummaryFlags(cmd)
	}
	describeCmd.Flags().StringVar(&flagTicket, "ticket", prompt.DefaultTicket, "Ticket reference for the title line")
}
