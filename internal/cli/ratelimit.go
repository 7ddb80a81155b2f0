package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/diffsum/internal/config"
	"github.com/dshills/diffsum/internal/output"
	"github.com/dshills/diffsum/internal/ratelimit"
)

var flagFormat string

var ratelimitCmd = &cobra.Command{
	Use:   "ratelimit",
	Short: "Inspect or reset the shared token budget",
}

var ratelimitShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show persisted rate limit windows",
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := output.GetWriter(flagFormat)
		if err != nil {
			return err
		}
		cfg, err := config.Load(flagConfig, nil)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			exitCode = ExitFailure
			return nil
		}

		ctx := commandContext(cmd)
		store, err := ratelimit.OpenStore(ctx, cfg.Store())
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: opening rate limit state: %v\n", err)
			exitCode = ExitFailure
			return nil
		}
		defer store.Close()

		windows, err := ratelimit.Snapshot(ctx, store)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: reading rate limit state: %v\n", err)
			exitCode = ExitFailure
			return nil
		}

		report := output.WindowReport{
			Now:     time.Now(),
			Limits:  cfg.Limits(),
			Source:  describeStore(store, cfg),
			Windows: windows,
		}
		if err := w.Write(cmd.OutOrStdout(), report); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error writing output: %v\n", err)
			exitCode = ExitFailure
		}
		return nil
	},
}

var ratelimitResetCmd = &cobra.Command{
	Use:   "reset [model...]",
	Short: "Delete persisted windows (all when no model is named)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig, nil)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			exitCode = ExitFailure
			return nil
		}

		ctx := commandContext(cmd)
		store, err := ratelimit.OpenStore(ctx, cfg.Store())
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: opening rate limit state: %v\n", err)
			exitCode = ExitFailure
			return nil
		}
		defer store.Close()

		removed, err := ratelimit.Reset(ctx, store, args...)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: resetting rate limit state: %v\n", err)
			exitCode = ExitFailure
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d window(s).\n", removed)
		return nil
	},
}

func describeStore(store ratelimit.Backend, cfg config.Config) string {
	switch s := store.(type) {
	case *ratelimit.FileStore:
		return "file:" + s.Path()
	case *ratelimit.RedisStore:
		return fmt.Sprintf("redis:%s/%s", cfg.RateLimit.RedisAddr, cfg.RateLimit.RedisKey)
	case *ratelimit.LibSQLStore:
		return "libsql:" + cfg.RateLimit.LibSQLPath
	default:
		return cfg.RateLimit.Backend
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func init() {
	ratelimitShowCmd.Flags().StringVar(&flagFormat, "format", "table", "Output format (table, json)")
	ratelimitCmd.AddCommand(ratelimitShowCmd)
	ratelimitCmd.AddCommand(ratelimitResetCmd)
}
