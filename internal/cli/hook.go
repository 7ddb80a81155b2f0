package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/diffsum/internal/prompt"
)

const (
	hookMarkerStart = "# >>> diffsum prepare-commit-msg hook >>>"
	hookMarkerEnd   = "# <<< diffsum prepare-commit-msg hook <<<"
	hookName        = "prepare-commit-msg"
)

var (
	hookTemplate string
	hookTicket   string
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Manage the git prepare-commit-msg hook",
}

var hookInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install diffsum as a prepare-commit-msg hook that drafts the message from the staged diff",
	RunE: func(cmd *cobra.Command, args []string) error {
		section, err := generateHookScript(hookTemplate, hookTicket)
		if err != nil {
			return err
		}

		hookPath, err := getHookPath(commandContext(cmd))
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			exitCode = ExitFailure
			return nil
		}

		existing, err := os.ReadFile(hookPath)
		if err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error reading hook file: %v\n", err)
			exitCode = ExitFailure
			return nil
		}

		var content string
		if os.IsNotExist(err) || len(existing) == 0 {
			content = "#!/bin/sh\n" + section
		} else {
			content = replaceHookSection(string(existing), section)
		}

		if err := os.MkdirAll(filepath.Dir(hookPath), 0o755); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error creating hooks directory: %v\n", err)
			exitCode = ExitFailure
			return nil
		}

		if err := os.WriteFile(hookPath, []byte(content), 0o755); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error writing hook file: %v\n", err)
			exitCode = ExitFailure
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Installed diffsum %s hook at %s\n", hookName, hookPath)
		return nil
	},
}

var hookUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the diffsum prepare-commit-msg hook",
	RunE: func(cmd *cobra.Command, args []string) error {
		hookPath, err := getHookPath(commandContext(cmd))
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			exitCode = ExitFailure
			return nil
		}

		existing, err := os.ReadFile(hookPath)
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Fprintf(cmd.OutOrStdout(), "No %s hook found.\n", hookName)
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Error reading hook file: %v\n", err)
			exitCode = ExitFailure
			return nil
		}

		content := removeHookSection(string(existing))

		// Only a shebang left: drop the file
		trimmed := strings.TrimSpace(content)
		if trimmed == "" || trimmed == "#!/bin/sh" || trimmed == "#!/bin/bash" {
			if err := os.Remove(hookPath); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error removing hook file: %v\n", err)
				exitCode = ExitFailure
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed diffsum %s hook at %s\n", hookName, hookPath)
			return nil
		}

		if err := os.WriteFile(hookPath, []byte(content), 0o755); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error writing hook file: %v\n", err)
			exitCode = ExitFailure
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Removed diffsum section from %s\n", hookPath)
		return nil
	},
}

func getHookPath(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "git", "rev-parse", "--git-path", "hooks").Output()
	if err != nil {
		return "", fmt.Errorf("not a git repository (git rev-parse --git-path hooks failed)")
	}
	return filepath.Join(strings.TrimSpace(string(out)), hookName), nil
}

// generateHookScript renders the hook section. The draft is only written for
// plain `git commit` ($2 empty) and a failure never blocks the commit.
func generateHookScript(template, ticket string) (string, error) {
	tmpl, err := prompt.Lookup(template, ticket)
	if err != nil {
		return "", err
	}

	command := "diffsum summarize --staged"
	if tmpl.Name == prompt.NamePullRequest {
		ticket = strings.TrimSpace(ticket)
		if ticket == "" {
			ticket = prompt.DefaultTicket
		}
		if strings.ContainsAny(ticket, " \t\n'\"$`\\;|&<>") {
			return "", fmt.Errorf("invalid ticket %q", ticket)
		}
		command = "diffsum describe --staged --ticket " + ticket
	}

	var b strings.Builder
	b.WriteString(hookMarkerStart + "\n")
	b.WriteString("if [ -z \"$2\" ]; then\n")
	b.WriteString("  " + command + " > \"$1.diffsum\"\n")
	b.WriteString("  DIFFSUM_EXIT=$?\n")
	b.WriteString("  if [ $DIFFSUM_EXIT -eq 0 ]; then\n")
	b.WriteString("    cat \"$1\" >> \"$1.diffsum\" && mv \"$1.diffsum\" \"$1\"\n")
	b.WriteString("  else\n")
	b.WriteString("    rm -f \"$1.diffsum\"\n")
	b.WriteString("    echo \"diffsum: could not draft commit message (exit $DIFFSUM_EXIT), continuing\" >&2\n")
	b.WriteString("  fi\n")
	b.WriteString("fi\n")
	b.WriteString(hookMarkerEnd + "\n")
	return b.String(), nil
}

func replaceHookSection(existing, section string) string {
	startIdx := strings.Index(existing, hookMarkerStart)
	endIdx := strings.Index(existing, hookMarkerEnd)

	if startIdx == -1 || endIdx == -1 {
		if !strings.HasSuffix(existing, "\n") {
			existing += "\n"
		}
		return existing + section
	}

	before := existing[:startIdx]
	after := existing[endIdx+len(hookMarkerEnd):]
	after = strings.TrimPrefix(after, "\n")
	return before + section + after
}

func removeHookSection(existing string) string {
	startIdx := strings.Index(existing, hookMarkerStart)
	endIdx := strings.Index(existing, hookMarkerEnd)

	if startIdx == -1 || endIdx == -1 {
		return existing
	}

	before := existing[:startIdx]
	after := existing[endIdx+len(hookMarkerEnd):]
	after = strings.TrimPrefix(after, "\n")

	return before + after
}

func init() {
	hookCmd.AddCommand(hookInstallCmd)
	hookCmd.AddCommand(hookUninstallCmd)
	hookInstallCmd.Flags().StringVar(&hookTemplate, "template", prompt.NameSummary, "Prompt template for the draft (summary, pr)")
	hookInstallCmd.Flags().StringVar(&hookTicket, "ticket", prompt.DefaultTicket, "Ticket reference for the pr template")
}
