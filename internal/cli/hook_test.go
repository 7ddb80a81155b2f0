package cli

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustScript(t *testing.T, template, ticket string) string {
	t.Helper()
	s, err := generateHookScript(template, ticket)
	require.NoError(t, err)
	return s
}

func TestGenerateHookScript(t *testing.T) {
	script := mustScript(t, "summary", "")

	assert.True(t, strings.HasPrefix(script, hookMarkerStart))
	assert.True(t, strings.HasSuffix(script, hookMarkerEnd+"\n"))
	assert.Contains(t, script, `diffsum summarize --staged > "$1.diffsum"`)
	assert.Contains(t, script, `if [ -z "$2" ]; then`)
	assert.Contains(t, script, "DIFFSUM_EXIT=$?")
	assert.Contains(t, script, "continuing")
	assert.NotContains(t, script, "exit 1")
}

func TestGenerateHookScript_PullRequest(t *testing.T) {
	assert.Contains(t, mustScript(t, "pr", "ABC-9"), "diffsum describe --staged --ticket ABC-9")
	assert.Contains(t, mustScript(t, "pr", ""), "--ticket XXX-0000")
}

func TestGenerateHookScript_Rejects(t *testing.T) {
	_, err := generateHookScript("haiku", "")
	assert.ErrorContains(t, err, "unknown prompt template")

	_, err = generateHookScript("pr", "ABC-1; rm -rf /")
	assert.ErrorContains(t, err, "invalid ticket")
}

func TestReplaceHookSection_NoExisting(t *testing.T) {
	existing := "#!/bin/sh\nsome-other-hook\n"
	result := replaceHookSection(existing, mustScript(t, "summary", ""))

	assert.True(t, strings.HasPrefix(result, existing))
	assert.Contains(t, result, hookMarkerStart)
}

func TestReplaceHookSection_ExistingSection(t *testing.T) {
	existing := "#!/bin/sh\nbefore\n" + mustScript(t, "summary", "") + "after\n"
	result := replaceHookSection(existing, mustScript(t, "pr", "NEW-1"))

	assert.Contains(t, result, "before")
	assert.Contains(t, result, "after")
	assert.Contains(t, result, "--ticket NEW-1")
	assert.NotContains(t, result, "diffsum summarize")
	assert.Equal(t, 1, strings.Count(result, hookMarkerStart))
}

func TestReplaceHookSection_NoTrailingNewline(t *testing.T) {
	result := replaceHookSection("#!/bin/sh\nsome-hook", mustScript(t, "summary", ""))
	assert.Contains(t, result, "some-hook\n"+hookMarkerStart)
}

func TestRemoveHookSection(t *testing.T) {
	existing := "#!/bin/sh\nbefore\n" + mustScript(t, "summary", "") + "after\n"
	assert.Equal(t, "#!/bin/sh\nbefore\nafter\n", removeHookSection(existing))

	plain := "#!/bin/sh\nsome-hook\n"
	assert.Equal(t, plain, removeHookSection(plain))
}

func TestHookInstallUninstall(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	isolate(t)
	dir := t.TempDir()
	out, err := exec.Command("git", "-C", dir, "init").CombinedOutput()
	require.NoError(t, err, string(out))
	t.Chdir(dir)

	hookPath := filepath.Join(dir, ".git", "hooks", hookName)

	code, stdout, _ := runCLI(t, "", "hook", "install")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "Installed diffsum prepare-commit-msg hook")

	data, err := os.ReadFile(hookPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "#!/bin/sh\n"+hookMarkerStart))

	info, err := os.Stat(hookPath)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0o100)

	code, stdout, _ = runCLI(t, "", "hook", "uninstall")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "Removed diffsum prepare-commit-msg hook")
	assert.NoFileExists(t, hookPath)

	code, stdout, _ = runCLI(t, "", "hook", "uninstall")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "No prepare-commit-msg hook found.")
}
