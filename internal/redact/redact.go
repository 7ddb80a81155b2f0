package redact

import (
	"path/filepath"
	"regexp"
	"strings"
)

const placeholder = "[REDACTED]"

// secretPatterns are regex heuristics for common secret types.
var secretPatterns = []*regexp.Regexp{
	// Generic API keys (long hex/base64 strings after common key patterns)
	regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)\s*[:=]\s*["']?([A-Za-z0-9/+=_-]{20,})["']?`),
	// AWS access key IDs
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	// AWS secret access keys
	regexp.MustCompile(`(?i)(aws[_-]?secret[_-]?access[_-]?key)\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`),
	// Generic secrets/tokens/passwords in assignments
	regexp.MustCompile(`(?i)(secret|token|password|passwd|credential)\s*[:=]\s*["']([^"']{8,})["']`),
	// Bearer tokens
	regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]{20,}`),
	// JWTs
	regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`),
	// Private key blocks
	regexp.MustCompile(`-----BEGIN\s+(RSA\s+|EC\s+|OPENSSH\s+)?PRIVATE KEY-----`),
	// Connection strings with inline credentials
	regexp.MustCompile(`(?i)\b(postgres(ql)?|mysql|mongodb(\+srv)?|redis|amqp)://[^:\s/]+:[^@\s]+@`),
	// GitHub tokens
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`),
	// Slack tokens
	regexp.MustCompile(`xox[bporas]-[A-Za-z0-9-]{10,}`),
	// Anthropic API keys
	regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`),
	// OpenAI API keys, including project keys
	regexp.MustCompile(`sk-(proj-)?[A-Za-z0-9_-]{20,}`),
	// Generic long hex strings that look like secrets (32+ chars in an assignment)
	regexp.MustCompile(`(?i)(key|secret|token)\s*[:=]\s*["']?[0-9a-f]{32,}["']?`),
}

// Stats counts what a redaction pass removed.
type Stats struct {
	Secrets int
	Files   []string
}

// Any reports whether anything was redacted.
func (s Stats) Any() bool { return s.Secrets > 0 || len(s.Files) > 0 }

// Secrets replaces detected secrets in text with [REDACTED].
func Secrets(text string) string {
	out, _ := secrets(text)
	return out
}

func secrets(text string) (string, int) {
	result := text
	n := 0
	for _, pat := range secretPatterns {
		result = pat.ReplaceAllStringFunc(result, func(match string) string {
			n++
			return placeholder
		})
	}
	return result, n
}

// ShouldRedactPath checks if a file path matches any of the redaction path patterns.
func ShouldRedactPath(path string, patterns []string) bool {
	for _, pattern := range patterns {
		matched, err := filepath.Match(pattern, path)
		if err == nil && matched {
			return true
		}
		// "**/name" also matches name at any depth
		cleanPattern := strings.TrimPrefix(pattern, "**/")
		if cleanPattern != pattern {
			base := filepath.Base(path)
			matched, err = filepath.Match(cleanPattern, base)
			if err == nil && matched {
				return true
			}
		}
	}
	return false
}

// Diff scrubs a unified diff. File sections whose path matches redactPaths
// keep their header and lose their hunks; every other line is scanned for
// secrets. Text outside any "diff --git" section is scanned as well.
func Diff(diff string, redactPaths []string) (string, Stats) {
	var (
		b     strings.Builder
		stats Stats
	)
	b.Grow(len(diff))

	for _, section := range splitSections(diff) {
		path := sectionPath(section)
		if path != "" && ShouldRedactPath(path, redactPaths) {
			b.WriteString(sectionHeader(section))
			b.WriteString(placeholder + " (file content redacted by path policy)\n")
			stats.Files = append(stats.Files, path)
			continue
		}
		out, n := secrets(section)
		stats.Secrets += n
		b.WriteString(out)
	}
	return b.String(), stats
}

// splitSections cuts diff at each "diff --git " line. The first element holds
// any preamble and may be empty.
func splitSections(diff string) []string {
	var sections []string
	start := 0
	for i := 0; i < len(diff); {
		end := strings.IndexByte(diff[i:], '\n')
		next := len(diff)
		if end >= 0 {
			next = i + end + 1
		}
		if i > start && strings.HasPrefix(diff[i:], "diff --git ") {
			sections = append(sections, diff[start:i])
			start = i
		}
		i = next
	}
	return append(sections, diff[start:])
}

// sectionPath returns the post-image path of a "diff --git a/x b/y" section.
func sectionPath(section string) string {
	if !strings.HasPrefix(section, "diff --git ") {
		return ""
	}
	line, _, _ := strings.Cut(section, "\n")
	if idx := strings.LastIndex(line, " b/"); idx >= 0 {
		return line[idx+3:]
	}
	return ""
}

// sectionHeader returns the "diff --git" line and the extended header lines
// that follow it, up to the first hunk.
func sectionHeader(section string) string {
	if idx := strings.Index(section, "\n@@"); idx >= 0 {
		return section[:idx+1]
	}
	if idx := strings.Index(section, "\nGIT binary patch"); idx >= 0 {
		return section[:idx+1]
	}
	if !strings.HasSuffix(section, "\n") {
		return section + "\n"
	}
	return section
}
