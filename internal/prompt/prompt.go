package prompt

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultTicket is the placeholder ticket used in pull request titles.
const DefaultTicket = "XXX-0000"

// Template names.
const (
	NameSummary     = "summary"
	NamePullRequest = "pr"
)

const summaryInstructions = "Summarize the following git changes for non-technical stakeholders. " +
	"Write in simple product/human terms. " +
	"Return 4-8 bullet points, each starting with '- '. " +
	"Don't include code snippets. Avoid file paths and low-level implementation details. " +
	"If changes are purely internal/refactor, say that clearly.\n\n" +
	"Git diff (may be truncated):\n"

const pullRequestInstructions = "Summarize the following git diff into a concise list. " +
	"First output should be a relative title starting with 'chore(%s): DYNAMIC SUMMARY'. " +
	"Then the rest of the output should be, bullet points like this '- [x] '. " +
	"Do not use bold titles or headers. " +
	"Focus on product terms and technical changes:\n\n"

// Template turns a diff payload into the text sent to the model.
type Template struct {
	Name         string
	Instructions string
}

// Render appends payload to the template's instructions.
func (t Template) Render(payload string) string {
	var b strings.Builder
	b.Grow(len(t.Instructions) + len(payload))
	b.WriteString(t.Instructions)
	b.WriteString(payload)
	return b.String()
}

// Summary returns the stakeholder summary template.
func Summary() Template {
	return Template{Name: NameSummary, Instructions: summaryInstructions}
}

// PullRequest returns the pull request description template. An empty ticket
// uses DefaultTicket.
func PullRequest(ticket string) Template {
	ticket = strings.TrimSpace(ticket)
	if ticket == "" {
		ticket = DefaultTicket
	}
	return Template{
		Name:         NamePullRequest,
		Instructions: fmt.Sprintf(pullRequestInstructions, ticket),
	}
}

// Lookup returns the template registered under name.
func Lookup(name, ticket string) (Template, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NameSummary, "":
		return Summary(), nil
	case NamePullRequest:
		return PullRequest(ticket), nil
	default:
		return Template{}, fmt.Errorf("unknown prompt template %q (available: %s)", name, strings.Join(Names(), ", "))
	}
}

// Names lists the available template names.
func Names() []string {
	names := []string{NameSummary, NamePullRequest}
	sort.Strings(names)
	return names
}
