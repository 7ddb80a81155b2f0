package tokens

import "unicode/utf8"

// CharsPerToken is the heuristic ratio used to approximate token counts for
// English prose and source code.
const CharsPerToken = 4

// Estimate approximates the number of tokens in text. It never returns less
// than 1, so even an empty prompt is charged against the budget.
func Estimate(text string) int {
	n := utf8.RuneCountInString(text) / CharsPerToken
	if n < 1 {
		return 1
	}
	return n
}
