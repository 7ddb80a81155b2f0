// Package summarize turns a diff into model-generated text.
//
// A run tries the full payload first and then progressively shorter copies
// (see [PlanAttempts]). Before each attempt the rendered prompt's token cost
// is reserved with a [BudgetWaiter]. Failures are sorted by a [Classifier]:
// oversized and rate-limited requests move on to the next attempt after a
// short back-off; anything else, or running out of attempts, ends the run
// with an *[Error].
//
// In test mode the run returns [StubSummary] without waiting or calling out.
package summarize
