package session

import (
	"strings"

	"github.com/pitchdrill/pitchdrill/pkg/lessons"
	"github.com/pitchdrill/pitchdrill/pkg/store"
)

// ExtractOutcome detects termination markers in an assistant reply and
// returns the reply with every marker stripped. When both markers occur
// the earliest occurrence wins and ambiguous is true so the caller can
// log it.
func ExtractOutcome(text string) (outcome store.Outcome, clean string, ambiguous bool) {
	idxClose := strings.Index(text, lessons.MarkerClose)
	idxNoClose := strings.Index(text, lessons.MarkerNoClose)

	switch {
	case idxClose < 0 && idxNoClose < 0:
		outcome = store.OutcomeNone
	case idxNoClose < 0:
		outcome = store.OutcomeClosed
	case idxClose < 0:
		outcome = store.OutcomeNotClosed
	default:
		ambiguous = true
		if idxClose <= idxNoClose {
			outcome = store.OutcomeClosed
		} else {
			outcome = store.OutcomeNotClosed
		}
	}

	clean = strings.ReplaceAll(text, lessons.MarkerClose, "")
	clean = strings.ReplaceAll(clean, lessons.MarkerNoClose, "")
	return outcome, strings.TrimSpace(clean), ambiguous
}
