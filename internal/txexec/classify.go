package txexec

import (
	"context"
	"errors"
	"strings"

	"faillapop/go-client/internal/provider"
	"faillapop/go-client/pkg/models"
)

// classifySubmission maps a synchronous submission failure onto the outcome
// taxonomy at its point of origin. Callers never see a bare error from the
// submission path.
func classifySubmission(err error, budgetExpired bool) Outcome {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || budgetExpired:
		return Outcome{Status: models.StatusTimedOut, Stage: StageSubmission, Err: err}
	case provider.IsUserRejection(err):
		return Outcome{Status: models.StatusRejected, Err: err}
	}
	if reason, ok := revertReason(err); ok {
		return Outcome{Status: models.StatusReverted, Reason: reason, Err: err}
	}
	var pe *provider.Error
	if errors.As(err, &pe) || errors.Is(err, provider.ErrUnreachable) {
		return Outcome{Status: models.StatusUnreachable, Err: err}
	}
	// Everything else failed a precondition before any network round trip
	// (invalid listing, already-sold record).
	return Outcome{Status: models.StatusReverted, Reason: err.Error(), Err: err}
}

// revertReason extracts the remote-supplied revert reason from a provider
// error, verbatim when present. The second return is false when the error
// is not a revert at all.
func revertReason(err error) (string, bool) {
	var pe *provider.Error
	if !errors.As(err, &pe) {
		return "", false
	}
	msg := pe.Message
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "execution reverted"):
		_, reason, found := strings.Cut(msg, "execution reverted")
		if !found {
			return "", true
		}
		reason = strings.TrimLeft(reason, ": ")
		return strings.TrimSpace(reason), true
	case strings.Contains(lower, "insufficient funds"):
		return msg, true
	case strings.Contains(lower, "revert"):
		return strings.TrimSpace(msg), true
	default:
		return "", false
	}
}
