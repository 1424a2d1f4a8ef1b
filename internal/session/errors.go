package session

// Reason is a machine-readable rejection code for a spend or finish request.
// Rejections are part of normal gameplay and travel in the response body,
// never as transport errors.
type Reason string

const (
	ReasonSessionNotFound    Reason = "session_not_found"
	ReasonForeignSession     Reason = "foreign_session"
	ReasonSessionExpired     Reason = "session_expired"
	ReasonSessionFinished    Reason = "session_finished"
	ReasonInvalidItem        Reason = "invalid_item"
	ReasonAmountMismatch     Reason = "amount_mismatch"
	ReasonInsufficientBudget Reason = "insufficient_budget"
)

// Message returns the player-facing text for the reason.
func (r Reason) Message() string {
	switch r {
	case ReasonSessionNotFound:
		return "Session not found"
	case ReasonForeignSession:
		return "Foreign session"
	case ReasonSessionExpired:
		return "Time is up"
	case ReasonSessionFinished:
		return "Session is already finished"
	case ReasonInvalidItem:
		return "Unknown item"
	case ReasonAmountMismatch:
		return "Price mismatch, reload the app"
	case ReasonInsufficientBudget:
		return "Not enough budget left"
	default:
		return string(r)
	}
}
