package payment

import "strings"

type Status string

const (
	StatusUnknown   Status = "unknown"
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
)

// ParseStatus maps provider and API status strings onto Status.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending", "processing":
		return StatusPending
	case "completed", "success", "succeeded", "paid":
		return StatusCompleted
	case "failed", "failure", "expired":
		return StatusFailed
	case "cancelled", "canceled":
		return StatusCancelled
	case "refunded":
		return StatusRefunded
	}
	return StatusUnknown
}

// IsTerminal reports whether a callback can no longer move the status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled || s == StatusRefunded
}

// CanTransitionTo returns true if the status may move to target.
// Nothing re-enters Pending and Refunded is only reachable from Completed.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusUnknown:
		return target == StatusPending
	case StatusPending:
		return target == StatusCompleted || target == StatusFailed || target == StatusCancelled
	case StatusCompleted:
		return target == StatusRefunded
	}
	return false
}
