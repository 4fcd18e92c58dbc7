package carrier

import "voicegate/internal/callrecord"

// NormalizeStatus maps carrier call progress values onto record statuses.
// Unknown values return false and are dropped by the caller.
func NormalizeStatus(carrierStatus string) (callrecord.Status, bool) {
	switch carrierStatus {
	case "queued", "initiated":
		return callrecord.StatusInitiated, true
	case "ringing":
		return callrecord.StatusRinging, true
	case "in-progress", "answered":
		return callrecord.StatusInProgress, true
	case "completed":
		return callrecord.StatusCompleted, true
	case "busy", "failed", "no-answer", "canceled":
		return callrecord.StatusFailed, true
	default:
		return "", false
	}
}
