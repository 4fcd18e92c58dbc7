package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - org_id is required for tenancy isolation, except for untenanted
//   reconciliation rejects where the whole point is that no org could be
//   determined; those are recorded under the reserved org "unattributed".
// - Audit writes are best-effort; do not block webhook flows on audit failures.
//
// Storage recommendation (Postgres):
// - Table audit_events with an INSERT-only policy.
// - Optional: trigger to prevent UPDATE/DELETE.
// - Optional: partition by time for retention.

type Event struct {
	ID    string `json:"id" db:"id"`
	OrgID string `json:"org_id" db:"org_id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the authenticated user causing the event (if applicable).
	// Webhook-driven events have no actor.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	// ActorRole may include hidden roles.
	ActorRole string `json:"actor_role,omitempty" db:"actor_role"`

	// Target identifiers (optional, depending on the event type).
	RegistrationID  string `json:"registration_id,omitempty" db:"registration_id"`
	VendorSessionID string `json:"vendor_session_id,omitempty" db:"vendor_session_id"`
	CarrierCallSID  string `json:"carrier_call_sid,omitempty" db:"carrier_call_sid"`
	Number          string `json:"number,omitempty" db:"number"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	// EventTypeReconcileRejected records a completion event dropped because
	// its ownership metadata carried no org id. These must be loud: a silent
	// drop makes billing data silently wrong.
	EventTypeReconcileRejected EventType = "reconcile_rejected"

	// EventTypeOwnershipMismatch records a completion event whose metadata
	// claimed a different org than the stored call record. The record is
	// never touched; the attempt itself is the signal.
	EventTypeOwnershipMismatch EventType = "ownership_mismatch"

	// EventTypeRegistryChange records admin mutations of phone registrations.
	EventTypeRegistryChange EventType = "registry_change"
)

// OrgUnattributed is the reserved org id for events that could not be tied
// to any tenant.
const OrgUnattributed = "unattributed"
