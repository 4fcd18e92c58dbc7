package callrecord

import (
	"errors"
	"time"
)

// CallRecord is the durable, org-partitioned record of one vendor voice
// session, keyed by the vendor's session id.
//
// Ownership invariant: OrgID, AgentID and RegistrationID are written exactly
// once, at row creation, from the Phone Registry lookup (or from validated
// vendor metadata when the completion event arrives first). No code path in
// this package updates them afterwards; later events carrying different
// values cannot move a record between tenants.
type CallRecord struct {
	ID              string `json:"id" db:"id"`
	VendorSessionID string `json:"vendor_session_id" db:"vendor_session_id"`

	OrgID          string `json:"org_id" db:"org_id"`
	AgentID        string `json:"agent_id" db:"agent_id"`
	RegistrationID string `json:"registration_id" db:"registration_id"`

	CallerNumber string `json:"caller_number" db:"caller_number"`
	DialedNumber string `json:"dialed_number" db:"dialed_number"`

	Status Status `json:"status" db:"status"`

	// CarrierCallSID correlates best-effort carrier status echoes.
	// It is a first-class indexed column, never trusted for ownership.
	CarrierCallSID string `json:"carrier_call_sid,omitempty" db:"carrier_call_sid"`

	StartedAt       *time.Time `json:"started_at,omitempty" db:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	DurationSeconds *int       `json:"duration_seconds,omitempty" db:"duration_seconds"`

	// Filled only by the reconciler from the vendor completion event.
	RecordingURL *string `json:"recording_url,omitempty" db:"recording_url"`
	Transcript   *string `json:"transcript,omitempty" db:"transcript"`
	Summary      *string `json:"summary,omitempty" db:"summary"`
	Analysis     *string `json:"analysis,omitempty" db:"analysis"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusInitiated  Status = "initiated"
	StatusRinging    Status = "ringing"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRejected   Status = "rejected"
)

// IsTerminal reports whether the status can no longer change.
// Late carrier status echoes must not resurrect a finished call.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusRejected:
		return true
	default:
		return false
	}
}

func ValidStatus(s Status) bool {
	switch s {
	case StatusInitiated, StatusRinging, StatusInProgress, StatusCompleted, StatusFailed, StatusRejected:
		return true
	default:
		return false
	}
}

var (
	ErrNotFound         = errors.New("callrecord: record not found")
	ErrMissingOwnership = errors.New("callrecord: ownership org_id is required")
)

// Ownership is the metadata bag attached to the vendor session at creation
// and echoed back verbatim on completion. It is not a security token;
// integrity relies on the vendor returning what was sent, which is why the
// store additionally scopes every update by org_id.
type Ownership struct {
	OrgID          string `json:"org_id"`
	AgentID        string `json:"agent_id"`
	RegistrationID string `json:"registration_id"`
	CarrierCallSID string `json:"carrier_call_sid"`
}

// Metadata keys as they travel through the vendor session, chosen once and
// shared by the initiator and the reconciler.
const (
	MetaOrgID          = "org_id"
	MetaAgentID        = "agent_id"
	MetaRegistrationID = "registration_id"
	MetaCarrierCallSID = "carrier_call_sid"
)

// ToMetadata flattens the bag for the vendor session-start request.
func (o Ownership) ToMetadata() map[string]string {
	return map[string]string{
		MetaOrgID:          o.OrgID,
		MetaAgentID:        o.AgentID,
		MetaRegistrationID: o.RegistrationID,
		MetaCarrierCallSID: o.CarrierCallSID,
	}
}

// OwnershipFromMetadata rebuilds the bag from an echoed metadata map.
// Unknown keys are ignored; missing keys yield empty fields. The caller is
// responsible for rejecting an empty OrgID.
func OwnershipFromMetadata(m map[string]string) Ownership {
	return Ownership{
		OrgID:          m[MetaOrgID],
		AgentID:        m[MetaAgentID],
		RegistrationID: m[MetaRegistrationID],
		CarrierCallSID: m[MetaCarrierCallSID],
	}
}

// Seed carries the non-ownership fields for row creation.
type Seed struct {
	CallerNumber string
	DialedNumber string
	Status       Status
	StartedAt    *time.Time
}

// CompletionUpdate carries the vendor-sourced fields applied by the
// reconciler. Nil fields never overwrite stored values: a duplicate delivery
// that lacks a field another delivery carried must not erase it.
type CompletionUpdate struct {
	Status          Status
	StartedAt       *time.Time
	EndedAt         *time.Time
	DurationSeconds *int
	RecordingURL    *string
	Transcript      *string
	Summary         *string
	Analysis        *string
}

// ListFilter narrows ListByOrg results.
type ListFilter struct {
	Status Status
	Since  *time.Time
	Limit  int
	Offset int
}
