package registry

import (
	"errors"
	"time"
)

// Registration binds a caller-facing phone number to the org and voice agent
// that should answer calls from it.
//
// Lookup key subtlety: the number stored here is the CALLER's number, not the
// dialed number. Many orgs share the same pool of answering numbers, so the
// dialed number cannot identify a tenant.
//
// Lifecycle:
// - created when an org provisions a number
// - agent binding and active flag mutated by org admins
// - never deleted while calls reference it; soft-disable via Active=false
type Registration struct {
	ID     string `json:"id" db:"id"`
	Number string `json:"number" db:"number"` // E.164
	OrgID  string `json:"org_id" db:"org_id"`

	// AgentID is the internal voice agent; VendorAgentID is the vendor's id
	// for the same agent. Both empty means no agent is configured and
	// inbound calls from this number are declined.
	AgentID       string `json:"agent_id,omitempty" db:"agent_id"`
	VendorAgentID string `json:"vendor_agent_id,omitempty" db:"vendor_agent_id"`

	Active bool `json:"active" db:"active"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasAgent reports whether an inbound call from this number can be answered.
func (r Registration) HasAgent() bool {
	return r.VendorAgentID != ""
}

var (
	ErrNotFound        = errors.New("registry: registration not found")
	ErrNumberTaken     = errors.New("registry: number already registered")
	ErrInvalidArgument = errors.New("registry: invalid argument")
)
