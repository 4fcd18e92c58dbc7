// Package voiceai is the typed client for the conversational voice vendor.
//
// All vendor HTTP traffic goes through this package: the gateway, the
// session initiator and the dashboard handlers never build vendor requests
// themselves. The client is constructed once at process start and injected,
// so there is no lazily-built shared state.
package voiceai

import (
	"context"
	"time"
)

// Client is the vendor API surface this system needs.
type Client interface {
	// StartSession asks the vendor to take over a live inbound call. The
	// metadata bag is attached to the session and contractually echoed back
	// verbatim on the completion webhook.
	StartSession(ctx context.Context, req StartSessionRequest) (StartSessionResponse, error)

	GetAssistant(ctx context.Context, assistantID string) (Assistant, error)
	UpdateAssistant(ctx context.Context, assistantID string, req UpdateAssistantRequest) (Assistant, error)
}

type StartSessionRequest struct {
	AssistantID  string            `json:"assistantId"`
	CallerNumber string            `json:"customerNumber"`
	DialedNumber string            `json:"phoneNumber"`
	Metadata     map[string]string `json:"metadata"`
}

type StartSessionResponse struct {
	// SessionID is the vendor-assigned session id; the idempotency key for
	// all later reconciliation.
	SessionID string `json:"id"`

	// StreamURL is where the carrier should connect the call audio.
	StreamURL string `json:"streamUrl"`
}

// Assistant is the vendor-side voice agent configuration.
type Assistant struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	FirstMessage string `json:"firstMessage"`
	Voice        string `json:"voice"`
	Model        string `json:"model"`
}

// UpdateAssistantRequest patches assistant fields; nil fields are untouched.
type UpdateAssistantRequest struct {
	Name         *string `json:"name,omitempty"`
	FirstMessage *string `json:"firstMessage,omitempty"`
	Voice        *string `json:"voice,omitempty"`
	Model        *string `json:"model,omitempty"`
}

// Config for the HTTP client.
type Config struct {
	BaseURL string
	APIKey  string

	// Timeout bounds every vendor call. Session starts happen inside a
	// carrier webhook deadline, so keep this in the low single digits.
	Timeout time.Duration
}
