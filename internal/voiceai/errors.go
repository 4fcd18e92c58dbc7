package voiceai

import (
	"errors"
	"fmt"
)

// ErrKind classifies vendor failures so callers can decide policy without
// inspecting HTTP details.
type ErrKind string

const (
	// ErrKindTimeout: the call exceeded the configured deadline. For a live
	// inbound call this is fatal; the gateway declines and never retries.
	ErrKindTimeout ErrKind = "timeout"
	// ErrKindUnavailable: transport failure or vendor 5xx.
	ErrKindUnavailable ErrKind = "unavailable"
	// ErrKindRejected: vendor 4xx; the request itself was refused.
	ErrKindRejected ErrKind = "rejected"
	// ErrKindDecode: vendor answered 2xx with an unusable body.
	ErrKindDecode ErrKind = "decode"
)

// VendorError is the only error type this package returns for failed calls.
type VendorError struct {
	Kind       ErrKind
	StatusCode int
	Op         string
	Message    string
	cause      error
}

func (e *VendorError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("voiceai: %s %s (http %d): %s", e.Op, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("voiceai: %s %s: %s", e.Op, e.Kind, e.Message)
}

func (e *VendorError) Unwrap() error { return e.cause }

// KindOf extracts the error kind, or "" for non-vendor errors.
func KindOf(err error) ErrKind {
	var ve *VendorError
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return ""
}
