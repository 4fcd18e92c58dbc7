// Package carrier is the telephony-carrier adapter boundary. It parses
// webhook payloads and renders TwiML; no routing or ownership decisions are
// made here.
package carrier

import (
	"net/http"
	"strings"
)

// InboundCall captures the subset of voice webhook fields we care about.
// The carrier sends application/x-www-form-urlencoded by default.
type InboundCall struct {
	CallSID       string
	AccountSID    string
	From          string
	To            string
	Direction     string
	CallStatus    string
	CallerName    string
	ForwardedFrom string
}

// ParseInboundCall reads the voice webhook form. Note: From is the CALLER's
// number and To is the dialed number; everything downstream keys on From.
func ParseInboundCall(r *http.Request) (InboundCall, error) {
	if err := r.ParseForm(); err != nil {
		return InboundCall{}, err
	}
	return InboundCall{
		CallSID:       r.PostFormValue("CallSid"),
		AccountSID:    r.PostFormValue("AccountSid"),
		From:          normalizePhone(r.PostFormValue("From")),
		To:            normalizePhone(r.PostFormValue("To")),
		Direction:     r.PostFormValue("Direction"),
		CallStatus:    r.PostFormValue("CallStatus"),
		CallerName:    r.PostFormValue("CallerName"),
		ForwardedFrom: normalizePhone(r.PostFormValue("ForwardedFrom")),
	}, nil
}

// StatusCallback is the call progress echo. The carrier may deliver it as a
// form POST or with query parameters depending on webhook configuration.
type StatusCallback struct {
	CallSID      string
	CallStatus   string
	CallDuration string
}

func ParseStatusCallback(r *http.Request) (StatusCallback, error) {
	if err := r.ParseForm(); err != nil {
		return StatusCallback{}, err
	}
	get := func(key string) string {
		if v := r.PostFormValue(key); v != "" {
			return v
		}
		return r.URL.Query().Get(key)
	}
	return StatusCallback{
		CallSID:      get("CallSid"),
		CallStatus:   get("CallStatus"),
		CallDuration: get("CallDuration"),
	}, nil
}

func normalizePhone(s string) string {
	s = strings.TrimSpace(s)
	// The carrier sometimes sends "anonymous" or empty; keep as-is.
	return s
}
