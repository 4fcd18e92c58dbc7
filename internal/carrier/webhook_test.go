package carrier

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"voicegate/internal/callrecord"
)

func TestParseInboundCall(t *testing.T) {
	form := url.Values{}
	form.Set("CallSid", "CA123")
	form.Set("From", " +15550001111 ")
	form.Set("To", "+15559990000")
	form.Set("CallStatus", "ringing")

	req := httptest.NewRequest("POST", "/webhooks/carrier/voice", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	got, err := ParseInboundCall(req)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.CallSID != "CA123" {
		t.Fatalf("unexpected sid: %q", got.CallSID)
	}
	if got.From != "+15550001111" {
		t.Fatalf("expected trimmed caller number, got %q", got.From)
	}
	if got.To != "+15559990000" {
		t.Fatalf("unexpected dialed number: %q", got.To)
	}
}

func TestParseStatusCallbackFromQuery(t *testing.T) {
	req := httptest.NewRequest("POST", "/webhooks/carrier/status?CallSid=CA9&CallStatus=completed&CallDuration=42", nil)

	got, err := ParseStatusCallback(req)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.CallSID != "CA9" || got.CallStatus != "completed" || got.CallDuration != "42" {
		t.Fatalf("unexpected callback: %+v", got)
	}
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		in   string
		want callrecord.Status
		ok   bool
	}{
		{"ringing", callrecord.StatusRinging, true},
		{"in-progress", callrecord.StatusInProgress, true},
		{"completed", callrecord.StatusCompleted, true},
		{"no-answer", callrecord.StatusFailed, true},
		{"busy", callrecord.StatusFailed, true},
		{"something-new", "", false},
	}
	for _, tc := range tests {
		got, ok := NormalizeStatus(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("NormalizeStatus(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestValidateSignature(t *testing.T) {
	form := url.Values{}
	form.Set("CallSid", "CA123")
	form.Set("From", "+15550001111")

	fullURL := "https://api.example.com/webhooks/carrier/voice"

	// Signature computed with the same scheme must round trip.
	sig := signForTest("token-1", fullURL, form)
	if !ValidateSignature("token-1", fullURL, form, sig) {
		t.Fatalf("expected valid signature")
	}
	if ValidateSignature("token-2", fullURL, form, sig) {
		t.Fatalf("expected invalid signature for wrong token")
	}
	if ValidateSignature("token-1", fullURL, form, "") {
		t.Fatalf("expected invalid for empty signature")
	}
}

func signForTest(authToken, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(fullURL))
	for _, k := range keys {
		mac.Write([]byte(k))
		mac.Write([]byte(form.Get(k)))
	}
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
