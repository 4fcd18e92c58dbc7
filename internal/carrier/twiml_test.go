package carrier

import (
	"strings"
	"testing"
)

func TestDeclineTwiMLWithMessage(t *testing.T) {
	xml, err := DeclineTwiML("This number is not in service.")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(xml, "<Say>This number is not in service.</Say>") {
		t.Fatalf("expected Say verb in xml: %s", xml)
	}
	if !strings.Contains(xml, "<Hangup") {
		t.Fatalf("expected Hangup verb in xml: %s", xml)
	}
}

func TestDeclineTwiMLWithoutMessage(t *testing.T) {
	xml, err := DeclineTwiML("")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(xml, `<Reject reason="busy"`) {
		t.Fatalf("expected Reject verb in xml: %s", xml)
	}
}

func TestConnectStreamTwiML(t *testing.T) {
	xml, err := ConnectStreamTwiML("wss://vendor.example.com/stream/sess-1", map[string]string{
		"org_id":  "T1",
		"callSid": "CA1",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(xml, `<Stream url="wss://vendor.example.com/stream/sess-1">`) {
		t.Fatalf("expected Stream url in xml: %s", xml)
	}
	// Parameters come out in sorted key order.
	callSidIdx := strings.Index(xml, `name="callSid"`)
	orgIdx := strings.Index(xml, `name="org_id"`)
	if callSidIdx < 0 || orgIdx < 0 || callSidIdx > orgIdx {
		t.Fatalf("expected sorted parameters in xml: %s", xml)
	}
}

func TestConnectStreamTwiMLRequiresURL(t *testing.T) {
	if _, err := ConnectStreamTwiML("  ", nil); err == nil {
		t.Fatalf("expected error")
	}
}
