package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"voicegate/internal/callrecord"
	"voicegate/internal/registry"
	"voicegate/internal/voiceai"

	"github.com/gin-gonic/gin"
)

func newTestRegistry(t *testing.T, regs ...registry.Registration) *registry.Service {
	t.Helper()
	repo := registry.NewMemoryRepo()
	for _, r := range regs {
		if err := repo.Insert(context.Background(), r); err != nil {
			t.Fatalf("insert registration: %v", err)
		}
	}
	return registry.NewService(repo, nil, nil, nil)
}

func postInbound(t *testing.T, h *Handler, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/webhooks/carrier/voice", h.HandleInboundCall)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/carrier/voice", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.ServeHTTP(w, req)
	return w
}

func inboundForm(from, to, sid string) url.Values {
	form := url.Values{}
	form.Set("CallSid", sid)
	form.Set("From", from)
	form.Set("To", to)
	form.Set("CallStatus", "ringing")
	return form
}

func activeRegistration() registry.Registration {
	return registry.Registration{
		ID:            "reg-1",
		Number:        "+15550001111",
		OrgID:         "T1",
		AgentID:       "agent-1",
		VendorAgentID: "asst-1",
		Active:        true,
	}
}

func TestInbound_RegisteredCallerForwarded(t *testing.T) {
	records := callrecord.NewMemoryRepo()
	vendor := &voiceai.Fake{
		StartSessionFunc: func(ctx context.Context, req voiceai.StartSessionRequest) (voiceai.StartSessionResponse, error) {
			return voiceai.StartSessionResponse{SessionID: "sess-1", StreamURL: "wss://vendor/stream/sess-1"}, nil
		},
	}
	h := NewHandler(newTestRegistry(t, activeRegistration()), vendor, records, nil, nil)

	w := postInbound(t, h, inboundForm("+15550001111", "+15559990000", "CA1"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `<Stream url="wss://vendor/stream/sess-1"`) {
		t.Fatalf("expected connect stream twiml: %s", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `name="sessionId" value="sess-1"`) {
		t.Fatalf("expected session id parameter: %s", w.Body.String())
	}

	// Session start carried the full ownership bag.
	if len(vendor.StartedWith) != 1 {
		t.Fatalf("expected one session start, got %d", len(vendor.StartedWith))
	}
	meta := vendor.StartedWith[0].Metadata
	if meta[callrecord.MetaOrgID] != "T1" || meta[callrecord.MetaRegistrationID] != "reg-1" || meta[callrecord.MetaCarrierCallSID] != "CA1" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}

	// And an initiated record exists under the vendor session id.
	rec, err := records.GetBySessionID(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("record missing: %v", err)
	}
	if rec.OrgID != "T1" || rec.Status != callrecord.StatusInitiated || rec.CarrierCallSID != "CA1" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestInbound_UnknownCallerDeclined(t *testing.T) {
	records := callrecord.NewMemoryRepo()
	vendor := &voiceai.Fake{}
	h := NewHandler(newTestRegistry(t), vendor, records, nil, nil)

	w := postInbound(t, h, inboundForm("+15557778888", "+15559990000", "CA2"))
	if w.Code != http.StatusOK {
		t.Fatalf("carrier webhooks must get 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<Say>") || !strings.Contains(w.Body.String(), "<Hangup") {
		t.Fatalf("expected spoken decline: %s", w.Body.String())
	}
	if len(vendor.StartedWith) != 0 {
		t.Fatalf("vendor must not be called for unknown callers")
	}
	if records.Len() != 0 {
		t.Fatalf("declined calls must not create records")
	}
}

func TestInbound_InactiveCallerDeclinedLikeUnknown(t *testing.T) {
	reg := activeRegistration()
	reg.Active = false
	vendor := &voiceai.Fake{}
	h := NewHandler(newTestRegistry(t, reg), vendor, callrecord.NewMemoryRepo(), nil, nil)

	w := postInbound(t, h, inboundForm(reg.Number, "+15559990000", "CA3"))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), msgUnknownNumber) {
		t.Fatalf("inactive must look like unknown: %d %s", w.Code, w.Body.String())
	}
	if len(vendor.StartedWith) != 0 {
		t.Fatalf("vendor must not be called for inactive registrations")
	}
}

func TestInbound_NoAgentBoundDeclined(t *testing.T) {
	reg := activeRegistration()
	reg.AgentID = ""
	reg.VendorAgentID = ""
	vendor := &voiceai.Fake{}
	h := NewHandler(newTestRegistry(t, reg), vendor, callrecord.NewMemoryRepo(), nil, nil)

	w := postInbound(t, h, inboundForm(reg.Number, "+15559990000", "CA4"))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), msgNoAgent) {
		t.Fatalf("expected no-agent decline: %d %s", w.Code, w.Body.String())
	}
	if len(vendor.StartedWith) != 0 {
		t.Fatalf("vendor must not be called without a bound agent")
	}
}

func TestInbound_VendorFailureDeclinedWithoutRecord(t *testing.T) {
	records := callrecord.NewMemoryRepo()
	vendor := &voiceai.Fake{
		StartSessionFunc: func(ctx context.Context, req voiceai.StartSessionRequest) (voiceai.StartSessionResponse, error) {
			return voiceai.StartSessionResponse{}, errors.New("boom")
		},
	}
	h := NewHandler(newTestRegistry(t, activeRegistration()), vendor, records, nil, nil)

	w := postInbound(t, h, inboundForm("+15550001111", "+15559990000", "CA5"))
	if w.Code != http.StatusOK {
		t.Fatalf("vendor failure still answers 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), msgVendorDown) {
		t.Fatalf("expected vendor-down decline: %s", w.Body.String())
	}
	if records.Len() != 0 {
		t.Fatalf("no record for a call that never reached the vendor")
	}
}

func TestInbound_RecordStoreFailureStillForwards(t *testing.T) {
	vendor := &voiceai.Fake{
		StartSessionFunc: func(ctx context.Context, req voiceai.StartSessionRequest) (voiceai.StartSessionResponse, error) {
			return voiceai.StartSessionResponse{SessionID: "sess-9", StreamURL: "wss://vendor/stream/sess-9"}, nil
		},
	}
	h := NewHandler(newTestRegistry(t, activeRegistration()), vendor, failingRecords{}, nil, nil)

	w := postInbound(t, h, inboundForm("+15550001111", "+15559990000", "CA6"))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "<Stream") {
		t.Fatalf("store failure must not drop the live call: %d %s", w.Code, w.Body.String())
	}
}

func TestInbound_CapExceededDeclinedBusy(t *testing.T) {
	records := callrecord.NewMemoryRepo()
	vendor := &voiceai.Fake{}
	lim := &countingLimiter{allow: false}
	h := NewHandler(newTestRegistry(t, activeRegistration()), vendor, records, lim, nil)

	w := postInbound(t, h, inboundForm("+15550001111", "+15559990000", "CA7"))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "<Reject") {
		t.Fatalf("expected busy rejection: %d %s", w.Code, w.Body.String())
	}
	if len(vendor.StartedWith) != 0 {
		t.Fatalf("vendor must not be called when the org is at its cap")
	}
	if records.Len() != 0 {
		t.Fatalf("capped calls must not create records")
	}
	if lim.releases != 0 {
		t.Fatalf("a slot that was never taken must not be released, got %d", lim.releases)
	}
}

func TestInbound_VendorFailureReleasesSlot(t *testing.T) {
	vendor := &voiceai.Fake{
		StartSessionFunc: func(ctx context.Context, req voiceai.StartSessionRequest) (voiceai.StartSessionResponse, error) {
			return voiceai.StartSessionResponse{}, errors.New("boom")
		},
	}
	lim := &countingLimiter{allow: true}
	h := NewHandler(newTestRegistry(t, activeRegistration()), vendor, callrecord.NewMemoryRepo(), lim, nil)

	w := postInbound(t, h, inboundForm("+15550001111", "+15559990000", "CA8"))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), msgVendorDown) {
		t.Fatalf("expected vendor-down decline: %d %s", w.Code, w.Body.String())
	}
	// No session means no completion webhook, so the handler owns the slot.
	if lim.acquires != 1 || lim.releases != 1 {
		t.Fatalf("expected 1 acquire / 1 release, got %d/%d", lim.acquires, lim.releases)
	}
}

func TestInbound_RenderFailureLeavesSlotToCompletion(t *testing.T) {
	records := callrecord.NewMemoryRepo()
	// An empty stream URL makes the connect response unbuildable after the
	// session already started.
	vendor := &voiceai.Fake{
		StartSessionFunc: func(ctx context.Context, req voiceai.StartSessionRequest) (voiceai.StartSessionResponse, error) {
			return voiceai.StartSessionResponse{SessionID: "sess-2", StreamURL: ""}, nil
		},
	}
	lim := &countingLimiter{allow: true}
	h := NewHandler(newTestRegistry(t, activeRegistration()), vendor, records, lim, nil)

	w := postInbound(t, h, inboundForm("+15550001111", "+15559990000", "CA9"))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), msgVendorDown) {
		t.Fatalf("expected decline after render failure: %d %s", w.Code, w.Body.String())
	}
	// The session is live and will report completion; releasing here as well
	// would free the org's slot twice.
	if lim.acquires != 1 || lim.releases != 0 {
		t.Fatalf("expected 1 acquire / 0 releases, got %d/%d", lim.acquires, lim.releases)
	}
	if _, err := records.GetBySessionID(context.Background(), "sess-2"); err != nil {
		t.Fatalf("record for the live session must exist: %v", err)
	}
}

func TestInbound_ForwardedCallKeepsSlot(t *testing.T) {
	vendor := &voiceai.Fake{
		StartSessionFunc: func(ctx context.Context, req voiceai.StartSessionRequest) (voiceai.StartSessionResponse, error) {
			return voiceai.StartSessionResponse{SessionID: "sess-3", StreamURL: "wss://vendor/stream/sess-3"}, nil
		},
	}
	lim := &countingLimiter{allow: true}
	h := NewHandler(newTestRegistry(t, activeRegistration()), vendor, callrecord.NewMemoryRepo(), lim, nil)

	w := postInbound(t, h, inboundForm("+15550001111", "+15559990000", "CA10"))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "<Stream") {
		t.Fatalf("expected forwarded call: %d %s", w.Code, w.Body.String())
	}
	if lim.acquires != 1 || lim.releases != 0 {
		t.Fatalf("forwarded call holds its slot until completion, got %d/%d", lim.acquires, lim.releases)
	}
}

// countingLimiter records acquire/release traffic for cap assertions.
type countingLimiter struct {
	allow    bool
	acquires int
	releases int
}

func (l *countingLimiter) Acquire(ctx context.Context, orgID string) (bool, error) {
	l.acquires++
	return l.allow, nil
}

func (l *countingLimiter) Release(ctx context.Context, orgID string) error {
	l.releases++
	return nil
}

// failingRecords simulates a call record store outage.
type failingRecords struct{}

func (failingRecords) FindOrCreate(ctx context.Context, id string, own callrecord.Ownership, seed callrecord.Seed) (callrecord.CallRecord, bool, error) {
	return callrecord.CallRecord{}, false, errors.New("store down")
}

func (failingRecords) ApplyCompletion(ctx context.Context, orgID, id string, upd callrecord.CompletionUpdate) (callrecord.CallRecord, error) {
	return callrecord.CallRecord{}, errors.New("store down")
}

func (failingRecords) UpdateStatusByCarrierSID(ctx context.Context, sid string, st callrecord.Status) error {
	return errors.New("store down")
}

func (failingRecords) GetBySessionID(ctx context.Context, id string) (callrecord.CallRecord, error) {
	return callrecord.CallRecord{}, errors.New("store down")
}

func (failingRecords) ListByOrg(ctx context.Context, orgID string, f callrecord.ListFilter) ([]callrecord.CallRecord, error) {
	return nil, errors.New("store down")
}
