// Package gateway answers the carrier's inbound-call webhook. It decides,
// per call, whether to hand the caller to the voice vendor or to decline,
// and it always answers with TwiML and HTTP 200 so the carrier never plays
// its own error recording at the caller.
package gateway

import (
	"log/slog"
	"net/http"

	"voicegate/internal/callrecord"
	"voicegate/internal/carrier"
	"voicegate/internal/registry"
	"voicegate/internal/voiceai"
	"voicegate/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	msgUnknownNumber = "This number is not currently in service. Goodbye."
	msgNoAgent       = "This number is not yet configured to take calls. Goodbye."
	msgVendorDown    = "We are unable to take your call right now. Please try again later."
)

// fallbackTwiML is written raw if TwiML rendering itself fails.
const fallbackTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response><Hangup/></Response>`

type Handler struct {
	registry *registry.Service
	vendor   voiceai.Client
	records  callrecord.Repository
	limiter  Limiter
	log      *slog.Logger
}

func NewHandler(reg *registry.Service, vendor voiceai.Client, records callrecord.Repository, limiter Limiter, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{registry: reg, vendor: vendor, records: records, limiter: limiter, log: log}
}

// HandleInboundCall is the voice webhook. Ownership is resolved from the
// CALLER's number (From), not the dialed number: one dialed entry point
// serves many registered callers.
func (h *Handler) HandleInboundCall(c *gin.Context) {
	log := logger.FromGin(c)
	ctx := c.Request.Context()

	call, err := carrier.ParseInboundCall(c.Request)
	if err != nil {
		log.Warn("inbound webhook parse failed", "err", err)
		h.decline(c, msgUnknownNumber)
		return
	}
	log = log.With("carrier_call_sid", call.CallSID)

	reg, err := h.registry.Resolve(ctx, call.From)
	if err != nil {
		// Unknown and disabled numbers are indistinguishable to the caller.
		log.Info("caller number not registered", "caller", call.From)
		h.decline(c, msgUnknownNumber)
		return
	}
	log = log.With("org_id", reg.OrgID, "registration_id", reg.ID)

	if !reg.HasAgent() {
		log.Warn("registration has no agent bound")
		h.decline(c, msgNoAgent)
		return
	}

	if !h.acquireSlot(c, log, reg.OrgID) {
		// Cap exhausted. Reject with busy so the caller hears a busy tone.
		h.decline(c, "")
		return
	}

	own := callrecord.Ownership{
		OrgID:          reg.OrgID,
		AgentID:        reg.AgentID,
		RegistrationID: reg.ID,
		CarrierCallSID: call.CallSID,
	}
	sess, err := h.vendor.StartSession(ctx, voiceai.StartSessionRequest{
		AssistantID:  reg.VendorAgentID,
		CallerNumber: call.From,
		DialedNumber: call.To,
		Metadata:     own.ToMetadata(),
	})
	if err != nil {
		// No record row exists for a call that never reached the vendor, and
		// no session means no completion webhook, so free the slot here.
		log.Error("vendor session start failed", "kind", voiceai.KindOf(err), "err", err)
		h.releaseSlot(c, log, reg.OrgID)
		h.decline(c, msgVendorDown)
		return
	}
	log = log.With("vendor_session_id", sess.SessionID)

	// Opportunistic: the completion reconciler can rebuild this row from the
	// echoed metadata, so a store failure must not drop the live call.
	if _, _, err := h.records.FindOrCreate(ctx, sess.SessionID, own, callrecord.Seed{
		CallerNumber: call.From,
		DialedNumber: call.To,
		Status:       callrecord.StatusInitiated,
	}); err != nil {
		log.Warn("call record create failed, relying on completion webhook", "err", err)
	}

	xml, err := carrier.ConnectStreamTwiML(sess.StreamURL, map[string]string{
		"sessionId": sess.SessionID,
		"callSid":   call.CallSID,
	})
	if err != nil {
		// The vendor session is already live, so its completion webhook will
		// release the slot; releasing here too would double-free it.
		log.Error("connect twiml render failed", "err", err)
		h.decline(c, msgVendorDown)
		return
	}
	log.Info("inbound call forwarded to vendor")
	h.respond(c, xml)
}

// acquireSlot reports whether the call may proceed. Limiter trouble fails
// open: dropping live calls over a cache outage is worse than briefly
// exceeding a cap.
func (h *Handler) acquireSlot(c *gin.Context, log *slog.Logger, orgID string) bool {
	if h.limiter == nil {
		return true
	}
	ok, err := h.limiter.Acquire(c.Request.Context(), orgID)
	if err != nil {
		log.Warn("live call cap check failed, allowing call", "err", err)
		return true
	}
	if !ok {
		log.Info("org live call cap reached")
	}
	return ok
}

func (h *Handler) releaseSlot(c *gin.Context, log *slog.Logger, orgID string) {
	if h.limiter == nil {
		return
	}
	if err := h.limiter.Release(c.Request.Context(), orgID); err != nil {
		log.Warn("live call cap release failed", "err", err)
	}
}

func (h *Handler) decline(c *gin.Context, message string) {
	xml, err := carrier.DeclineTwiML(message)
	if err != nil {
		xml = fallbackTwiML
	}
	h.respond(c, xml)
}

func (h *Handler) respond(c *gin.Context, xml string) {
	// The carrier expects text/xml.
	c.Header("Content-Type", "text/xml")
	c.String(http.StatusOK, xml)
}
