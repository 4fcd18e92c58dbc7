// Package reconcile ingests the vendor's end-of-call report and the
// carrier's call progress echoes, converging both onto the call record
// store. The vendor delivers at-least-once with no ordering guarantee, so
// every path here is idempotent.
package reconcile

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"voicegate/internal/audit"
	"voicegate/internal/callrecord"
	"voicegate/internal/carrier"
	"voicegate/internal/gateway"
	"voicegate/pkg/logger"

	"github.com/gin-gonic/gin"
)

// CompletionEvent is the vendor's end-of-call webhook payload. Metadata is
// the ownership bag echoed verbatim from session start.
type CompletionEvent struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Duration     int               `json:"duration"`
	StartedAt    *time.Time        `json:"startedAt"`
	EndedAt      *time.Time        `json:"endedAt"`
	RecordingURL string            `json:"recordingUrl"`
	Transcript   string            `json:"transcript"`
	Summary      string            `json:"summary"`
	Analysis     json.RawMessage   `json:"analysis"`
	Metadata     map[string]string `json:"metadata"`
}

type Handler struct {
	records callrecord.Repository
	audit   *audit.Service
	limiter gateway.Limiter
	log     *slog.Logger
}

func NewHandler(records callrecord.Repository, auditSvc *audit.Service, limiter gateway.Limiter, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{records: records, audit: auditSvc, limiter: limiter, log: log}
}

// HandleCompletion is POST /webhooks/vendor/completion.
//
// Response codes are part of the retry contract: 4xx means the event itself
// is unusable and re-delivery cannot fix it; 5xx means our store failed and
// the vendor should retry.
func (h *Handler) HandleCompletion(c *gin.Context) {
	log := logger.FromGin(c)
	ctx := c.Request.Context()

	var ev CompletionEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if ev.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing session id"})
		return
	}
	log = log.With("vendor_session_id", ev.ID)

	own := callrecord.OwnershipFromMetadata(ev.Metadata)
	if own.OrgID == "" {
		// Untenanted event. Attributing it to any org would be a guess, and a
		// wrong guess leaks one tenant's call into another's view.
		log.Error("completion event has no ownership metadata, rejecting", "metadata", ev.Metadata)
		h.auditRejected(c, ev)
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing ownership metadata"})
		return
	}
	log = log.With("org_id", own.OrgID)

	existing, created, err := h.records.FindOrCreate(ctx, ev.ID, own, callrecord.Seed{
		Status:    callrecord.StatusInitiated,
		StartedAt: ev.StartedAt,
	})
	if err != nil {
		log.Error("completion find-or-create failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store unavailable"})
		return
	}

	rec, err := h.records.ApplyCompletion(ctx, own.OrgID, ev.ID, h.toUpdate(ev))
	if errors.Is(err, callrecord.ErrNotFound) {
		// The row exists but belongs to a different org. Ack so the vendor
		// stops retrying; re-delivery cannot change the outcome.
		log.Warn("completion event org does not own the record", "record_org_id", existing.OrgID)
		h.auditMismatch(c, own.OrgID, ev)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	if err != nil {
		log.Error("completion apply failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store unavailable"})
		return
	}

	// First transition into a terminal state frees the org's live-call slot.
	// Duplicates skip this because the existing row is already terminal.
	if rec.Status.IsTerminal() && (created || !existing.Status.IsTerminal()) {
		h.releaseCap(c, log, rec.OrgID)
	}

	log.Info("call completion reconciled", "status", rec.Status, "created", created)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "org_id": rec.OrgID})
}

// HandleStatus is POST /webhooks/carrier/status: a best-effort progress
// echo. Always 204; there is nothing useful to tell the carrier.
func (h *Handler) HandleStatus(c *gin.Context) {
	log := logger.FromGin(c)

	cb, err := carrier.ParseStatusCallback(c.Request)
	if err != nil || cb.CallSID == "" {
		c.Status(http.StatusNoContent)
		return
	}
	status, ok := carrier.NormalizeStatus(cb.CallStatus)
	if !ok {
		log.Debug("ignoring unknown carrier status", "carrier_call_sid", cb.CallSID, "status", cb.CallStatus)
		c.Status(http.StatusNoContent)
		return
	}
	if err := h.records.UpdateStatusByCarrierSID(c.Request.Context(), cb.CallSID, status); err != nil {
		log.Warn("status echo update failed", "carrier_call_sid", cb.CallSID, "err", err)
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) toUpdate(ev CompletionEvent) callrecord.CompletionUpdate {
	upd := callrecord.CompletionUpdate{
		Status:    normalizeVendorStatus(ev.Status),
		StartedAt: ev.StartedAt,
		EndedAt:   ev.EndedAt,
	}
	if d := deriveDuration(ev); d != nil {
		upd.DurationSeconds = d
	}
	if ev.RecordingURL != "" {
		upd.RecordingURL = &ev.RecordingURL
	}
	if ev.Transcript != "" {
		upd.Transcript = &ev.Transcript
	}
	if ev.Summary != "" {
		upd.Summary = &ev.Summary
	}
	if len(ev.Analysis) > 0 && string(ev.Analysis) != "null" {
		s := string(ev.Analysis)
		upd.Analysis = &s
	}
	return upd
}

// deriveDuration prefers the vendor's figure, falls back to the timestamp
// delta, and yields nil when neither is usable.
func deriveDuration(ev CompletionEvent) *int {
	if ev.Duration > 0 {
		d := ev.Duration
		return &d
	}
	// Zero-length calls are real (instant hangups); only an inverted pair of
	// timestamps is unusable.
	if ev.StartedAt != nil && ev.EndedAt != nil && !ev.EndedAt.Before(*ev.StartedAt) {
		d := int(ev.EndedAt.Sub(*ev.StartedAt).Round(time.Second).Seconds())
		return &d
	}
	return nil
}

func normalizeVendorStatus(s string) callrecord.Status {
	switch s {
	case "failed", "error", "no-answer", "busy":
		return callrecord.StatusFailed
	case "rejected":
		return callrecord.StatusRejected
	default:
		// The vendor reports a finished call under several labels
		// ("completed", "ended", assistant/customer hangup variants).
		return callrecord.StatusCompleted
	}
}

func (h *Handler) auditRejected(c *gin.Context, ev CompletionEvent) {
	if h.audit == nil {
		return
	}
	raw, _ := json.Marshal(ev.Metadata)
	if err := h.audit.LogReconcileRejected(c.Request.Context(), ev.ID, "completion event missing org_id", string(raw)); err != nil {
		h.log.Warn("reconcile audit append failed", "err", err)
	}
}

func (h *Handler) auditMismatch(c *gin.Context, claimedOrgID string, ev CompletionEvent) {
	if h.audit == nil {
		return
	}
	raw, _ := json.Marshal(ev.Metadata)
	if err := h.audit.LogOwnershipMismatch(c.Request.Context(), claimedOrgID, ev.ID, string(raw)); err != nil {
		h.log.Warn("reconcile audit append failed", "err", err)
	}
}

func (h *Handler) releaseCap(c *gin.Context, log *slog.Logger, orgID string) {
	if h.limiter == nil {
		return
	}
	if err := h.limiter.Release(c.Request.Context(), orgID); err != nil {
		log.Warn("live call cap release failed", "err", err)
	}
}
