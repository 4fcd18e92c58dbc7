package callrecord

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory Repository for tests. It mirrors the SQL
// implementation's semantics exactly: write-once ownership, org-scoped
// completion updates, terminal-status protection on the echo path.
type MemoryRepo struct {
	mu    sync.Mutex
	rows  map[string]CallRecord // keyed by vendor_session_id
	clock func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: make(map[string]CallRecord), clock: time.Now}
}

// SetClock overrides time for deterministic tests.
func (m *MemoryRepo) SetClock(clock func() time.Time) { m.clock = clock }

func (m *MemoryRepo) FindOrCreate(ctx context.Context, vendorSessionID string, own Ownership, seed Seed) (CallRecord, bool, error) {
	if vendorSessionID == "" {
		return CallRecord{}, false, errors.New("callrecord: vendor_session_id is required")
	}
	if own.OrgID == "" {
		return CallRecord{}, false, ErrMissingOwnership
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.rows[vendorSessionID]; ok {
		return r, false, nil
	}

	status := seed.Status
	if status == "" {
		status = StatusInitiated
	}
	now := m.clock().UTC()
	r := CallRecord{
		ID:              uuid.NewString(),
		VendorSessionID: vendorSessionID,
		OrgID:           own.OrgID,
		AgentID:         own.AgentID,
		RegistrationID:  own.RegistrationID,
		CallerNumber:    seed.CallerNumber,
		DialedNumber:    seed.DialedNumber,
		Status:          status,
		CarrierCallSID:  own.CarrierCallSID,
		StartedAt:       seed.StartedAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	m.rows[vendorSessionID] = r
	return r, true, nil
}

func (m *MemoryRepo) ApplyCompletion(ctx context.Context, orgID, vendorSessionID string, upd CompletionUpdate) (CallRecord, error) {
	if orgID == "" {
		return CallRecord{}, ErrMissingOwnership
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rows[vendorSessionID]
	if !ok || r.OrgID != orgID {
		return CallRecord{}, ErrNotFound
	}

	r.Status = upd.Status
	if upd.StartedAt != nil {
		r.StartedAt = upd.StartedAt
	}
	if upd.EndedAt != nil {
		r.EndedAt = upd.EndedAt
	}
	if upd.DurationSeconds != nil {
		r.DurationSeconds = upd.DurationSeconds
	}
	if upd.RecordingURL != nil {
		r.RecordingURL = upd.RecordingURL
	}
	if upd.Transcript != nil {
		r.Transcript = upd.Transcript
	}
	if upd.Summary != nil {
		r.Summary = upd.Summary
	}
	if upd.Analysis != nil {
		r.Analysis = upd.Analysis
	}
	r.UpdatedAt = m.clock().UTC()
	m.rows[vendorSessionID] = r
	return r, nil
}

func (m *MemoryRepo) UpdateStatusByCarrierSID(ctx context.Context, carrierCallSID string, status Status) error {
	if carrierCallSID == "" || !ValidStatus(status) {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, r := range m.rows {
		if r.CarrierCallSID != carrierCallSID {
			continue
		}
		if r.Status.IsTerminal() {
			continue
		}
		r.Status = status
		r.UpdatedAt = m.clock().UTC()
		m.rows[key] = r
	}
	return nil
}

func (m *MemoryRepo) GetBySessionID(ctx context.Context, vendorSessionID string) (CallRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[vendorSessionID]
	if !ok {
		return CallRecord{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryRepo) ListByOrg(ctx context.Context, orgID string, filter ListFilter) ([]CallRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []CallRecord
	for _, r := range m.rows {
		if r.OrgID != orgID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.Since != nil && r.CreatedAt.Before(*filter.Since) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len reports the total row count; used by tests asserting that rejection
// paths create nothing.
func (m *MemoryRepo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}
