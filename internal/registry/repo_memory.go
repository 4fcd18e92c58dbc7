package registry

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu   sync.Mutex
	rows map[string]Registration // keyed by id
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: make(map[string]Registration)}
}

func (m *MemoryRepo) GetByNumber(ctx context.Context, number string) (Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.Number == number {
			return r, nil
		}
	}
	return Registration{}, ErrNotFound
}

func (m *MemoryRepo) GetByID(ctx context.Context, orgID, id string) (Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.OrgID != orgID {
		return Registration{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryRepo) Insert(ctx context.Context, r Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.Number == r.Number {
			return ErrNumberTaken
		}
	}
	m.rows[r.ID] = r
	return nil
}

func (m *MemoryRepo) UpdateAgent(ctx context.Context, orgID, id, agentID, vendorAgentID string, now time.Time) (Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.OrgID != orgID {
		return Registration{}, ErrNotFound
	}
	r.AgentID = agentID
	r.VendorAgentID = vendorAgentID
	r.UpdatedAt = now
	m.rows[id] = r
	return r, nil
}

func (m *MemoryRepo) SetActive(ctx context.Context, orgID, id string, active bool, now time.Time) (Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.OrgID != orgID {
		return Registration{}, ErrNotFound
	}
	r.Active = active
	r.UpdatedAt = now
	m.rows[id] = r
	return r, nil
}

func (m *MemoryRepo) ListByOrg(ctx context.Context, orgID string) ([]Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Registration
	for _, r := range m.rows {
		if r.OrgID == orgID {
			out = append(out, r)
		}
	}
	return out, nil
}
