package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"voicegate/internal/audit"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Service wraps the Repository with a short-TTL resolve cache and audit
// logging for admin mutations.
//
// Resolve is on the inbound-call hot path: every carrier webhook performs one
// lookup, and the carrier deadline budget is spent almost entirely on the
// vendor session-start call, so lookups should be fast. Cache misses and
// cache errors fall through to Postgres; the cache is never authoritative.
type Service struct {
	repo  Repository
	cache *redis.Client
	audit *audit.Service
	log   *slog.Logger

	cacheTTL time.Duration
	clock    func() time.Time
}

func NewService(repo Repository, cache *redis.Client, auditSvc *audit.Service, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:     repo,
		cache:    cache,
		audit:    auditSvc,
		log:      log,
		cacheTTL: 30 * time.Second,
		clock:    time.Now,
	}
}

func cacheKey(number string) string {
	return "registry:num:" + number
}

// NormalizeNumber trims whitespace. Carriers occasionally send "anonymous"
// or empty caller ids; those simply won't match any registration.
func NormalizeNumber(s string) string {
	return strings.TrimSpace(s)
}

// Resolve returns the registration owning the caller's number.
// Inactive registrations resolve as ErrNotFound: a disabled number must
// behave exactly like an unknown one at the gateway.
func (s *Service) Resolve(ctx context.Context, callerNumber string) (Registration, error) {
	number := NormalizeNumber(callerNumber)
	if number == "" {
		return Registration{}, ErrNotFound
	}

	if r, ok := s.cacheGet(ctx, number); ok {
		if !r.Active {
			return Registration{}, ErrNotFound
		}
		return r, nil
	}

	r, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		return Registration{}, err
	}
	s.cachePut(ctx, r)

	if !r.Active {
		return Registration{}, ErrNotFound
	}
	return r, nil
}

// Provision registers a number for an org. Numbers are globally unique; a
// second org claiming the same number gets ErrNumberTaken.
func (s *Service) Provision(ctx context.Context, orgID, number, agentID, vendorAgentID string) (Registration, error) {
	number = NormalizeNumber(number)
	if orgID == "" || number == "" {
		return Registration{}, ErrInvalidArgument
	}
	if !strings.HasPrefix(number, "+") {
		return Registration{}, fmt.Errorf("%w: number must be E.164", ErrInvalidArgument)
	}

	now := s.clock().UTC()
	r := Registration{
		ID:            uuid.NewString(),
		Number:        number,
		OrgID:         orgID,
		AgentID:       agentID,
		VendorAgentID: vendorAgentID,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Insert(ctx, r); err != nil {
		return Registration{}, err
	}
	s.cacheInvalidate(ctx, number)
	s.auditChange(ctx, r, "number provisioned")
	return r, nil
}

// BindAgent points the registration at a different voice agent.
func (s *Service) BindAgent(ctx context.Context, orgID, id, agentID, vendorAgentID string) (Registration, error) {
	if orgID == "" || id == "" {
		return Registration{}, ErrInvalidArgument
	}
	r, err := s.repo.UpdateAgent(ctx, orgID, id, agentID, vendorAgentID, s.clock().UTC())
	if err != nil {
		return Registration{}, err
	}
	s.cacheInvalidate(ctx, r.Number)
	s.auditChange(ctx, r, "agent bound")
	return r, nil
}

// SetActive soft-enables or soft-disables the registration.
func (s *Service) SetActive(ctx context.Context, orgID, id string, active bool) (Registration, error) {
	if orgID == "" || id == "" {
		return Registration{}, ErrInvalidArgument
	}
	r, err := s.repo.SetActive(ctx, orgID, id, active, s.clock().UTC())
	if err != nil {
		return Registration{}, err
	}
	s.cacheInvalidate(ctx, r.Number)
	if active {
		s.auditChange(ctx, r, "number enabled")
	} else {
		s.auditChange(ctx, r, "number disabled")
	}
	return r, nil
}

func (s *Service) Get(ctx context.Context, orgID, id string) (Registration, error) {
	return s.repo.GetByID(ctx, orgID, id)
}

func (s *Service) List(ctx context.Context, orgID string) ([]Registration, error) {
	return s.repo.ListByOrg(ctx, orgID)
}

func (s *Service) cacheGet(ctx context.Context, number string) (Registration, bool) {
	if s.cache == nil {
		return Registration{}, false
	}
	raw, err := s.cache.Get(ctx, cacheKey(number)).Bytes()
	if err != nil {
		return Registration{}, false
	}
	var r Registration
	if err := json.Unmarshal(raw, &r); err != nil {
		return Registration{}, false
	}
	return r, true
}

func (s *Service) cachePut(ctx context.Context, r Registration) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(r.Number), raw, s.cacheTTL).Err(); err != nil {
		s.log.Debug("registry cache set failed", "err", err)
	}
}

func (s *Service) cacheInvalidate(ctx context.Context, number string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKey(number)).Err(); err != nil {
		s.log.Debug("registry cache del failed", "err", err)
	}
}

func (s *Service) auditChange(ctx context.Context, r Registration, message string) {
	if s.audit == nil {
		return
	}
	// Best-effort; registry mutations must not fail on audit problems.
	if err := s.audit.LogRegistryChange(ctx, r.OrgID, actorFrom(ctx), roleFrom(ctx), r.ID, r.Number, message); err != nil {
		s.log.Warn("registry audit append failed", "err", err)
	}
}
