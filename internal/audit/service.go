package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to tenant users by default.
// - Callers should treat audit logging as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.OrgID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogReconcileRejected records a completion event dropped for missing
// ownership metadata. There is no org to attribute it to.
func (s *Service) LogReconcileRejected(ctx context.Context, vendorSessionID, message, metadata string) error {
	return s.Append(ctx, Event{
		OrgID:           OrgUnattributed,
		Type:            EventTypeReconcileRejected,
		VendorSessionID: vendorSessionID,
		Message:         message,
		Metadata:        metadata,
	})
}

// LogOwnershipMismatch records a completion event whose echoed metadata
// claimed an org that does not own the stored record.
func (s *Service) LogOwnershipMismatch(ctx context.Context, claimedOrgID, vendorSessionID, metadata string) error {
	return s.Append(ctx, Event{
		OrgID:           claimedOrgID,
		Type:            EventTypeOwnershipMismatch,
		VendorSessionID: vendorSessionID,
		Message:         "completion event claimed an org that does not own the record",
		Metadata:        metadata,
	})
}

// LogRegistryChange records an admin mutation of a phone registration.
func (s *Service) LogRegistryChange(ctx context.Context, orgID, actorUserID, actorRole, registrationID, number, message string) error {
	return s.Append(ctx, Event{
		OrgID:          orgID,
		Type:           EventTypeRegistryChange,
		ActorUserID:    actorUserID,
		ActorRole:      actorRole,
		RegistrationID: registrationID,
		Number:         number,
		Message:        message,
	})
}
