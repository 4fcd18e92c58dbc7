package registry

import (
	"context"
	"errors"
	"testing"
)

func newTestService() (*Service, *MemoryRepo) {
	repo := NewMemoryRepo()
	return NewService(repo, nil, nil, nil), repo
}

func TestResolve_ByCallerNumber(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	reg, err := svc.Provision(ctx, "org1", "+15551230000", "agent1", "va-1")
	if err != nil {
		t.Fatalf("provision: %v", err)
	}

	got, err := svc.Resolve(ctx, "+15551230000")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.ID != reg.ID || got.OrgID != "org1" {
		t.Fatalf("unexpected registration: %+v", got)
	}
	if !got.HasAgent() {
		t.Fatalf("expected agent bound")
	}
}

func TestResolve_UnknownNumberIsNotFound(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Resolve(context.Background(), "+15559990000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolve_InactiveBehavesLikeUnknown(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	reg, err := svc.Provision(ctx, "org1", "+15551230000", "agent1", "va-1")
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if _, err := svc.SetActive(ctx, "org1", reg.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	if _, err := svc.Resolve(ctx, "+15551230000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for inactive registration, got %v", err)
	}
}

func TestProvision_RejectsDuplicateNumberAcrossOrgs(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Provision(ctx, "org1", "+15551230000", "a1", "va-1"); err != nil {
		t.Fatalf("provision: %v", err)
	}
	if _, err := svc.Provision(ctx, "org2", "+15551230000", "a2", "va-2"); !errors.Is(err, ErrNumberTaken) {
		t.Fatalf("expected ErrNumberTaken, got %v", err)
	}
}

func TestProvision_RequiresE164(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Provision(context.Background(), "org1", "5551230000", "a", "va"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestBindAgent_IsOrgScoped(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	reg, err := svc.Provision(ctx, "org1", "+15551230000", "a1", "va-1")
	if err != nil {
		t.Fatalf("provision: %v", err)
	}

	// Another org must not be able to rebind someone else's number.
	if _, err := svc.BindAgent(ctx, "org2", reg.ID, "evil", "va-evil"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for cross-org bind, got %v", err)
	}

	got, err := svc.BindAgent(ctx, "org1", reg.ID, "a2", "va-2")
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if got.VendorAgentID != "va-2" {
		t.Fatalf("expected rebound agent, got %+v", got)
	}
}
