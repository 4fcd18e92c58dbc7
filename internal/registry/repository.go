package registry

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Repository is the persistence contract for phone registrations.
//
// NOTE: This repository assumes the following table exists:
//
//	phone_registrations (
//	  id              UUID PRIMARY KEY,
//	  number          TEXT NOT NULL UNIQUE,
//	  org_id          TEXT NOT NULL,
//	  agent_id        TEXT NOT NULL DEFAULT '',
//	  vendor_agent_id TEXT NOT NULL DEFAULT '',
//	  active          BOOLEAN NOT NULL DEFAULT TRUE,
//	  created_at      TIMESTAMPTZ NOT NULL,
//	  updated_at      TIMESTAMPTZ NOT NULL
//	)
//
// There is deliberately no Delete: registrations referenced by call records
// are retained forever and disabled via SetActive.
type Repository interface {
	GetByNumber(ctx context.Context, number string) (Registration, error)
	GetByID(ctx context.Context, orgID, id string) (Registration, error)
	Insert(ctx context.Context, r Registration) error
	UpdateAgent(ctx context.Context, orgID, id, agentID, vendorAgentID string, now time.Time) (Registration, error)
	SetActive(ctx context.Context, orgID, id string, active bool, now time.Time) (Registration, error)
	ListByOrg(ctx context.Context, orgID string) ([]Registration, error)
}

type pgRepo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &pgRepo{db: db}
}

const registrationColumns = `id, number, org_id, agent_id, vendor_agent_id, active, created_at, updated_at`

func scanRegistration(row *sql.Row) (Registration, error) {
	var r Registration
	err := row.Scan(
		&r.ID,
		&r.Number,
		&r.OrgID,
		&r.AgentID,
		&r.VendorAgentID,
		&r.Active,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Registration{}, ErrNotFound
		}
		return Registration{}, err
	}
	return r, nil
}

// GetByNumber is the hot-path lookup; it is NOT org-scoped because the whole
// point is to discover which org owns the caller's number.
func (p *pgRepo) GetByNumber(ctx context.Context, number string) (Registration, error) {
	const q = `
SELECT ` + registrationColumns + `
FROM phone_registrations
WHERE number = $1
`
	return scanRegistration(p.db.QueryRowContext(ctx, q, number))
}

func (p *pgRepo) GetByID(ctx context.Context, orgID, id string) (Registration, error) {
	const q = `
SELECT ` + registrationColumns + `
FROM phone_registrations
WHERE org_id = $1 AND id = $2
`
	return scanRegistration(p.db.QueryRowContext(ctx, q, orgID, id))
}

func (p *pgRepo) Insert(ctx context.Context, r Registration) error {
	const q = `
INSERT INTO phone_registrations (id, number, org_id, agent_id, vendor_agent_id, active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (number) DO NOTHING
`
	res, err := p.db.ExecContext(ctx, q,
		r.ID,
		r.Number,
		r.OrgID,
		r.AgentID,
		r.VendorAgentID,
		r.Active,
		r.CreatedAt,
		r.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNumberTaken
	}
	return nil
}

// UpdateAgent rebinds the voice agent. org_id and number are immutable;
// they appear only in the predicate.
func (p *pgRepo) UpdateAgent(ctx context.Context, orgID, id, agentID, vendorAgentID string, now time.Time) (Registration, error) {
	const q = `
UPDATE phone_registrations
SET agent_id = $3, vendor_agent_id = $4, updated_at = $5
WHERE org_id = $1 AND id = $2
RETURNING ` + registrationColumns
	return scanRegistration(p.db.QueryRowContext(ctx, q, orgID, id, agentID, vendorAgentID, now))
}

func (p *pgRepo) SetActive(ctx context.Context, orgID, id string, active bool, now time.Time) (Registration, error) {
	const q = `
UPDATE phone_registrations
SET active = $3, updated_at = $4
WHERE org_id = $1 AND id = $2
RETURNING ` + registrationColumns
	return scanRegistration(p.db.QueryRowContext(ctx, q, orgID, id, active, now))
}

func (p *pgRepo) ListByOrg(ctx context.Context, orgID string) ([]Registration, error) {
	const q = `
SELECT ` + registrationColumns + `
FROM phone_registrations
WHERE org_id = $1
ORDER BY number
`
	rows, err := p.db.QueryContext(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Registration
	for rows.Next() {
		var r Registration
		if err := rows.Scan(
			&r.ID,
			&r.Number,
			&r.OrgID,
			&r.AgentID,
			&r.VendorAgentID,
			&r.Active,
			&r.CreatedAt,
			&r.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
