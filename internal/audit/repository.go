package audit

import (
	"context"
	"database/sql"
)

// pgRepo persists events to Postgres.
//
// NOTE: This repository assumes the following table exists:
//
//	audit_events (
//	  id                UUID PRIMARY KEY,
//	  org_id            TEXT NOT NULL,
//	  type              TEXT NOT NULL,
//	  actor_user_id     TEXT NOT NULL DEFAULT '',
//	  actor_role        TEXT NOT NULL DEFAULT '',
//	  registration_id   TEXT NOT NULL DEFAULT '',
//	  vendor_session_id TEXT NOT NULL DEFAULT '',
//	  carrier_call_sid  TEXT NOT NULL DEFAULT '',
//	  number            TEXT NOT NULL DEFAULT '',
//	  message           TEXT NOT NULL DEFAULT '',
//	  metadata          TEXT NOT NULL DEFAULT '',
//	  created_at        TIMESTAMPTZ NOT NULL
//	)
//	CREATE INDEX ON audit_events (org_id, created_at);
//
// The table is INSERT-only; no update or delete statements exist here.
type pgRepo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &pgRepo{db: db}
}

func (p *pgRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (
  id, org_id, type, actor_user_id, actor_role,
  registration_id, vendor_session_id, carrier_call_sid, number,
  message, metadata, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`
	_, err := p.db.ExecContext(ctx, q,
		e.ID,
		e.OrgID,
		e.Type,
		e.ActorUserID,
		e.ActorRole,
		e.RegistrationID,
		e.VendorSessionID,
		e.CarrierCallSID,
		e.Number,
		e.Message,
		e.Metadata,
		e.CreatedAt,
	)
	return err
}
