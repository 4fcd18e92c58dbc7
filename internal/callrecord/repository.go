package callrecord

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"voicegate/pkg/utils"

	"github.com/google/uuid"
)

// Repository is the single write path to the call record store. Every
// mutation is either the keyed find-or-create or a predicate-scoped update;
// nothing else touches the table.
//
// NOTE: This repository assumes the following table exists:
//
//	call_records (
//	  id                UUID NOT NULL UNIQUE,
//	  vendor_session_id TEXT PRIMARY KEY,
//	  org_id            TEXT NOT NULL,
//	  agent_id          TEXT NOT NULL DEFAULT '',
//	  registration_id   TEXT NOT NULL DEFAULT '',
//	  caller_number     TEXT NOT NULL DEFAULT '',
//	  dialed_number     TEXT NOT NULL DEFAULT '',
//	  status            TEXT NOT NULL,
//	  carrier_call_sid  TEXT NOT NULL DEFAULT '',
//	  started_at        TIMESTAMPTZ,
//	  ended_at          TIMESTAMPTZ,
//	  duration_seconds  INT,
//	  recording_url     TEXT,
//	  transcript        TEXT,
//	  summary           TEXT,
//	  analysis          TEXT,
//	  created_at        TIMESTAMPTZ NOT NULL,
//	  updated_at        TIMESTAMPTZ NOT NULL
//	)
//	CREATE INDEX ON call_records (carrier_call_sid);
//	CREATE INDEX ON call_records (org_id, created_at);
type Repository interface {
	// FindOrCreate is the centralized create-if-absent primitive shared by
	// the session initiator and the completion reconciler, so both arrival
	// orders produce identical rows. Ownership columns are written only on
	// the insert branch.
	FindOrCreate(ctx context.Context, vendorSessionID string, own Ownership, seed Seed) (CallRecord, bool, error)

	// ApplyCompletion updates vendor-sourced fields. Both the lookup and the
	// update are scoped by org_id, so an event claiming the wrong org
	// matches zero rows.
	ApplyCompletion(ctx context.Context, orgID, vendorSessionID string, upd CompletionUpdate) (CallRecord, error)

	// UpdateStatusByCarrierSID is the best-effort status echo path. A
	// missing row is not an error. Terminal statuses are never overwritten.
	UpdateStatusByCarrierSID(ctx context.Context, carrierCallSID string, status Status) error

	GetBySessionID(ctx context.Context, vendorSessionID string) (CallRecord, error)
	ListByOrg(ctx context.Context, orgID string, filter ListFilter) ([]CallRecord, error)
}

type pgRepo struct {
	db    *sql.DB
	clock func() time.Time
}

func NewRepository(db *sql.DB) Repository {
	return &pgRepo{db: db, clock: time.Now}
}

const recordColumns = `id, vendor_session_id, org_id, agent_id, registration_id,
 caller_number, dialed_number, status, carrier_call_sid,
 started_at, ended_at, duration_seconds,
 recording_url, transcript, summary, analysis,
 created_at, updated_at`

func scanRecord(row *sql.Row) (CallRecord, error) {
	var r CallRecord
	err := row.Scan(
		&r.ID,
		&r.VendorSessionID,
		&r.OrgID,
		&r.AgentID,
		&r.RegistrationID,
		&r.CallerNumber,
		&r.DialedNumber,
		&r.Status,
		&r.CarrierCallSID,
		&r.StartedAt,
		&r.EndedAt,
		&r.DurationSeconds,
		&r.RecordingURL,
		&r.Transcript,
		&r.Summary,
		&r.Analysis,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallRecord{}, ErrNotFound
		}
		return CallRecord{}, err
	}
	return r, nil
}

func (p *pgRepo) FindOrCreate(ctx context.Context, vendorSessionID string, own Ownership, seed Seed) (CallRecord, bool, error) {
	if vendorSessionID == "" {
		return CallRecord{}, false, errors.New("callrecord: vendor_session_id is required")
	}
	if own.OrgID == "" {
		return CallRecord{}, false, ErrMissingOwnership
	}
	status := seed.Status
	if status == "" {
		status = StatusInitiated
	}

	now := p.clock().UTC()
	const insert = `
INSERT INTO call_records (
  id, vendor_session_id, org_id, agent_id, registration_id,
  caller_number, dialed_number, status, carrier_call_sid,
  started_at, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (vendor_session_id) DO NOTHING
`
	// Insert and read-back run in one transaction so the returned row is the
	// one this call observed, not a later writer's.
	var (
		r       CallRecord
		created bool
	)
	err := utils.WithTx(ctx, p.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, insert,
			uuid.NewString(),
			vendorSessionID,
			own.OrgID,
			own.AgentID,
			own.RegistrationID,
			seed.CallerNumber,
			seed.DialedNumber,
			status,
			own.CarrierCallSID,
			seed.StartedAt,
			now,
			now,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		created = n == 1

		r, err = scanRecord(tx.QueryRowContext(ctx, getBySessionIDQuery, vendorSessionID))
		return err
	})
	if err != nil {
		return CallRecord{}, false, err
	}
	return r, created, nil
}

func (p *pgRepo) ApplyCompletion(ctx context.Context, orgID, vendorSessionID string, upd CompletionUpdate) (CallRecord, error) {
	if orgID == "" {
		return CallRecord{}, ErrMissingOwnership
	}

	// COALESCE keeps previously stored values when a delivery lacks a field;
	// ownership columns are intentionally absent from the SET list.
	const q = `
UPDATE call_records
SET status = $3,
    started_at = COALESCE($4, started_at),
    ended_at = COALESCE($5, ended_at),
    duration_seconds = COALESCE($6, duration_seconds),
    recording_url = COALESCE($7, recording_url),
    transcript = COALESCE($8, transcript),
    summary = COALESCE($9, summary),
    analysis = COALESCE($10, analysis),
    updated_at = $11
WHERE vendor_session_id = $1 AND org_id = $2
RETURNING ` + recordColumns
	return scanRecord(p.db.QueryRowContext(ctx, q,
		vendorSessionID,
		orgID,
		upd.Status,
		upd.StartedAt,
		upd.EndedAt,
		upd.DurationSeconds,
		upd.RecordingURL,
		upd.Transcript,
		upd.Summary,
		upd.Analysis,
		p.clock().UTC(),
	))
}

func (p *pgRepo) UpdateStatusByCarrierSID(ctx context.Context, carrierCallSID string, status Status) error {
	if carrierCallSID == "" || !ValidStatus(status) {
		return nil
	}
	// No org predicate here: the carrier sid is not trusted for ownership
	// and only the status column is written. Terminal rows are left alone.
	const q = `
UPDATE call_records
SET status = $2, updated_at = $3
WHERE carrier_call_sid = $1
  AND status NOT IN ('completed','failed','rejected')
`
	_, err := p.db.ExecContext(ctx, q, carrierCallSID, status, p.clock().UTC())
	return err
}

const getBySessionIDQuery = `
SELECT ` + recordColumns + `
FROM call_records
WHERE vendor_session_id = $1
`

func (p *pgRepo) GetBySessionID(ctx context.Context, vendorSessionID string) (CallRecord, error) {
	return scanRecord(p.db.QueryRowContext(ctx, getBySessionIDQuery, vendorSessionID))
}

func (p *pgRepo) ListByOrg(ctx context.Context, orgID string, filter ListFilter) ([]CallRecord, error) {
	where := "org_id = $1"
	args := []any{orgID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		where += " AND status = $" + strconv.Itoa(len(args))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		where += " AND created_at >= $" + strconv.Itoa(len(args))
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit, filter.Offset)

	q := `SELECT ` + recordColumns + `
FROM call_records
WHERE ` + where + `
ORDER BY created_at DESC
LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CallRecord
	for rows.Next() {
		var r CallRecord
		if err := rows.Scan(
			&r.ID,
			&r.VendorSessionID,
			&r.OrgID,
			&r.AgentID,
			&r.RegistrationID,
			&r.CallerNumber,
			&r.DialedNumber,
			&r.Status,
			&r.CarrierCallSID,
			&r.StartedAt,
			&r.EndedAt,
			&r.DurationSeconds,
			&r.RecordingURL,
			&r.Transcript,
			&r.Summary,
			&r.Analysis,
			&r.CreatedAt,
			&r.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
