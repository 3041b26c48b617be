package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Vishal-43/smart-attendece-system/internal/model"
)

// rotating_codes holds exactly one row per (timetable_id, kind); every
// rotation replaces the row wholesale, so the newest code is by construction
// the only one. Expired rows stay put and are filtered at read time.

const timetableExists = `
SELECT EXISTS (SELECT 1 FROM timetables WHERE id = $1)
`

func (q *Queries) TimetableExists(ctx context.Context, timetableID int64) (bool, error) {
	var exists bool
	if err := q.db.QueryRow(ctx, timetableExists, timetableID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

const replaceCode = `
INSERT INTO rotating_codes (timetable_id, kind, code, created_at, expires_at, used, used_count)
VALUES ($1, $2, $3, $4, $5, false, 0)
ON CONFLICT (timetable_id, kind) DO UPDATE
SET code = EXCLUDED.code,
    created_at = EXCLUDED.created_at,
    expires_at = EXCLUDED.expires_at,
    used = false,
    used_count = 0
`

// ReplaceCode installs a fresh code for (timetable, kind), superseding any
// prior code and resetting its used state.
func (q *Queries) ReplaceCode(ctx context.Context, code model.RotatingCode) error {
	_, err := q.db.Exec(ctx, replaceCode,
		code.TimetableID, string(code.Kind), code.Code, code.CreatedAt, code.ExpiresAt)
	return err
}

// InstallCode checks the timetable and installs the code in one transaction,
// so a timetable deleted between the check and the upsert rolls the install
// back instead of surfacing a foreign key error.
func (s *Store) InstallCode(ctx context.Context, code model.RotatingCode) (bool, error) {
	var installed bool
	err := s.WithTx(ctx, func(q *Queries) error {
		exists, err := q.TimetableExists(ctx, code.TimetableID)
		if err != nil || !exists {
			return err
		}
		if err := q.ReplaceCode(ctx, code); err != nil {
			return err
		}
		installed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return installed, nil
}

const currentCode = `
SELECT timetable_id, kind, code, created_at, expires_at, used, used_count
FROM rotating_codes
WHERE timetable_id = $1 AND kind = $2
`

// CurrentCode returns the stored code row regardless of expiry; callers
// apply the wall-clock expiry rule.
func (q *Queries) CurrentCode(ctx context.Context, timetableID int64, kind model.CodeKind) (model.RotatingCode, error) {
	var code model.RotatingCode
	var kindValue string
	row := q.db.QueryRow(ctx, currentCode, timetableID, string(kind))
	err := row.Scan(&code.TimetableID, &kindValue, &code.Code, &code.CreatedAt, &code.ExpiresAt, &code.Used, &code.UsedCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.RotatingCode{}, model.ErrCodeNotFound
		}
		return model.RotatingCode{}, err
	}
	code.Kind = model.CodeKind(kindValue)
	return code, nil
}

const consumeQRCode = `
UPDATE rotating_codes
SET used = true, used_count = used_count + 1
WHERE timetable_id = $1 AND kind = 'qr' AND code = $2
  AND expires_at > $3 AND used = false
`

// ConsumeQRCode marks a QR code used. The conditional update makes the
// single-use guarantee hold under concurrent verifies: exactly one wins.
func (q *Queries) ConsumeQRCode(ctx context.Context, timetableID int64, code string, now time.Time) (bool, error) {
	tag, err := q.db.Exec(ctx, consumeQRCode, timetableID, code, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

const recordOTPUse = `
UPDATE rotating_codes
SET used = true, used_count = used_count + 1
WHERE timetable_id = $1 AND kind = 'otp' AND code = $2
  AND expires_at > $3
`

// RecordOTPUse counts a successful OTP verification. OTP codes stay
// verifiable for their whole validity window.
func (q *Queries) RecordOTPUse(ctx context.Context, timetableID int64, code string, now time.Time) (bool, error) {
	tag, err := q.db.Exec(ctx, recordOTPUse, timetableID, code, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

const compareAndReplaceCode = `
UPDATE rotating_codes
SET code = $4, created_at = $5, expires_at = $6, used = false, used_count = 0
WHERE timetable_id = $1 AND kind = $2 AND code = $3 AND expires_at > $5
`

// CompareAndReplaceCode rotates the row only when the supplied prior code is
// still the current, unexpired one. Zero rows affected means the caller lost
// the race or holds a stale token; no fallback insert happens here.
func (q *Queries) CompareAndReplaceCode(ctx context.Context, oldCode string, next model.RotatingCode) (bool, error) {
	tag, err := q.db.Exec(ctx, compareAndReplaceCode,
		next.TimetableID, string(next.Kind), oldCode, next.Code, next.CreatedAt, next.ExpiresAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

const listExpiringCodes = `
SELECT timetable_id, kind, code, created_at, expires_at, used, used_count
FROM rotating_codes
WHERE kind = $1 AND expires_at > $2 AND expires_at <= $3
`

// ListExpiringCodes returns codes that are still valid now but will expire
// by the given deadline. The rotation job refreshes these.
func (q *Queries) ListExpiringCodes(ctx context.Context, kind model.CodeKind, now, deadline time.Time) ([]model.RotatingCode, error) {
	rows, err := q.db.Query(ctx, listExpiringCodes, string(kind), now, deadline)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []model.RotatingCode
	for rows.Next() {
		var code model.RotatingCode
		var kindValue string
		if err := rows.Scan(&code.TimetableID, &kindValue, &code.Code, &code.CreatedAt, &code.ExpiresAt, &code.Used, &code.UsedCount); err != nil {
			return nil, err
		}
		code.Kind = model.CodeKind(kindValue)
		codes = append(codes, code)
	}
	return codes, rows.Err()
}
