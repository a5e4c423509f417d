package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/boddenberg/boleto-pix-go/internal/domain"
)

// tsLayout is fixed-width so that TEXT ordering matches time ordering.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// AppendGeneration implements port.LedgerStore. Rows can never be changed
// afterwards: triggers abort any UPDATE or DELETE.
func (s *Store) AppendGeneration(ctx context.Context, rec *domain.GenerationRecord) error {
	diags := rec.Diagnostics
	if diags == nil {
		diags = []string{}
	}
	rawDiags, err := json.Marshal(diags)
	if err != nil {
		return fmt.Errorf("encode diagnostics: %w", err)
	}

	var expiry sql.NullString
	if rec.Expiry != nil {
		expiry = sql.NullString{String: rec.Expiry.UTC().Format(tsLayout), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pix_generation_ledger
		(id, reference_id, boleto_id, tenant_id, outcome, error_kind, computed_final_amount,
		 discount_applied, eligibility_reason, diagnostics, payload_checksum, created_at, expiry)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, rec.ReferenceID, rec.BoletoID, rec.TenantID, string(rec.Outcome),
		string(rec.ErrorKind), rec.ComputedFinalAmount, rec.DiscountApplied,
		string(rec.EligibilityReason), string(rawDiags), rec.PayloadChecksum,
		rec.CreatedAt.UTC().Format(tsLayout), expiry,
	)
	return wrap("sqlite/ledger", err)
}

// ListGenerations returns a boleto's ledger entries, oldest first.
func (s *Store) ListGenerations(ctx context.Context, boletoID int64) ([]domain.GenerationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, reference_id, boleto_id, tenant_id, outcome, error_kind, computed_final_amount,
		 discount_applied, eligibility_reason, diagnostics, payload_checksum, created_at, expiry
		FROM pix_generation_ledger WHERE boleto_id = ? ORDER BY created_at, rowid`, boletoID)
	if err != nil {
		return nil, wrap("sqlite/ledger", err)
	}
	defer rows.Close()

	out := []domain.GenerationRecord{}
	for rows.Next() {
		var (
			r                     domain.GenerationRecord
			outcome, kind, reason string
			rawDiags, created     string
			expiry                sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.ReferenceID, &r.BoletoID, &r.TenantID, &outcome, &kind,
			&r.ComputedFinalAmount, &r.DiscountApplied, &reason, &rawDiags, &r.PayloadChecksum,
			&created, &expiry); err != nil {
			return nil, wrap("sqlite/ledger", err)
		}
		r.Outcome = domain.GenerationOutcome(outcome)
		r.ErrorKind = domain.ErrorKind(kind)
		r.EligibilityReason = domain.EligibilityReason(reason)

		if err := json.Unmarshal([]byte(rawDiags), &r.Diagnostics); err != nil {
			return nil, fmt.Errorf("ledger %s diagnostics: %w", r.ID, err)
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("ledger %s created_at: %w", r.ID, err)
		}
		if expiry.Valid {
			t, err := time.Parse(time.RFC3339Nano, expiry.String)
			if err != nil {
				return nil, fmt.Errorf("ledger %s expiry: %w", r.ID, err)
			}
			r.Expiry = &t
		}
		out = append(out, r)
	}
	return out, wrap("sqlite/ledger", rows.Err())
}
