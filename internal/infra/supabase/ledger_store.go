package supabase

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/boddenberg/boleto-pix-go/internal/domain"
	"go.opentelemetry.io/otel/attribute"
)

// ledgerTable has INSERT and SELECT grants only; UPDATE/DELETE are revoked
// server side.
const ledgerTable = "pix_generation_ledger"

type supabaseLedgerRow struct {
	ID                  string       `json:"id"`
	ReferenceID         string       `json:"reference_id"`
	BoletoID            int64        `json:"boleto_id"`
	TenantID            string       `json:"tenant_id"`
	Outcome             string       `json:"outcome"`
	ErrorKind           string       `json:"error_kind,omitempty"`
	ComputedFinalAmount domain.Money `json:"computed_final_amount"`
	DiscountApplied     domain.Money `json:"discount_applied"`
	EligibilityReason   string       `json:"eligibility_reason,omitempty"`
	Diagnostics         []string     `json:"diagnostics"`
	PayloadChecksum     string       `json:"payload_checksum,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
	Expiry              *time.Time   `json:"expiry"`
}

// AppendGeneration inserts one ledger entry (implements port.LedgerStore).
func (c *Client) AppendGeneration(ctx context.Context, rec *domain.GenerationRecord) error {
	ctx, span := tracer.Start(ctx, "Supabase.AppendGeneration")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("boleto.id", rec.BoletoID),
		attribute.String("ledger.outcome", string(rec.Outcome)),
	)

	row := supabaseLedgerRow{
		ID:                  rec.ID,
		ReferenceID:         rec.ReferenceID,
		BoletoID:            rec.BoletoID,
		TenantID:            rec.TenantID,
		Outcome:             string(rec.Outcome),
		ErrorKind:           string(rec.ErrorKind),
		ComputedFinalAmount: rec.ComputedFinalAmount,
		DiscountApplied:     rec.DiscountApplied,
		EligibilityReason:   string(rec.EligibilityReason),
		Diagnostics:         rec.Diagnostics,
		PayloadChecksum:     rec.PayloadChecksum,
		CreatedAt:           rec.CreatedAt.UTC(),
		Expiry:              rec.Expiry,
	}
	if row.Diagnostics == nil {
		row.Diagnostics = []string{}
	}

	return c.execute(ctx, "supabase/ledger", func() error {
		_, err := c.doRequest(ctx, http.MethodPost, ledgerTable, row)
		return err
	})
}

// ListGenerations returns a boleto's ledger entries, oldest first.
func (c *Client) ListGenerations(ctx context.Context, boletoID int64) ([]domain.GenerationRecord, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListGenerations")
	defer span.End()
	span.SetAttributes(attribute.Int64("boleto.id", boletoID))

	var out []domain.GenerationRecord
	err := c.execute(ctx, "supabase/ledger", func() error {
		path := fmt.Sprintf("%s?boleto_id=eq.%d&order=created_at.asc", ledgerTable, boletoID)
		body, err := c.doRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return err
		}

		var rows []supabaseLedgerRow
		if err := decode(body, &rows); err != nil {
			return err
		}

		out = make([]domain.GenerationRecord, 0, len(rows))
		for _, r := range rows {
			out = append(out, domain.GenerationRecord{
				ID:                  r.ID,
				ReferenceID:         r.ReferenceID,
				BoletoID:            r.BoletoID,
				TenantID:            r.TenantID,
				Outcome:             domain.GenerationOutcome(r.Outcome),
				ErrorKind:           domain.ErrorKind(r.ErrorKind),
				ComputedFinalAmount: r.ComputedFinalAmount,
				DiscountApplied:     r.DiscountApplied,
				EligibilityReason:   domain.EligibilityReason(r.EligibilityReason),
				Diagnostics:         r.Diagnostics,
				PayloadChecksum:     r.PayloadChecksum,
				CreatedAt:           r.CreatedAt,
				Expiry:              r.Expiry,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
