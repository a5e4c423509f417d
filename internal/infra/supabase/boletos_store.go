package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/boddenberg/boleto-pix-go/internal/domain"
	"github.com/boddenberg/boleto-pix-go/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
)

// supabaseBoleto maps the boletos table. Discount columns are nullable.
type supabaseBoleto struct {
	ID              int64         `json:"id"`
	ReferenceNumber string        `json:"reference_number"`
	Amount          domain.Money  `json:"amount"`
	DueDate         string        `json:"due_date"`
	Status          string        `json:"status"`
	HolderID        string        `json:"holder_id"`
	TenantID        string        `json:"tenant_id"`
	HolderName      string        `json:"holder_name"`
	Description     string        `json:"description"`
	DiscountEnabled *bool         `json:"discount_enabled"`
	DiscountAmount  *domain.Money `json:"discount_amount"`
	MinimumFloor    *domain.Money `json:"minimum_floor"`
}

func (c *Client) toBoleto(r supabaseBoleto) (*domain.Boleto, error) {
	due, err := domain.ParseDueDate(r.DueDate, c.loc)
	if err != nil {
		return nil, err
	}
	b := &domain.Boleto{
		ID:              r.ID,
		ReferenceNumber: r.ReferenceNumber,
		Amount:          r.Amount,
		DueDate:         due,
		Status:          domain.BoletoStatus(r.Status),
		Holder:          domain.HolderIdentity{HolderID: r.HolderID, TenantID: r.TenantID},
		HolderName:      r.HolderName,
		Description:     r.Description,
	}
	if r.DiscountEnabled != nil {
		cfg := domain.DiscountConfig{Enabled: *r.DiscountEnabled, MinimumFloor: domain.DefaultMinimumFloor}
		if r.DiscountAmount != nil {
			cfg.DiscountAmount = *r.DiscountAmount
		}
		if r.MinimumFloor != nil {
			cfg.MinimumFloor = *r.MinimumFloor
		}
		b.Discount = &cfg
	}
	return b, nil
}

// GetBoleto fetches one boleto by id (implements port.BoletoStore).
func (c *Client) GetBoleto(ctx context.Context, id int64) (*domain.Boleto, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetBoleto")
	defer span.End()
	span.SetAttributes(attribute.Int64("boleto.id", id))

	var boleto *domain.Boleto
	err := c.execute(ctx, "supabase/boletos", func() error {
		path := fmt.Sprintf("boletos?id=eq.%d&limit=1", id)
		body, err := c.doRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return err
		}

		var rows []supabaseBoleto
		if err := decode(body, &rows); err != nil {
			return err
		}
		if len(rows) == 0 {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "boleto", ID: strconv.FormatInt(id, 10)})
		}

		b, err := c.toBoleto(rows[0])
		if err != nil {
			return resilience.Permanent(fmt.Errorf("%w: %v", errDecode, err))
		}
		boleto = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return boleto, nil
}

// GetMerchantProfile fetches a tenant's receiver data (implements port.MerchantStore).
func (c *Client) GetMerchantProfile(ctx context.Context, tenantID string) (*domain.MerchantProfile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetMerchantProfile")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	var profile *domain.MerchantProfile
	err := c.execute(ctx, "supabase/merchant_profiles", func() error {
		path := "merchant_profiles?tenant_id=eq." + url.QueryEscape(tenantID) + "&limit=1"
		body, err := c.doRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return err
		}

		var rows []domain.MerchantProfile
		if err := decode(body, &rows); err != nil {
			return err
		}
		if len(rows) == 0 {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "merchant_profile", ID: tenantID})
		}
		profile = &rows[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}
