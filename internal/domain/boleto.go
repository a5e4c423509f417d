package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================
// Boletos (installments)
// ============================================================

// BoletoStatus is the lifecycle state of a boleto.
type BoletoStatus string

const (
	BoletoPending   BoletoStatus = "pending"
	BoletoPaid      BoletoStatus = "paid"
	BoletoCancelled BoletoStatus = "cancelled"
)

// DiscountConfig is the pix discount resolved onto a boleto at creation time.
type DiscountConfig struct {
	Enabled        bool  `json:"enabled"`
	DiscountAmount Money `json:"discount_amount"`
	MinimumFloor   Money `json:"minimum_floor"`
}

// UnmarshalJSON applies DefaultMinimumFloor when minimum_floor is absent.
func (c *DiscountConfig) UnmarshalJSON(b []byte) error {
	type plain DiscountConfig
	v := plain{MinimumFloor: DefaultMinimumFloor}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*c = DiscountConfig(v)
	return nil
}

// NewDiscountConfig builds an enabled config with the default R$ 10,00 floor.
func NewDiscountConfig(discount Money) DiscountConfig {
	return DiscountConfig{Enabled: true, DiscountAmount: discount, MinimumFloor: DefaultMinimumFloor}
}

// HolderIdentity is the only valid ownership key: the same person id may exist
// in several tenants (polos).
type HolderIdentity struct {
	HolderID string `json:"holder_id"`
	TenantID string `json:"tenant_id"`
}

// Boleto is one payable installment as seen by this service. It is read-only here;
// CRUD belongs to the administrative backend.
type Boleto struct {
	ID              int64           `json:"id"`
	ReferenceNumber string          `json:"reference_number"`
	Amount          Money           `json:"amount"`
	DueDate         time.Time       `json:"due_date"`
	Status          BoletoStatus    `json:"status"`
	Holder          HolderIdentity  `json:"holder"`
	HolderName      string          `json:"holder_name"`
	Description     string          `json:"description,omitempty"`
	Discount        *DiscountConfig `json:"discount,omitempty"`
}

// DiscountOrDisabled returns the embedded config, or a disabled one.
func (b *Boleto) DiscountOrDisabled() DiscountConfig {
	if b.Discount == nil {
		return DiscountConfig{MinimumFloor: DefaultMinimumFloor}
	}
	return *b.Discount
}

// MerchantProfile is the per-tenant receiver data required by the BR Code format.
type MerchantProfile struct {
	TenantID     string `json:"tenant_id"`
	PixKey       string `json:"pix_key"`
	Beneficiary  string `json:"beneficiary"`
	City         string `json:"city"`
	CategoryCode string `json:"category_code"`
}

// ParseDueDate reads a due date as stored by the back office. A bare date
// ("2026-11-10") means the whole day in loc, so it resolves to the last instant
// of that day. Full timestamps keep their instant and are shown in loc.
func ParseDueDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), nil
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
	}
	d, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid due date %q: %w", s, err)
	}
	return EndOfDay(d), nil
}

// EndOfDay returns the last nanosecond of t's calendar day in t's location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location()).Add(-time.Nanosecond)
}
