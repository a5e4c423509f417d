package postgres

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/boddenberg/boleto-pix-go/internal/domain"
)

type merchantProfileModel struct {
	TenantID     string `gorm:"primaryKey"`
	PixKey       string `gorm:"not null"`
	Beneficiary  string `gorm:"not null"`
	City         string `gorm:"not null"`
	CategoryCode string `gorm:"not null;default:'0000'"`
}

func (merchantProfileModel) TableName() string { return "merchant_profiles" }

type boletoModel struct {
	ID              int64         `gorm:"primaryKey;autoIncrement:false"`
	ReferenceNumber string        `gorm:"not null"`
	Amount          domain.Money  `gorm:"type:numeric(14,2);not null"`
	DueDate         time.Time     `gorm:"not null"`
	Status          string        `gorm:"not null;index"`
	HolderID        string        `gorm:"not null;index:idx_boletos_holder,priority:2"`
	TenantID        string        `gorm:"not null;index:idx_boletos_holder,priority:1"`
	HolderName      string        `gorm:"not null"`
	Description     string        `gorm:"not null;default:''"`
	DiscountEnabled *bool
	DiscountAmount  *domain.Money `gorm:"type:numeric(14,2)"`
	MinimumFloor    *domain.Money `gorm:"type:numeric(14,2)"`
}

func (boletoModel) TableName() string { return "boletos" }

func (m boletoModel) toDomain(loc *time.Location) *domain.Boleto {
	b := &domain.Boleto{
		ID:              m.ID,
		ReferenceNumber: m.ReferenceNumber,
		Amount:          m.Amount,
		DueDate:         m.DueDate.In(loc),
		Status:          domain.BoletoStatus(m.Status),
		Holder:          domain.HolderIdentity{HolderID: m.HolderID, TenantID: m.TenantID},
		HolderName:      m.HolderName,
		Description:     m.Description,
	}
	if m.DiscountEnabled != nil {
		cfg := domain.DiscountConfig{Enabled: *m.DiscountEnabled, MinimumFloor: domain.DefaultMinimumFloor}
		if m.DiscountAmount != nil {
			cfg.DiscountAmount = *m.DiscountAmount
		}
		if m.MinimumFloor != nil {
			cfg.MinimumFloor = *m.MinimumFloor
		}
		b.Discount = &cfg
	}
	return b
}

func boletoFromDomain(b *domain.Boleto) boletoModel {
	m := boletoModel{
		ID:              b.ID,
		ReferenceNumber: b.ReferenceNumber,
		Amount:          b.Amount,
		DueDate:         b.DueDate,
		Status:          string(b.Status),
		HolderID:        b.Holder.HolderID,
		TenantID:        b.Holder.TenantID,
		HolderName:      b.HolderName,
		Description:     b.Description,
	}
	if b.Discount != nil {
		enabled := b.Discount.Enabled
		amount, floor := b.Discount.DiscountAmount, b.Discount.MinimumFloor
		m.DiscountEnabled, m.DiscountAmount, m.MinimumFloor = &enabled, &amount, &floor
	}
	return m
}

// stringList is stored as a jsonb array.
type stringList []string

func (l stringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]string(l))
	return string(raw), err
}

func (l *stringList) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("stringList: unsupported type %T", value)
	}
	return json.Unmarshal(raw, (*[]string)(l))
}

type ledgerModel struct {
	ID                  string       `gorm:"primaryKey;type:uuid"`
	ReferenceID         string       `gorm:"not null"`
	BoletoID            int64        `gorm:"not null;index:idx_ledger_boleto,priority:1"`
	TenantID            string       `gorm:"not null"`
	Outcome             string       `gorm:"not null"`
	ErrorKind           string       `gorm:"not null;default:''"`
	ComputedFinalAmount domain.Money `gorm:"type:numeric(14,2);not null"`
	DiscountApplied     domain.Money `gorm:"type:numeric(14,2);not null"`
	EligibilityReason   string       `gorm:"not null;default:''"`
	Diagnostics         stringList   `gorm:"type:jsonb;not null"`
	PayloadChecksum     string       `gorm:"not null;default:''"`
	CreatedAt           time.Time    `gorm:"not null;index:idx_ledger_boleto,priority:2"`
	Expiry              *time.Time
}

func (ledgerModel) TableName() string { return "pix_generation_ledger" }

func ledgerFromDomain(r *domain.GenerationRecord) ledgerModel {
	return ledgerModel{
		ID:                  r.ID,
		ReferenceID:         r.ReferenceID,
		BoletoID:            r.BoletoID,
		TenantID:            r.TenantID,
		Outcome:             string(r.Outcome),
		ErrorKind:           string(r.ErrorKind),
		ComputedFinalAmount: r.ComputedFinalAmount,
		DiscountApplied:     r.DiscountApplied,
		EligibilityReason:   string(r.EligibilityReason),
		Diagnostics:         stringList(r.Diagnostics),
		PayloadChecksum:     r.PayloadChecksum,
		CreatedAt:           r.CreatedAt,
		Expiry:              r.Expiry,
	}
}

func (m ledgerModel) toDomain() domain.GenerationRecord {
	return domain.GenerationRecord{
		ID:                  m.ID,
		ReferenceID:         m.ReferenceID,
		BoletoID:            m.BoletoID,
		TenantID:            m.TenantID,
		Outcome:             domain.GenerationOutcome(m.Outcome),
		ErrorKind:           domain.ErrorKind(m.ErrorKind),
		ComputedFinalAmount: m.ComputedFinalAmount,
		DiscountApplied:     m.DiscountApplied,
		EligibilityReason:   domain.EligibilityReason(m.EligibilityReason),
		Diagnostics:         []string(m.Diagnostics),
		PayloadChecksum:     m.PayloadChecksum,
		CreatedAt:           m.CreatedAt,
		Expiry:              m.Expiry,
	}
}
