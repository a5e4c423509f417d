package postgres

import (
	"context"
	"errors"
	"strconv"

	"github.com/boddenberg/boleto-pix-go/internal/domain"
	"gorm.io/gorm"
)

// GetBoleto implements port.BoletoStore.
func (s *Store) GetBoleto(ctx context.Context, id int64) (*domain.Boleto, error) {
	var m boletoModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &domain.ErrNotFound{Resource: "boleto", ID: strconv.FormatInt(id, 10)}
	}
	if err != nil {
		return nil, wrap("postgres/boletos", err)
	}
	return m.toDomain(s.loc), nil
}

// SaveBoleto upserts a boleto. Used by seeding.
func (s *Store) SaveBoleto(ctx context.Context, b *domain.Boleto) error {
	m := boletoFromDomain(b)
	return wrap("postgres/boletos", s.db.WithContext(ctx).Save(&m).Error)
}

// GetMerchantProfile implements port.MerchantStore.
func (s *Store) GetMerchantProfile(ctx context.Context, tenantID string) (*domain.MerchantProfile, error) {
	var m merchantProfileModel
	err := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &domain.ErrNotFound{Resource: "merchant_profile", ID: tenantID}
	}
	if err != nil {
		return nil, wrap("postgres/merchant_profiles", err)
	}
	return &domain.MerchantProfile{
		TenantID:     m.TenantID,
		PixKey:       m.PixKey,
		Beneficiary:  m.Beneficiary,
		City:         m.City,
		CategoryCode: m.CategoryCode,
	}, nil
}

// SaveMerchantProfile upserts a tenant's receiver data.
func (s *Store) SaveMerchantProfile(ctx context.Context, p *domain.MerchantProfile) error {
	m := merchantProfileModel{
		TenantID:     p.TenantID,
		PixKey:       p.PixKey,
		Beneficiary:  p.Beneficiary,
		City:         p.City,
		CategoryCode: p.CategoryCode,
	}
	if m.CategoryCode == "" {
		m.CategoryCode = "0000"
	}
	return wrap("postgres/merchant_profiles", s.db.WithContext(ctx).Save(&m).Error)
}

// AppendGeneration implements port.LedgerStore. It only ever INSERTs; a
// trigger rejects UPDATE and DELETE.
func (s *Store) AppendGeneration(ctx context.Context, rec *domain.GenerationRecord) error {
	m := ledgerFromDomain(rec)
	return wrap("postgres/ledger", s.db.WithContext(ctx).Create(&m).Error)
}

// ListGenerations returns a boleto's ledger entries, oldest first.
func (s *Store) ListGenerations(ctx context.Context, boletoID int64) ([]domain.GenerationRecord, error) {
	var rows []ledgerModel
	err := s.db.WithContext(ctx).
		Where("boleto_id = ?", boletoID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrap("postgres/ledger", err)
	}

	out := make([]domain.GenerationRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}
