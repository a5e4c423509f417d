package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/boddenberg/boleto-pix-go/internal/domain"
)

const boletoColumns = `id, reference_number, amount, due_date, status, holder_id, tenant_id,
	holder_name, description, discount_enabled, discount_amount, minimum_floor`

// GetBoleto implements port.BoletoStore.
func (s *Store) GetBoleto(ctx context.Context, id int64) (*domain.Boleto, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+boletoColumns+" FROM boletos WHERE id = ?", id)

	var (
		b        domain.Boleto
		due      string
		status   string
		enabled  sql.NullBool
		discount sql.NullString
		floor    sql.NullString
	)
	err := row.Scan(&b.ID, &b.ReferenceNumber, &b.Amount, &due, &status,
		&b.Holder.HolderID, &b.Holder.TenantID, &b.HolderName, &b.Description,
		&enabled, &discount, &floor)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "boleto", ID: strconv.FormatInt(id, 10)}
	}
	if err != nil {
		return nil, wrap("sqlite/boletos", err)
	}

	b.Status = domain.BoletoStatus(status)
	if b.DueDate, err = domain.ParseDueDate(due, s.loc); err != nil {
		return nil, fmt.Errorf("boleto %d: %w", id, err)
	}

	if enabled.Valid {
		cfg := domain.DiscountConfig{Enabled: enabled.Bool, MinimumFloor: domain.DefaultMinimumFloor}
		if discount.Valid {
			if cfg.DiscountAmount, err = domain.NewMoney(discount.String); err != nil {
				return nil, fmt.Errorf("boleto %d discount: %w", id, err)
			}
		}
		if floor.Valid {
			if cfg.MinimumFloor, err = domain.NewMoney(floor.String); err != nil {
				return nil, fmt.Errorf("boleto %d floor: %w", id, err)
			}
		}
		b.Discount = &cfg
	}
	return &b, nil
}

// SaveBoleto inserts or replaces a boleto. The back office owns boletos; this
// exists for seeding and tests.
func (s *Store) SaveBoleto(ctx context.Context, b *domain.Boleto) error {
	var (
		enabled  sql.NullBool
		discount sql.NullString
		floor    sql.NullString
	)
	if b.Discount != nil {
		enabled = sql.NullBool{Bool: b.Discount.Enabled, Valid: true}
		discount = sql.NullString{String: b.Discount.DiscountAmount.Fixed2(), Valid: true}
		floor = sql.NullString{String: b.Discount.MinimumFloor.Fixed2(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO boletos (`+boletoColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		b.ID, b.ReferenceNumber, b.Amount, b.DueDate.In(s.loc).Format("2006-01-02T15:04:05.999999999Z07:00"),
		string(b.Status), b.Holder.HolderID, b.Holder.TenantID, b.HolderName, b.Description,
		enabled, discount, floor,
	)
	return wrap("sqlite/boletos", err)
}

// GetMerchantProfile implements port.MerchantStore.
func (s *Store) GetMerchantProfile(ctx context.Context, tenantID string) (*domain.MerchantProfile, error) {
	var p domain.MerchantProfile
	err := s.db.QueryRowContext(ctx,
		`SELECT tenant_id, pix_key, beneficiary, city, category_code
		FROM merchant_profiles WHERE tenant_id = ?`, tenantID,
	).Scan(&p.TenantID, &p.PixKey, &p.Beneficiary, &p.City, &p.CategoryCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "merchant_profile", ID: tenantID}
	}
	if err != nil {
		return nil, wrap("sqlite/merchant_profiles", err)
	}
	return &p, nil
}

// SaveMerchantProfile inserts or replaces a tenant's receiver data.
func (s *Store) SaveMerchantProfile(ctx context.Context, p *domain.MerchantProfile) error {
	mcc := p.CategoryCode
	if mcc == "" {
		mcc = "0000"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO merchant_profiles (tenant_id, pix_key, beneficiary, city, category_code)
		VALUES (?,?,?,?,?)`,
		p.TenantID, p.PixKey, p.Beneficiary, p.City, mcc,
	)
	return wrap("sqlite/merchant_profiles", err)
}
