package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/boleto-pix-go/internal/domain"
)

// SeedDemo loads two tenants and a handful of boletos covering every lifecycle
// and discount situation. Due dates are relative to now.
func SeedDemo(ctx context.Context, s *Store, now time.Time) error {
	merchants := []domain.MerchantProfile{
		{TenantID: "polo-1", PixKey: "pay@example.com", Beneficiary: "EXAMPLE SCHOOL", City: "EXAMPLE CITY", CategoryCode: "8299"},
		{TenantID: "polo-2", PixKey: "123e4567-e12b-12d1-a456-426655440000", Beneficiary: "Escola São João", City: "São José dos Campos", CategoryCode: "8299"},
	}
	for i := range merchants {
		if err := s.SaveMerchantProfile(ctx, &merchants[i]); err != nil {
			return fmt.Errorf("seed merchant %s: %w", merchants[i].TenantID, err)
		}
	}

	inTen := domain.EndOfDay(now.In(s.loc).AddDate(0, 0, 10))
	lastWeek := domain.EndOfDay(now.In(s.loc).AddDate(0, 0, -7))
	twenty := domain.NewDiscountConfig(domain.MustMoney("20.00"))

	holderA1 := domain.HolderIdentity{HolderID: "A", TenantID: "polo-1"}
	holderA2 := domain.HolderIdentity{HolderID: "A", TenantID: "polo-2"}

	boletos := []domain.Boleto{
		{ID: 1, ReferenceNumber: "MENS-2026-001", Amount: domain.MustMoney("150.00"), DueDate: inTen, Status: domain.BoletoPending, Holder: holderA1, HolderName: "Maria Souza", Description: "Mensalidade", Discount: &twenty},
		{ID: 2, ReferenceNumber: "MENS-2026-002", Amount: domain.MustMoney("25.00"), DueDate: inTen, Status: domain.BoletoPending, Holder: holderA1, HolderName: "Maria Souza", Discount: &twenty},
		{ID: 3, ReferenceNumber: "MENS-2026-003", Amount: domain.MustMoney("150.00"), DueDate: inTen, Status: domain.BoletoPaid, Holder: holderA1, HolderName: "Maria Souza", Discount: &twenty},
		{ID: 4, ReferenceNumber: "MENS-2026-004", Amount: domain.MustMoney("150.00"), DueDate: inTen, Status: domain.BoletoCancelled, Holder: holderA1, HolderName: "Maria Souza"},
		{ID: 5, ReferenceNumber: "MENS-2026-005", Amount: domain.MustMoney("320.00"), DueDate: inTen, Status: domain.BoletoPending, Holder: holderA2, HolderName: "Maria Souza Lima", Discount: &twenty},
		{ID: 6, ReferenceNumber: "MENS-2026-006", Amount: domain.MustMoney("150.00"), DueDate: lastWeek, Status: domain.BoletoPending, Holder: holderA1, HolderName: "Maria Souza", Discount: &twenty},
		{ID: 7, ReferenceNumber: "MENS-2026-007", Amount: domain.MustMoney("89.90"), DueDate: inTen, Status: domain.BoletoPending, Holder: holderA1, HolderName: "Maria Souza"},
	}
	for i := range boletos {
		if err := s.SaveBoleto(ctx, &boletos[i]); err != nil {
			return fmt.Errorf("seed boleto %d: %w", boletos[i].ID, err)
		}
	}
	return nil
}
