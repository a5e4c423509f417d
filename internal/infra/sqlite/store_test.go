package sqlite_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/boleto-pix-go/internal/domain"
	"github.com/boddenberg/boleto-pix-go/internal/infra/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 11, 1, 9, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	db, err := sqlite.InitDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sp, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	s := sqlite.NewStore(db, sp)
	require.NoError(t, sqlite.SeedDemo(context.Background(), s, now))
	return s
}

func TestInitDB_InMemory(t *testing.T) {
	db, err := sqlite.InitDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	s := sqlite.NewStore(db, nil)
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, sqlite.SeedDemo(context.Background(), s, now))

	_, err = s.GetBoleto(context.Background(), 1)
	assert.NoError(t, err)
}

func TestGetBoleto(t *testing.T) {
	s := newStore(t)

	b, err := s.GetBoleto(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "MENS-2026-001", b.ReferenceNumber)
	assert.Equal(t, "150.00", b.Amount.Fixed2())
	assert.Equal(t, domain.BoletoPending, b.Status)
	assert.Equal(t, domain.HolderIdentity{HolderID: "A", TenantID: "polo-1"}, b.Holder)
	require.NotNil(t, b.Discount)
	assert.True(t, b.Discount.Enabled)
	assert.Equal(t, "20.00", b.Discount.DiscountAmount.Fixed2())
	assert.Equal(t, "10.00", b.Discount.MinimumFloor.Fixed2())

	sp := b.DueDate.Location()
	assert.Equal(t, "America/Sao_Paulo", sp.String())
	assert.Equal(t, 23, b.DueDate.Hour())

	noDiscount, err := s.GetBoleto(context.Background(), 7)
	require.NoError(t, err)
	assert.Nil(t, noDiscount.Discount)
}

func TestGetBoleto_NotFound(t *testing.T) {
	s := newStore(t)

	_, err := s.GetBoleto(context.Background(), 999999)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestGetBoleto_CancelledContextIsTransient(t *testing.T) {
	s := newStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.GetBoleto(ctx, 1)
	assert.Equal(t, domain.KindTransientIO, domain.KindOf(err))
}

func TestGetMerchantProfile(t *testing.T) {
	s := newStore(t)

	p, err := s.GetMerchantProfile(context.Background(), "polo-2")
	require.NoError(t, err)
	assert.Equal(t, "Escola São João", p.Beneficiary)

	_, err = s.GetMerchantProfile(context.Background(), "polo-9")
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestLedger_AppendOnly(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	expiry := now.Add(30 * time.Minute)

	first := &domain.GenerationRecord{
		ID:                  "00000000-0000-0000-0000-000000000001",
		ReferenceID:         "BOL1A",
		BoletoID:            1,
		TenantID:            "polo-1",
		Outcome:             domain.OutcomeGenerated,
		ComputedFinalAmount: domain.MustMoney("130.00"),
		DiscountApplied:     domain.MustMoney("20.00"),
		EligibilityReason:   domain.ReasonApplied,
		Diagnostics:         []string{"merchant_name truncated from 39 to 25 bytes"},
		PayloadChecksum:     "75AF",
		CreatedAt:           now,
		Expiry:              &expiry,
	}
	second := &domain.GenerationRecord{
		ID:                  "00000000-0000-0000-0000-000000000002",
		ReferenceID:         "BOL1B",
		BoletoID:            1,
		TenantID:            "polo-1",
		Outcome:             domain.OutcomeDenied,
		ErrorKind:           domain.KindAccessDenied,
		ComputedFinalAmount: domain.Zero(),
		DiscountApplied:     domain.Zero(),
		CreatedAt:           now.Add(500 * time.Millisecond),
	}
	require.NoError(t, s.AppendGeneration(ctx, second))
	require.NoError(t, s.AppendGeneration(ctx, first))

	// Same id twice is rejected.
	assert.Error(t, s.AppendGeneration(ctx, first))

	got, err := s.ListGenerations(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "BOL1A", got[0].ReferenceID)
	assert.Equal(t, "130.00", got[0].ComputedFinalAmount.Fixed2())
	assert.Equal(t, []string{"merchant_name truncated from 39 to 25 bytes"}, got[0].Diagnostics)
	require.NotNil(t, got[0].Expiry)
	assert.True(t, got[0].Expiry.Equal(expiry))
	assert.Equal(t, domain.KindAccessDenied, got[1].ErrorKind)
	assert.Nil(t, got[1].Expiry)
	assert.Empty(t, got[1].Diagnostics)

	none, err := s.ListGenerations(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLedger_TriggersRejectMutation(t *testing.T) {
	db, err := sqlite.InitDB(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer db.Close()
	s := sqlite.NewStore(db, time.UTC)

	require.NoError(t, s.AppendGeneration(context.Background(), &domain.GenerationRecord{
		ID: "r1", ReferenceID: "BOL1", BoletoID: 1, TenantID: "polo-1",
		Outcome: domain.OutcomeGenerated, CreatedAt: now,
	}))

	_, err = db.Exec(`UPDATE pix_generation_ledger SET payload_checksum = 'FFFF' WHERE id = 'r1'`)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "append-only"), err.Error())

	_, err = db.Exec(`DELETE FROM pix_generation_ledger WHERE id = 'r1'`)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "append-only"), err.Error())
}
