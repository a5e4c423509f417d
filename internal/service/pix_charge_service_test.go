package service_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/boleto-pix-go/internal/brcode"
	"github.com/boddenberg/boleto-pix-go/internal/domain"
	"github.com/boddenberg/boleto-pix-go/internal/infra/cache"
	"github.com/boddenberg/boleto-pix-go/internal/infra/observability"
	"github.com/boddenberg/boleto-pix-go/internal/ledger"
	"github.com/boddenberg/boleto-pix-go/internal/service"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- Mocks ---

type mockBoletoStore struct {
	boletos map[int64]*domain.Boleto
	block   bool
	delay   time.Duration
}

func (m *mockBoletoStore) GetBoleto(ctx context.Context, id int64) (*domain.Boleto, error) {
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	b, ok := m.boletos[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "boleto", ID: strconv.FormatInt(id, 10)}
	}
	c := *b
	return &c, nil
}

type mockMerchantStore struct {
	profiles map[string]*domain.MerchantProfile
	calls    int
}

func (m *mockMerchantStore) GetMerchantProfile(_ context.Context, tenantID string) (*domain.MerchantProfile, error) {
	m.calls++
	p, ok := m.profiles[tenantID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "merchant_profile", ID: tenantID}
	}
	return p, nil
}

type mockLedgerStore struct {
	mu      sync.Mutex
	records []domain.GenerationRecord
	err     error
}

func (m *mockLedgerStore) AppendGeneration(_ context.Context, rec *domain.GenerationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, *rec)
	return nil
}

func (m *mockLedgerStore) ListGenerations(_ context.Context, boletoID int64) ([]domain.GenerationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.GenerationRecord
	for _, r := range m.records {
		if r.BoletoID == boletoID {
			out = append(out, r)
		}
	}
	return out, nil
}

// --- Fixtures ---

var (
	now = time.Date(2026, 11, 1, 10, 0, 0, 0, time.UTC)
	due = time.Date(2026, 11, 10, 23, 59, 59, 0, time.UTC)

	holderA1 = domain.HolderIdentity{HolderID: "A", TenantID: "polo-1"}
	holderA2 = domain.HolderIdentity{HolderID: "A", TenantID: "polo-2"}
)

func boleto(id int64, amount, disc string, holder domain.HolderIdentity, status domain.BoletoStatus) *domain.Boleto {
	b := &domain.Boleto{
		ID:              id,
		ReferenceNumber: "MENS-" + strconv.FormatInt(id, 10),
		Amount:          domain.MustMoney(amount),
		DueDate:         due,
		Status:          status,
		Holder:          holder,
		HolderName:      "Maria Souza",
	}
	if disc != "" {
		cfg := domain.NewDiscountConfig(domain.MustMoney(disc))
		b.Discount = &cfg
	}
	return b
}

type fixture struct {
	svc       *service.PixChargeService
	boletos   *mockBoletoStore
	merchants *mockMerchantStore
	ledger    *mockLedgerStore
	metrics   *observability.Metrics
}

func newFixture(t *testing.T, reuse bool) *fixture {
	t.Helper()

	f := &fixture{
		boletos: &mockBoletoStore{boletos: map[int64]*domain.Boleto{
			1: boleto(1, "150.00", "20.00", holderA1, domain.BoletoPending),
			2: boleto(2, "25.00", "20.00", holderA1, domain.BoletoPending),
			3: boleto(3, "150.00", "20.00", holderA1, domain.BoletoPaid),
			4: boleto(4, "150.00", "", holderA1, domain.BoletoCancelled),
			5: boleto(5, "320.00", "30.00", holderA2, domain.BoletoPending),
			6: boleto(6, "80.00", "", holderA1, domain.BoletoPending),
			9: boleto(9, "150.00", "20.00", domain.HolderIdentity{HolderID: "B", TenantID: "polo-9"}, domain.BoletoPending),
		}},
		merchants: &mockMerchantStore{profiles: map[string]*domain.MerchantProfile{
			"polo-1": {TenantID: "polo-1", PixKey: "pay@example.com", Beneficiary: "EXAMPLE SCHOOL", City: "EXAMPLE CITY"},
			"polo-2": {TenantID: "polo-2", PixKey: "polo2@example.com", Beneficiary: "Escola São João", City: "São José dos Campos"},
		}},
		ledger:  &mockLedgerStore{},
		metrics: observability.NewMetrics(),
	}

	logger := zap.NewNop()
	rec := ledger.NewRecorder(f.ledger, ledger.LogSink{Logger: logger}, time.Second, f.metrics, logger)

	var active *cache.MemoryActiveCodes
	if reuse {
		active = cache.NewMemoryActiveCodes(time.Minute)
	}
	cfg := service.PixChargeConfig{
		StoreTimeout:     50 * time.Millisecond,
		CodeTTL:          30 * time.Minute,
		ReuseActiveCode:  reuse,
		QRCodeSize:       300,
		MerchantCacheTTL: time.Minute,
		Location:         time.UTC,
	}
	if active != nil {
		f.svc = service.NewPixChargeService(f.boletos, f.merchants, rec, active, cfg, f.metrics, logger)
	} else {
		f.svc = service.NewPixChargeService(f.boletos, f.merchants, rec, nil, cfg, f.metrics, logger)
	}
	f.svc.WithClock(func() time.Time { return now })
	return f
}

var holderPrincipal = domain.HolderPrincipal("A", "polo-1")

// --- Tests ---

func TestGenerate_DiscountApplied(t *testing.T) {
	f := newFixture(t, false)

	c, err := f.svc.Generate(context.Background(), holderPrincipal, "1")
	require.NoError(t, err)

	assert.True(t, c.Success)
	assert.Equal(t, "150.00", c.Boleto.OriginalAmount.Fixed2())
	assert.Equal(t, "130.00", c.Boleto.FinalAmount.Fixed2())
	assert.True(t, c.Discount.Applied)
	assert.Equal(t, "20.00", c.Discount.Amount.Fixed2())
	assert.Equal(t, domain.ReasonApplied, c.Discount.Reason)
	assert.Contains(t, c.Discount.SavingsStatement, "R$ 20,00")
	assert.True(t, c.PaymentCode.ValidUntil.Equal(now.Add(30*time.Minute)))
	assert.Equal(t, "/v1/boletos/1/pix/qrcode.png", c.PaymentCode.Image.Href)
	assert.Equal(t, 300, c.PaymentCode.Image.Size)

	require.Len(t, f.ledger.records, 1)
	r := f.ledger.records[0]
	assert.Equal(t, domain.OutcomeGenerated, r.Outcome)
	assert.Equal(t, "130.00", r.ComputedFinalAmount.Fixed2())
	assert.Equal(t, c.PaymentCode.PayloadChecksum, r.PayloadChecksum)
	assert.Equal(t, c.PaymentCode.ReferenceID, r.ReferenceID)
	require.NotNil(t, r.Expiry)
}

func TestGenerate_DiscountCappedAtFloor(t *testing.T) {
	f := newFixture(t, false)

	c, err := f.svc.Generate(context.Background(), domain.AdminPrincipal("ops"), "2")
	require.NoError(t, err)
	assert.Equal(t, "15.00", c.Discount.Amount.Fixed2())
	assert.Equal(t, "10.00", c.Boleto.FinalAmount.Fixed2())
}

func TestGenerate_PayloadDecodesToMerchant(t *testing.T) {
	f := newFixture(t, false)

	c, err := f.svc.Generate(context.Background(), holderPrincipal, "1")
	require.NoError(t, err)

	d, err := brcode.Decode(c.PaymentCode.PayloadText)
	require.NoError(t, err)
	assert.Equal(t, "pay@example.com", d.PixKey)
	assert.Equal(t, "EXAMPLE SCHOOL", d.MerchantName)
	assert.Equal(t, "EXAMPLE CITY", d.MerchantCity)
	assert.Equal(t, "130.00", d.Amount)
	assert.Equal(t, c.PaymentCode.ReferenceID, d.ReferenceID)
	assert.Equal(t, c.PaymentCode.PayloadChecksum, d.CRC)
	assert.LessOrEqual(t, len(d.ReferenceID), brcode.MaxReferenceID)
}

func TestGenerate_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		principal  domain.Principal
		id         string
		kind       domain.ErrorKind
		ledgerKind domain.ErrorKind
	}{
		{"non numeric id", holderPrincipal, "abc", domain.KindInvalidInput, ""},
		{"zero id", holderPrincipal, "0", domain.KindInvalidInput, ""},
		{"negative id", holderPrincipal, "-3", domain.KindInvalidInput, ""},
		{"missing boleto", domain.AdminPrincipal("ops"), "999999", domain.KindNotFound, ""},
		{"paid", domain.AdminPrincipal("ops"), "3", domain.KindAlreadySettled, domain.KindAlreadySettled},
		{"cancelled", holderPrincipal, "4", domain.KindCancelled, domain.KindCancelled},
		{"same holder other tenant", holderPrincipal, "5", domain.KindAccessDenied, domain.KindAccessDenied},
		{"other holder", holderPrincipal, "9", domain.KindAccessDenied, domain.KindAccessDenied},
		{"tenant without merchant profile", domain.AdminPrincipal("ops"), "9", domain.KindEncoding, domain.KindEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false)

			c, err := f.svc.Generate(context.Background(), tt.principal, tt.id)
			require.Error(t, err)
			assert.Nil(t, c)
			assert.Equal(t, tt.kind, domain.KindOf(err))

			if tt.ledgerKind == "" {
				assert.Empty(t, f.ledger.records)
				return
			}
			require.Len(t, f.ledger.records, 1)
			r := f.ledger.records[0]
			assert.Equal(t, tt.ledgerKind, r.ErrorKind)
			assert.Empty(t, r.PayloadChecksum)
			assert.Nil(t, r.Expiry)
		})
	}
}

func TestGenerate_PaidDeniedForHolderToo(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.svc.Generate(context.Background(), holderPrincipal, "3")
	var settled *domain.ErrAlreadySettled
	require.True(t, errors.As(err, &settled))

	require.Len(t, f.ledger.records, 1)
	assert.Equal(t, domain.OutcomeDenied, f.ledger.records[0].Outcome)
	assert.Equal(t, "polo-1", f.ledger.records[0].TenantID)
}

func TestGenerate_ZeroFinalAmountIsEncodingFailure(t *testing.T) {
	f := newFixture(t, false)
	b := boleto(7, "20.00", "", holderA1, domain.BoletoPending)
	b.Discount = &domain.DiscountConfig{Enabled: true, DiscountAmount: domain.MustMoney("20.00"), MinimumFloor: domain.Zero()}
	f.boletos.boletos[7] = b

	_, err := f.svc.Generate(context.Background(), holderPrincipal, "7")
	assert.Equal(t, domain.KindEncoding, domain.KindOf(err))

	require.Len(t, f.ledger.records, 1)
	assert.Equal(t, domain.OutcomeFailed, f.ledger.records[0].Outcome)
	assert.True(t, f.ledger.records[0].ComputedFinalAmount.IsZero())
}

func TestGenerate_WindowExpired(t *testing.T) {
	f := newFixture(t, false)
	f.svc.WithClock(func() time.Time { return due.Add(time.Second) })

	c, err := f.svc.Generate(context.Background(), holderPrincipal, "1")
	require.NoError(t, err)
	assert.False(t, c.Discount.Applied)
	assert.Equal(t, domain.ReasonWindowExpired, c.Discount.Reason)
	assert.Equal(t, "150.00", c.Boleto.FinalAmount.Fixed2())
}

func TestGenerate_BoletoLookupTimeoutIsTransient(t *testing.T) {
	f := newFixture(t, false)
	f.boletos.block = true

	start := time.Now()
	_, err := f.svc.Generate(context.Background(), holderPrincipal, "1")
	assert.Equal(t, domain.KindTransientIO, domain.KindOf(err))
	assert.Less(t, time.Since(start), time.Second)
	assert.Empty(t, f.ledger.records)
}

func TestGenerate_LedgerFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t, false)
	f.ledger.err = errors.New("connection reset")

	c, err := f.svc.Generate(context.Background(), holderPrincipal, "1")
	require.NoError(t, err)
	assert.NotEmpty(t, c.PaymentCode.PayloadText)
	assert.Equal(t, int64(1), f.metrics.GetPixSnapshot().LedgerFailures)
}

func TestGenerate_NewCodePerRequestByDefault(t *testing.T) {
	f := newFixture(t, false)

	a, err := f.svc.Generate(context.Background(), holderPrincipal, "1")
	require.NoError(t, err)
	b, err := f.svc.Generate(context.Background(), holderPrincipal, "1")
	require.NoError(t, err)

	assert.NotEqual(t, a.PaymentCode.ReferenceID, b.PaymentCode.ReferenceID)
	assert.False(t, b.Reused)
	assert.Len(t, f.ledger.records, 2)
	assert.Equal(t, 1, f.merchants.calls, "merchant profile is cached")
}

func TestGenerate_ReusesActiveCode(t *testing.T) {
	f := newFixture(t, true)

	a, err := f.svc.Generate(context.Background(), holderPrincipal, "1")
	require.NoError(t, err)
	b, err := f.svc.Generate(context.Background(), holderPrincipal, "1")
	require.NoError(t, err)

	assert.True(t, b.Reused)
	assert.Equal(t, a.PaymentCode.PayloadText, b.PaymentCode.PayloadText)
	assert.Len(t, f.ledger.records, 1)
	assert.Equal(t, int64(1), f.metrics.GetPixSnapshot().Reused)
}

func TestGenerate_ReuseStillChecksAccess(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.svc.Generate(context.Background(), holderPrincipal, "1")
	require.NoError(t, err)

	_, err = f.svc.Generate(context.Background(), domain.HolderPrincipal("A", "polo-2"), "1")
	assert.Equal(t, domain.KindAccessDenied, domain.KindOf(err))
}

func TestGenerate_ReuseSkippedWhenAmountChanges(t *testing.T) {
	f := newFixture(t, true)

	a, err := f.svc.Generate(context.Background(), holderPrincipal, "1")
	require.NoError(t, err)

	// The back office removes the discount: the cached 130.00 code no longer matches.
	f.boletos.boletos[1].Discount = nil
	b, err := f.svc.Generate(context.Background(), holderPrincipal, "1")
	require.NoError(t, err)

	assert.False(t, b.Reused)
	assert.NotEqual(t, a.PaymentCode.PayloadText, b.PaymentCode.PayloadText)
	assert.Equal(t, "150.00", b.Boleto.FinalAmount.Fixed2())
}

func TestListLedger(t *testing.T) {
	f := newFixture(t, false)

	_, _ = f.svc.Generate(context.Background(), holderPrincipal, "1")
	_, _ = f.svc.Generate(context.Background(), holderPrincipal, "5")

	recs, err := f.svc.ListLedger(context.Background(), "1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.OutcomeGenerated, recs[0].Outcome)

	recs, err = f.svc.ListLedger(context.Background(), "6")
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)

	_, err = f.svc.ListLedger(context.Background(), "x")
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
}

func TestPixSnapshot(t *testing.T) {
	f := newFixture(t, false)

	_, _ = f.svc.Generate(context.Background(), holderPrincipal, "1")
	_, _ = f.svc.Generate(context.Background(), holderPrincipal, "6")
	_, _ = f.svc.Generate(context.Background(), holderPrincipal, "3")

	snap := f.metrics.GetPixSnapshot()
	assert.Equal(t, int64(2), snap.Generated)
	assert.Equal(t, int64(1), snap.Denied)
	assert.InDelta(t, 0.5, snap.DiscountRate, 1e-9)
	assert.InDelta(t, 0.5, snap.MerchantHitRate, 1e-9)
}

func TestGenerate_CancelledLookupIsTransient(t *testing.T) {
	f := newFixture(t, false)
	f.boletos.block = true

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(5*time.Millisecond, cancel)

	_, err := f.svc.Generate(ctx, holderPrincipal, "1")
	assert.Equal(t, domain.KindTransientIO, domain.KindOf(err))
}

func TestGenerate_ReuseSurvivesOtherCallerCancel(t *testing.T) {
	f := newFixture(t, true)
	f.boletos.delay = 30 * time.Millisecond

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()

	var (
		wg         sync.WaitGroup
		errA, errB error
		chargeB    *domain.PixCharge
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errA = f.svc.Generate(ctxA, holderPrincipal, "1")
	}()
	time.Sleep(2 * time.Millisecond)
	go func() {
		defer wg.Done()
		chargeB, errB = f.svc.Generate(context.Background(), holderPrincipal, "1")
	}()
	time.Sleep(5 * time.Millisecond)
	cancelA()
	wg.Wait()

	assert.Equal(t, domain.KindTransientIO, domain.KindOf(errA))
	require.NoError(t, errB)
	assert.Equal(t, "130.00", chargeB.Boleto.FinalAmount.Fixed2())
	assert.Len(t, f.ledger.records, 1)
}

func TestGenerate_TruncationReachesLedger(t *testing.T) {
	f := newFixture(t, false)

	c, err := f.svc.Generate(context.Background(), domain.HolderPrincipal("A", "polo-2"), "5")
	require.NoError(t, err)

	d, err := brcode.Decode(c.PaymentCode.PayloadText)
	require.NoError(t, err)
	assert.Equal(t, "SAO JOSE DOS CA", d.MerchantCity)

	require.Len(t, f.ledger.records, 1)
	r := f.ledger.records[0]
	assert.Equal(t, domain.OutcomeGenerated, r.Outcome)
	assert.Contains(t, r.Diagnostics, "merchant_city truncated from 19 to 15 bytes")

	assert.Equal(t, 1.0, truncationCount(t, f.metrics, "merchant_city"))
}

func truncationCount(t *testing.T, m *observability.Metrics, field string) float64 {
	t.Helper()
	families, err := m.Registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "pix_encoding_truncations_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if labelValue(metric, "field") == field {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
