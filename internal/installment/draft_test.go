package installment_test

import (
	"testing"
	"time"

	"github.com/boddenberg/boleto-pix-go/internal/discount"
	"github.com/boddenberg/boleto-pix-go/internal/domain"
	"github.com/boddenberg/boleto-pix-go/internal/installment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var due = time.Date(2026, 12, 10, 0, 0, 0, 0, time.UTC)

func line(amount string) installment.Line {
	return installment.Line{
		ReferenceNumber: "MENS-" + amount,
		Amount:          domain.MustMoney(amount),
		DueDate:         due,
		Holder:          domain.HolderIdentity{HolderID: "12345678900", TenantID: "polo-1"},
		HolderName:      "Maria Souza",
	}
}

func newDraft(t *testing.T, amounts ...string) *installment.Draft {
	t.Helper()
	d := installment.NewDraft()
	for _, a := range amounts {
		_, err := d.AddInstallment(line(a))
		require.NoError(t, err)
	}
	return d
}

func TestDraft_Precedence(t *testing.T) {
	d := newDraft(t, "150.00", "150.00", "150.00")

	require.NoError(t, d.ApplyGlobalOverride(domain.NewDiscountConfig(domain.MustMoney("5.00"))))
	require.NoError(t, d.ApplyBatchOverride([]int{1, 2}, domain.NewDiscountConfig(domain.MustMoney("10.00"))))
	require.NoError(t, d.SetIndividualOverride(2, domain.NewDiscountConfig(domain.MustMoney("20.00"))))

	got := d.Resolve()
	require.Len(t, got, 3)
	assert.Equal(t, discount.ScopeGlobal, got[0].Scope)
	assert.Equal(t, discount.ScopeBatch, got[1].Scope)
	assert.Equal(t, discount.ScopeIndividual, got[2].Scope)

	preview := d.Preview(due.Add(-time.Hour))
	assert.Equal(t, "145.00", preview[0].FinalAmount.Fixed2())
	assert.Equal(t, "140.00", preview[1].FinalAmount.Fixed2())
	assert.Equal(t, "130.00", preview[2].FinalAmount.Fixed2())
}

func TestDraft_ScopeNeverChangesArithmetic(t *testing.T) {
	cfg := domain.NewDiscountConfig(domain.MustMoney("20.00"))

	individual := newDraft(t, "25.00")
	require.NoError(t, individual.SetIndividualOverride(0, cfg))
	batch := newDraft(t, "25.00")
	require.NoError(t, batch.ApplyBatchOverride([]int{0}, cfg))
	global := newDraft(t, "25.00")
	require.NoError(t, global.ApplyGlobalOverride(cfg))

	now := due.Add(-time.Hour)
	for _, d := range []*installment.Draft{individual, batch, global} {
		p := d.Preview(now)[0]
		assert.Equal(t, "10.00", p.FinalAmount.Fixed2())
		assert.Equal(t, "15.00", p.DiscountAmount.Fixed2())
		assert.Equal(t, domain.ReasonApplied, p.Reason)
	}
}

func TestDraft_GlobalCoversLinesAddedLater(t *testing.T) {
	d := newDraft(t)
	require.NoError(t, d.ApplyGlobalOverride(domain.NewDiscountConfig(domain.MustMoney("5.00"))))
	_, err := d.AddInstallment(line("50.00"))
	require.NoError(t, err)

	assert.Equal(t, discount.ScopeGlobal, d.Resolve()[0].Scope)
}

func TestDraft_NoOverrideIsDisabled(t *testing.T) {
	d := newDraft(t, "80.00")
	r := d.Resolve()[0]
	assert.False(t, r.Config.Enabled)
	assert.Empty(t, r.Scope)
	assert.Equal(t, domain.ReasonNotEligible, d.Preview(due)[0].Reason)
}

func TestDraft_ClearOverride(t *testing.T) {
	d := newDraft(t, "100.00", "100.00")
	require.NoError(t, d.ApplyGlobalOverride(domain.NewDiscountConfig(domain.MustMoney("5.00"))))
	require.NoError(t, d.ApplyBatchOverride([]int{0, 1}, domain.NewDiscountConfig(domain.MustMoney("10.00"))))
	require.NoError(t, d.SetIndividualOverride(0, domain.NewDiscountConfig(domain.MustMoney("20.00"))))

	require.NoError(t, d.ClearOverride(discount.ScopeIndividual, 0))
	assert.Equal(t, discount.ScopeBatch, d.Resolve()[0].Scope)

	require.NoError(t, d.ClearOverride(discount.ScopeBatch, 1))
	assert.Equal(t, discount.ScopeGlobal, d.Resolve()[1].Scope)

	require.NoError(t, d.ClearOverride(discount.ScopeBatch))
	require.NoError(t, d.ClearOverride(discount.ScopeGlobal))
	for _, r := range d.Resolve() {
		assert.Empty(t, r.Scope)
	}

	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(d.ClearOverride("weekly")))
}

func TestDraft_UpdateField(t *testing.T) {
	d := newDraft(t, "100.00")

	require.NoError(t, d.UpdateField(0, installment.FieldAmount, "120"))
	require.NoError(t, d.UpdateField(0, installment.FieldDueDate, "2027-01-05"))
	require.NoError(t, d.UpdateField(0, installment.FieldHolderName, "  João Lima "))

	r := d.Resolve()[0]
	assert.Equal(t, "120.00", r.Amount.Fixed2())
	assert.True(t, r.DueDate.Equal(domain.EndOfDay(time.Date(2027, 1, 5, 0, 0, 0, 0, due.Location()))), r.DueDate)
	assert.Equal(t, "João Lima", r.HolderName)
}

func TestDraft_Rejections(t *testing.T) {
	d := newDraft(t, "100.00")

	tests := []struct {
		name string
		err  error
	}{
		{"bad index", d.UpdateField(3, installment.FieldAmount, "10")},
		{"negative index", d.UpdateField(-1, installment.FieldAmount, "10")},
		{"unknown field", d.UpdateField(0, "color", "blue")},
		{"non-numeric amount", d.UpdateField(0, installment.FieldAmount, "dez")},
		{"zero amount", d.UpdateField(0, installment.FieldAmount, "0")},
		{"bad date", d.UpdateField(0, installment.FieldDueDate, "10/12/2026")},
		{"empty tenant", d.UpdateField(0, installment.FieldTenantID, " ")},
		{"negative discount", d.ApplyGlobalOverride(domain.DiscountConfig{Enabled: true, DiscountAmount: domain.MustMoney("-1")})},
		{"batch with bad index", d.ApplyBatchOverride([]int{0, 9}, domain.NewDiscountConfig(domain.MustMoney("1")))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, domain.KindInvalidInput, domain.KindOf(tt.err))
		})
	}

	// Rejected edits leave the line untouched.
	r := d.Resolve()[0]
	assert.Equal(t, "100.00", r.Amount.Fixed2())
	assert.Equal(t, "polo-1", r.Holder.TenantID)
	assert.Empty(t, r.Scope)
}

func TestDraft_AddInstallmentValidates(t *testing.T) {
	d := installment.NewDraft()
	l := line("10.00")
	l.Holder.TenantID = ""
	_, err := d.AddInstallment(l)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
	assert.Equal(t, 0, d.Len())
}
