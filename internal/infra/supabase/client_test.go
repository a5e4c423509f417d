package supabase_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/boleto-pix-go/internal/domain"
	"github.com/boddenberg/boleto-pix-go/internal/infra/resilience"
	"github.com/boddenberg/boleto-pix-go/internal/infra/supabase"

	"go.uber.org/zap"
)

func newClient(t *testing.T, h http.HandlerFunc) *supabase.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	sp, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Fatal(err)
	}
	return supabase.NewClient(
		srv.Client(), srv.URL, "anon", "service",
		resilience.NewCircuitBreaker(t.Name()),
		resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond},
		sp, zap.NewNop(),
	)
}

func TestGetBoleto(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/boletos" || r.URL.Query().Get("id") != "eq.42" {
			t.Errorf("unexpected request %s", r.URL)
		}
		if r.Header.Get("apikey") != "anon" || r.Header.Get("Authorization") != "Bearer service" {
			t.Errorf("missing auth headers")
		}
		w.Write([]byte(`[{"id":42,"reference_number":"MENS-2026-11","amount":150.00,"due_date":"2026-11-10",
			"status":"pending","holder_id":"A","tenant_id":"polo-1","holder_name":"Maria Souza",
			"discount_enabled":true,"discount_amount":"20.00","minimum_floor":null}]`))
	})

	b, err := c.GetBoleto(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetBoleto: %v", err)
	}
	if b.Amount.Fixed2() != "150.00" || b.Status != domain.BoletoPending {
		t.Errorf("unexpected boleto %+v", b)
	}
	if b.Holder != (domain.HolderIdentity{HolderID: "A", TenantID: "polo-1"}) {
		t.Errorf("holder = %+v", b.Holder)
	}
	if b.Discount == nil || !b.Discount.Enabled || b.Discount.DiscountAmount.Fixed2() != "20.00" {
		t.Fatalf("discount = %+v", b.Discount)
	}
	if !b.Discount.MinimumFloor.Equal(domain.DefaultMinimumFloor) {
		t.Errorf("null floor should default to 10.00, got %s", b.Discount.MinimumFloor)
	}
	if h, m := b.DueDate.Hour(), b.DueDate.Minute(); h != 23 || m != 59 {
		t.Errorf("date-only due date should close at end of day, got %s", b.DueDate)
	}
}

func TestGetBoleto_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`[]`))
	})

	_, err := c.GetBoleto(context.Background(), 999999)
	if domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestGetBoleto_ServerErrorIsTransient(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.GetBoleto(context.Background(), 1)
	var transient *domain.ErrTransientIO
	if !errors.As(err, &transient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestGetBoleto_DeadlineIsTransient(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := c.GetBoleto(ctx, 1)
	if domain.KindOf(err) != domain.KindTransientIO {
		t.Fatalf("expected transient_io_failure, got %v", err)
	}
}

func TestGetBoleto_ClientErrorIsNotTransient(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"JWT expired"}`))
	})

	_, err := c.GetBoleto(context.Background(), 1)
	if err == nil || domain.KindOf(err) != domain.KindInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestGetMerchantProfile(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("tenant_id"); got != "eq.polo 1" {
			t.Errorf("tenant filter = %q", got)
		}
		w.Write([]byte(`[{"tenant_id":"polo 1","pix_key":"pay@example.com","beneficiary":"EXAMPLE SCHOOL","city":"EXAMPLE CITY","category_code":"8299"}]`))
	})

	p, err := c.GetMerchantProfile(context.Background(), "polo 1")
	if err != nil {
		t.Fatalf("GetMerchantProfile: %v", err)
	}
	if p.PixKey != "pay@example.com" || p.CategoryCode != "8299" {
		t.Errorf("unexpected profile %+v", p)
	}
}

func TestLedger_AppendAndList(t *testing.T) {
	var stored []map[string]any
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/rest/v1/pix_generation_ledger") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		switch r.Method {
		case http.MethodPost:
			if r.Header.Get("Prefer") != "return=minimal" {
				t.Errorf("Prefer = %q", r.Header.Get("Prefer"))
			}
			raw, _ := io.ReadAll(r.Body)
			var row map[string]any
			if err := json.Unmarshal(raw, &row); err != nil {
				t.Errorf("bad body: %v", err)
			}
			stored = append(stored, row)
			w.WriteHeader(http.StatusCreated)
		case http.MethodGet:
			json.NewEncoder(w).Encode(stored)
		default:
			t.Errorf("ledger must only be appended to, got %s", r.Method)
		}
	})

	rec := &domain.GenerationRecord{
		ID:                  "0b4c7c1e-5d0a-4b8e-9a51-1f6f2f0d7a10",
		ReferenceID:         "BOL42ABC123",
		BoletoID:            42,
		TenantID:            "polo-1",
		Outcome:             domain.OutcomeGenerated,
		ComputedFinalAmount: domain.MustMoney("130.00"),
		DiscountApplied:     domain.MustMoney("20.00"),
		EligibilityReason:   domain.ReasonApplied,
		PayloadChecksum:     "75AF",
		CreatedAt:           time.Date(2026, 11, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := c.AppendGeneration(context.Background(), rec); err != nil {
		t.Fatalf("AppendGeneration: %v", err)
	}
	if stored[0]["computed_final_amount"] != 130.0 {
		t.Errorf("amount stored as %v", stored[0]["computed_final_amount"])
	}

	got, err := c.ListGenerations(context.Background(), 42)
	if err != nil {
		t.Fatalf("ListGenerations: %v", err)
	}
	if len(got) != 1 || got[0].PayloadChecksum != "75AF" || got[0].Outcome != domain.OutcomeGenerated {
		t.Errorf("unexpected records %+v", got)
	}
	if !got[0].ComputedFinalAmount.Equal(domain.MustMoney("130")) {
		t.Errorf("final amount = %s", got[0].ComputedFinalAmount)
	}
}
