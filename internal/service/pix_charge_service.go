package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/boddenberg/boleto-pix-go/internal/access"
	"github.com/boddenberg/boleto-pix-go/internal/brcode"
	"github.com/boddenberg/boleto-pix-go/internal/discount"
	"github.com/boddenberg/boleto-pix-go/internal/domain"
	"github.com/boddenberg/boleto-pix-go/internal/infra/cache"
	"github.com/boddenberg/boleto-pix-go/internal/infra/observability"
	"github.com/boddenberg/boleto-pix-go/internal/infra/resilience"
	"github.com/boddenberg/boleto-pix-go/internal/ledger"
	"github.com/boddenberg/boleto-pix-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var pixTracer = otel.Tracer("service/pix_charge")

// ============================================================
// Pix charge generation
// ============================================================

// PixChargeConfig holds the knobs of the generation pipeline.
type PixChargeConfig struct {
	StoreTimeout     time.Duration
	CodeTTL          time.Duration
	ReuseActiveCode  bool
	QRCodeSize       int
	MerchantCacheTTL time.Duration
	Location         *time.Location
}

// PixChargeService runs the generation pipeline: lookup, authorization,
// lifecycle, discount, encoding, ledger.
type PixChargeService struct {
	boletos   port.BoletoStore
	merchants port.MerchantStore
	recorder  *ledger.Recorder
	active    port.ActiveCodeCache
	profiles  port.Cache[*domain.MerchantProfile]
	bulkhead  *resilience.Bulkhead
	guard     access.Guard
	group     singleflight.Group
	cfg       PixChargeConfig
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewPixChargeService wires the pipeline. active may be nil when code reuse is off.
func NewPixChargeService(
	boletos port.BoletoStore,
	merchants port.MerchantStore,
	recorder *ledger.Recorder,
	active port.ActiveCodeCache,
	cfg PixChargeConfig,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *PixChargeService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.QRCodeSize <= 0 {
		cfg.QRCodeSize = 256
	}
	return &PixChargeService{
		boletos:   boletos,
		merchants: merchants,
		recorder:  recorder,
		active:    active,
		profiles:  cache.New[*domain.MerchantProfile](cfg.MerchantCacheTTL),
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the time source. Used by tests and the CLI.
func (s *PixChargeService) WithClock(now func() time.Time) *PixChargeService {
	s.now = now
	return s
}

// WithBulkhead caps the number of generations running at once.
func (s *PixChargeService) WithBulkhead(b *resilience.Bulkhead) *PixChargeService {
	s.bulkhead = b
	return s
}

// ParseBoletoID validates a raw boleto identifier: a positive decimal integer.
func ParseBoletoID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, &domain.ErrInvalidInput{Field: "boletoId", Message: "identificador obrigatório"}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &domain.ErrInvalidInput{Field: "boletoId", Message: "identificador deve ser um inteiro positivo"}
	}
	return id, nil
}

// Generate returns a pix charge for the boleto identified by rawID.
func (s *PixChargeService) Generate(ctx context.Context, p domain.Principal, rawID string) (*domain.PixCharge, error) {
	ctx, span := pixTracer.Start(ctx, "PixChargeService.Generate")
	defer span.End()

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("pix.generate", time.Since(start))
	}()

	id, err := ParseBoletoID(rawID)
	if err != nil {
		s.logger.Warn("pix generation rejected", zap.String("raw_id", rawID), zap.String("error_kind", string(domain.KindInvalidInput)))
		return nil, err
	}
	span.SetAttributes(attribute.Int64("boleto.id", id), attribute.String("principal.kind", string(p.Kind)))

	run := func() (*domain.PixCharge, error) {
		if !s.cfg.ReuseActiveCode {
			return s.generate(ctx, p, id)
		}
		// Authorization runs inside generate, so callers only share a flight
		// with the same principal.
		key := fmt.Sprintf("%d|%s|%s|%s", id, p.Kind, p.HolderID, p.TenantID)
		// The flight is shared, so it must not die with whichever caller
		// started it. Store and ledger timeouts still bound it.
		ch := s.group.DoChan(key, func() (any, error) {
			return s.generate(context.WithoutCancel(ctx), p, id)
		})
		select {
		case <-ctx.Done():
			return nil, &domain.ErrTransientIO{Operation: "pix generation", Err: ctx.Err()}
		case r := <-ch:
			if r.Err != nil {
				return nil, r.Err
			}
			c := *r.Val.(*domain.PixCharge)
			return &c, nil
		}
	}

	if s.bulkhead == nil {
		return run()
	}

	var charge *domain.PixCharge
	err = s.bulkhead.Do(ctx, func() error {
		var runErr error
		charge, runErr = run()
		return runErr
	})
	if err != nil && domain.KindOf(err) == domain.KindInternal && ctx.Err() != nil {
		err = &domain.ErrTransientIO{Operation: "queue", Err: err}
	}
	return charge, err
}

func (s *PixChargeService) generate(ctx context.Context, p domain.Principal, id int64) (*domain.PixCharge, error) {
	b, err := s.fetchBoleto(ctx, id)
	if err != nil {
		return nil, s.reject(id, err)
	}

	if err := s.guard.Check(p, b); err != nil {
		kind := domain.KindOf(err)
		switch kind {
		case domain.KindAccessDenied, domain.KindAlreadySettled, domain.KindCancelled:
			s.recorder.Record(ctx, &domain.GenerationRecord{
				BoletoID:            b.ID,
				TenantID:            b.Holder.TenantID,
				Outcome:             domain.OutcomeDenied,
				ErrorKind:           kind,
				ComputedFinalAmount: domain.Zero(),
				DiscountApplied:     domain.Zero(),
				CreatedAt:           s.now().UTC(),
			})
			s.metrics.IncrCode(string(domain.OutcomeDenied))
		}
		return nil, s.reject(id, err)
	}

	now := s.now()
	res := discount.EvaluateBoleto(b, now)
	s.metrics.IncrDiscount(res.Reason)

	if s.cfg.ReuseActiveCode && s.active != nil {
		if c, ok := s.activeCode(ctx, id, res, now); ok {
			return c, nil
		}
	}

	merchant, err := s.merchantProfile(ctx, b.Holder.TenantID)
	if err != nil {
		if domain.KindOf(err) == domain.KindEncoding {
			s.recordFailure(ctx, b, res, err)
		}
		return nil, s.reject(id, err)
	}

	payload, err := brcode.Encode(brcode.Input{
		Merchant:    *merchant,
		Amount:      res.Final,
		ReferenceID: newReferenceID(id),
		Description: b.Description,
	})
	if err != nil {
		s.recordFailure(ctx, b, res, err)
		s.logger.Error("pix payload encoding failed",
			append(observability.BoletoFields(id, string(domain.KindEncoding)),
				zap.String("tenant_id", b.Holder.TenantID),
				zap.String("final_amount", res.Final.Fixed2()),
				zap.String("reason", string(res.Reason)),
				zap.Error(err),
			)...)
		return nil, err
	}
	for _, d := range payload.Diagnostics {
		if d.Kind == brcode.DiagTruncated {
			s.metrics.IncrTruncation(d.Field)
		}
	}

	validUntil := now.Add(s.cfg.CodeTTL)
	charge := s.buildCharge(b, res, payload, now, validUntil)

	s.recorder.Record(ctx, &domain.GenerationRecord{
		ReferenceID:         payload.ReferenceID,
		BoletoID:            b.ID,
		TenantID:            b.Holder.TenantID,
		Outcome:             domain.OutcomeGenerated,
		ComputedFinalAmount: res.Final,
		DiscountApplied:     res.Discount,
		EligibilityReason:   res.Reason,
		Diagnostics:         payload.DiagnosticStrings(),
		PayloadChecksum:     payload.Checksum,
		CreatedAt:           now.UTC(),
		Expiry:              &validUntil,
	})
	s.metrics.IncrCode(string(domain.OutcomeGenerated))

	if s.cfg.ReuseActiveCode && s.active != nil {
		if err := s.active.PutActive(ctx, id, charge, s.cfg.CodeTTL); err != nil {
			s.logger.Warn("active code cache write failed", zap.Int64("boleto_id", id), zap.Error(err))
		}
	}

	s.logger.Info("pix code generated",
		zap.Int64("boleto_id", id),
		zap.String("reference_id", payload.ReferenceID),
		zap.String("final_amount", res.Final.Fixed2()),
		zap.String("reason", string(res.Reason)),
	)
	return charge, nil
}

// fetchBoleto bounds the lookup by the store timeout. A deadline or a
// cancellation is transient.
func (s *PixChargeService) fetchBoleto(ctx context.Context, id int64) (*domain.Boleto, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	b, err := s.boletos.GetBoleto(ctx, id)
	if err != nil {
		if domain.KindOf(err) == domain.KindInternal && isContextErr(err) {
			err = &domain.ErrTransientIO{Operation: "boleto lookup", Err: err}
		}
		if domain.KindOf(err) == domain.KindTransientIO {
			s.metrics.IncrExternalError("boleto_store")
		}
		return nil, err
	}
	return b, nil
}

// merchantProfile reads the tenant's receiver data through the TTL cache.
// A tenant without a profile cannot be encoded.
func (s *PixChargeService) merchantProfile(ctx context.Context, tenantID string) (*domain.MerchantProfile, error) {
	key := "merchant:" + tenantID
	if m, ok := s.profiles.Get(key); ok {
		s.metrics.IncrCacheHit("merchant")
		return m, nil
	}
	s.metrics.IncrCacheMiss("merchant")

	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	m, err := s.merchants.GetMerchantProfile(ctx, tenantID)
	switch {
	case err == nil:
	case domain.KindOf(err) == domain.KindNotFound:
		return nil, &domain.ErrEncoding{Field: "merchant_profile", Reason: "no merchant profile for tenant"}
	case domain.KindOf(err) == domain.KindInternal && isContextErr(err):
		s.metrics.IncrExternalError("merchant_store")
		return nil, &domain.ErrTransientIO{Operation: "merchant lookup", Err: err}
	default:
		if domain.KindOf(err) == domain.KindTransientIO {
			s.metrics.IncrExternalError("merchant_store")
		}
		return nil, fmt.Errorf("merchant profile: %w", err)
	}

	s.profiles.Set(key, m)
	return m, nil
}

// activeCode returns the cached code when it is still valid and charges the
// amount that would be charged now.
func (s *PixChargeService) activeCode(ctx context.Context, id int64, res discount.Result, now time.Time) (*domain.PixCharge, bool) {
	c, ok, err := s.active.GetActive(ctx, id)
	if err != nil {
		s.logger.Warn("active code cache read failed", zap.Int64("boleto_id", id), zap.Error(err))
		return nil, false
	}
	if !ok || !now.Before(c.PaymentCode.ValidUntil) || !c.Boleto.FinalAmount.Equal(res.Final) {
		return nil, false
	}

	reused := *c
	reused.Reused = true
	s.metrics.IncrCode("reused")
	s.logger.Info("pix code reused",
		zap.Int64("boleto_id", id),
		zap.String("reference_id", c.PaymentCode.ReferenceID),
	)
	return &reused, true
}

func (s *PixChargeService) recordFailure(ctx context.Context, b *domain.Boleto, res discount.Result, err error) {
	s.recorder.Record(ctx, &domain.GenerationRecord{
		BoletoID:            b.ID,
		TenantID:            b.Holder.TenantID,
		Outcome:             domain.OutcomeFailed,
		ErrorKind:           domain.KindOf(err),
		ComputedFinalAmount: res.Final,
		DiscountApplied:     res.Discount,
		EligibilityReason:   res.Reason,
		Diagnostics:         []string{err.Error()},
		CreatedAt:           s.now().UTC(),
	})
	s.metrics.IncrCode(string(domain.OutcomeFailed))
}

// reject logs a pipeline error with its kind and hands it back.
func (s *PixChargeService) reject(id int64, err error) error {
	kind := domain.KindOf(err)
	fields := append(observability.BoletoFields(id, string(kind)), zap.Error(err))
	switch kind {
	case domain.KindInternal, domain.KindTransientIO:
		s.logger.Error("pix generation failed", fields...)
	default:
		s.logger.Warn("pix generation rejected", fields...)
	}
	return err
}

func (s *PixChargeService) buildCharge(b *domain.Boleto, res discount.Result, p brcode.Payload, now, validUntil time.Time) *domain.PixCharge {
	return &domain.PixCharge{
		Success: true,
		Boleto: domain.PixChargeBoleto{
			ID:              b.ID,
			ReferenceNumber: b.ReferenceNumber,
			OriginalAmount:  res.Original,
			FinalAmount:     res.Final,
			DueDate:         b.DueDate.In(s.cfg.Location),
			HolderName:      b.HolderName,
			Status:          b.Status,
		},
		Discount: domain.PixChargeDiscount{
			Applied:          res.Applied(),
			Amount:           res.Discount,
			Reason:           res.Reason,
			SavingsStatement: discount.SavingsStatement(res, b.DueDate, s.cfg.Location),
		},
		PaymentCode: domain.PixChargePayload{
			Key:             p.PixKey,
			Beneficiary:     p.Beneficiary,
			City:            p.City,
			ReferenceID:     p.ReferenceID,
			PayloadText:     p.Text,
			PayloadChecksum: p.Checksum,
			ValidUntil:      validUntil,
			Image: domain.PixCodeImage{
				Format:          "png",
				Size:            s.cfg.QRCodeSize,
				ErrorCorrection: "M",
				Href:            fmt.Sprintf("/v1/boletos/%d/pix/qrcode.png", b.ID),
			},
		},
		GeneratedAt: now,
	}
}

// newReferenceID is "BOL" + boleto id + random hex, cut to the 25 byte limit
// of the additional data field.
func newReferenceID(id int64) string {
	r := uuid.New()
	ref := "BOL" + strconv.FormatInt(id, 10) + strings.ToUpper(strings.ReplaceAll(r.String(), "-", ""))
	if len(ref) > brcode.MaxReferenceID {
		ref = ref[:brcode.MaxReferenceID]
	}
	return ref
}

// ============================================================
// Audit
// ============================================================

// ListLedger returns every generation attempt recorded for a boleto.
func (s *PixChargeService) ListLedger(ctx context.Context, rawID string) ([]domain.GenerationRecord, error) {
	ctx, span := pixTracer.Start(ctx, "PixChargeService.ListLedger")
	defer span.End()

	id, err := ParseBoletoID(rawID)
	if err != nil {
		return nil, err
	}
	recs, err := s.recorder.List(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	if recs == nil {
		recs = []domain.GenerationRecord{}
	}
	return recs, nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
