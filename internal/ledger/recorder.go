// Package ledger records every pix code generation attempt.
//
// Recording is best effort: a lost write never fails the request that caused it.
// It is counted, logged and handed to the monitoring sink instead.
package ledger

import (
	"context"
	"time"

	"github.com/boddenberg/boleto-pix-go/internal/domain"
	"github.com/boddenberg/boleto-pix-go/internal/infra/observability"
	"github.com/boddenberg/boleto-pix-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("ledger")

// Recorder appends GenerationRecords to a store with a bounded deadline.
type Recorder struct {
	store   port.LedgerStore
	sink    port.MonitoringSink
	timeout time.Duration
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewRecorder creates a Recorder. sink may be nil.
func NewRecorder(store port.LedgerStore, sink port.MonitoringSink, timeout time.Duration, metrics *observability.Metrics, logger *zap.Logger) *Recorder {
	return &Recorder{
		store:   store,
		sink:    sink,
		timeout: timeout,
		metrics: metrics,
		logger:  logger,
	}
}

// Record appends rec, filling ID and CreatedAt when empty. It never returns an
// error and never blocks longer than the configured timeout; the caller's
// cancellation does not abort the write.
func (r *Recorder) Record(ctx context.Context, rec *domain.GenerationRecord) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	wctx, span := tracer.Start(wctx, "Ledger.Record")
	defer span.End()

	err := r.store.AppendGeneration(wctx, rec)
	if err == nil {
		return
	}

	r.metrics.IncrLedgerFailure()
	r.logger.Error("ledger write failed",
		zap.Int64("boleto_id", rec.BoletoID),
		zap.String("ledger_id", rec.ID),
		zap.String("outcome", string(rec.Outcome)),
		zap.String("reference_id", rec.ReferenceID),
		zap.Error(err),
	)
	span.RecordError(err)
	if r.sink != nil {
		r.sink.LedgerWriteFailed(wctx, rec, err)
	}
}

// List returns the ledger of one boleto.
func (r *Recorder) List(ctx context.Context, boletoID int64) ([]domain.GenerationRecord, error) {
	ctx, span := tracer.Start(ctx, "Ledger.List")
	defer span.End()
	return r.store.ListGenerations(ctx, boletoID)
}

// LogSink is a MonitoringSink that only writes to the log. Used when no
// external alerting is wired.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) LedgerWriteFailed(_ context.Context, rec *domain.GenerationRecord, err error) {
	s.Logger.Warn("monitoring: ledger entry lost",
		zap.Int64("boleto_id", rec.BoletoID),
		zap.String("ledger_id", rec.ID),
		zap.String("payload_checksum", rec.PayloadChecksum),
		zap.Error(err),
	)
}
