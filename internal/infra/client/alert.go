// Package client holds outbound HTTP collaborators.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/boddenberg/boleto-pix-go/internal/domain"
	"github.com/boddenberg/boleto-pix-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("client")

// LedgerAlert is the body posted to the alert webhook.
type LedgerAlert struct {
	Event           string    `json:"event"`
	LedgerID        string    `json:"ledger_id"`
	BoletoID        int64     `json:"boleto_id"`
	TenantID        string    `json:"tenant_id"`
	Outcome         string    `json:"outcome"`
	ReferenceID     string    `json:"reference_id,omitempty"`
	PayloadChecksum string    `json:"payload_checksum,omitempty"`
	Error           string    `json:"error"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// AlertClient is a MonitoringSink that posts lost ledger entries to an
// operations webhook. Delivery is asynchronous: LedgerWriteFailed returns
// immediately and the post runs under its own timeout.
type AlertClient struct {
	httpClient *http.Client
	url        string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	logger     *zap.Logger
	wg         sync.WaitGroup
}

// NewAlertClient creates an AlertClient posting to url.
func NewAlertClient(httpClient *http.Client, url string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *AlertClient {
	return &AlertClient{
		httpClient: httpClient,
		url:        url,
		cb:         cb,
		cfg:        cfg,
		logger:     logger,
	}
}

// LedgerWriteFailed queues an alert for rec.
func (c *AlertClient) LedgerWriteFailed(ctx context.Context, rec *domain.GenerationRecord, cause error) {
	alert := LedgerAlert{
		Event:           "ledger_write_failed",
		LedgerID:        rec.ID,
		BoletoID:        rec.BoletoID,
		TenantID:        rec.TenantID,
		Outcome:         string(rec.Outcome),
		ReferenceID:     rec.ReferenceID,
		PayloadChecksum: rec.PayloadChecksum,
		Error:           cause.Error(),
		OccurredAt:      time.Now().UTC(),
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.httpClient.Timeout+time.Second)
		defer cancel()
		if err := c.Send(sctx, alert); err != nil {
			c.logger.Error("alert delivery failed",
				zap.String("ledger_id", alert.LedgerID),
				zap.Int64("boleto_id", alert.BoletoID),
				zap.Error(err),
			)
		}
	}()
}

// Send posts one alert through the circuit breaker with retries. 4xx answers
// are not retried.
func (c *AlertClient) Send(ctx context.Context, alert LedgerAlert) error {
	ctx, span := tracer.Start(ctx, "AlertClient.Send")
	defer span.End()
	span.SetAttributes(
		attribute.String("alert.event", alert.Event),
		attribute.Int64("boleto.id", alert.BoletoID),
	)

	body, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	_, err = c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
			if err != nil {
				return resilience.Permanent(err)
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return nil
			case resp.StatusCode >= 500:
				return fmt.Errorf("alert webhook returned status %d", resp.StatusCode)
			default:
				return resilience.Permanent(fmt.Errorf("alert webhook returned status %d", resp.StatusCode))
			}
		})
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("alert webhook: %w", err)
	}
	return nil
}

// Wait blocks until queued alerts are delivered or given up on.
func (c *AlertClient) Wait() { c.wg.Wait() }
