// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/boddenberg/boleto-pix-go/internal/domain"
)

// BoletoStore looks up boletos owned by the administrative backend.
// A missing boleto is reported as *domain.ErrNotFound.
type BoletoStore interface {
	GetBoleto(ctx context.Context, id int64) (*domain.Boleto, error)
}

// MerchantStore returns the receiver profile configured for a tenant.
type MerchantStore interface {
	GetMerchantProfile(ctx context.Context, tenantID string) (*domain.MerchantProfile, error)
}

// LedgerStore is the append-only generation ledger. There is deliberately no
// update or delete.
type LedgerStore interface {
	AppendGeneration(ctx context.Context, rec *domain.GenerationRecord) error
	ListGenerations(ctx context.Context, boletoID int64) ([]domain.GenerationRecord, error)
}

// MonitoringSink receives ledger writes that could not be persisted.
type MonitoringSink interface {
	LedgerWriteFailed(ctx context.Context, rec *domain.GenerationRecord, err error)
}

// ActiveCodeCache holds the last still-valid code per boleto.
type ActiveCodeCache interface {
	GetActive(ctx context.Context, boletoID int64) (*domain.PixCharge, bool, error)
	PutActive(ctx context.Context, boletoID int64, charge *domain.PixCharge, ttl time.Duration) error
}

// Pinger is implemented by backends that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
