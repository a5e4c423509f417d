// Package access decides whether a principal may request a pix code for a boleto.
//
// The check order is fixed: authorization first, then lifecycle. A mismatched
// holder is denied before anything about the boleto's state is revealed.
package access

import (
	"fmt"

	"github.com/boddenberg/boleto-pix-go/internal/domain"
)

// Decision is the result of an authorization check.
type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Authorize applies the single ownership rule. Admins are always allowed; holders
// only when both holder_id and tenant_id match the boleto exactly.
func Authorize(p domain.Principal, b *domain.Boleto) Decision {
	switch p.Kind {
	case domain.PrincipalAdmin:
		return Allow
	case domain.PrincipalHolder:
		if b == nil || p.HolderID == "" || p.TenantID == "" {
			return Deny
		}
		if p.HolderID == b.Holder.HolderID && p.TenantID == b.Holder.TenantID {
			return Allow
		}
		return Deny
	default:
		return Deny
	}
}

// CheckLifecycle rejects boletos that can no longer receive a payment code.
func CheckLifecycle(b *domain.Boleto) error {
	switch b.Status {
	case domain.BoletoPending:
		return nil
	case domain.BoletoPaid:
		return &domain.ErrAlreadySettled{BoletoID: b.ID}
	case domain.BoletoCancelled:
		return &domain.ErrCancelled{BoletoID: b.ID}
	default:
		return fmt.Errorf("boleto %d: unknown status %q", b.ID, b.Status)
	}
}

// Guard combines both checks.
type Guard struct{}

// Check authorizes p against b, then checks b's lifecycle.
func (Guard) Check(p domain.Principal, b *domain.Boleto) error {
	if Authorize(p, b) != Allow {
		return &domain.ErrAccessDenied{}
	}
	return CheckLifecycle(b)
}
