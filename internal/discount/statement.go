package discount

import (
	"fmt"
	"time"

	"github.com/boddenberg/boleto-pix-go/internal/domain"
)

// SavingsStatement renders the pt-BR sentence shown next to the pix code.
func SavingsStatement(r Result, due time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	date := due.In(loc).Format("02/01/2006")

	switch r.Reason {
	case domain.ReasonApplied:
		return fmt.Sprintf("Pagando via Pix até %s você economiza %s: de %s por %s.",
			date, r.Discount.BRL(), r.Original.BRL(), r.Final.BRL())
	case domain.ReasonWindowExpired:
		return fmt.Sprintf("O desconto Pix era válido até %s. Valor integral: %s.",
			date, r.Final.BRL())
	default:
		return fmt.Sprintf("Este boleto não possui desconto para pagamento via Pix. Valor: %s.",
			r.Final.BRL())
	}
}
