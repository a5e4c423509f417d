// Package discount evaluates the pix payment discount of a boleto.
// It is the single place where discount arithmetic lives: individual, batch and
// global configurations all resolve to a domain.DiscountConfig before reaching it.
package discount

import (
	"time"

	"github.com/boddenberg/boleto-pix-go/internal/domain"
)

// Scope says how many boletos received the same config. It never changes the math.
type Scope string

const (
	ScopeIndividual Scope = "individual"
	ScopeBatch      Scope = "batch"
	ScopeGlobal     Scope = "global"
)

// Result is the outcome of one evaluation.
type Result struct {
	Original domain.Money
	Final    domain.Money
	Discount domain.Money
	Reason   domain.EligibilityReason
}

// Applied reports whether the final amount is lower than the original.
func (r Result) Applied() bool { return r.Reason == domain.ReasonApplied }

// Evaluate computes the final payable amount. It is pure and total: an ineligible
// boleto is a normal outcome, not an error.
//
// The discount window is inclusive: now == due still gets the discount.
func Evaluate(amount domain.Money, cfg domain.DiscountConfig, now, due time.Time) Result {
	floor := cfg.MinimumFloor

	none := func(reason domain.EligibilityReason) Result {
		return Result{Original: amount, Final: amount, Discount: domain.Zero(), Reason: reason}
	}

	if !cfg.Enabled || !cfg.DiscountAmount.IsPositive() || floor.IsNegative() {
		return none(domain.ReasonNotEligible)
	}
	if amount.LessThanOrEqual(floor) {
		return none(domain.ReasonNotEligible)
	}
	if now.After(due) {
		return none(domain.ReasonWindowExpired)
	}

	headroom := amount.Sub(floor)
	effective := cfg.DiscountAmount.Min(headroom).RoundHalfUp()

	// Sub-cent inputs can make the rounded discount eat into the floor.
	if amount.Sub(effective).LessThan(floor) {
		effective = headroom.Truncate2()
	}
	if !effective.IsPositive() {
		return none(domain.ReasonNotEligible)
	}

	return Result{
		Original: amount,
		Final:    amount.Sub(effective),
		Discount: effective,
		Reason:   domain.ReasonApplied,
	}
}

// EvaluateBoleto is Evaluate over a boleto's own amount, config and due date.
func EvaluateBoleto(b *domain.Boleto, now time.Time) Result {
	return Evaluate(b.Amount, b.DiscountOrDisabled(), now, b.DueDate)
}
