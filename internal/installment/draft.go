// Package installment holds the administrative draft of installments being
// prepared for a holder before they are persisted by the back office.
//
// A Draft is the only owner of its pending lines. Every change goes through one
// of its named operations; discount configs from the individual, batch and global
// forms all land here and are resolved with a fixed precedence
// (individual > batch > global) before the discount evaluator sees them.
package installment

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/boleto-pix-go/internal/discount"
	"github.com/boddenberg/boleto-pix-go/internal/domain"
)

// Field names accepted by UpdateField.
const (
	FieldReferenceNumber = "reference_number"
	FieldAmount          = "amount"
	FieldDueDate         = "due_date"
	FieldHolderID        = "holder_id"
	FieldTenantID        = "tenant_id"
	FieldHolderName      = "holder_name"
	FieldDescription     = "description"
)

// Line is one pending installment. Discount is the individual override, if any.
type Line struct {
	ReferenceNumber string                 `json:"reference_number"`
	Amount          domain.Money           `json:"amount"`
	DueDate         time.Time              `json:"due_date"`
	Holder          domain.HolderIdentity  `json:"holder"`
	HolderName      string                 `json:"holder_name"`
	Description     string                 `json:"description,omitempty"`
	Discount        *domain.DiscountConfig `json:"discount,omitempty"`
}

// Resolved is a line with the config that will be stored on its boleto.
type Resolved struct {
	Line
	Config domain.DiscountConfig `json:"resolved_discount"`
	Scope  discount.Scope        `json:"scope,omitempty"`
}

// PreviewLine is a resolved line evaluated at a given instant.
type PreviewLine struct {
	Resolved
	FinalAmount    domain.Money             `json:"final_amount"`
	DiscountAmount domain.Money             `json:"discount_amount"`
	Reason         domain.EligibilityReason `json:"reason"`
}

// Draft is the aggregate of pending installments. The zero value is ready to use.
type Draft struct {
	mu     sync.Mutex
	lines  []Line
	batch  map[int]domain.DiscountConfig
	global *domain.DiscountConfig
}

// NewDraft returns an empty draft.
func NewDraft() *Draft {
	return &Draft{}
}

// Len returns the number of lines.
func (d *Draft) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.lines)
}

// AddInstallment validates and appends a line, returning its index.
func (d *Draft) AddInstallment(l Line) (int, error) {
	if err := validateLine(l); err != nil {
		return -1, err
	}
	if l.Discount != nil {
		if err := validateConfig(*l.Discount); err != nil {
			return -1, err
		}
		c := *l.Discount
		l.Discount = &c
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.lines = append(d.lines, l)
	return len(d.lines) - 1, nil
}

// UpdateField sets one field of the line at index from its text form.
func (d *Draft) UpdateField(index int, field, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkIndex(index); err != nil {
		return err
	}
	l := d.lines[index]
	value = strings.TrimSpace(value)

	switch field {
	case FieldReferenceNumber:
		l.ReferenceNumber = value
	case FieldAmount:
		m, err := domain.NewMoney(value)
		if err != nil {
			return &domain.ErrInvalidInput{Field: field, Message: "valor inválido"}
		}
		l.Amount = m
	case FieldDueDate:
		t, err := domain.ParseDueDate(value, l.DueDate.Location())
		if err != nil {
			return &domain.ErrInvalidInput{Field: field, Message: "data deve estar no formato AAAA-MM-DD"}
		}
		l.DueDate = t
	case FieldHolderID:
		l.Holder.HolderID = value
	case FieldTenantID:
		l.Holder.TenantID = value
	case FieldHolderName:
		l.HolderName = value
	case FieldDescription:
		l.Description = value
	default:
		return &domain.ErrInvalidInput{Field: field, Message: "campo desconhecido"}
	}

	if err := validateLine(l); err != nil {
		return err
	}
	d.lines[index] = l
	return nil
}

// SetIndividualOverride attaches cfg to a single line.
func (d *Draft) SetIndividualOverride(index int, cfg domain.DiscountConfig) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkIndex(index); err != nil {
		return err
	}
	d.lines[index].Discount = &cfg
	return nil
}

// ApplyBatchOverride applies cfg to every listed line. Either all indices are
// valid and the override is applied, or nothing changes.
func (d *Draft) ApplyBatchOverride(indices []int, cfg domain.DiscountConfig) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, i := range indices {
		if err := d.checkIndex(i); err != nil {
			return err
		}
	}
	if d.batch == nil {
		d.batch = make(map[int]domain.DiscountConfig, len(indices))
	}
	for _, i := range indices {
		d.batch[i] = cfg
	}
	return nil
}

// ApplyGlobalOverride applies cfg to every line without a narrower override,
// including lines added later.
func (d *Draft) ApplyGlobalOverride(cfg domain.DiscountConfig) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.global = &cfg
	return nil
}

// ClearOverride removes overrides of one scope. For individual and batch scopes,
// indices select the lines; with no indices every line is cleared.
func (d *Draft) ClearOverride(scope discount.Scope, indices ...int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, i := range indices {
		if err := d.checkIndex(i); err != nil {
			return err
		}
	}

	switch scope {
	case discount.ScopeGlobal:
		d.global = nil
	case discount.ScopeBatch:
		if len(indices) == 0 {
			d.batch = nil
		}
		for _, i := range indices {
			delete(d.batch, i)
		}
	case discount.ScopeIndividual:
		if len(indices) == 0 {
			for i := range d.lines {
				d.lines[i].Discount = nil
			}
		}
		for _, i := range indices {
			d.lines[i].Discount = nil
		}
	default:
		return &domain.ErrInvalidInput{Field: "scope", Message: "escopo desconhecido"}
	}
	return nil
}

// Resolve returns every line with its effective config. Lines without any
// override get a disabled config and an empty scope.
func (d *Draft) Resolve() []Resolved {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Resolved, 0, len(d.lines))
	for i, l := range d.lines {
		r := Resolved{Line: l, Config: domain.DiscountConfig{MinimumFloor: domain.DefaultMinimumFloor}}
		switch {
		case l.Discount != nil:
			r.Config, r.Scope = *l.Discount, discount.ScopeIndividual
		case d.hasBatch(i):
			r.Config, r.Scope = d.batch[i], discount.ScopeBatch
		case d.global != nil:
			r.Config, r.Scope = *d.global, discount.ScopeGlobal
		}
		out = append(out, r)
	}
	return out
}

// Preview evaluates every resolved line at now.
func (d *Draft) Preview(now time.Time) []PreviewLine {
	resolved := d.Resolve()
	out := make([]PreviewLine, 0, len(resolved))
	for _, r := range resolved {
		res := discount.Evaluate(r.Amount, r.Config, now, r.DueDate)
		out = append(out, PreviewLine{
			Resolved:       r,
			FinalAmount:    res.Final,
			DiscountAmount: res.Discount,
			Reason:         res.Reason,
		})
	}
	return out
}

func (d *Draft) hasBatch(i int) bool {
	_, ok := d.batch[i]
	return ok
}

func (d *Draft) checkIndex(i int) error {
	if i < 0 || i >= len(d.lines) {
		return &domain.ErrInvalidInput{Field: "index", Message: "parcela " + strconv.Itoa(i) + " não existe"}
	}
	return nil
}

func validateLine(l Line) error {
	if !l.Amount.IsPositive() {
		return &domain.ErrInvalidInput{Field: FieldAmount, Message: "valor deve ser maior que zero"}
	}
	if l.DueDate.IsZero() {
		return &domain.ErrInvalidInput{Field: FieldDueDate, Message: "vencimento obrigatório"}
	}
	if l.Holder.HolderID == "" || l.Holder.TenantID == "" {
		return &domain.ErrInvalidInput{Field: FieldHolderID, Message: "titular e polo são obrigatórios"}
	}
	return nil
}

func validateConfig(c domain.DiscountConfig) error {
	if c.DiscountAmount.IsNegative() {
		return &domain.ErrInvalidInput{Field: "discount_amount", Message: "desconto não pode ser negativo"}
	}
	if c.MinimumFloor.IsNegative() {
		return &domain.ErrInvalidInput{Field: "minimum_floor", Message: fmt.Sprintf("valor mínimo inválido: %s", c.MinimumFloor)}
	}
	return nil
}
