package service

import (
	"context"
	"time"

	"github.com/boddenberg/boleto-pix-go/internal/domain"
	"github.com/boddenberg/boleto-pix-go/internal/installment"
	"github.com/boddenberg/boleto-pix-go/internal/infra/observability"

	"go.uber.org/zap"
)

// ============================================================
// Installment draft preview (admin)
// ============================================================

// BatchOverride applies one config to a subset of the draft lines.
type BatchOverride struct {
	Indices  []int                 `json:"indices"`
	Discount domain.DiscountConfig `json:"discount"`
}

// LineInput is one installment as typed in the admin form. DueDate accepts a
// bare date ("2026-11-10", the whole day) or an RFC 3339 timestamp.
type LineInput struct {
	ReferenceNumber string                 `json:"reference_number"`
	Amount          domain.Money           `json:"amount"`
	DueDate         string                 `json:"due_date"`
	Holder          domain.HolderIdentity  `json:"holder"`
	HolderName      string                 `json:"holder_name"`
	Description     string                 `json:"description,omitempty"`
	Discount        *domain.DiscountConfig `json:"discount,omitempty"`
}

func (in LineInput) line(loc *time.Location) (installment.Line, error) {
	l := installment.Line{
		ReferenceNumber: in.ReferenceNumber,
		Amount:          in.Amount,
		Holder:          in.Holder,
		HolderName:      in.HolderName,
		Description:     in.Description,
		Discount:        in.Discount,
	}
	if in.DueDate == "" {
		return l, nil
	}
	due, err := domain.ParseDueDate(in.DueDate, loc)
	if err != nil {
		return l, &domain.ErrInvalidInput{Field: installment.FieldDueDate, Message: "vencimento inválido: use AAAA-MM-DD"}
	}
	l.DueDate = due
	return l, nil
}

// PreviewRequest is the admin form state: lines with their individual
// overrides, batch overrides and an optional global config.
type PreviewRequest struct {
	Lines   []LineInput            `json:"lines"`
	Batches []BatchOverride        `json:"batches,omitempty"`
	Global  *domain.DiscountConfig `json:"global,omitempty"`
}

// PreviewResponse lists every line as it would be charged today.
type PreviewResponse struct {
	Lines         []installment.PreviewLine `json:"lines"`
	TotalOriginal domain.Money              `json:"total_original"`
	TotalFinal    domain.Money              `json:"total_final"`
	EvaluatedAt   time.Time                 `json:"evaluated_at"`
}

// InstallmentPreviewService evaluates admin drafts without persisting them.
type InstallmentPreviewService struct {
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
	loc     *time.Location
}

func NewInstallmentPreviewService(metrics *observability.Metrics, logger *zap.Logger) *InstallmentPreviewService {
	return &InstallmentPreviewService{metrics: metrics, logger: logger, now: time.Now, loc: time.UTC}
}

// WithLocation sets the zone bare due dates are read in.
func (s *InstallmentPreviewService) WithLocation(loc *time.Location) *InstallmentPreviewService {
	if loc != nil {
		s.loc = loc
	}
	return s
}

// WithClock replaces the time source.
func (s *InstallmentPreviewService) WithClock(now func() time.Time) *InstallmentPreviewService {
	s.now = now
	return s
}

// Preview builds a draft from req and evaluates it.
func (s *InstallmentPreviewService) Preview(ctx context.Context, req PreviewRequest) (*PreviewResponse, error) {
	_, span := pixTracer.Start(ctx, "InstallmentPreviewService.Preview")
	defer span.End()

	if len(req.Lines) == 0 {
		return nil, &domain.ErrInvalidInput{Field: "lines", Message: "nenhuma parcela informada"}
	}

	d := installment.NewDraft()
	for _, in := range req.Lines {
		l, err := in.line(s.loc)
		if err != nil {
			return nil, err
		}
		if _, err := d.AddInstallment(l); err != nil {
			return nil, err
		}
	}
	for _, b := range req.Batches {
		if err := d.ApplyBatchOverride(b.Indices, b.Discount); err != nil {
			return nil, err
		}
	}
	if req.Global != nil {
		if err := d.ApplyGlobalOverride(*req.Global); err != nil {
			return nil, err
		}
	}

	now := s.now()
	lines := d.Preview(now)

	resp := &PreviewResponse{
		Lines:         lines,
		TotalOriginal: domain.Zero(),
		TotalFinal:    domain.Zero(),
		EvaluatedAt:   now,
	}
	for _, l := range lines {
		resp.TotalOriginal = resp.TotalOriginal.Add(l.Amount)
		resp.TotalFinal = resp.TotalFinal.Add(l.FinalAmount)
	}

	s.logger.Debug("installment draft previewed",
		zap.Int("lines", len(lines)),
		zap.String("total_final", resp.TotalFinal.Fixed2()),
	)
	return resp, nil
}
