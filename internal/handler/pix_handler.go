package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/boddenberg/boleto-pix-go/internal/domain"
	"github.com/boddenberg/boleto-pix-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Pix charge: POST /v1/boletos/{boletoId}/pix
// ============================================================

func generatePixHandler(svc *service.PixChargeService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), r.Method+" /v1/boletos/{boletoId}/pix")
		defer span.End()

		boletoID := chi.URLParam(r, "boletoId")
		span.SetAttributes(attribute.String("boleto.id", boletoID))

		charge, err := svc.Generate(ctx, PrincipalFromContext(ctx), boletoID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, charge)
	}
}

// ============================================================
// QR image: GET /v1/boletos/{boletoId}/pix/qrcode.png
// ============================================================

func pixQRCodeHandler(svc *service.PixChargeService, qr QRRenderer, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/boletos/{boletoId}/pix/qrcode.png")
		defer span.End()

		charge, err := svc.Generate(ctx, PrincipalFromContext(ctx), chi.URLParam(r, "boletoId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		size := charge.PaymentCode.Image.Size
		if v := r.URL.Query().Get("size"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				size = n
			}
		}

		png, err := qr.PNG(charge.PaymentCode.PayloadText, size)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("X-Pix-Reference-Id", charge.PaymentCode.ReferenceID)
		w.Header().Set("X-Pix-Payload-Checksum", charge.PaymentCode.PayloadChecksum)
		w.WriteHeader(http.StatusOK)
		w.Write(png)
	}
}

// ============================================================
// Admin: GET /v1/admin/boletos/{boletoId}/pix/ledger
// ============================================================

func pixLedgerHandler(svc *service.PixChargeService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/boletos/{boletoId}/pix/ledger")
		defer span.End()

		recs, err := svc.ListLedger(ctx, chi.URLParam(r, "boletoId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.GenerationRecord]{
			Data:  recs,
			Total: len(recs),
		})
	}
}

// ============================================================
// Admin: POST /v1/admin/installments/preview
// ============================================================

func installmentPreviewHandler(svc *service.InstallmentPreviewService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/installments/preview")
		defer span.End()

		var req service.PreviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			handleServiceError(w, &domain.ErrInvalidInput{Field: "body", Message: "corpo da requisição inválido"}, logger)
			return
		}

		resp, err := svc.Preview(ctx, req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
