package domain

import "time"

// ============================================================
// Pix charge generation ledger
// ============================================================

// GenerationOutcome is what happened to one generation attempt.
type GenerationOutcome string

const (
	OutcomeGenerated GenerationOutcome = "generated"
	OutcomeDenied    GenerationOutcome = "denied"
	OutcomeFailed    GenerationOutcome = "failed"
)

// EligibilityReason explains the discount decision.
type EligibilityReason string

const (
	ReasonApplied       EligibilityReason = "applied"
	ReasonNotEligible   EligibilityReason = "not_eligible"
	ReasonWindowExpired EligibilityReason = "window_expired"
)

// GenerationRecord is one append-only ledger entry. Never mutated, never deleted.
type GenerationRecord struct {
	ID                  string            `json:"id"`
	ReferenceID         string            `json:"reference_id"`
	BoletoID            int64             `json:"boleto_id"`
	TenantID            string            `json:"tenant_id"`
	Outcome             GenerationOutcome `json:"outcome"`
	ErrorKind           ErrorKind         `json:"error_kind,omitempty"`
	ComputedFinalAmount Money             `json:"computed_final_amount"`
	DiscountApplied     Money             `json:"discount_applied"`
	EligibilityReason   EligibilityReason `json:"eligibility_reason,omitempty"`
	Diagnostics         []string          `json:"diagnostics,omitempty"`
	PayloadChecksum     string            `json:"payload_checksum,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	Expiry              *time.Time        `json:"expiry,omitempty"`
}

// ============================================================
// Pix charge API response (consumed by UI / notification text)
// ============================================================

// PixCharge is the successful result of a generation request.
type PixCharge struct {
	Success     bool              `json:"success"`
	Boleto      PixChargeBoleto   `json:"invoice"`
	Discount    PixChargeDiscount `json:"discount"`
	PaymentCode PixChargePayload  `json:"payment_code"`
	GeneratedAt time.Time         `json:"generated_at"`
	Reused      bool              `json:"reused,omitempty"`
}

// PixChargeBoleto echoes the boleto data.
type PixChargeBoleto struct {
	ID              int64        `json:"id"`
	ReferenceNumber string       `json:"reference_number"`
	OriginalAmount  Money        `json:"original_amount"`
	FinalAmount     Money        `json:"final_amount"`
	DueDate         time.Time    `json:"due_date"`
	HolderName      string       `json:"holder_name"`
	Status          BoletoStatus `json:"status"`
}

// PixChargeDiscount is the discount breakdown.
type PixChargeDiscount struct {
	Applied          bool              `json:"applied"`
	Amount           Money             `json:"amount"`
	Reason           EligibilityReason `json:"reason"`
	SavingsStatement string            `json:"savings_statement"`
}

// PixChargePayload carries the BR Code and what a renderer needs.
type PixChargePayload struct {
	Key             string       `json:"key"`
	Beneficiary     string       `json:"beneficiary"`
	City            string       `json:"city"`
	ReferenceID     string       `json:"reference_id"`
	PayloadText     string       `json:"payload_text"`
	PayloadChecksum string       `json:"payload_checksum"`
	ValidUntil      time.Time    `json:"valid_until"`
	Image           PixCodeImage `json:"image"`
}

// PixCodeImage is the rendering hint for the QR image collaborator.
type PixCodeImage struct {
	Format          string `json:"format"`
	Size            int    `json:"size"`
	ErrorCorrection string `json:"error_correction"`
	Href            string `json:"href"`
}

// PixChargeError is the failure body.
type PixChargeError struct {
	Success   bool      `json:"success"`
	ErrorKind ErrorKind `json:"error_kind"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ============================================================
// Operational snapshot
// ============================================================

// PixMetrics is the JSON view of the generation counters.
type PixMetrics struct {
	Generated       int64   `json:"generated"`
	Denied          int64   `json:"denied"`
	Failed          int64   `json:"failed"`
	Reused          int64   `json:"reused"`
	LedgerFailures  int64   `json:"ledger_failures"`
	AvgLatencyMs    float64 `json:"avg_latency_ms"`
	DiscountRate    float64 `json:"discount_rate"`
	MerchantHitRate float64 `json:"merchant_cache_hit_rate"`
	Period          string  `json:"period"`
}
