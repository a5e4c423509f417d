package brcode

import (
	"strings"

	"github.com/boddenberg/boleto-pix-go/internal/domain"
)

// Fixed values of the pix arrangement.
const (
	PayloadFormatIndicator = "01"
	InitiationStatic       = "11"
	InitiationDynamic      = "12"
	PixGUI                 = "br.gov.bcb.pix"
	CurrencyBRL            = "986"
	CountryBR              = "BR"
	DefaultCategoryCode    = "0000"
)

// Field limits, in bytes.
const (
	MaxPixKeyLen       = 77
	MaxMerchantName    = 25
	MaxMerchantCity    = 15
	MaxReferenceID     = 25
	MaxAmountLen       = 13
	merchantAccountMax = 99
)

// Input is everything the encoder needs.
type Input struct {
	Merchant    domain.MerchantProfile
	Amount      domain.Money
	ReferenceID string
	Description string
}

// Payload is a complete, immutable BR Code.
type Payload struct {
	Text        string
	Checksum    string
	PixKey      string
	Beneficiary string
	City        string
	ReferenceID string
	Diagnostics []Diagnostic
}

// DiagnosticStrings renders the diagnostics for the ledger.
func (p Payload) DiagnosticStrings() []string {
	out := make([]string, 0, len(p.Diagnostics))
	for _, d := range p.Diagnostics {
		out = append(out, d.String())
	}
	return out
}

// Encode builds a dynamic, amount-bound BR Code. Over-long fields are truncated
// deterministically and reported in Payload.Diagnostics; fields that cannot be
// represented at all yield *domain.ErrEncoding. Encode is pure.
func Encode(in Input) (Payload, error) {
	san := &sanitizer{}

	key := strings.TrimSpace(in.Merchant.PixKey)
	switch {
	case key == "":
		return Payload{}, &domain.ErrEncoding{Field: "pix_key", Reason: "empty"}
	case len(key) > MaxPixKeyLen:
		return Payload{}, &domain.ErrEncoding{Field: "pix_key", Reason: "longer than 77 bytes"}
	case !isASCIIPrintable(key):
		return Payload{}, &domain.ErrEncoding{Field: "pix_key", Reason: "non-ASCII characters"}
	}

	mcc := strings.TrimSpace(in.Merchant.CategoryCode)
	if mcc == "" {
		mcc = DefaultCategoryCode
	}
	if len(mcc) != 4 || !isDigits(mcc) {
		return Payload{}, &domain.ErrEncoding{Field: "merchant_category_code", Reason: "must be 4 digits"}
	}

	if !in.Amount.IsPositive() {
		return Payload{}, &domain.ErrEncoding{Field: "transaction_amount", Reason: "must be positive"}
	}
	amount := in.Amount.Fixed2()
	if len(amount) > MaxAmountLen {
		return Payload{}, &domain.ErrEncoding{Field: "transaction_amount", Reason: "longer than 13 bytes"}
	}

	name := san.text("merchant_name", in.Merchant.Beneficiary, true, MaxMerchantName)
	if name == "" {
		return Payload{}, &domain.ErrEncoding{Field: "merchant_name", Reason: "empty after sanitization"}
	}
	city := san.text("merchant_city", in.Merchant.City, true, MaxMerchantCity)
	if city == "" {
		return Payload{}, &domain.ErrEncoding{Field: "merchant_city", Reason: "empty after sanitization"}
	}

	ref := strings.TrimSpace(in.ReferenceID)
	if ref == "" || !isAlphanumeric(ref) {
		return Payload{}, &domain.ErrEncoding{Field: "reference_id", Reason: "must be alphanumeric and non-empty"}
	}
	ref = san.truncate("reference_id", ref, MaxReferenceID)

	account := []Field{
		{ID: SubIDGUI, Value: PixGUI},
		{ID: SubIDPixKey, Value: key},
	}
	if strings.TrimSpace(in.Description) != "" {
		// GUI and key sub-fields, plus the description's own id+length.
		room := merchantAccountMax - (4 + len(PixGUI)) - (4 + len(key)) - 4
		desc := san.text("description", in.Description, false, room)
		if desc != "" {
			account = append(account, Field{ID: SubIDDescription, Value: desc})
		}
	}

	fields := []Field{
		{ID: IDPayloadFormat, Value: PayloadFormatIndicator},
		{ID: IDPointOfInitiation, Value: InitiationDynamic},
		{ID: IDMerchantAccount, Children: account},
		{ID: IDMerchantCategory, Value: mcc},
		{ID: IDTransactionCurrency, Value: CurrencyBRL},
		{ID: IDTransactionAmount, Value: amount},
		{ID: IDCountryCode, Value: CountryBR},
		{ID: IDMerchantName, Value: name},
		{ID: IDMerchantCity, Value: city},
		{ID: IDAdditionalData, Children: []Field{{ID: SubIDReferenceLabel, Value: ref}}},
	}

	var b strings.Builder
	for _, f := range fields {
		s, err := f.serialize()
		if err != nil {
			return Payload{}, &domain.ErrEncoding{Field: f.ID, Reason: err.Error()}
		}
		b.WriteString(s)
	}
	b.WriteString(crcPlaceholder)

	body := b.String()
	sum := Checksum(body)

	return Payload{
		Text:        body + sum,
		Checksum:    sum,
		PixKey:      key,
		Beneficiary: name,
		City:        city,
		ReferenceID: ref,
		Diagnostics: san.diags,
	}, nil
}
