package brcode

import "fmt"

// Decoded is the parsed view of a BR Code payload.
type Decoded struct {
	PayloadFormat     string
	PointOfInitiation string
	GUI               string
	PixKey            string
	Description       string
	CategoryCode      string
	Currency          string
	Amount            string
	CountryCode       string
	MerchantName      string
	MerchantCity      string
	ReferenceID       string
	CRC               string
	Fields            []Field
}

// Dynamic reports whether the code is the one-shot, amount-bound kind.
func (d *Decoded) Dynamic() bool { return d.PointOfInitiation == InitiationDynamic }

// Decode parses payload and verifies its checksum. The CRC field must be last.
func Decode(payload string) (*Decoded, error) {
	top, err := parseFields(payload)
	if err != nil {
		return nil, err
	}
	if len(top) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformed)
	}

	last := top[len(top)-1]
	if last.ID != IDCRC || len(last.Value) != 4 {
		return nil, fmt.Errorf("%w: checksum field must close the payload", ErrMalformed)
	}
	if !VerifyChecksum(payload) {
		return nil, ErrChecksumMismatch
	}
	if top[0].ID != IDPayloadFormat {
		return nil, fmt.Errorf("%w: payload format indicator must come first", ErrMalformed)
	}

	d := &Decoded{}
	for i := range top {
		f := &top[i]
		if isTemplate(f.ID) {
			children, err := parseFields(f.Value)
			if err != nil {
				return nil, fmt.Errorf("template %s: %w", f.ID, err)
			}
			f.Children = children
		}

		switch f.ID {
		case IDPayloadFormat:
			d.PayloadFormat = f.Value
		case IDPointOfInitiation:
			d.PointOfInitiation = f.Value
		case IDMerchantAccount:
			for _, c := range f.Children {
				switch c.ID {
				case SubIDGUI:
					d.GUI = c.Value
				case SubIDPixKey:
					d.PixKey = c.Value
				case SubIDDescription:
					d.Description = c.Value
				}
			}
		case IDMerchantCategory:
			d.CategoryCode = f.Value
		case IDTransactionCurrency:
			d.Currency = f.Value
		case IDTransactionAmount:
			d.Amount = f.Value
		case IDCountryCode:
			d.CountryCode = f.Value
		case IDMerchantName:
			d.MerchantName = f.Value
		case IDMerchantCity:
			d.MerchantCity = f.Value
		case IDAdditionalData:
			for _, c := range f.Children {
				if c.ID == SubIDReferenceLabel {
					d.ReferenceID = c.Value
				}
			}
		case IDCRC:
			d.CRC = f.Value
		}
	}
	d.Fields = top

	if d.GUI != "" && d.GUI != PixGUI {
		return nil, fmt.Errorf("%w: unexpected GUI %q", ErrMalformed, d.GUI)
	}
	return d, nil
}
