// Package brcode builds and parses BR Code payloads: the EMV merchant-presented
// TLV text behind "Pix copia e cola" strings and pix QR codes.
package brcode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Top-level field ids, in the order they are emitted.
const (
	IDPayloadFormat       = "00"
	IDPointOfInitiation   = "01"
	IDMerchantAccount     = "26"
	IDMerchantCategory    = "52"
	IDTransactionCurrency = "53"
	IDTransactionAmount   = "54"
	IDCountryCode         = "58"
	IDMerchantName        = "59"
	IDMerchantCity        = "60"
	IDAdditionalData      = "62"
	IDCRC                 = "63"
)

// Sub-field ids.
const (
	SubIDGUI            = "00"
	SubIDPixKey         = "01"
	SubIDDescription    = "02"
	SubIDReferenceLabel = "05"
)

const maxValueLen = 99

var (
	// ErrMalformed reports a payload that is not a valid TLV sequence.
	ErrMalformed = errors.New("brcode: malformed payload")
	// ErrChecksumMismatch reports a payload whose CRC field does not match its content.
	ErrChecksumMismatch = errors.New("brcode: checksum mismatch")
)

// Field is one TLV element. Templates carry Children instead of a raw Value.
type Field struct {
	ID       string
	Value    string
	Children []Field
}

func (f Field) serialize() (string, error) {
	value := f.Value
	if len(f.Children) > 0 {
		var b strings.Builder
		for _, c := range f.Children {
			s, err := c.serialize()
			if err != nil {
				return "", err
			}
			b.WriteString(s)
		}
		value = b.String()
	}
	if len(value) > maxValueLen {
		return "", fmt.Errorf("field %s: value has %d bytes, max %d", f.ID, len(value), maxValueLen)
	}
	return f.ID + fmt.Sprintf("%02d", len(value)) + value, nil
}

// parseFields splits s into consecutive TLV elements without descending into them.
func parseFields(s string) ([]Field, error) {
	var fields []Field
	for i := 0; i < len(s); {
		if i+4 > len(s) {
			return nil, fmt.Errorf("%w: truncated header at offset %d", ErrMalformed, i)
		}
		id := s[i : i+2]
		n, err := strconv.Atoi(s[i+2 : i+4])
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: bad length at offset %d", ErrMalformed, i+2)
		}
		start := i + 4
		if start+n > len(s) {
			return nil, fmt.Errorf("%w: field %s overruns payload", ErrMalformed, id)
		}
		fields = append(fields, Field{ID: id, Value: s[start : start+n]})
		i = start + n
	}
	return fields, nil
}

func isTemplate(id string) bool {
	n, err := strconv.Atoi(id)
	if err != nil {
		return false
	}
	return (n >= 26 && n <= 51) || n == 62 || (n >= 80 && n <= 99)
}
