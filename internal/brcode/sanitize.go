package brcode

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DiagnosticKind classifies an observable change made to an input field.
type DiagnosticKind string

const (
	DiagTransliterated DiagnosticKind = "transliterated"
	DiagTruncated      DiagnosticKind = "truncated"
)

// Diagnostic records one deterministic rewrite of an input field.
type Diagnostic struct {
	Field string
	Kind  DiagnosticKind
	From  string
	To    string
}

func (d Diagnostic) String() string {
	if d.Kind == DiagTruncated {
		return fmt.Sprintf("%s truncated from %d to %d bytes", d.Field, len(d.From), len(d.To))
	}
	return fmt.Sprintf("%s transliterated %q -> %q", d.Field, d.From, d.To)
}

// toASCII strips diacritics ("São João" -> "Sao Joao"), drops anything outside
// printable ASCII and collapses runs of spaces.
func toASCII(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	for _, r := range folded {
		if r >= 0x20 && r <= 0x7e {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

type sanitizer struct {
	diags []Diagnostic
}

// text folds value to ASCII, optionally upper-cases it and truncates it to max
// bytes, recording each rewrite.
func (s *sanitizer) text(field, value string, upper bool, max int) string {
	out := toASCII(value)
	if upper {
		out = strings.ToUpper(out)
	}
	if out != strings.TrimSpace(value) && !(upper && strings.EqualFold(out, strings.TrimSpace(value))) {
		s.diags = append(s.diags, Diagnostic{Field: field, Kind: DiagTransliterated, From: value, To: out})
	}
	return s.truncate(field, out, max)
}

func (s *sanitizer) truncate(field, value string, max int) string {
	if max < 0 {
		max = 0
	}
	if len(value) <= max {
		return value
	}
	cut := strings.TrimRight(value[:max], " ")
	s.diags = append(s.diags, Diagnostic{Field: field, Kind: DiagTruncated, From: value, To: cut})
	return cut
}

func isASCIIPrintable(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

func isAlphanumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z') {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
