package services

import (
	"regexp"
	"strings"
	"unicode"
)

// NumberKind hints which printed identifier format a raw string is expected
// to carry. Every kind falls back to the generic rules, so the hint only
// decides which rule is tried first.
type NumberKind int

const (
	NumberKindGeneric NumberKind = iota
	NumberKindSlash
	NumberKindPromo
)

func (k NumberKind) String() string {
	switch k {
	case NumberKindSlash:
		return "slash"
	case NumberKindPromo:
		return "promo"
	default:
		return "generic"
	}
}

var promoNumberPattern = regexp.MustCompile(`^([A-Z]{2,6})(\d{1,4})$`)

type numberRule func(compact string) (string, bool)

var numberRules = map[NumberKind][]numberRule{
	NumberKindGeneric: {normalizeSlashNumber, normalizePromoNumber, normalizeBareNumber},
	NumberKindSlash:   {normalizeSlashNumber, normalizeBareNumber, normalizePromoNumber},
	NumberKindPromo:   {normalizePromoNumber, normalizeBareNumber, normalizeSlashNumber},
}

// NormalizeNumber converts a printed collector number, promo code or set
// number into the canonical key stored in the catalog's *_norm columns.
//
//	"059/131"  -> "59/131"
//	"SVP 123"  -> "SVP123"
//	"SM05"     -> "SM05"  (leading zero keeps the printed width)
//	"007"      -> "7"
//	"tg-05"    -> "TG05"
//
// Whitespace and hyphens are dropped and letters upper-cased before any rule
// runs, which is also the fallback result. The function is total and
// idempotent. Ingestion must call it for every *_norm column or lookups
// silently miss.
func NormalizeNumber(raw string, kind NumberKind) string {
	compact := compactNumber(raw)
	if compact == "" {
		return ""
	}

	rules, ok := numberRules[kind]
	if !ok {
		rules = numberRules[NumberKindGeneric]
	}
	for _, rule := range rules {
		if norm, ok := rule(compact); ok {
			return norm
		}
	}
	return compact
}

// compactNumber strips whitespace and hyphens and upper-cases the rest.
func compactNumber(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsSpace(r) || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

// normalizeSlashNumber handles "N/M". Numeric sides lose their leading zeros;
// anything else ("TG05/TG30") passes through.
func normalizeSlashNumber(s string) (string, bool) {
	if strings.Count(s, "/") != 1 {
		return "", false
	}
	left, right, _ := strings.Cut(s, "/")
	return renderSide(left) + "/" + renderSide(right), true
}

func renderSide(side string) string {
	if isDigits(side) {
		return trimLeadingZeros(side)
	}
	return side
}

// normalizePromoNumber handles a 2-6 letter prefix followed by 1-4 digits.
// A leading zero in the digits means the printed width is significant
// (SM05 and SM5 are different cards), so it is kept, clamped to 2..4.
func normalizePromoNumber(s string) (string, bool) {
	m := promoNumberPattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1] + renderPromoDigits(m[2]), true
}

func renderPromoDigits(digits string) string {
	if !strings.HasPrefix(digits, "0") {
		return trimLeadingZeros(digits)
	}
	width := min(max(len(digits), 2), 4)
	value := trimLeadingZeros(digits)
	if len(value) >= width {
		return value
	}
	return strings.Repeat("0", width-len(value)) + value
}

func normalizeBareNumber(s string) (string, bool) {
	if !isDigits(s) {
		return "", false
	}
	return trimLeadingZeros(s), true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// trimLeadingZeros renders a digit string as an integer without parsing it,
// so arbitrarily long inputs cannot overflow.
func trimLeadingZeros(digits string) string {
	trimmed := strings.TrimLeft(digits, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}
