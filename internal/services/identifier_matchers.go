package services

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// IdentifierMatcher recovers one identifier token from OCR text.
type IdentifierMatcher interface {
	Name() string
	Match(text string) (string, bool)
}

// MatcherChain tries matchers in order and stops at the first hit, so the
// slice order is the precedence order.
type MatcherChain []IdentifierMatcher

// First returns the token and the name of the matcher that produced it.
func (c MatcherChain) First(text string) (token, matcher string, ok bool) {
	for _, m := range c {
		if token, ok := m.Match(text); ok {
			return token, m.Name(), true
		}
	}
	return "", "", false
}

const (
	MatcherSlash         = "slash"
	MatcherPrefixedPromo = "prefixed_promo"
	MatcherWotCPromo     = "wotc_promo"
)

var slashNumberRegex = regexp.MustCompile(`\b(\d{1,4}\s*/\s*\d{1,4})\b`)

// slashMatcher finds "059/131" style collector numbers.
type slashMatcher struct{}

func (slashMatcher) Name() string { return MatcherSlash }

func (slashMatcher) Match(text string) (string, bool) {
	m := slashNumberRegex.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, m[1]), true
}

// prefixedPromoMatcher finds a known promo prefix followed by 1-4 digits
// ("SM05", "SVP 123", "swsh-125").
type prefixedPromoMatcher struct {
	re *regexp.Regexp
}

func newPrefixedPromoMatcher(prefixes []string) prefixedPromoMatcher {
	sorted := make([]string, len(prefixes))
	for i, p := range prefixes {
		sorted[i] = regexp.QuoteMeta(strings.ToUpper(p))
	}
	// Longest first so SWSH is never shadowed by a shorter prefix.
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	pattern := fmt.Sprintf(`(?i)\b(%s)\s*-?\s*(\d{1,4})\b`, strings.Join(sorted, "|"))
	return prefixedPromoMatcher{re: regexp.MustCompile(pattern)}
}

func (prefixedPromoMatcher) Name() string { return MatcherPrefixedPromo }

func (m prefixedPromoMatcher) Match(text string) (string, bool) {
	sub := m.re.FindStringSubmatch(text)
	if sub == nil {
		return "", false
	}
	return strings.ToUpper(sub[1]) + renderPromoDigits(sub[2]), true
}

// wotcPromoMatcher handles Black Star promos that print the word PROMO and a
// bare number somewhere after it.
type wotcPromoMatcher struct {
	re *regexp.Regexp
}

func newWotCPromoMatcher(lookahead int) wotcPromoMatcher {
	pattern := fmt.Sprintf(`(?i)\bPROMO\b[\s\S]{0,%d}?\b(\d{1,3})\b`, lookahead)
	return wotcPromoMatcher{re: regexp.MustCompile(pattern)}
}

func (wotcPromoMatcher) Name() string { return MatcherWotCPromo }

func (m wotcPromoMatcher) Match(text string) (string, bool) {
	sub := m.re.FindStringSubmatch(text)
	if sub == nil {
		return "", false
	}
	return trimLeadingZeros(sub[1]), true
}
