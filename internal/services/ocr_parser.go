package services

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/codyseavey/tcg-scan/internal/vocabulary"
)

// Maximum allowed OCR text length to prevent regex DoS
const maxOCRTextLength = 10000

var (
	nameNoiseRegex = regexp.MustCompile(`[^A-Za-z0-9'’\-\s&]`)
	spaceRunRegex  = regexp.MustCompile(`\s+`)
)

// ExtractedTokens is what the extractor recovered from one OCR text. Empty
// fields mean nothing was found; that is a normal outcome.
type ExtractedTokens struct {
	CollectorRaw     string `json:"collector_number_raw,omitempty"`
	CollectorMatcher string `json:"collector_matcher,omitempty"`
	PromoRaw         string `json:"promo_number_raw,omitempty"`
	PromoMatcher     string `json:"promo_matcher,omitempty"`
	Name             string `json:"pokemon_name,omitempty"`
}

// TokenExtractor parses OCR text from a card photo into identifier tokens.
type TokenExtractor struct {
	vocab     *vocabulary.Vocabulary
	collector MatcherChain
	promo     MatcherChain
}

// NewTokenExtractor builds the matcher chains from vocab.
func NewTokenExtractor(vocab *vocabulary.Vocabulary) *TokenExtractor {
	return &TokenExtractor{
		vocab:     vocab,
		collector: MatcherChain{slashMatcher{}},
		promo: MatcherChain{
			newPrefixedPromoMatcher(vocab.PromoPrefixes),
			newWotCPromoMatcher(vocab.PromoLookahead),
		},
	}
}

// VocabularyVersion reports which vocabulary the extractor was built from.
func (e *TokenExtractor) VocabularyVersion() int {
	return e.vocab.Version
}

// Extract never fails. Both a collector and a promo token may be returned;
// the resolver decides which one wins.
func (e *TokenExtractor) Extract(text string) ExtractedTokens {
	if len(text) > maxOCRTextLength {
		text = strings.ToValidUTF8(text[:maxOCRTextLength], "")
	}

	var tokens ExtractedTokens
	if tok, matcher, ok := e.collector.First(text); ok {
		tokens.CollectorRaw, tokens.CollectorMatcher = tok, matcher
	}
	if tok, matcher, ok := e.promo.First(text); ok {
		tokens.PromoRaw, tokens.PromoMatcher = tok, matcher
	}
	tokens.Name = e.extractName(text)
	return tokens
}

// extractName returns the first early line that still looks like a species
// name once rules text, noise, stopwords and mechanic suffixes are removed.
// It only has to be good enough to reject a wrong species downstream.
func (e *TokenExtractor) extractName(text string) string {
	checked := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if checked >= e.vocab.NameLineLimit {
			break
		}
		checked++

		if name, ok := e.nameFromLine(line); ok {
			return name
		}
	}
	return ""
}

func (e *TokenExtractor) nameFromLine(line string) (string, bool) {
	if e.vocab.HasBoilerplate(line) {
		return "", false
	}
	if countLetters(line) < e.vocab.MinNameLetters {
		return "", false
	}

	cleaned := foldAccents(line)
	cleaned = nameNoiseRegex.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(spaceRunRegex.ReplaceAllString(cleaned, " "))

	var kept []string
	for _, tok := range strings.Fields(cleaned) {
		if tok == "&" || e.vocab.IsStopword(tok) || e.vocab.IsNameSuffix(tok) {
			continue
		}
		kept = append(kept, tok)
	}
	if len(kept) == 0 {
		return "", false
	}

	name := strings.Join(kept, " ")
	if e.vocab.IsStopword(name) {
		return "", false
	}
	if n := utf8.RuneCountInString(name); n < e.vocab.NameLength.Min || n > e.vocab.NameLength.Max {
		return "", false
	}
	return name, true
}

func countLetters(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}

// foldAccents strips combining marks: "Pokémon" -> "Pokemon".
// Transformer chains carry state, so each call builds its own.
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
