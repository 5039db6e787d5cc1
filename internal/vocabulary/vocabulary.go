// Package vocabulary holds the versioned word lists the OCR token extractor
// matches against. The lists live in YAML so new promo prefixes or suffixes
// ship as data instead of code.
package vocabulary

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed vocabulary.yaml
var defaultVocabulary []byte

var promoPrefixPattern = regexp.MustCompile(`^[A-Za-z]{2,6}$`)

// ErrInvalidVocabulary is returned when a vocabulary file fails validation.
var ErrInvalidVocabulary = errors.New("invalid vocabulary")

// LengthBounds is an inclusive rune-length range.
type LengthBounds struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Vocabulary is the decoded vocabulary file.
type Vocabulary struct {
	Version            int          `yaml:"version"`
	PromoPrefixes      []string     `yaml:"promo_prefixes"`
	Stopwords          []string     `yaml:"stopwords"`
	NameSuffixes       []string     `yaml:"name_suffixes"`
	BoilerplateMarkers []string     `yaml:"boilerplate_markers"`
	NameLineLimit      int          `yaml:"name_line_limit"`
	MinNameLetters     int          `yaml:"min_name_letters"`
	NameLength         LengthBounds `yaml:"name_length"`
	PromoLookahead     int          `yaml:"promo_lookahead"`

	stopwords map[string]struct{}
	suffixes  map[string]struct{}
}

// Default returns the embedded vocabulary. It panics only if the embedded
// file is broken, which the package tests guard against.
func Default() *Vocabulary {
	v, err := Parse(defaultVocabulary)
	if err != nil {
		panic(fmt.Sprintf("embedded vocabulary: %v", err))
	}
	return v
}

// Load reads a vocabulary file. An empty path yields the embedded default.
func Load(path string) (*Vocabulary, error) {
	if path == "" {
		return Parse(defaultVocabulary)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates vocabulary YAML.
func Parse(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode vocabulary: %w", err)
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	v.index()
	return &v, nil
}

// MaxPromoLookahead is the largest regexp repeat count RE2 accepts.
const MaxPromoLookahead = 1000

// Validate checks the invariants the extractor relies on.
func (v *Vocabulary) Validate() error {
	if v.Version <= 0 {
		return fmt.Errorf("%w: version must be positive", ErrInvalidVocabulary)
	}
	if len(v.PromoPrefixes) == 0 {
		return fmt.Errorf("%w: promo_prefixes is empty", ErrInvalidVocabulary)
	}
	for _, p := range v.PromoPrefixes {
		if !promoPrefixPattern.MatchString(p) {
			return fmt.Errorf("%w: promo prefix %q must be 2-6 letters", ErrInvalidVocabulary, p)
		}
	}
	if v.NameLineLimit <= 0 {
		return fmt.Errorf("%w: name_line_limit must be positive", ErrInvalidVocabulary)
	}
	if v.MinNameLetters < 0 {
		return fmt.Errorf("%w: min_name_letters must not be negative", ErrInvalidVocabulary)
	}
	if v.NameLength.Min < 1 || v.NameLength.Max < v.NameLength.Min {
		return fmt.Errorf("%w: name_length bounds [%d,%d]", ErrInvalidVocabulary, v.NameLength.Min, v.NameLength.Max)
	}
	if v.PromoLookahead < 0 || v.PromoLookahead > MaxPromoLookahead {
		return fmt.Errorf("%w: promo_lookahead %d outside [0,%d]", ErrInvalidVocabulary, v.PromoLookahead, MaxPromoLookahead)
	}
	return nil
}

func (v *Vocabulary) index() {
	v.stopwords = toSet(v.Stopwords)
	v.suffixes = toSet(v.NameSuffixes)
	for i, m := range v.BoilerplateMarkers {
		v.BoilerplateMarkers[i] = strings.ToLower(m)
	}
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}

// IsStopword reports whether token (any case) is a stopword.
func (v *Vocabulary) IsStopword(token string) bool {
	_, ok := v.stopwords[strings.ToLower(token)]
	return ok
}

// IsNameSuffix reports whether token (any case) is a card mechanic suffix.
func (v *Vocabulary) IsNameSuffix(token string) bool {
	_, ok := v.suffixes[strings.ToLower(token)]
	return ok
}

// HasBoilerplate reports whether line contains a rules-text marker.
func (v *Vocabulary) HasBoilerplate(line string) bool {
	low := strings.ToLower(line)
	for _, m := range v.BoilerplateMarkers {
		if strings.Contains(low, m) {
			return true
		}
	}
	return false
}
