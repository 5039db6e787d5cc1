package models

import (
	"testing"
)

func TestNormalizeSubType(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected SubType
	}{
		{"empty defaults to Unknown", "", SubTypeUnknown},
		{"whitespace defaults to Unknown", "   ", SubTypeUnknown},
		{"exact Holofoil", "Holofoil", SubTypeHolofoil},
		{"lowercase reverse", "reverse holofoil", SubTypeReverseHolofoil},
		{"padded normal", "  Normal ", SubTypeNormal},
		{"1st edition", "1st Edition Holofoil", SubType1stEditionHolo},
		{"explicit unknown", "unknown", SubTypeUnknown},
		{"new finish passes through", "Cosmos Holofoil", SubType("Cosmos Holofoil")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeSubType(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizeSubType(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSubTypeIsFoilVariant(t *testing.T) {
	tests := []struct {
		subType  SubType
		expected bool
	}{
		{SubTypeNormal, false},
		{SubTypeHolofoil, true},
		{SubTypeReverseHolofoil, true},
		{SubType1stEditionHolo, true},
		{SubType1stEditionNormal, false},
		{SubTypeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.subType), func(t *testing.T) {
			if got := tt.subType.IsFoilVariant(); got != tt.expected {
				t.Errorf("%s.IsFoilVariant() = %v, want %v", tt.subType, got, tt.expected)
			}
		})
	}
}

func TestAllSubTypes(t *testing.T) {
	subTypes := AllSubTypes()

	seen := make(map[SubType]bool)
	for _, s := range subTypes {
		if seen[s] {
			t.Errorf("duplicate sub-type %s", s)
		}
		seen[s] = true
		if s == SubTypeUnknown {
			t.Error("AllSubTypes should not include the Unknown placeholder")
		}
	}
	if len(subTypes) != 6 {
		t.Errorf("AllSubTypes() returned %d sub-types, want 6", len(subTypes))
	}
}

func TestCardMarketPrice(t *testing.T) {
	holo := 42.50
	card := &Card{
		ProductID: 1,
		Prices: []LatestPrice{
			{ProductID: 1, SubType: SubTypeHolofoil, MarketPrice: &holo},
			{ProductID: 1, SubType: SubTypeReverseHolofoil, MarketPrice: nil},
		},
	}

	if got, ok := card.MarketPrice(SubTypeHolofoil); !ok || got != 42.50 {
		t.Errorf("MarketPrice(Holofoil) = %v, %v; want 42.50, true", got, ok)
	}
	if _, ok := card.MarketPrice(SubTypeReverseHolofoil); ok {
		t.Error("MarketPrice should report false for a null price")
	}
	if _, ok := card.MarketPrice(SubTypeNormal); ok {
		t.Error("MarketPrice should report false for a missing sub-type")
	}
	if got, ok := card.MarketPrice("holofoil"); !ok || got != 42.50 {
		t.Errorf("MarketPrice(holofoil) = %v, %v; want case-insensitive match", got, ok)
	}
}
