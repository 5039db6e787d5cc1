package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codyseavey/tcg-scan/internal/models"
)

func TestFilterByName(t *testing.T) {
	pikachu := CandidateRow{ProductID: 1, ProductName: "Pikachu VMAX"}
	raichu := CandidateRow{ProductID: 2, ProductName: "Raichu"}
	infernape := CandidateRow{ProductID: 3, ProductName: "Infernape"}
	flabebe := CandidateRow{ProductID: 4, ProductName: "Flabébé"}

	tests := []struct {
		name        string
		rows        []CandidateRow
		filter      string
		wantIDs     []int
		wantApplied bool
	}{
		{"keeps matching species", []CandidateRow{pikachu, raichu}, "Pikachu", []int{1}, true},
		{"case insensitive", []CandidateRow{pikachu, raichu}, "pikachu", []int{1}, true},
		{"empty result falls back to input", []CandidateRow{infernape}, "Snorlax", []int{3}, false},
		{"no name leaves input", []CandidateRow{pikachu, raichu}, "", []int{1, 2}, false},
		{"whitespace name leaves input", []CandidateRow{pikachu, raichu}, "  ", []int{1, 2}, false},
		{"no rows", nil, "Pikachu", nil, false},
		{"accents ignored", []CandidateRow{flabebe, raichu}, "Flabebe", []int{4}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, applied := FilterByName(tt.rows, tt.filter)
			assert.Equal(t, tt.wantApplied, applied)
			var ids []int
			for _, r := range got {
				ids = append(ids, r.ProductID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestSummarizeSameProductTwoSubTypes(t *testing.T) {
	rows := []CandidateRow{
		{ProductID: 10, GroupID: 1, ProductName: "Umbreon", SubType: models.SubTypeReverseHolofoil, MarketPrice: priceOf(4.5)},
		{ProductID: 10, GroupID: 1, ProductName: "Umbreon", SubType: models.SubTypeHolofoil, MarketPrice: priceOf(12)},
	}

	summary := Summarize(rows)
	assert.Equal(t, 1, summary.DistinctProductCount)
	assert.Equal(t, 2, summary.DistinctSubtypeCount)
	assert.True(t, summary.HasVariations)
	require.Len(t, summary.Options, 2)
	assert.Equal(t, "10:Holofoil", summary.Options[0].Key)
	assert.Equal(t, "10:Reverse Holofoil", summary.Options[1].Key)
}

func TestSummarizeDeduplicatesAndOrders(t *testing.T) {
	rows := []CandidateRow{
		{ProductID: 30, GroupID: 2, ProductName: "Umbreon VMAX", SubType: models.SubTypeHolofoil},
		{ProductID: 20, GroupID: 1, ProductName: "Umbreon VMAX"},
		{ProductID: 30, GroupID: 2, ProductName: "Umbreon VMAX", SubType: models.SubTypeHolofoil},
		{ProductID: 21, GroupID: 1, ProductName: "Umbreon VMAX", SubType: models.SubTypeNormal},
	}

	summary := Summarize(rows)
	require.Len(t, summary.Options, 3)
	assert.Equal(t, []string{"21:Normal", "20:", "30:Holofoil"}, []string{
		summary.Options[0].Key, summary.Options[1].Key, summary.Options[2].Key,
	})
	assert.Equal(t, 3, summary.DistinctProductCount)
	assert.Equal(t, 2, summary.DistinctSubtypeCount, "missing sub-type is not a variant")
	assert.True(t, summary.HasVariations)
}

func TestSummarizeSingleOption(t *testing.T) {
	summary := Summarize([]CandidateRow{{ProductID: 5, GroupID: 1, ProductName: "Mew", SubType: models.SubTypeHolofoil}})
	assert.False(t, summary.HasVariations)
	assert.Equal(t, 1, summary.DistinctProductCount)
	assert.Equal(t, 1, summary.DistinctSubtypeCount)

	empty := Summarize(nil)
	assert.False(t, empty.HasVariations)
	assert.NotNil(t, empty.Options)
	assert.Empty(t, empty.Options)
}

func TestSummarizeIsDeterministic(t *testing.T) {
	rows := []CandidateRow{
		{ProductID: 2, GroupID: 5, ProductName: "B", SubType: models.SubTypeNormal},
		{ProductID: 1, GroupID: 5, ProductName: "A", SubType: models.SubTypeHolofoil},
		{ProductID: 3, GroupID: 4, ProductName: "C"},
	}
	reversed := []CandidateRow{rows[2], rows[1], rows[0]}

	assert.Equal(t, Summarize(rows), Summarize(reversed))
}

func TestOptionLabel(t *testing.T) {
	priced := CandidateRow{ProductID: 7, GroupID: 3, ProductName: "Umbreon VMAX", SubType: models.SubTypeHolofoil, MarketPrice: priceOf(1234.5)}
	assert.Equal(t, "Umbreon VMAX | Holofoil | $1234.50 | group_id=3 | product_id=7", OptionLabel(priced))

	unpriced := CandidateRow{ProductID: 8, GroupID: 3, ProductName: "Umbreon VMAX"}
	assert.Equal(t, "Umbreon VMAX |  | N/A | group_id=3 | product_id=8", OptionLabel(unpriced))
}

func TestSelectOption(t *testing.T) {
	summary := Summarize([]CandidateRow{
		{ProductID: 1, GroupID: 1, ProductName: "Eevee", SubType: models.SubTypeNormal},
		{ProductID: 1, GroupID: 1, ProductName: "Eevee", SubType: models.SubTypeReverseHolofoil},
	})

	opt, ok := SelectOption(summary, OptionKey(1, models.SubTypeReverseHolofoil))
	require.True(t, ok)
	assert.Equal(t, models.SubTypeReverseHolofoil, opt.SubType)

	_, ok = SelectOption(summary, "99:Normal")
	assert.False(t, ok)
}
