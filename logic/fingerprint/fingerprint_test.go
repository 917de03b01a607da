package fingerprint

import (
	"testing"

	"contract-guard/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contract = "This Agreement is entered into by Acme Corp and Beta LLC. Payment is due within 90 days."

func TestComputeDeterministic(t *testing.T) {
	sub := types.ContractSubmission{
		Text:       contract,
		Industry:   types.IndustryTechnology,
		Categories: []types.Category{types.CategoryLegal, types.CategoryFinancial},
	}
	a, err := Compute(sub)
	require.NoError(t, err)
	b, err := Compute(sub)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a.String(), 64)
}

func TestComputeCategoryPermutation(t *testing.T) {
	base := types.ContractSubmission{Text: contract, Industry: "technology"}

	perms := [][]types.Category{
		{"legal", "financial", "compliance"},
		{"compliance", "legal", "financial"},
		{"Financial", "COMPLIANCE", "legal", "legal"},
	}
	var prints []types.Fingerprint
	for _, p := range perms {
		sub := base
		sub.Categories = p
		fp, err := Compute(sub)
		require.NoError(t, err)
		prints = append(prints, fp)
	}
	assert.Equal(t, prints[0], prints[1])
	assert.Equal(t, prints[0], prints[2])

	// 空类别等同于默认类别
	empty, err := Compute(base)
	require.NoError(t, err)
	assert.Equal(t, prints[0], empty)
}

func TestComputeInsignificantDifferences(t *testing.T) {
	a, err := Compute(types.ContractSubmission{Text: contract, Industry: "Technology"})
	require.NoError(t, err)
	b, err := Compute(types.ContractSubmission{Text: "  This Agreement  is entered into by\nAcme Corp and Beta LLC.\tPayment is due within 90 days.  ", Industry: " technology "})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestComputeSignificantDifferences(t *testing.T) {
	base := types.ContractSubmission{Text: contract, Industry: types.IndustryTechnology, Categories: []types.Category{"legal"}}
	fp, err := Compute(base)
	require.NoError(t, err)

	changed := []types.ContractSubmission{
		{Text: contract + " Amended.", Industry: types.IndustryTechnology, Categories: []types.Category{"legal"}},
		{Text: contract, Industry: types.IndustryFinance, Categories: []types.Category{"legal"}},
		{Text: contract, Industry: types.IndustryTechnology, Categories: []types.Category{"legal", "financial"}},
	}
	for _, sub := range changed {
		other, err := Compute(sub)
		require.NoError(t, err)
		assert.NotEqual(t, fp, other)
	}
}

func TestComputeEmptyText(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := Compute(types.ContractSubmission{Text: text})
		assert.ErrorIs(t, err, types.ErrInvalidInput)
	}
}
