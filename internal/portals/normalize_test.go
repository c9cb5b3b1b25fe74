package portals

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"Automático":      "automatico",
		"  New   Fiesta ": "new fiesta",
		"ONIX 1.0":        "onix 10",
		"Citroën C4":      "citroen c4",
		"":                "",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeName(in), "input %q", in)
	}
}

func TestNormalizeCompact(t *testing.T) {
	assert.Equal(t, "newfiesta", normalizeCompact("New Fiesta"))
	assert.Equal(t, "hb20s", normalizeCompact("HB20 S"))
}

func TestMatchRefItem(t *testing.T) {
	colors := []RefItem{
		{ID: 1, Name: "Branco"},
		{ID: 2, Name: "Preto"},
		{ID: 3, Name: "Azul"},
	}

	id, ok := matchRefItem(colors, "branco", colorSynonyms)
	assert.True(t, ok)
	assert.Equal(t, 1, id)

	// Accented dealer spelling
	id, ok = matchRefItem(colors, "PRETO", colorSynonyms)
	assert.True(t, ok)
	assert.Equal(t, 2, id)

	// Substring containment
	id, ok = matchRefItem(colors, "Azul Marinho", colorSynonyms)
	assert.True(t, ok)
	assert.Equal(t, 3, id)

	// Synonym table
	id, ok = matchRefItem(colors, "white", colorSynonyms)
	assert.True(t, ok)
	assert.Equal(t, 1, id)

	// No guess on miss
	_, ok = matchRefItem(colors, "roxo", colorSynonyms)
	assert.False(t, ok)

	_, ok = matchRefItem(colors, "", colorSynonyms)
	assert.False(t, ok)
}

func TestMatchRefItemExactSkipsSubstring(t *testing.T) {
	makes := []RefItem{
		{ID: 10, Name: "Fiat"},
		{ID: 11, Name: "Kia"},
	}

	id, ok := matchRefItemExact(makes, "FIAT", nil)
	assert.True(t, ok)
	assert.Equal(t, 10, id)

	// "Kia Motors" contains "Kia" but exact matching must not resolve it
	_, ok = matchRefItemExact(makes, "Kia Motors", nil)
	assert.False(t, ok)
}

func TestTransmissionSynonyms(t *testing.T) {
	items := []RefItem{
		{ID: 1, Name: "Manual"},
		{ID: 2, Name: "Automático"},
	}

	id, ok := matchRefItem(items, "mecânico", transmissionSynonyms)
	assert.True(t, ok)
	assert.Equal(t, 1, id)

	id, ok = matchRefItem(items, "automatica", transmissionSynonyms)
	assert.True(t, ok)
	assert.Equal(t, 2, id)
}
