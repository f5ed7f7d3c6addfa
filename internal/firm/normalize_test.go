package firm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeFirmName(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"short alias", "ms", MorganStanley},
		{"display name", "Morgan Stanley", MorganStanley},
		{"upper case", "MORGAN STANLEY", MorganStanley},
		{"extra spacing", "  morgan   stanley ", MorganStanley},
		{"lpl", "LPL", Independent},
		{"lpl financial", "LPL Financial", Independent},
		{"independent", "Independent", Independent},
		{"ubs exact", "UBS", UBS},
		{"ubs longer", "UBS Wealth Advisors", UBS},
		{"jp morgan beats morgan", "J.P. Morgan Securities", JPMorgan},
		{"jpmorgan joined", "JPMorgan", JPMorgan},
		{"merrill", "Merrill Lynch Wealth Management", MerrillLynch},
		{"bofa", "BofA", MerrillLynch},
		{"wells", "Wells Fargo Advisors", WellsFargo},
		{"raymond james ampersand", "Raymond James & Associates", RaymondJames},
		{"edward jones", "Edward Jones", EdwardJones},
		{"canonical key", "morganStanley", MorganStanley},
		{"baird", "Robert W. Baird", BairdPrivateWealth},
		{"unknown", "Acme Wealth Partners", Default},
		{"empty", "", Default},
		{"punctuation only", "--", Default},
		{"not a word match", "Maria Capital", Default},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeFirmName(tt.raw))
		})
	}
}

func TestNormalizeFirmName_Equivalence(t *testing.T) {
	a := NormalizeFirmName("ms")
	b := NormalizeFirmName("Morgan Stanley")
	c := NormalizeFirmName("MORGAN STANLEY")
	assert.Equal(t, a, b)
	assert.Equal(t, b, c)
}

func TestLookup_ReportsMatch(t *testing.T) {
	key, ok := Lookup("Stifel Nicolaus")
	assert.True(t, ok)
	assert.Equal(t, Stifel, key)

	key, ok = Lookup("Some Boutique")
	assert.False(t, ok)
	assert.Equal(t, Default, key)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Morgan Stanley", DisplayName(MorganStanley))
	assert.Equal(t, "Independent (LPL)", DisplayName(Independent))
	assert.Equal(t, "customKey", DisplayName("customKey"))
}

func TestKeys_CoverTable(t *testing.T) {
	keys := Keys()
	assert.Len(t, keys, len(table))
	assert.Equal(t, MorganStanley, keys[0])
	assert.Contains(t, keys, Independent)

	for _, k := range keys {
		assert.Equal(t, k, NormalizeFirmName(k), "key %s should normalize to itself", k)
		for _, a := range Aliases(k) {
			assert.Equal(t, k, NormalizeFirmName(a), "alias %q", a)
		}
	}
}

func TestAliases_Unknown(t *testing.T) {
	assert.Nil(t, Aliases("nope"))
}

func TestRowKey(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"alias", "LPL Financial", Independent},
		{"canonical key", "wellsFargo", WellsFargo},
		{"unlisted firm", "Rockefeller Capital", "rockefeller-capital"},
		{"unlisted punctuation", "Acme & Sons, Inc.", "acme-and-sons-inc"},
		{"slug is stable", "rockefeller-capital", "rockefeller-capital"},
		{"blank", "  ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RowKey(tt.raw))
		})
	}
}

func TestRowKey_UnlistedNeverIndependent(t *testing.T) {
	for _, raw := range []string{"Rockefeller Capital", "Maria Capital", "Some Boutique"} {
		assert.NotEqual(t, Independent, RowKey(raw), raw)
	}
}
