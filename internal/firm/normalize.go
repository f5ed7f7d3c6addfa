// Package firm owns the canonical firm keys and the alias table that maps
// user-typed or CMS-entered firm names onto them.
package firm

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// AliasTableVersion is bumped whenever an alias is added, removed or moved
// to a different key.
const AliasTableVersion = 3

// Canonical firm keys.
const (
	MorganStanley      = "morganStanley"
	MerrillLynch       = "merrillLynch"
	UBS                = "ubs"
	WellsFargo         = "wellsFargo"
	RBC                = "rbc"
	RaymondJames       = "raymondJames"
	Ameriprise         = "ameriprise"
	EdwardJones        = "edwardJones"
	JPMorgan           = "jpMorgan"
	Stifel             = "stifel"
	Janney             = "janney"
	BairdPrivateWealth = "bairdPrivateWealth"
	Schwab             = "schwab"
	Fidelity           = "fidelity"
	Independent        = "independent"
)

// Default is the key returned for names that match no alias.
const Default = Independent

type entry struct {
	key     string
	display string
	aliases []string
}

// table is the single source of truth for firm aliases. Aliases are written
// in normalized form: lower case, words separated by single spaces.
var table = []entry{
	{MorganStanley, "Morgan Stanley", []string{"morgan stanley", "ms", "mswm", "morgan stanley wealth management", "morgan stanley smith barney", "morgan"}},
	{MerrillLynch, "Merrill Lynch", []string{"merrill lynch", "merrill", "ml", "bank of america", "bofa", "merrill lynch wealth management"}},
	{UBS, "UBS", []string{"ubs", "ubs wealth", "ubs wealth management", "ubs financial services"}},
	{WellsFargo, "Wells Fargo", []string{"wells fargo", "wells", "wfa", "wells fargo advisors"}},
	{RBC, "RBC Wealth Management", []string{"rbc", "rbc wealth management", "royal bank of canada"}},
	{RaymondJames, "Raymond James", []string{"raymond james", "rj", "rjfs", "raymond james financial services", "raymond james and associates"}},
	{Ameriprise, "Ameriprise", []string{"ameriprise", "ameriprise financial"}},
	{EdwardJones, "Edward Jones", []string{"edward jones", "edward d jones", "edward jones investments"}},
	{JPMorgan, "J.P. Morgan", []string{"jp morgan", "jpmorgan", "jpm", "j p morgan", "chase", "jpmorgan chase", "jp morgan wealth management"}},
	{Stifel, "Stifel", []string{"stifel", "stifel nicolaus"}},
	{Janney, "Janney Montgomery Scott", []string{"janney", "janney montgomery scott"}},
	{BairdPrivateWealth, "Baird Private Wealth", []string{"baird", "rw baird", "robert w baird", "baird private wealth"}},
	{Schwab, "Charles Schwab", []string{"schwab", "charles schwab"}},
	{Fidelity, "Fidelity", []string{"fidelity", "fidelity investments"}},
	{Independent, "Independent (LPL)", []string{"independent", "lpl", "lpl financial", "ria", "independent ria", "independent broker dealer", "ibd", "commonwealth", "commonwealth financial network", "cetera", "osaic"}},
}

type alias struct {
	text string
	key  string
}

var (
	exact    = map[string]string{}
	byLength []alias
	display  = map[string]string{}
)

func init() {
	for _, e := range table {
		display[e.key] = e.display
		for _, a := range e.aliases {
			n := normalizeText(a)
			if prev, dup := exact[n]; dup && prev != e.key {
				panic("firm: alias " + a + " maps to both " + prev + " and " + e.key)
			}
			exact[n] = e.key
			byLength = append(byLength, alias{text: n, key: e.key})
		}
		exact[normalizeText(e.key)] = e.key
	}
	// Longest alias first; SliceStable keeps table order on ties.
	sort.SliceStable(byLength, func(i, j int) bool {
		return len(byLength[i].text) > len(byLength[j].text)
	})
}

// NormalizeFirmName maps a firm name to its canonical key. Matching ignores
// case, punctuation and spacing. An exact alias wins; otherwise the longest
// alias found as a whole-word run inside the name wins, so "UBS Wealth
// Advisors" resolves through "ubs wealth" and "JP Morgan" through "jp morgan"
// rather than "morgan". Unrecognized names map to Default.
func NormalizeFirmName(raw string) string {
	key, _ := Lookup(raw)
	return key
}

// Lookup is NormalizeFirmName that also reports whether any alias matched.
func Lookup(raw string) (string, bool) {
	n := normalizeText(raw)
	if n == "" {
		return Default, false
	}
	if key, ok := exact[n]; ok {
		return key, true
	}
	padded := " " + n + " "
	for _, a := range byLength {
		if strings.Contains(padded, " "+a.text+" ") {
			return a.key, true
		}
	}
	return Default, false
}

// RowKey is the key a registry row for raw is stored under. Names in the
// alias table map to their canonical key; any other name gets a hyphenated
// slug of its normalized text ("Rockefeller Capital" -> "rockefeller-capital")
// so it never shares a row with Default. RowKey(RowKey(x)) == RowKey(x).
// Blank names return "".
func RowKey(raw string) string {
	if key, ok := Lookup(raw); ok {
		return key
	}
	return strings.ReplaceAll(normalizeText(raw), " ", "-")
}

// DisplayName returns a human-readable name for a canonical key, or the key
// itself when it is not in the table.
func DisplayName(key string) string {
	if d, ok := display[key]; ok {
		return d
	}
	return key
}

// Keys returns every canonical key in table order.
func Keys() []string {
	keys := make([]string, 0, len(table))
	for _, e := range table {
		keys = append(keys, e.key)
	}
	return keys
}

// Aliases returns the normalized aliases registered for key.
func Aliases(key string) []string {
	for _, e := range table {
		if e.key == key {
			out := make([]string, len(e.aliases))
			copy(out, e.aliases)
			return out
		}
	}
	return nil
}

// normalizeText folds case, treats "&" as "and", drops periods and
// apostrophes ("J.P." -> "jp") and turns all other punctuation into spaces.
func normalizeText(s string) string {
	// Casers carry state, so each call gets its own.
	s = cases.Fold().String(s)
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range s {
		switch {
		case r == '.' || r == '\'' || r == '’':
			continue
		case r == '&':
			if !space {
				b.WriteByte(' ')
			}
			b.WriteString("and ")
			space = true
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			space = false
		default:
			if !space {
				b.WriteByte(' ')
				space = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}
