package grading

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// band is the semantic reading of a level name, independent of its points.
type band int

const (
	bandUnknown band = iota
	bandExcellent
	bandGood
	bandBasic
	bandDeficient
)

// Checked in this order; deficient goes before good so "insatisfactorio"
// is not read as "satisfactorio".
var bandKeywords = []struct {
	band  band
	words []string
}{
	{bandExcellent, []string{"excelente", "sobresaliente", "excellent", "outstanding"}},
	{bandDeficient, []string{"insuficiente", "deficiente", "insatisfactorio", "malo", "insufficient", "deficient", "poor"}},
	{bandGood, []string{"bueno", "satisfactorio", "good", "satisfactory", "proficient"}},
	{bandBasic, []string{"regular", "basico", "aceptable", "basic", "acceptable", "fair"}},
}

func classifyLevel(name string) band {
	n := foldName(name)
	for _, bk := range bandKeywords {
		for _, w := range bk.words {
			if strings.Contains(n, w) {
				return bk.band
			}
		}
	}
	return bandUnknown
}

// foldName lowercases, strips accents and collapses whitespace. Chained
// transformers keep state, so each call builds its own.
func foldName(s string) string {
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}
