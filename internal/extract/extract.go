// Package extract turns free-form recognized label text into a NutrientRecord.
//
// Each nutrient is read with one tolerant pattern from the Fields table. The
// first acceptable match in document order wins; a nutrient with no match
// stays 0 and is left out of NutrientRecord.Detected.
package extract

import (
	"regexp"
	"strconv"

	"github.com/franckalain/scaneats/internal/models"
)

// Match is a single value read from the text.
type Match struct {
	Key    models.NutrientKey
	Value  float64
	Unit   string
	Offset int
}

// Extractor applies a compiled pattern table. It holds no mutable state and
// is safe for concurrent use.
type Extractor struct {
	fields   []Field
	patterns []*regexp.Regexp
}

// New compiles fields into an Extractor. A nil table means Fields.
func New(fields []Field) *Extractor {
	if fields == nil {
		fields = Fields
	}
	e := &Extractor{fields: fields, patterns: make([]*regexp.Regexp, len(fields))}
	for i, f := range fields {
		e.patterns[i] = f.Compile()
	}
	return e
}

var defaultExtractor = New(nil)

// Extract parses text with the default pattern table.
func Extract(text string) models.NutrientRecord {
	return defaultExtractor.Extract(text)
}

// Extract never fails; the worst case is a record of zeros.
func (e *Extractor) Extract(text string) models.NutrientRecord {
	var rec models.NutrientRecord
	for _, m := range e.Matches(text) {
		rec.Set(m.Key, m.Value)
	}
	return rec
}

// Matches returns the winning match for every field that fired, in table order.
func (e *Extractor) Matches(text string) []Match {
	var out []Match
	for i, f := range e.fields {
		if m, ok := firstMatch(e.patterns[i], f.Key, text); ok {
			out = append(out, m)
		}
	}
	return out
}

func firstMatch(re *regexp.Regexp, key models.NutrientKey, text string) (Match, bool) {
	for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
		// A number followed by % is a daily-value figure, not an amount.
		if loc[2*groupPercent] >= 0 {
			continue
		}
		raw := text[loc[2*groupValue]:loc[2*groupValue+1]]
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		m := Match{Key: key, Value: v, Offset: loc[0]}
		if loc[2*groupUnit] >= 0 {
			m.Unit = text[loc[2*groupUnit]:loc[2*groupUnit+1]]
		}
		return m, true
	}
	return Match{}, false
}
