package extract

import (
	"regexp"
	"strings"

	"github.com/franckalain/scaneats/internal/models"
)

// Field describes how one nutrient is located in recognized text.
type Field struct {
	Key models.NutrientKey
	// Label matches the printed nutrient name, e.g. "Total Fat".
	Label string
	// Units are the tokens accepted right after the number.
	Units []string
	// UnitRequired rejects a number that is not followed by one of Units.
	UnitRequired bool
}

var (
	massUnits    = []string{"mg", "g"}
	servingUnits = []string{"tbsp", "tsp", "cups", "cup", "ml", "oz", "g"}
)

// Fields is the pattern table, one row per nutrient key.
var Fields = []Field{
	{Key: models.Calories, Label: `calories`, Units: []string{"kcal", "cal"}},
	{Key: models.Fat, Label: `(?:total\s*)?fat`, Units: massUnits, UnitRequired: true},
	{Key: models.Protein, Label: `proteins?`, Units: massUnits, UnitRequired: true},
	{Key: models.Carbs, Label: `(?:total\s*)?carb(?:ohydrate)?s?`, Units: massUnits, UnitRequired: true},
	{Key: models.Sugar, Label: `(?:total\s*)?sugars?`, Units: massUnits, UnitRequired: true},
	{Key: models.Fiber, Label: `(?:dietary\s*)?fib(?:er|re)s?`, Units: massUnits, UnitRequired: true},
	{Key: models.Sodium, Label: `sodium`, Units: massUnits, UnitRequired: true},
	{Key: models.ServingSize, Label: `serving\s*size`, Units: servingUnits, UnitRequired: true},
}

// Capture groups produced by Field.Compile.
const (
	groupValue   = 1
	groupUnit    = 2
	groupPercent = 3
)

// Compile builds the case-insensitive, unanchored expression for f. The label
// may be followed by whitespace, colons or dots ("Total Carb. 37g"). The
// expression captures the number, the unit and any trailing percent sign.
func (f Field) Compile() *regexp.Regexp {
	units := make([]string, len(f.Units))
	for i, u := range f.Units {
		units[i] = regexp.QuoteMeta(u)
	}
	unit := `\s*(` + strings.Join(units, "|") + `)\b`
	if !f.UnitRequired {
		unit = `(?:` + unit + `)?`
	}
	return regexp.MustCompile(`(?i)\b` + f.Label + `[\s:.]*(\d+(?:\.\d+)?)` + unit + `(\s*%)?`)
}
