package models

import (
	"fmt"
	"strings"
)

// Gender selects the BMR equation.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// ParseGender normalizes s into a known Gender.
func ParseGender(s string) (Gender, error) {
	switch g := Gender(strings.ToLower(strings.TrimSpace(s))); g {
	case GenderMale, GenderFemale, GenderOther:
		return g, nil
	}
	return "", fmt.Errorf("unknown gender %q", s)
}

// Accepted profile ranges.
const (
	MinAge, MaxAge           = 10, 120
	MinWeightKg, MaxWeightKg = 20, 300
	MinHeightCm, MaxHeightCm = 50, 250
)

// UserProfile is the physiological data the calculator needs. Zero values
// mean "not provided".
type UserProfile struct {
	UserID   string  `json:"-"`
	Name     string  `json:"-"`
	Age      float64 `json:"age"`
	WeightKg float64 `json:"weightKg"`
	HeightCm float64 `json:"heightCm"`
	Gender   Gender  `json:"gender"`
}

// Validate checks that every field is present and within range.
func (p UserProfile) Validate() error {
	if p.Age < MinAge || p.Age > MaxAge {
		return fmt.Errorf("age %v outside %d-%d", p.Age, MinAge, MaxAge)
	}
	if p.WeightKg < MinWeightKg || p.WeightKg > MaxWeightKg {
		return fmt.Errorf("weight %vkg outside %d-%d", p.WeightKg, MinWeightKg, MaxWeightKg)
	}
	if p.HeightCm < MinHeightCm || p.HeightCm > MaxHeightCm {
		return fmt.Errorf("height %vcm outside %d-%d", p.HeightCm, MinHeightCm, MaxHeightCm)
	}
	if _, err := ParseGender(string(p.Gender)); err != nil {
		return err
	}
	return nil
}

// Complete reports whether the profile can drive the BMR equations.
func (p UserProfile) Complete() bool {
	return p.Validate() == nil
}

// RawImage is an uploaded photo owned by a single pipeline run.
type RawImage struct {
	Name     string
	MIMEType string
	Data     []byte
}
