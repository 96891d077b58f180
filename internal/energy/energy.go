// Package energy converts label calories into an activity equivalent for a
// given user.
package energy

import (
	"math"

	"github.com/franckalain/scaneats/internal/models"
)

const (
	// DefaultBMR is used when the profile cannot drive the equations.
	DefaultBMR = 2000.0
	// SedentaryFactor scales BMR to a daily caloric need. No other activity
	// level is modeled.
	SedentaryFactor = 1.2
	// KcalPerStep is a flat walking cost. It does not depend on stride or
	// body weight.
	KcalPerStep = 0.04
	hoursPerDay = 24
	// MaxSteps caps StepsNeeded so absurd OCR readings cannot overflow int.
	MaxSteps = math.MaxInt32
)

// BMR returns the Harris-Benedict basal metabolic rate in kcal/day. An
// incomplete or out-of-range profile yields DefaultBMR. Gender is matched
// case-insensitively.
func BMR(p models.UserProfile) float64 {
	if !p.Complete() {
		return DefaultBMR
	}
	if g, _ := models.ParseGender(string(p.Gender)); g == models.GenderMale {
		return 88.36 + 13.4*p.WeightKg + 4.8*p.HeightCm - 5.7*p.Age
	}
	return 447.6 + 9.2*p.WeightKg + 3.1*p.HeightCm - 4.3*p.Age
}

// DailyNeed is the sedentary daily caloric need.
func DailyNeed(p models.UserProfile) float64 {
	return BMR(p) * SedentaryFactor
}

// Estimate offsets foodCalories by one hour of baseline burn and converts the
// remainder to steps. Non-positive calories give a zero estimate.
func Estimate(foodCalories float64, p models.UserProfile) models.EnergyEstimate {
	if foodCalories <= 0 || math.IsNaN(foodCalories) {
		return models.EnergyEstimate{}
	}
	toBurn := math.Max(0, foodCalories-DailyNeed(p)/hoursPerDay)
	steps := math.Round(toBurn / KcalPerStep)
	if steps > MaxSteps {
		steps = MaxSteps
	}
	return models.EnergyEstimate{
		CaloriesToBurn: toBurn,
		StepsNeeded:    int(steps),
	}
}
