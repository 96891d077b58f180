package models

import (
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a user or entry does not exist.
var ErrNotFound = errors.New("not found")

// NutrientKey names one of the fixed nutrient fields read from a label.
type NutrientKey string

const (
	Calories    NutrientKey = "calories"
	Fat         NutrientKey = "fat"
	Protein     NutrientKey = "protein"
	Carbs       NutrientKey = "carbs"
	Sugar       NutrientKey = "sugar"
	Fiber       NutrientKey = "fiber"
	Sodium      NutrientKey = "sodium"
	ServingSize NutrientKey = "servingSize"
)

// NutrientKeys lists every nutrient key in label order.
var NutrientKeys = []NutrientKey{Calories, Fat, Protein, Carbs, Sugar, Fiber, Sodium, ServingSize}

// NutrientRecord holds the values extracted from a label. Every key is always
// present; a key the label did not mention reads as 0 and is absent from
// Detected.
type NutrientRecord struct {
	Calories    float64 `json:"calories"`    // kcal
	Fat         float64 `json:"fat"`         // grams
	Protein     float64 `json:"protein"`     // grams
	Carbs       float64 `json:"carbs"`       // grams
	Sugar       float64 `json:"sugar"`       // grams
	Fiber       float64 `json:"fiber"`       // grams
	Sodium      float64 `json:"sodium"`      // milligrams
	ServingSize float64 `json:"servingSize"` // in the unit printed on the label

	// Detected lists the keys whose value was actually read from the text,
	// which separates "printed as 0" from "not found".
	Detected []NutrientKey `json:"detected"`
}

// Get returns the value stored for key, or 0 for an unknown key.
func (r *NutrientRecord) Get(key NutrientKey) float64 {
	if p := r.field(key); p != nil {
		return *p
	}
	return 0
}

// Set stores v for key and marks the key as detected.
func (r *NutrientRecord) Set(key NutrientKey, v float64) {
	p := r.field(key)
	if p == nil {
		return
	}
	*p = v
	if !r.Found(key) {
		r.Detected = append(r.Detected, key)
	}
}

// Found reports whether key was read from the label.
func (r *NutrientRecord) Found(key NutrientKey) bool {
	for _, k := range r.Detected {
		if k == key {
			return true
		}
	}
	return false
}

func (r *NutrientRecord) field(key NutrientKey) *float64 {
	switch key {
	case Calories:
		return &r.Calories
	case Fat:
		return &r.Fat
	case Protein:
		return &r.Protein
	case Carbs:
		return &r.Carbs
	case Sugar:
		return &r.Sugar
	case Fiber:
		return &r.Fiber
	case Sodium:
		return &r.Sodium
	case ServingSize:
		return &r.ServingSize
	}
	return nil
}

// EnergyEstimate is the activity needed to offset a food's calories.
type EnergyEstimate struct {
	CaloriesToBurn float64 `json:"caloriesToBurn"`
	StepsNeeded    int     `json:"stepsNeeded"`
}

// NutritionEntry is the persisted outcome of one successful scan.
type NutritionEntry struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	FoodName string `json:"foodName"`

	NutrientRecord

	CaloriesToBurn float64   `json:"caloriesToBurn"`
	StepsNeeded    int       `json:"stepsNeeded"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Scan statuses recorded in the audit log.
const (
	ScanPending   = "pending"
	ScanCompleted = "completed"
	ScanFailed    = "failed"
)

// ScanRecord is the audit trail of one pipeline run. Image bytes are never
// kept.
type ScanRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Status    string    `json:"status"`
	ErrorKind string    `json:"errorKind,omitempty"`
	Error     string    `json:"error,omitempty"`
	EntryID   string    `json:"entryId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
