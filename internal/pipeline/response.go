package pipeline

import (
	"time"

	"github.com/franckalain/scaneats/internal/models"
)

// Response is the transport-agnostic reply to a scan. Computed is present on
// success and on a storage failure after computation, and nil otherwise.
type Response struct {
	Success   bool      `json:"success"`
	Saved     bool      `json:"saved"`
	ErrorKind ErrorKind `json:"errorKind,omitempty"`
	Message   string    `json:"message"`
	*Computed
}

// Computed holds the evidence and numbers produced by a run.
type Computed struct {
	ScanID         string                `json:"scanId"`
	EntryID        string                `json:"entryId,omitempty"`
	FoodName       string                `json:"foodName"`
	Text           string                `json:"text"`
	Nutrition      models.NutrientRecord `json:"nutrition"`
	User           models.UserProfile    `json:"user"`
	CaloriesToBurn float64               `json:"caloriesToBurn"`
	StepsNeeded    int                   `json:"stepsNeeded"`
	CreatedAt      time.Time             `json:"createdAt"`
}

// NewResponse converts the outcome of Run into a Response.
func NewResponse(res *Result, err error) Response {
	if err == nil && res == nil {
		return Response{ErrorKind: KindInternal, Message: "Error processing scan"}
	}
	resp := Response{
		Success:   err == nil,
		ErrorKind: KindOf(err),
		Message:   MessageOf(err),
	}
	if err == nil {
		resp.Message = "OCR and calculation successful"
	}
	// Only a post-computation storage failure keeps its numbers.
	if res != nil && (err == nil || resp.ErrorKind == KindStorage) {
		resp.Saved = res.Saved
		resp.Computed = &Computed{
			ScanID:         res.ScanID,
			EntryID:        res.EntryID,
			FoodName:       res.FoodName,
			Text:           res.Text,
			Nutrition:      res.Nutrition,
			User:           res.User,
			CaloriesToBurn: res.Estimate.CaloriesToBurn,
			StepsNeeded:    res.Estimate.StepsNeeded,
			CreatedAt:      res.CreatedAt,
		}
		if resp.Nutrition.Detected == nil {
			resp.Nutrition.Detected = []models.NutrientKey{}
		}
	}
	return resp
}
