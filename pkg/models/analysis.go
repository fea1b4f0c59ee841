package models

// RiskLevel grades how concerning a flagged ingredient is
type RiskLevel string

const (
	RiskHigh     RiskLevel = "High"
	RiskModerate RiskLevel = "Moderate"
	RiskLow      RiskLevel = "Low"
)

// RiskItem is a single ingredient the model flagged as a health risk
type RiskItem struct {
	Level RiskLevel `json:"level" yaml:"level"`
	Name  string    `json:"name" yaml:"name"`
	Desc  string    `json:"desc" yaml:"desc"`
}

// IngredientDetail carries the model's explanation for one ingredient
type IngredientDetail struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// CanonicalResult is the only shape returned to callers, for successful
// analyses and classified failures alike.
//
// Exactly one of the content fields or the (Error, ErrorType) pair is
// populated. Use Failed to build failures so the content slices stay empty
// but non-nil on the wire.
type CanonicalResult struct {
	HealthScore       string             `json:"health_score" yaml:"health_score"`
	Summary           string             `json:"summary" yaml:"summary"`
	Risks             []RiskItem         `json:"risks" yaml:"risks"`
	FullIngredients   []string           `json:"full_ingredients" yaml:"full_ingredients"`
	IngredientsDetail []IngredientDetail `json:"ingredients_detail,omitempty" yaml:"ingredients_detail,omitempty"`
	Alternatives      []string           `json:"alternatives" yaml:"alternatives"`
	Confidence        *float64           `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	Error             string             `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorType         string             `json:"error_type,omitempty" yaml:"error_type,omitempty"`
}

// Failed builds a classified failure result
func Failed(message, errorType string) *CanonicalResult {
	return &CanonicalResult{
		Risks:           []RiskItem{},
		FullIngredients: []string{},
		Alternatives:    []string{},
		Error:           message,
		ErrorType:       errorType,
	}
}

// IsFailure reports whether the result carries a classified failure
func (r *CanonicalResult) IsFailure() bool {
	return r.Error != "" || r.ErrorType != ""
}

// Valid checks the content/error mutual exclusion invariant
func (r *CanonicalResult) Valid() bool {
	hasError := r.Error != ""
	hasType := r.ErrorType != ""
	if hasError != hasType {
		return false
	}

	empty := r.HealthScore == "" &&
		r.Summary == "" &&
		len(r.Risks) == 0 &&
		len(r.FullIngredients) == 0 &&
		r.IngredientsDetail == nil &&
		len(r.Alternatives) == 0 &&
		r.Confidence == nil

	if hasError {
		return empty
	}
	return r.HealthScore != ""
}
