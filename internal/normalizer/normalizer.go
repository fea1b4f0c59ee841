// Package normalizer turns the loosely typed object recovered from a model
// reply into a models.CanonicalResult. Field shapes vary between model runs;
// every variant is collapsed here and nothing untyped leaves this package.
package normalizer

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/arbovm/levenshtein"

	apperrors "github.com/anime-shed/ingrediscan-go/internal/errors"
	"github.com/anime-shed/ingrediscan-go/pkg/models"
)

// Payload is the decoded model object
type Payload = map[string]any

// Defaults applied to missing fields
const (
	DefaultHealthScore = "C"
	DefaultSummary     = "Unknown"
	DefaultConfidence  = 0.8
	DefaultErrorText   = "分析失败"
	EmptyPayloadText   = "数据解析失败，可能是图片类型不正确，请上传清晰的商品标签图片"
)

// maxLevelDistance bounds the edit distance accepted when matching risk levels
const maxLevelDistance = 2

// Normalize maps payload onto the canonical schema. A truthy "error" key is
// treated as a failure declared by the model.
func Normalize(payload Payload) *models.CanonicalResult {
	if len(payload) == 0 {
		return models.Failed(EmptyPayloadText, string(apperrors.ErrorTypeParse))
	}
	if declared, ok := payload["error"]; ok && truthy(declared) {
		return declaredFailure(payload)
	}

	ingredients, details := normalizeIngredients(payload["full_ingredients"])

	result := &models.CanonicalResult{
		HealthScore:       normalizeHealthScore(payload["health_score"]),
		Summary:           stringOr(payload["summary"], DefaultSummary),
		Risks:             normalizeRisks(payload["risks"]),
		FullIngredients:   ingredients,
		IngredientsDetail: details,
		Alternatives:      normalizeStrings(payload["alternatives"]),
	}
	confidence := normalizeConfidence(payload["confidence"])
	result.Confidence = &confidence
	return result
}

func declaredFailure(payload Payload) *models.CanonicalResult {
	message := stringOf(payload["error"])
	if strings.TrimSpace(message) == "" {
		message = DefaultErrorText
	}
	errorType := apperrors.ErrorTypeUnknown
	if t, ok := apperrors.ParseErrorType(stringOf(payload["error_type"])); ok {
		errorType = t
	}
	return models.Failed(message, string(errorType))
}

func normalizeIngredients(raw any) ([]string, []models.IngredientDetail) {
	names := make([]string, 0)
	var details []models.IngredientDetail

	for _, item := range asList(raw, splitIngredientString) {
		switch v := item.(type) {
		case map[string]any:
			name := stringOr(v["name"], stringOf(v))
			names = append(names, name)
			description := firstString(v, "description", "desc")
			if description != "" {
				details = append(details, models.IngredientDetail{Name: name, Description: description})
			}
		default:
			// null and "" keep their position as empty names
			names = append(names, strings.TrimSpace(stringOf(v)))
		}
	}
	return names, details
}

func normalizeRisks(raw any) []models.RiskItem {
	risks := make([]models.RiskItem, 0)
	for _, item := range asList(raw, nil) {
		switch v := item.(type) {
		case map[string]any:
			risks = append(risks, models.RiskItem{
				Level: CanonicalLevel(stringOf(v["level"])),
				Name:  stringOr(v["name"], stringOf(v)),
				Desc:  firstString(v, "desc", "description"),
			})
		default:
			risks = append(risks, models.RiskItem{Level: models.RiskLow, Name: stringOf(v)})
		}
	}
	return risks
}

var levelAliases = map[string]models.RiskLevel{
	"high":     models.RiskHigh,
	"moderate": models.RiskModerate,
	"medium":   models.RiskModerate,
	"low":      models.RiskLow,
	"高":        models.RiskHigh,
	"高风险":      models.RiskHigh,
	"中":        models.RiskModerate,
	"中等":       models.RiskModerate,
	"中风险":      models.RiskModerate,
	"低":        models.RiskLow,
	"低风险":      models.RiskLow,
}

var canonicalLevels = []string{"high", "moderate", "low"}

// CanonicalLevel maps a free-form risk level onto High, Moderate or Low.
// Matching is case-insensitive, ignores a trailing "risk" and tolerates small
// misspellings. Anything unrecognised is Low.
func CanonicalLevel(level string) models.RiskLevel {
	key := strings.ToLower(strings.TrimSpace(level))
	key = strings.TrimSpace(strings.TrimSuffix(key, "risk"))
	if key == "" {
		return models.RiskLow
	}
	if canonical, ok := levelAliases[key]; ok {
		return canonical
	}

	best, bestDistance := "", maxLevelDistance+1
	for _, candidate := range canonicalLevels {
		if d := levenshtein.Distance(key, candidate); d < bestDistance {
			best, bestDistance = candidate, d
		}
	}
	if best == "" {
		return models.RiskLow
	}
	return levelAliases[best]
}

func normalizeHealthScore(raw any) string {
	score := strings.ToUpper(strings.TrimSpace(stringOf(raw)))
	if score == "" {
		return DefaultHealthScore
	}
	if first := score[0]; first >= 'A' && first <= 'E' {
		return string(first)
	}
	return DefaultHealthScore
}

func normalizeConfidence(raw any) float64 {
	var value float64
	switch v := raw.(type) {
	case float64:
		value = v
	case int:
		value = float64(v)
	case int64:
		value = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return DefaultConfidence
		}
		value = f
	case string:
		s := strings.TrimSpace(v)
		percent := strings.HasSuffix(s, "%")
		f, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return DefaultConfidence
		}
		if percent {
			f /= 100
		}
		value = f
	default:
		return DefaultConfidence
	}

	if math.IsNaN(value) || math.IsInf(value, 0) {
		return DefaultConfidence
	}
	// Percentages such as 85 are read as 0.85
	if value > 1 && value <= 100 {
		value /= 100
	}
	return math.Max(0, math.Min(1, value))
}

func normalizeStrings(raw any) []string {
	out := make([]string, 0)
	for _, item := range asList(raw, nil) {
		if item == nil {
			continue
		}
		if s := strings.TrimSpace(stringOf(item)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// asList turns raw into a list. A bare string is split when split is set and
// otherwise treated as a single element.
func asList(raw any, split func(string) []string) []any {
	switch v := raw.(type) {
	case nil:
		return nil
	case []any:
		return v
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		if split == nil {
			return []any{v}
		}
		parts := split(v)
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return out
	default:
		return []any{v}
	}
}

func splitIngredientString(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '，' || r == '、' || r == ';' || r == '；'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func firstString(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := obj[key]; ok && v != nil {
			if s := strings.TrimSpace(stringOf(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

func stringOr(raw any, fallback string) string {
	if raw == nil {
		return fallback
	}
	if s := strings.TrimSpace(stringOf(raw)); s != "" {
		return s
	}
	return fallback
}

// stringOf renders any decoded value as text; objects and lists become JSON
func stringOf(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case map[string]any, []any:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	default:
		return fmt.Sprint(v)
	}
}

func truthy(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return strings.TrimSpace(v) != ""
	case float64:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}
