package llm

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/timmy/talentscore/internal/domain"
)

// FitThreshold is the score at or above which a profile counts as a fit
// when the model omits an explicit verdict.
const FitThreshold = 70.0

// ParseResult decodes raw model output into a ScoringResult.
// Parameters:
//   - raw: model text, optionally wrapped in ``` fences or surrounding prose.
// Returns:
//   - *domain.ScoringResult: decoded and validated result.
//   - error: *Error of kind malformed_response when the output is unusable.
func ParseResult(raw string) (*domain.ScoringResult, error) {
	cleaned := extractJSON(raw)
	if cleaned == "" {
		return nil, malformed("model returned no JSON object")
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, malformed("parse model output: %v", err)
	}

	if _, ok := data["overall_score"]; !ok {
		if alias, ok := data["score"]; ok {
			data["overall_score"] = alias
		}
	}
	if _, ok := data["overall_score"]; !ok {
		return nil, malformed("model output is missing overall_score")
	}

	var result domain.ScoringResult
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &result,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, malformed("build decoder: %v", err)
	}
	if err := decoder.Decode(data); err != nil {
		return nil, malformed("decode model output: %v", err)
	}

	if math.IsNaN(result.OverallScore) || result.OverallScore < 0 || result.OverallScore > 100 {
		return nil, malformed("overall_score %v is outside [0, 100]", result.OverallScore)
	}
	if _, ok := data["fit"]; !ok {
		result.Fit = result.OverallScore >= FitThreshold
	}
	result.Role = strings.ToLower(strings.TrimSpace(result.Role))
	result.Summary = strings.TrimSpace(result.Summary)

	return &result, nil
}

// extractJSON strips markdown fences and any prose around the outermost object.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end < start {
		return ""
	}
	return strings.TrimSpace(raw[start : end+1])
}
