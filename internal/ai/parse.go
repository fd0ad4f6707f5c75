package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

type assessment struct {
	OverallScore       float64
	SkillMatch         float64
	Experience         float64
	Reliability        float64
	Value              float64
	LocationAdvantage  float64
	SuccessProbability float64
	Strengths          []string
	Concerns           []string
	Recommendation     string
	MatchReason        string
}

// parseResponse extracts the first JSON object from raw model output. Missing
// numeric fields are NaN so the caller can fill them in.
func parseResponse(raw string) (*assessment, error) {
	object, ok := extractJSONObject(raw)
	if !ok {
		return nil, fmt.Errorf("%w: no json object in response", ErrParse)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(object), &data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	overall := coerceFloat(data["overallScore"])
	if math.IsNaN(overall) || math.IsInf(overall, 0) {
		return nil, fmt.Errorf("%w: overallScore is missing or not a number", ErrParse)
	}
	if overall < 0 || overall > 100 {
		return nil, fmt.Errorf("%w: overallScore %v", ErrOutOfRange, overall)
	}

	return &assessment{
		OverallScore:       overall,
		SkillMatch:         coerceFloat(data["skillMatch"]),
		Experience:         coerceFloat(data["experienceScore"]),
		Reliability:        coerceFloat(data["reliabilityScore"]),
		Value:              coerceFloat(data["valueScore"]),
		LocationAdvantage:  coerceFloat(data["locationAdvantage"]),
		SuccessProbability: coerceFloat(data["successProbability"]),
		Strengths:          coerceStrings(data["strengths"]),
		Concerns:           coerceStrings(data["concerns"]),
		Recommendation:     coerceString(data["recommendation"]),
		MatchReason:        coerceString(data["matchReason"]),
	}, nil
}

// extractJSONObject returns the first balanced {...} span that is valid JSON.
// Braces inside string literals are ignored.
func extractJSONObject(raw string) (string, bool) {
	for start := strings.IndexByte(raw, '{'); start != -1; {
		if end := matchBrace(raw, start); end != -1 {
			candidate := raw[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}

		next := strings.IndexByte(raw[start+1:], '{')
		if next == -1 {
			break
		}
		start += next + 1
	}
	return "", false
}

// matchBrace returns the index of the brace closing the one at start, or -1.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSuffix(strings.TrimSpace(val), "%")
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(trimmed), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

func coerceStrings(v any) []string {
	out := []string{}
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			if s := coerceString(item); s != "" {
				out = append(out, s)
			}
		}
	case string:
		if s := strings.TrimSpace(val); s != "" {
			out = append(out, s)
		}
	}
	return out
}
