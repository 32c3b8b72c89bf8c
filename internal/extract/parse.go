package extract

import (
	"strings"

	"github.com/goccy/go-json"
)

const defaultFactType = "learned-pattern"

// ParseFacts applies the robustness rules to raw LLM output and
// returns the typed facts it found. A parse failure of any kind
// returns an empty slice rather than an error — extraction must never
// throw downstream.
func ParseFacts(raw string) []Fact {
	cleaned := stripFence(raw)

	var anyValue interface{}
	if err := json.Unmarshal([]byte(cleaned), &anyValue); err != nil {
		return nil
	}

	return factsFromValue(anyValue)
}

// stripFence removes a leading/trailing triple-backtick fence and an
// optional leading "json" language marker.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimPrefix(s, "\n")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func factsFromValue(v interface{}) []Fact {
	switch val := v.(type) {
	case []interface{}:
		return factsFromArray(val)
	case map[string]interface{}:
		for _, fv := range val {
			if arr, ok := fv.([]interface{}); ok {
				return factsFromArray(arr)
			}
		}
		return nil
	default:
		return nil
	}
}

func factsFromArray(arr []interface{}) []Fact {
	facts := make([]Fact, 0, len(arr))
	for _, item := range arr {
		switch v := item.(type) {
		case string:
			memory := strings.TrimSpace(v)
			if memory == "" {
				continue
			}
			facts = append(facts, Fact{Memory: memory, Type: defaultFactType})
		case map[string]interface{}:
			memory, _ := v["memory"].(string)
			memory = strings.TrimSpace(memory)
			if memory == "" {
				continue
			}
			factType, _ := v["type"].(string)
			factType = strings.TrimSpace(factType)
			if factType == "" {
				factType = defaultFactType
			}
			facts = append(facts, Fact{Memory: memory, Type: factType})
		}
	}
	return facts
}

// ParseIDs parses a raw JSON array of id strings, per the
// contradiction prompt's response shape. Any parse failure yields an
// empty slice.
func ParseIDs(raw string) []string {
	cleaned := stripFence(raw)
	var ids []string
	if err := json.Unmarshal([]byte(cleaned), &ids); err != nil {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}
