package recommend

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
)

var (
	errNoObject             = errors.New("no balanced JSON object in response")
	errNoRecommendations    = errors.New("response has no recommendations array")
	errEmptyRecommendations = errors.New("recommendations array is empty")
)

// extractObject returns the first balanced {...} substring of s. Braces inside
// JSON string literals are not counted.
func extractObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", errNoObject
	}

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
				return s[start : i+1], nil
			}
		}
	}
	return "", errNoObject
}

type payload struct {
	Recommendations *[]map[string]json.RawMessage `json:"recommendations"`
}

// parseRecommendations validates a model response as a whole. Any structural
// problem rejects the entire response; entries are never partially accepted.
func parseRecommendations(text string) ([]Recommendation, error) {
	obj, err := extractObject(text)
	if err != nil {
		return nil, err
	}

	var p payload
	if err := json.Unmarshal([]byte(obj), &p); err != nil {
		return nil, fmt.Errorf("decode recommendations: %w", err)
	}
	if p.Recommendations == nil {
		return nil, errNoRecommendations
	}
	entries := *p.Recommendations
	if len(entries) == 0 {
		return nil, errEmptyRecommendations
	}

	batch := uuid.NewString()[:8]
	seen := make(map[string]struct{}, len(entries))
	out := make([]Recommendation, 0, len(entries))

	for i, fields := range entries {
		if fields == nil {
			return nil, fmt.Errorf("recommendation %d is not an object", i)
		}
		rec, err := normalize(i, fields)
		if err != nil {
			return nil, fmt.Errorf("recommendation %d: %w", i, err)
		}
		if _, dup := seen[rec.ID]; rec.ID == "" || dup {
			rec.ID = fmt.Sprintf("ai-%s-%d", batch, i)
		}
		seen[rec.ID] = struct{}{}
		out = append(out, rec)
	}
	return out, nil
}

func normalize(index int, fields map[string]json.RawMessage) (Recommendation, error) {
	var rec Recommendation

	typ, err := requiredString(fields, "type")
	if err != nil {
		return rec, err
	}
	rec.Type = Type(typ)
	if !rec.Type.Valid() {
		return rec, fmt.Errorf("unsupported type %q", typ)
	}

	if rec.Title, err = requiredString(fields, "title"); err != nil {
		return rec, err
	}
	if rec.Description, err = requiredString(fields, "description"); err != nil {
		return rec, err
	}

	if raw, ok := present(fields, "id"); ok {
		if err := json.Unmarshal(raw, &rec.ID); err != nil {
			return rec, errors.New("id must be a string")
		}
		rec.ID = strings.TrimSpace(rec.ID)
	}

	if raw, ok := present(fields, "duration"); ok {
		var d float64
		if err := json.Unmarshal(raw, &d); err != nil || d < 0 {
			return rec, errors.New("duration must be a non-negative number")
		}
		rec.Duration = &d
	}

	// Position is the default even past MaxPriority
	rec.Priority = index + 1
	if raw, ok := present(fields, "priority"); ok {
		var p float64
		if err := json.Unmarshal(raw, &p); err == nil && p == math.Trunc(p) && p >= MinPriority && p <= MaxPriority {
			rec.Priority = int(p)
		}
	}

	return rec, nil
}

// present returns the raw value of key unless it is missing or JSON null
func present(fields map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return nil, false
	}
	return raw, true
}

func requiredString(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := present(fields, key)
	if !ok {
		return "", fmt.Errorf("missing %s", key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%s must be a string", key)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%s must not be empty", key)
	}
	return s, nil
}
