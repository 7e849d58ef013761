package extraction

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// jsonObject spans from the first '{' to the last '}' so that nested objects
// and surrounding prose or code fences are tolerated.
var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// extractJSONObject finds the JSON object embedded in free model text and
// decodes it. It returns ErrNoJSON when there is no candidate region.
func extractJSONObject(text string) (map[string]any, error) {
	region := jsonObject.FindString(text)
	if region == "" {
		return nil, ErrNoJSON
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(region), &m); err != nil {
		return nil, fmt.Errorf("parse model JSON: %w", err)
	}
	return m, nil
}
