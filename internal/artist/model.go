package artist

import (
	"encoding/json"
	"time"
)

// CreatedVia records which path first created an artist profile.
type CreatedVia string

// Creation contexts.
const (
	CreatedManual       CreatedVia = "manual"
	CreatedTrackParsing CreatedVia = "track-parsing"
	CreatedEnrichment   CreatedVia = "enrichment"
)

// Profile is the canonical, deduplicated record for one artist. There is
// exactly one Profile per slug; all free-text mentions of an artist resolve
// to the same row.
type Profile struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Slug        string            `json:"slug"`
	ExternalIDs map[string]string `json:"external_ids,omitempty"`
	Genres      []string          `json:"genres,omitempty"`
	CreatedVia  CreatedVia        `json:"created_via"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// MarshalStringSlice encodes a string slice as a JSON array string.
func MarshalStringSlice(s []string) string {
	if s == nil {
		return "[]"
	}
	data, _ := json.Marshal(s)
	return string(data)
}

// UnmarshalStringSlice decodes a JSON array string into a string slice.
func UnmarshalStringSlice(data string) []string {
	if data == "" || data == "[]" {
		return nil
	}
	var result []string
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil
	}
	return result
}

// MarshalStringMap encodes a string map as a JSON object string.
func MarshalStringMap(m map[string]string) string {
	if m == nil {
		return "{}"
	}
	data, _ := json.Marshal(m)
	return string(data)
}

// UnmarshalStringMap decodes a JSON object string into a string map.
func UnmarshalStringMap(data string) map[string]string {
	if data == "" || data == "{}" {
		return nil
	}
	var result map[string]string
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil
	}
	return result
}
