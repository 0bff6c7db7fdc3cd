package extractor

import (
	"encoding/json"
	"strconv"
	"strings"
)

const (
	TypeUserFact   = "user_fact"
	TypeServerLore = "server_lore"
)

// Memory is one durable fact distilled from a conversation window.
// Immutable once produced.
type Memory struct {
	Content       string
	Type          string
	Importance    int
	SubjectUserId string
	Tags          []string
}

// RelationshipDelta is a signed sentiment adjustment toward one user,
// produced by the same extraction cycle as the memories.
type RelationshipDelta struct {
	UserId    string
	Delta     int
	Reasoning string
}

type Extraction struct {
	Memories []Memory
	Deltas   []RelationshipDelta
}

// flexString accepts a JSON string, a numeric literal where the model emitted
// a raw id, or null.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))

	if trimmed == "null" {
		*s = ""
		return nil
	}

	if strings.HasPrefix(trimmed, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}

	*s = flexString(trimmed)
	return nil
}

// flexInt accepts a JSON number or a signed integer encoded as text.
type flexInt int

func (n *flexInt) UnmarshalJSON(b []byte) error {
	trimmed := strings.Trim(strings.TrimSpace(string(b)), `"`)

	if trimmed == "null" || len(trimmed) == 0 {
		*n = 0
		return nil
	}

	trimmed = strings.TrimPrefix(trimmed, "+")

	if v, err := strconv.Atoi(trimmed); err == nil {
		*n = flexInt(v)
		return nil
	}

	if v, err := strconv.ParseFloat(trimmed, 64); err == nil {
		*n = flexInt(v)
		return nil
	}

	return nil
}

type wireMemory struct {
	Content       string       `json:"content"`
	Type          string       `json:"type"`
	Importance    flexInt      `json:"importance"`
	SubjectUserId flexString   `json:"subject_user_id"`
	Tags          []flexString `json:"tags"`
}

type wireUpdate struct {
	UserId         flexString `json:"user_id"`
	SentimentDelta flexInt    `json:"sentiment_delta"`
	Reasoning      string     `json:"reasoning"`
}

type wireExtraction struct {
	Memories            []wireMemory `json:"memories"`
	RelationshipUpdates []wireUpdate `json:"relationship_updates"`
}
