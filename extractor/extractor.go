// Package extractor turns a flushed buffer snapshot into structured memory
// and relationship records via one language-model call, with tolerant parsing
// of the model's JSON output.
package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/w-h-a/recall/buffer"
	jsonrepair "github.com/w-h-a/recall/util/json_repair"
)

const extractionInstruction = `You analyze chat transcripts and extract durable memories. Respond with only a JSON object, no prose, in this shape:

{
  "memories": [
    {
      "content": "a single self-contained fact worth remembering",
      "type": "user_fact" or "server_lore",
      "importance": an integer from 1 (trivial) to 10 (critical, never forget),
      "subject_user_id": "the user id the fact is about, or null for server_lore",
      "tags": ["short", "topic", "tags"]
    }
  ],
  "relationship_updates": [
    {
      "user_id": "the user id",
      "sentiment_delta": "a signed integer like -2 or 3",
      "reasoning": "one short sentence"
    }
  ]
}

Use "user_fact" for facts about a specific person and "server_lore" for shared knowledge, running jokes, and community history. Only extract what is genuinely worth remembering; both arrays may be empty.`

type Extractor struct {
	options Options
}

// Extract formats the snapshot as a chronological transcript, issues one
// model call, and parses the response. A parse failure after repair drops the
// whole cycle: no partial output is ever returned.
func (e *Extractor) Extract(ctx context.Context, events []buffer.Event) (*Extraction, error) {
	if len(events) == 0 {
		return &Extraction{}, nil
	}

	transcript := Transcript(events)

	raw, err := e.options.Generator.Generate(ctx, extractionInstruction, transcript)
	if err != nil {
		return nil, fmt.Errorf("extraction model call: %w", err)
	}

	extraction, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("extraction parse (raw: %q): %w", raw, err)
	}

	return extraction, nil
}

// Transcript renders events in arrival order, one line per event:
// [2006-01-02 15:04] name (id) [bot]: content
func Transcript(events []buffer.Event) string {
	var b strings.Builder

	for _, event := range events {
		botTag := ""
		if event.Bot {
			botTag = " [bot]"
		}

		fmt.Fprintf(
			&b,
			"[%s] %s (%s)%s: %s\n",
			event.Timestamp.UTC().Format("2006-01-02 15:04"),
			event.AuthorName,
			event.AuthorId,
			botTag,
			event.Content,
		)
	}

	return b.String()
}

// Parse is the pure repair-then-parse pipeline: raw model text in, structured
// extraction or error out. No partial results on failure.
func Parse(raw string) (*Extraction, error) {
	repaired := jsonrepair.Repair(raw)

	if len(repaired) == 0 {
		return nil, errors.New("empty extraction response")
	}

	var wire wireExtraction
	if err := json.Unmarshal([]byte(repaired), &wire); err != nil {
		return nil, err
	}

	extraction := &Extraction{}

	for _, m := range wire.Memories {
		content := strings.TrimSpace(m.Content)
		if len(content) == 0 {
			continue
		}

		extraction.Memories = append(extraction.Memories, Memory{
			Content:       content,
			Type:          normalizeType(m.Type, string(m.SubjectUserId)),
			Importance:    clampImportance(int(m.Importance)),
			SubjectUserId: string(m.SubjectUserId),
			Tags:          normalizeTags(m.Tags),
		})
	}

	for _, u := range wire.RelationshipUpdates {
		userId := string(u.UserId)
		if len(userId) == 0 {
			continue
		}

		extraction.Deltas = append(extraction.Deltas, RelationshipDelta{
			UserId:    userId,
			Delta:     int(u.SentimentDelta),
			Reasoning: strings.TrimSpace(u.Reasoning),
		})
	}

	return extraction, nil
}

func normalizeType(memoryType string, subjectUserId string) string {
	switch memoryType {
	case TypeUserFact, TypeServerLore:
		return memoryType
	}
	if len(subjectUserId) > 0 {
		return TypeUserFact
	}
	return TypeServerLore
}

func clampImportance(importance int) int {
	if importance < 1 {
		return 1
	}
	if importance > 10 {
		return 10
	}
	return importance
}

func normalizeTags(tags []flexString) []string {
	out := make([]string, 0, len(tags))
	seen := map[string]struct{}{}

	for _, tag := range tags {
		t := strings.TrimSpace(string(tag))
		if len(t) == 0 {
			continue
		}
		if _, exists := seen[t]; exists {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	return out
}

func NewExtractor(opts ...Option) *Extractor {
	options := NewOptions(opts...)

	e := &Extractor{
		options: options,
	}

	return e
}
