package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/w-h-a/recall/relationship"
	"github.com/w-h-a/recall/store"
)

// FormatContext renders the three optional context sections. Empty sections
// are omitted; if nothing qualifies the result is the empty string and the
// caller injects no context at all.
func FormatContext(entry *relationship.Entry, userFacts []store.Record, serverLore []store.Record, now time.Time) string {
	var sections []string

	if entry != nil {
		name := entry.DisplayName
		if len(name) == 0 {
			name = entry.UserId
		}

		sections = append(sections, fmt.Sprintf(
			"Relationship with %s: affinity %+d over %d interactions, last interaction %s ago.",
			name,
			entry.Affinity,
			entry.Interactions,
			humanizeAge(now.Sub(entry.LastInteraction)),
		))
	}

	if len(userFacts) > 0 {
		var b strings.Builder
		b.WriteString("What I remember about this user:")
		for _, rec := range userFacts {
			b.WriteString("\n- " + rec.Content)
		}
		sections = append(sections, b.String())
	}

	if len(serverLore) > 0 {
		var b strings.Builder
		b.WriteString("Server lore:")
		for _, rec := range serverLore {
			b.WriteString("\n- " + rec.Content)
		}
		sections = append(sections, b.String())
	}

	if len(sections) == 0 {
		return ""
	}

	return strings.Join(sections, "\n\n")
}

func humanizeAge(age time.Duration) string {
	switch {
	case age < time.Minute:
		return "moments"
	case age < time.Hour:
		return fmt.Sprintf("%dm", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd", int(age.Hours()/24))
	}
}
