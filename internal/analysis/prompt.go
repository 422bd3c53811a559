// Package analysis holds the pieces shared by every special point provider:
// transcript formatting, the extraction prompt, response parsing and the
// related-segment heuristic.
package analysis

import (
	"fmt"
	"strings"

	"breeze/internal/domain"
)

// FormatTranscript renders one "[15:04:05] SPEAKER: text" line per segment.
func FormatTranscript(segments []domain.Segment) string {
	var b strings.Builder
	for i, segment := range segments {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%s] %s: %s",
			segment.Timestamp.Format("15:04:05"),
			strings.ToUpper(string(segment.Speaker)),
			segment.Text)
	}
	return b.String()
}

// BuildPrompt renders the single user prompt sent to remote providers.
func BuildPrompt(recording domain.Recording) string {
	types := make([]string, 0, len(domain.SpecialPointTypes))
	for _, t := range domain.SpecialPointTypes {
		types = append(types, string(t))
	}

	var b strings.Builder
	b.WriteString("You are a business conversation analyst. Read the sales conversation transcript below ")
	b.WriteString("and extract the special points a small-business owner must act on.\n\n")
	fmt.Fprintf(&b, "Conversation: %s\n", safeString(recording.Title))
	if recording.ClientName != "" {
		fmt.Fprintf(&b, "Client: %s\n", recording.ClientName)
	}
	b.WriteString("\nTranscript:\n")
	b.WriteString(FormatTranscript(recording.Transcript))
	b.WriteString("\n\nReturn STRICT JSON ONLY: an array of objects with keys ")
	b.WriteString("type, title, description, context, importance, actionRequired, followUpNeeded, confidence.\n")
	b.WriteString("Rules:\n")
	fmt.Fprintf(&b, "- type must be one of: %s\n", strings.Join(types, ", "))
	b.WriteString("- importance must be one of: low, medium, high, critical\n")
	b.WriteString("- context must quote the transcript text the point is derived from\n")
	b.WriteString("- actionRequired and followUpNeeded are booleans\n")
	b.WriteString("- confidence is a number between 0 and 1\n")
	b.WriteString("- return [] when nothing qualifies; never invent facts")
	return b.String()
}

func safeString(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "-"
	}
	return v
}
