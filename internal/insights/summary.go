package insights

import (
	"fmt"
	"strings"

	"breeze/internal/domain"
)

// EmptySummary is reported for recordings without any transcript.
const EmptySummary = "No conversation content recorded."

const (
	maxFollowUps       = 5
	followUpQuoteLimit = 100
)

var followUpPhrases = []string{
	"follow up",
	"follow-up",
	"schedule",
	"send",
	"call back",
	"email",
	"meeting",
	"next step",
	"confirm",
	"quote",
	"proposal",
	"contract",
	"deadline",
	"remind",
}

// Summary renders the fixed-template description of a transcript.
func Summary(segments []domain.Segment) string {
	if len(segments) == 0 {
		return EmptySummary
	}

	client, agent := domain.CountBySpeaker(segments)
	summary := fmt.Sprintf("Conversation with %d segments (%d from client, %d from agent).",
		len(segments), client, agent)

	if topics := ExtractKeywords(segments); len(topics) > 0 {
		summary += " Main topics discussed: " + strings.Join(topics, ", ") + "."
	}
	return summary
}

// FollowUpActions suggests one action per segment mentioning an action
// phrase, in transcript order, capped at five.
func FollowUpActions(segments []domain.Segment) []string {
	actions := make([]string, 0, maxFollowUps)
	for _, segment := range segments {
		if len(actions) == maxFollowUps {
			break
		}
		lower := strings.ToLower(segment.Text)
		for _, phrase := range followUpPhrases {
			if strings.Contains(lower, phrase) {
				actions = append(actions, "Follow up on: \"" + truncateRunes(segment.Text, followUpQuoteLimit) + "\"")
				break
			}
		}
	}
	return actions
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
