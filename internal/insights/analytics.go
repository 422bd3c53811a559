package insights

import (
	"time"

	"breeze/internal/domain"
)

// Analytics aggregates every recording for the dashboard. It is computed on
// demand and never persisted.
func Analytics(recordings []domain.Recording, now time.Time) domain.ConversationAnalytics {
	out := domain.ConversationAnalytics{
		TotalRecordings: len(recordings),
		CommonTopics:    []string{},
	}
	if len(recordings) == 0 {
		return out
	}

	weekAgo := now.AddDate(0, 0, -7)
	monthAgo := now.AddDate(0, 0, -30)

	totalSeconds := 0
	clientCounts := map[string]int{}
	var clientOrder []string
	var texts []string

	for _, recording := range recordings {
		totalSeconds += recording.Duration
		if recording.CreatedAt.After(weekAgo) {
			out.RecordingsThisWeek++
		}
		if recording.CreatedAt.After(monthAgo) {
			out.RecordingsThisMonth++
		}
		if recording.ClientName != "" {
			if _, seen := clientCounts[recording.ClientName]; !seen {
				clientOrder = append(clientOrder, recording.ClientName)
			}
			clientCounts[recording.ClientName]++
		}
		for _, segment := range recording.Transcript {
			texts = append(texts, segment.Text)
		}
		out.FollowUpActionsTotal += len(recording.FollowUpActions)
	}

	out.TotalDurationMinutes = float64(totalSeconds) / 60
	out.AverageDurationMins = out.TotalDurationMinutes / float64(len(recordings))

	best := 0
	for _, name := range clientOrder {
		if clientCounts[name] > best {
			best = clientCounts[name]
			out.TopClient = name
		}
	}

	out.CommonTopics = topWords(texts, maxKeywords)
	return out
}
