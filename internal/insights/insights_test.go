package insights

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"breeze/internal/domain"
)

func segments(texts ...string) []domain.Segment {
	out := make([]domain.Segment, 0, len(texts))
	for i, text := range texts {
		speaker := domain.SpeakerClient
		if i%2 == 1 {
			speaker = domain.SpeakerAgent
		}
		out = append(out, domain.Segment{ID: string(rune('a' + i)), Speaker: speaker, Text: text})
	}
	return out
}

func TestExtractKeywordsSkipsStopWordsAndShortWords(t *testing.T) {
	t.Parallel()

	got := ExtractKeywords(segments("the cat sat on the mat and the dog sat too"))
	if len(got) != 0 {
		t.Fatalf("expected no keywords, got %v", got)
	}
}

func TestExtractKeywordsOrdersByFrequencyThenFirstSeen(t *testing.T) {
	t.Parallel()

	got := ExtractKeywords(segments(
		"Pricing for organic coffee beans",
		"Organic certification matters; pricing too!",
		"Shipping, pricing and delivery windows",
	))
	want := []string{"pricing", "organic", "coffee", "beans", "certification"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected keywords: %v", got)
	}
}

func TestExtractKeywordsIsDeterministic(t *testing.T) {
	t.Parallel()

	input := segments("alpha bravo charlie delta", "echo foxtrot golf hotel", "alpha bravo")
	first := ExtractKeywords(input)
	for i := 0; i < 20; i++ {
		if again := ExtractKeywords(input); !reflect.DeepEqual(first, again) {
			t.Fatalf("keywords changed between calls: %v vs %v", first, again)
		}
	}
	if len(first) != 5 || first[0] != "alpha" || first[1] != "bravo" {
		t.Fatalf("unexpected keywords: %v", first)
	}
}

func TestSummaryEmptyTranscript(t *testing.T) {
	t.Parallel()

	if got := Summary(nil); got != EmptySummary {
		t.Fatalf("unexpected empty summary: %q", got)
	}
}

func TestSummaryCountsSpeakersAndTopics(t *testing.T) {
	t.Parallel()

	got := Summary(segments("We need organic certification", "Understood, I'll follow up"))
	if !strings.Contains(got, "2 segments") {
		t.Fatalf("summary missing segment count: %q", got)
	}
	if !strings.Contains(got, "1 from client, 1 from agent") {
		t.Fatalf("summary missing speaker counts: %q", got)
	}
	if !strings.Contains(got, "organic") {
		t.Fatalf("summary missing topics: %q", got)
	}
	if Summary(segments("We need organic certification", "Understood, I'll follow up")) != got {
		t.Fatalf("summary is not stable")
	}
}

func TestFollowUpActionsQuotesMatchingSegments(t *testing.T) {
	t.Parallel()

	long := "Please send " + strings.Repeat("x", 200)
	got := FollowUpActions(segments("hello there", "Understood, I'll follow up", long))
	if len(got) != 2 {
		t.Fatalf("expected 2 actions, got %v", got)
	}
	if !strings.Contains(got[0], "follow up") {
		t.Fatalf("unexpected first action: %q", got[0])
	}
	if strings.Contains(got[1], strings.Repeat("x", 100)) {
		t.Fatalf("quote was not truncated: %q", got[1])
	}
}

func TestFollowUpActionsKeepsEmbeddedQuotes(t *testing.T) {
	t.Parallel()

	got := FollowUpActions(segments(`He said "call back tomorrow"`))
	want := `Follow up on: "He said "call back tomorrow""`
	if len(got) != 1 || got[0] != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestFollowUpActionsCapsAtFive(t *testing.T) {
	t.Parallel()

	input := segments("schedule a", "schedule b", "schedule c", "schedule d", "schedule e", "schedule f")
	if got := FollowUpActions(input); len(got) != 5 {
		t.Fatalf("expected cap of 5, got %d", len(got))
	}
}

func TestAnalytics(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	recordings := []domain.Recording{
		{ClientName: "Acme", Duration: 120, CreatedAt: now.AddDate(0, 0, -1), FollowUpActions: []string{"a", "b"},
			Transcript: segments("organic certification timeline")},
		{ClientName: "Globex", Duration: 60, CreatedAt: now.AddDate(0, 0, -10),
			Transcript: segments("organic pricing")},
		{ClientName: "Globex", Duration: 0, CreatedAt: now.AddDate(0, 0, -40), FollowUpActions: []string{"c"}},
		{ClientName: "Acme", Duration: 0, CreatedAt: now.AddDate(0, 0, -2)},
	}

	got := Analytics(recordings, now)
	if got.TotalRecordings != 4 {
		t.Fatalf("unexpected total: %d", got.TotalRecordings)
	}
	if got.TotalDurationMinutes != 3 || got.AverageDurationMins != 0.75 {
		t.Fatalf("unexpected durations: %+v", got)
	}
	if got.RecordingsThisWeek != 2 || got.RecordingsThisMonth != 3 {
		t.Fatalf("unexpected windows: %+v", got)
	}
	if got.TopClient != "Acme" {
		t.Fatalf("expected first-seen tie winner Acme, got %q", got.TopClient)
	}
	if got.FollowUpActionsTotal != 3 {
		t.Fatalf("unexpected follow-up total: %d", got.FollowUpActionsTotal)
	}
	if len(got.CommonTopics) == 0 || got.CommonTopics[0] != "organic" {
		t.Fatalf("unexpected topics: %v", got.CommonTopics)
	}
}

func TestAnalyticsEmpty(t *testing.T) {
	t.Parallel()

	got := Analytics(nil, time.Now())
	if got.TotalRecordings != 0 || got.CommonTopics == nil {
		t.Fatalf("unexpected empty analytics: %+v", got)
	}
}
