package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"breeze/internal/config"
	"breeze/internal/domain"
	"breeze/internal/metrics"
)

func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("BREEZE_DB_PATH", filepath.Join(home, "data", "breeze.sqlite"))
	t.Setenv("BREEZE_LOG_LEVEL", "error")
	t.Setenv("DEEPGRAM_API_KEY", "test-key")
	return home
}

func TestBuildSuccess(t *testing.T) {
	isolateEnv(t)

	services, err := Build(context.Background(), noopEventSink{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer services.Close()

	if services.Controller == nil || services.Orchestrator == nil {
		t.Fatalf("expected controller and orchestrator")
	}
	if services.watcher != nil {
		t.Fatalf("no settings file configured, watcher should be off")
	}

	settings := services.Settings.Load(context.Background())
	if settings.Provider != domain.ProviderLocal {
		t.Fatalf("expected local provider default, got %q", settings.Provider)
	}

	list, err := services.Recordings.List(context.Background())
	if err != nil || len(list) != 0 {
		t.Fatalf("expected an empty store, got %d (%v)", len(list), err)
	}
}

func TestBuildFailsOnInvalidRules(t *testing.T) {
	home := isolateEnv(t)
	path := filepath.Join(home, "bad.rules")
	if err := os.WriteFile(path, []byte("not a valid rule\n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	t.Setenv("BREEZE_RULES_FILE", path)

	if _, err := Build(context.Background(), noopEventSink{}); err == nil {
		t.Fatalf("expected build error due to invalid rules")
	}
}

func TestBuildSyncsSettingsFile(t *testing.T) {
	home := isolateEnv(t)
	path := filepath.Join(home, "analysis.yaml")
	if err := os.WriteFile(path, []byte("provider: openai\napi_key: sk-test\nconfidence_threshold: 0.4\n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	t.Setenv("BREEZE_SETTINGS_FILE", path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	services, err := Build(ctx, noopEventSink{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer services.Close()

	if services.watcher == nil {
		t.Fatalf("expected settings watcher")
	}
	settings := services.Settings.Load(ctx)
	if settings.Provider != domain.ProviderOpenAI || settings.ConfidenceThreshold != 0.4 {
		t.Fatalf("settings file not applied: %+v", settings)
	}
}

func TestProviderRegistryResolvesAllProviders(t *testing.T) {
	isolateEnv(t)

	services, err := Build(context.Background(), noopEventSink{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer services.Close()

	registry := providerRegistry(services.Config.Analysis, services.Metrics, services.Log)
	for _, name := range []domain.ProviderName{domain.ProviderLocal, domain.ProviderOpenAI, domain.ProviderAnthropic} {
		provider, err := registry.Resolve(domain.AnalysisSettings{Provider: name, APIKey: "k", Model: "m"})
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if provider.Name() != string(name) {
			t.Fatalf("expected %s, got %s", name, provider.Name())
		}
	}
}

func TestProviderRegistryUsesProviderDefaultModel(t *testing.T) {
	t.Parallel()

	models := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		models <- req.Model
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"type": "text", "text": "[]"}},
		})
	}))
	defer server.Close()

	logger, _ := logtest.NewNullLogger()
	registry := providerRegistry(config.AnalysisConfig{AnthropicBaseURL: server.URL}, metrics.New(), logger)
	provider, err := registry.Resolve(domain.AnalysisSettings{Provider: domain.ProviderAnthropic, APIKey: "k"}.Normalize())
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if _, err := provider.Analyze(context.Background(), domain.Recording{ID: "r1", Transcript: []domain.Segment{{ID: "s1", Text: "hello"}}}); err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if got := <-models; got != "claude-3-5-haiku-latest" {
		t.Fatalf("anthropic request sent model %q", got)
	}
}

func TestProviderRegistryCountsInvalidPoints(t *testing.T) {
	t.Parallel()

	reply := `[{"type":"objection","title":"Price"},{"type":"weather","title":"Rain"},{"confidence":3}]`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": reply}}},
		})
	}))
	defer server.Close()

	m := metrics.New()
	logger, _ := logtest.NewNullLogger()
	registry := providerRegistry(config.AnalysisConfig{OpenAIBaseURL: server.URL}, m, logger)
	provider, err := registry.Resolve(domain.AnalysisSettings{Provider: domain.ProviderOpenAI, APIKey: "k"}.Normalize())
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	points, err := provider.Analyze(context.Background(), domain.Recording{ID: "r1", Transcript: []domain.Segment{{ID: "s1", Text: "too pricey"}}})
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected one valid point, got %+v", points)
	}
	if got := testutil.ToFloat64(m.PointsDropped.WithLabelValues(metrics.DropInvalid)); got != 2 {
		t.Fatalf("expected 2 invalid points counted, got %v", got)
	}
}

type noopEventSink struct{}

func (noopEventSink) SessionStateChanged(domain.SessionState, domain.SessionStateReason) {}
func (noopEventSink) PartialTranscript(string)                                           {}
func (noopEventSink) SegmentAppended(string, domain.Segment)                             {}
func (noopEventSink) Tick(string, int)                                                   {}
func (noopEventSink) RecordingUpdated(domain.Recording)                                  {}
func (noopEventSink) SessionError(domain.ErrorCode, string)                              {}

