package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"textsum/internal/domain"
	"time"

	"github.com/sony/gobreaker"
)

const articleText = "Go is a programming language. It was designed at Google. " +
	"It is statically typed and compiled. It has garbage collection."

type stubTool struct {
	mu         sync.Mutex
	available  bool
	output     string
	err        error
	calls      int
	lastPrompt string
	probes     int
}

func (s *stubTool) Name() string {
	return "stub"
}

func (s *stubTool) Probe(_ context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes++

	return s.available
}

func (s *stubTool) Generate(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastPrompt = prompt

	return s.output, s.err
}

func (s *stubTool) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}

type sweepingStubTool struct {
	stubTool
	sweptAge time.Duration
}

func (s *sweepingStubTool) SweepStale(_ time.Time, olderThan time.Duration) (int, error) {
	s.sweptAge = olderThan

	return 2, nil
}

func newTestAdapter(t *testing.T, tool Tool, cfg AdapterConfig) *Adapter {
	t.Helper()

	return NewAdapter(context.Background(), tool, cfg, NewMetrics(nil), slog.Default())
}

func TestAdapterUsesFallbackWhenToolIsUnavailable(t *testing.T) {
	tool := &stubTool{available: false, output: "Summary: from tool"}
	a := newTestAdapter(t, tool, AdapterConfig{})

	if a.Available() {
		t.Fatalf("expected adapter to be unavailable")
	}

	got := a.Summarize(context.Background(), articleText, 10)
	if want := Extract(articleText, 10); got != want {
		t.Fatalf("unexpected summary: got %q want %q", got, want)
	}

	if calls := tool.callCount(); calls != 0 {
		t.Fatalf("expected tool not to be invoked, got %d calls", calls)
	}
}

func TestAdapterProbesOnlyOnce(t *testing.T) {
	tool := &stubTool{available: true, output: "Summary: ok"}
	a := newTestAdapter(t, tool, AdapterConfig{})

	for range 3 {
		a.Summarize(context.Background(), articleText, 10)
	}

	if tool.probes != 1 {
		t.Fatalf("expected a single probe, got %d", tool.probes)
	}
}

func TestAdapterWithNilToolUsesFallback(t *testing.T) {
	a := newTestAdapter(t, nil, AdapterConfig{})

	if a.ToolName() != "none" {
		t.Fatalf("unexpected tool name: %q", a.ToolName())
	}

	if got := a.Summarize(context.Background(), "A. B. C. D.", 2); got != "A. B." {
		t.Fatalf("unexpected summary: %q", got)
	}
}

func TestAdapterReturnsParsedToolOutput(t *testing.T) {
	tool := &stubTool{available: true, output: "loading model...\nSummary: Go is a compiled language.\n"}
	a := newTestAdapter(t, tool, AdapterConfig{})

	got := a.Summarize(context.Background(), articleText, 25)
	if got != "Go is a compiled language." {
		t.Fatalf("unexpected summary: %q", got)
	}

	if !strings.Contains(tool.lastPrompt, "approximately 25 words") {
		t.Fatalf("expected target words in prompt, got %q", tool.lastPrompt)
	}

	if !strings.Contains(tool.lastPrompt, articleText) {
		t.Fatalf("expected text in prompt, got %q", tool.lastPrompt)
	}

	if !strings.HasSuffix(tool.lastPrompt, SummaryMarker) {
		t.Fatalf("expected prompt to end with marker, got %q", tool.lastPrompt)
	}
}

func TestAdapterFallsBackWhenInvocationFails(t *testing.T) {
	tool := &stubTool{available: true, err: errors.New("exit status 1")}
	a := newTestAdapter(t, tool, AdapterConfig{})

	got := a.Summarize(context.Background(), articleText, 10)
	if want := Extract(articleText, 10); got != want {
		t.Fatalf("unexpected summary: got %q want %q", got, want)
	}

	if calls := tool.callCount(); calls != 1 {
		t.Fatalf("expected exactly one invocation without retry, got %d", calls)
	}
}

func TestAdapterReturnsSentinelForEmptyToolOutput(t *testing.T) {
	tool := &stubTool{available: true, output: "   \n"}
	a := newTestAdapter(t, tool, AdapterConfig{CacheSize: 8, CacheTTL: time.Hour})

	if got := a.Summarize(context.Background(), articleText, 10); got != FailedToGenerate {
		t.Fatalf("unexpected summary: %q", got)
	}

	a.Summarize(context.Background(), articleText, 10)
	if calls := tool.callCount(); calls != 2 {
		t.Fatalf("expected sentinel not to be cached, got %d calls", calls)
	}
}

func TestAdapterCachesToolSummaries(t *testing.T) {
	tool := &stubTool{available: true, output: "Summary: cached"}
	a := newTestAdapter(t, tool, AdapterConfig{CacheSize: 8, CacheTTL: time.Hour})

	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	ctx := context.Background()
	first := a.Summarize(ctx, articleText, 10)
	second := a.Summarize(ctx, articleText, 10)

	if first != "cached" || second != "cached" {
		t.Fatalf("unexpected summaries: %q, %q", first, second)
	}

	if calls := tool.callCount(); calls != 1 {
		t.Fatalf("expected one invocation, got %d", calls)
	}

	a.Summarize(ctx, articleText, 20)
	if calls := tool.callCount(); calls != 2 {
		t.Fatalf("expected another target to bypass cache, got %d calls", calls)
	}

	now = now.Add(2 * time.Hour)
	a.Summarize(ctx, articleText, 10)
	if calls := tool.callCount(); calls != 3 {
		t.Fatalf("expected expired entry to be regenerated, got %d calls", calls)
	}
}

func TestAdapterOpensBreakerAfterConsecutiveFailures(t *testing.T) {
	tool := &stubTool{available: true, err: errors.New("boom")}
	a := newTestAdapter(t, tool, AdapterConfig{BreakerFailures: 2, BreakerCooldown: time.Hour})

	ctx := context.Background()
	for range 5 {
		if got := a.Summarize(ctx, articleText, 10); got != Extract(articleText, 10) {
			t.Fatalf("unexpected summary: %q", got)
		}
	}

	if calls := tool.callCount(); calls != 2 {
		t.Fatalf("expected breaker to stop invocations after 2 failures, got %d calls", calls)
	}

	res := a.delegate(ctx, articleText, 10)
	if res.kind != outcomeBreakerOpen {
		t.Fatalf("expected breaker open outcome, got %s", res.kind)
	}
}

func TestAdapterFallsBackWhenContextIsCanceledWhileWaiting(t *testing.T) {
	tool := &stubTool{available: true, output: "Summary: never"}
	a := newTestAdapter(t, tool, AdapterConfig{MaxConcurrent: 1})

	if err := a.sem.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.sem.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := a.delegate(ctx, articleText, 10)
	if res.kind != outcomeInvocationFailed {
		t.Fatalf("expected invocation failure, got %s", res.kind)
	}

	if got := a.Summarize(ctx, articleText, 10); got != Extract(articleText, 10) {
		t.Fatalf("unexpected summary: %q", got)
	}

	if calls := tool.callCount(); calls != 0 {
		t.Fatalf("expected no invocation, got %d", calls)
	}
}

func TestAdapterUsesDefaultTargetWords(t *testing.T) {
	tool := &stubTool{available: true, output: "Summary: ok"}
	a := newTestAdapter(t, tool, AdapterConfig{DefaultTargetWords: 120})

	a.Summarize(context.Background(), articleText, 0)

	if !strings.Contains(tool.lastPrompt, "approximately 120 words") {
		t.Fatalf("expected default target words in prompt, got %q", tool.lastPrompt)
	}
}

func TestAdapterAlwaysReturnsNonEmptySummary(t *testing.T) {
	tools := []Tool{
		nil,
		&stubTool{available: false},
		&stubTool{available: true, err: errors.New("boom")},
		&stubTool{available: true, output: ""},
		&stubTool{available: true, output: "Summary: fine"},
	}

	for _, tool := range tools {
		a := newTestAdapter(t, tool, AdapterConfig{})

		for _, text := range []string{"x", "Hello world.", articleText, "..."} {
			for _, targetWords := range []int{1, 50, 500} {
				if got := a.Summarize(context.Background(), text, targetWords); got == "" {
					t.Fatalf("empty summary (tool = %s, text = %q, targetWords = %d)",
						a.ToolName(), text, targetWords)
				}
			}
		}
	}
}

func TestAdapterHousekeep(t *testing.T) {
	tool := &sweepingStubTool{stubTool: stubTool{available: true, output: "Summary: ok"}}
	a := newTestAdapter(t, tool, AdapterConfig{
		CacheSize:      8,
		CacheTTL:       time.Minute,
		StalePromptAge: time.Hour,
	})

	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }
	a.Summarize(context.Background(), articleText, 10)

	if got := a.cache.len(); got != 1 {
		t.Fatalf("expected one cached entry, got %d", got)
	}

	if err := a.Housekeep(context.Background(), now.Add(time.Hour)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := a.cache.len(); got != 0 {
		t.Fatalf("expected expired entry to be purged, got %d", got)
	}

	if tool.sweptAge != time.Hour {
		t.Fatalf("expected sweep with stale age, got %s", tool.sweptAge)
	}
}

type blockingTool struct {
	stubTool
	started chan struct{}
}

func (b *blockingTool) Generate(ctx context.Context, _ string) (string, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()

	b.started <- struct{}{}
	<-ctx.Done()

	return "", fmt.Errorf("run tool: %w", ctx.Err())
}

func TestAdapterCallerCancellationDoesNotOpenBreaker(t *testing.T) {
	tool := &blockingTool{stubTool: stubTool{available: true}, started: make(chan struct{})}
	a := newTestAdapter(t, tool, AdapterConfig{BreakerFailures: 2, BreakerCooldown: time.Hour})

	for range 3 {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-tool.started
			cancel()
		}()

		if got := a.Summarize(ctx, articleText, 10); got != Extract(articleText, 10) {
			t.Fatalf("unexpected summary: %q", got)
		}
		cancel()
	}

	if state := a.breaker.State(); state != gobreaker.StateClosed {
		t.Fatalf("expected breaker to stay closed, got %s", state)
	}

	if calls := tool.callCount(); calls != 3 {
		t.Fatalf("expected every call to reach the tool, got %d", calls)
	}
}

func TestAdapterReportsSummarySource(t *testing.T) {
	tests := []struct {
		name string
		tool Tool
		want domain.Source
	}{
		{name: "tool output", tool: &stubTool{available: true, output: "Summary: ok"}, want: domain.SourceTool},
		{name: "unavailable tool", tool: &stubTool{available: false}, want: domain.SourceFallback},
		{name: "failing tool", tool: &stubTool{available: true, err: errors.New("boom")}, want: domain.SourceFallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAdapter(t, tt.tool, AdapterConfig{})

			res := a.SummarizeResult(context.Background(), articleText, 10)
			if res.Source != tt.want {
				t.Fatalf("unexpected source: got %q want %q", res.Source, tt.want)
			}

			if res.Text == "" {
				t.Fatalf("expected non-empty summary")
			}
		})
	}
}
