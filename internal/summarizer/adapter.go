package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"textsum/internal/domain"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/semaphore"
)

const (
	defaultMaxConcurrent    int64  = 1
	defaultBreakerFailures  uint32 = 3
	defaultBreakerCooldown         = time.Minute
	breakerHalfOpenRequests uint32 = 1
)

type AdapterConfig struct {
	MaxConcurrent      int64
	BreakerFailures    uint32
	BreakerCooldown    time.Duration
	CacheSize          int
	CacheTTL           time.Duration
	DefaultTargetWords int
	StalePromptAge     time.Duration
}

type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeToolUnavailable
	outcomeInvocationFailed
	outcomeBreakerOpen
)

func (k outcomeKind) String() string {
	switch k {
	case outcomeSuccess:
		return "success"
	case outcomeToolUnavailable:
		return "tool_unavailable"
	case outcomeInvocationFailed:
		return "invocation_failed"
	case outcomeBreakerOpen:
		return "breaker_open"
	default:
		return "unknown"
	}
}

type outcome struct {
	kind outcomeKind
	text string
	err  error
}

type staleSweeper interface {
	SweepStale(now time.Time, olderThan time.Duration) (int, error)
}

// Adapter summarizes text with an external tool and falls back to Extract
// whenever the tool is unavailable or fails. Tool availability is probed
// once in NewAdapter and never re-evaluated.
type Adapter struct {
	tool               Tool
	available          bool
	breaker            *gobreaker.CircuitBreaker
	sem                *semaphore.Weighted
	cache              *summaryCache
	defaultTargetWords int
	stalePromptAge     time.Duration
	metrics            *Metrics
	now                func() time.Time
	log                *slog.Logger
}

// NewAdapter probes tool and builds an adapter around it. A nil tool is
// treated as unavailable.
func NewAdapter(
	ctx context.Context,
	tool Tool,
	cfg AdapterConfig,
	metrics *Metrics,
	log *slog.Logger,
) *Adapter {
	if log == nil {
		log = slog.Default()
	}

	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	if cfg.BreakerFailures < 1 {
		cfg.BreakerFailures = defaultBreakerFailures
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = defaultBreakerCooldown
	}
	if cfg.DefaultTargetWords <= 0 {
		cfg.DefaultTargetWords = DefaultTargetWords
	}

	a := &Adapter{
		tool:               tool,
		sem:                semaphore.NewWeighted(cfg.MaxConcurrent),
		cache:              newSummaryCache(cfg.CacheSize, cfg.CacheTTL),
		defaultTargetWords: cfg.DefaultTargetWords,
		stalePromptAge:     cfg.StalePromptAge,
		metrics:            metrics,
		now:                time.Now,
		log:                log.With("component", "summarizer"),
	}

	a.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        a.ToolName(),
		MaxRequests: breakerHalfOpenRequests,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// A caller giving up says nothing about the tool's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			a.log.WarnContext(ctx, "Tool circuit breaker changed state",
				"tool", name,
				"from", from.String(),
				"to", to.String())
			a.metrics.setBreakerState(name, float64(to))
		},
	})

	if tool != nil {
		a.available = tool.Probe(ctx)
	}
	a.metrics.setToolAvailable(a.ToolName(), a.available)

	if a.available {
		a.log.InfoContext(ctx, "Summarization tool is available",
			"tool", a.ToolName(),
			"maxConcurrent", cfg.MaxConcurrent)
	} else {
		a.log.WarnContext(ctx, "Summarization tool is unavailable so fallback will be used",
			"tool", a.ToolName())
	}

	return a
}

// Available reports the cached result of the startup probe.
func (a *Adapter) Available() bool {
	return a.available
}

func (a *Adapter) ToolName() string {
	if a.tool == nil {
		return "none"
	}

	return a.tool.Name()
}

// Summarize always returns a non-empty summary. Tool failures are logged and
// answered with the extractive fallback. A non-positive targetWords is
// replaced with the configured default.
func (a *Adapter) Summarize(ctx context.Context, text string, targetWords int) string {
	return a.SummarizeResult(ctx, text, targetWords).Text
}

// SummarizeResult is Summarize that also reports which path produced the text.
func (a *Adapter) SummarizeResult(ctx context.Context, text string, targetWords int) domain.SummaryResult {
	if targetWords <= 0 {
		targetWords = a.defaultTargetWords
	}

	res := a.delegate(ctx, text, targetWords)

	switch res.kind {
	case outcomeSuccess:
		a.metrics.observeSummary(pathTool, res.kind)

		return domain.SummaryResult{Text: res.text, Source: domain.SourceTool}
	case outcomeToolUnavailable:
		a.log.DebugContext(ctx, "Tool is unavailable so fallback is used",
			"tool", a.ToolName(),
			"targetWords", targetWords)
	default:
		a.log.WarnContext(ctx, "Tool invocation failed so fallback will be used",
			"error", res.err,
			"tool", a.ToolName(),
			"outcome", res.kind.String(),
			"targetWords", targetWords)
	}

	a.metrics.observeSummary(pathFallback, res.kind)

	return domain.SummaryResult{Text: Extract(text, targetWords), Source: domain.SourceFallback}
}

func (a *Adapter) delegate(ctx context.Context, text string, targetWords int) outcome {
	if !a.available {
		return outcome{kind: outcomeToolUnavailable}
	}

	key := summaryCacheKey(text, targetWords)
	if summary, ok := a.cache.get(key, a.now()); ok {
		a.metrics.observeCacheHit()

		return outcome{kind: outcomeSuccess, text: summary}
	}

	if err := a.sem.Acquire(ctx, 1); err != nil {
		return outcome{kind: outcomeInvocationFailed, err: fmt.Errorf("acquire invocation slot: %w", err)}
	}
	defer a.sem.Release(1)

	prompt := buildPrompt(text, targetWords)
	start := time.Now()

	raw, err := a.breaker.Execute(func() (any, error) {
		return a.tool.Generate(ctx, prompt)
	})
	a.metrics.observeInvocation(a.ToolName(), time.Since(start), err)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return outcome{kind: outcomeBreakerOpen, err: err}
		}

		return outcome{kind: outcomeInvocationFailed, err: fmt.Errorf("generate: %w", err)}
	}

	output, ok := raw.(string)
	if !ok {
		return outcome{kind: outcomeInvocationFailed, err: fmt.Errorf("unexpected tool output type %T", raw)}
	}

	summary := ParseOutput(output)
	if summary != FailedToGenerate {
		a.cache.put(key, summary, a.now())
	}

	return outcome{kind: outcomeSuccess, text: summary}
}

// Housekeep purges expired cache entries and, for tools that exchange
// files, removes prompt files older than the configured stale age.
func (a *Adapter) Housekeep(ctx context.Context, now time.Time) error {
	purged := a.cache.purgeExpired(now)

	var errs []error
	swept := 0

	if sweeper, ok := a.tool.(staleSweeper); ok && a.stalePromptAge > 0 {
		n, err := sweeper.SweepStale(now, a.stalePromptAge)
		if err != nil {
			errs = append(errs, fmt.Errorf("sweep stale prompt files: %w", err))
		}
		swept = n
	}

	a.log.DebugContext(ctx, "Housekeeping is done",
		"purgedCacheEntries", purged,
		"cachedEntries", a.cache.len(),
		"sweptPromptFiles", swept)

	return errors.Join(errs...)
}
