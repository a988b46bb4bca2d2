package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	appcfg "github.com/ideaflow/server/internal/config"
	"github.com/ideaflow/server/internal/pkg/metrics"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Gateway is a Completer bound to one provider and model. Every call is
// detached from the caller's cancellation, bounded by the configured timeout
// and guarded by the provider's circuit breaker. It never retries.
type Gateway struct {
	provider string
	model    string
	backend  backend
	initErr  error
	breaker  *gobreaker.CircuitBreaker
	timeout  time.Duration

	temperature float64
	maxTokens   int

	metrics *metrics.Collector
	logger  *zap.Logger
}

func (g *Gateway) Provider() string { return g.provider }
func (g *Gateway) Model() string    { return g.model }

func (g *Gateway) Complete(ctx context.Context, messages []Message, opts Options) (*Completion, error) {
	temperature := g.temperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	maxTokens := g.maxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}

	start := time.Now()
	if g.initErr != nil {
		g.fail(start, "unconfigured", g.initErr)
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, g.initErr)
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()

	type result struct {
		text   string
		tokens int
	}
	out, err := g.breaker.Execute(func() (interface{}, error) {
		text, tokens, err := g.backend.complete(callCtx, g.model, messages, temperature, maxTokens)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(text) == "" {
			return nil, errEmptyResponse
		}
		return result{text: text, tokens: tokens}, nil
	})
	if err != nil {
		outcome := "error"
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			outcome = "circuit_open"
		case errors.Is(callCtx.Err(), context.DeadlineExceeded):
			outcome = "timeout"
		}
		g.fail(start, outcome, err)
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	res := out.(result)
	tokens := res.tokens
	if tokens <= 0 {
		tokens = estimateTokens(messages, res.text)
	}
	g.metrics.ObserveCompletion(g.provider, g.model, "ok", time.Since(start), tokens)
	return &Completion{Text: res.text, TokensUsed: tokens, Provider: g.provider, Model: g.model}, nil
}

func (g *Gateway) fail(start time.Time, outcome string, err error) {
	elapsed := time.Since(start)
	g.metrics.ObserveCompletion(g.provider, g.model, outcome, elapsed, 0)
	g.logger.Warn("completion failed",
		zap.String("provider", g.provider),
		zap.String("model", g.model),
		zap.String("outcome", outcome),
		zap.Duration("duration", elapsed),
		zap.Error(err),
	)
}

// Set holds the per-stage gateways built from one AI config.
type Set struct {
	Title     *Gateway
	Dialogue  *Gateway
	Synthesis *Gateway
}

// NewSet builds gateways for the title, dialogue and synthesis stages.
// Stages routed to the same provider share its circuit breaker. A provider
// that cannot be constructed yields a gateway that fails every call, so the
// server still starts without credentials.
func NewSet(cfg appcfg.AIConfig, collector *metrics.Collector, logger *zap.Logger) *Set {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &factory{cfg: cfg, metrics: collector, logger: logger, breakers: map[string]*gobreaker.CircuitBreaker{}}
	return &Set{
		Title:     f.build(cfg.TitleModel),
		Dialogue:  f.build(cfg.DialogueModel),
		Synthesis: f.build(cfg.SynthesisModel),
	}
}

type factory struct {
	cfg     appcfg.AIConfig
	metrics *metrics.Collector
	logger  *zap.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func (f *factory) build(assignment *appcfg.AIModelAssignment) *Gateway {
	timeout := time.Duration(f.cfg.TimeoutSeconds) * time.Second
	g := &Gateway{
		timeout:     timeout,
		temperature: f.cfg.Temperature,
		maxTokens:   f.cfg.MaxTokens,
		metrics:     f.metrics,
		logger:      f.logger,
	}

	provider := selectAIProvider(f.cfg, assignment)
	if provider == nil {
		g.provider = "none"
		g.initErr = errors.New("no enabled AI provider configured")
		f.logger.Warn("AI provider unavailable", zap.Error(g.initErr))
		return g
	}

	g.provider = provider.ID
	g.model = strings.TrimSpace(provider.DefaultModel)
	if g.model == "" {
		g.model = defaultModelFor(provider.Type)
	}
	g.breaker = f.breakerFor(provider.ID)
	g.backend, g.initErr = newBackend(*provider, timeout)
	if g.initErr != nil {
		f.logger.Warn("AI provider unavailable", zap.String("provider", provider.ID), zap.Error(g.initErr))
	}
	return g
}

func (f *factory) breakerFor(providerID string) *gobreaker.CircuitBreaker {
	f.mu.Lock()
	defer f.mu.Unlock()

	if cb, ok := f.breakers[providerID]; ok {
		return cb
	}
	bc := f.cfg.Breaker
	logger := f.logger
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "completion:" + providerID,
		MaxRequests: bc.MaxRequests,
		Interval:    time.Duration(bc.IntervalSeconds) * time.Second,
		Timeout:     time.Duration(bc.TimeoutSeconds) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bc.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= bc.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	f.breakers[providerID] = cb
	return cb
}

// selectAIProvider resolves the assignment's provider, then the configured
// default provider id, then the first enabled provider. A model override on
// the assignment replaces the provider's default model.
func selectAIProvider(cfg appcfg.AIConfig, assignment *appcfg.AIModelAssignment) *appcfg.AIProvider {
	var providerID string
	var overrideModel string
	if assignment != nil {
		providerID = strings.TrimSpace(assignment.ProviderID)
		overrideModel = strings.TrimSpace(assignment.Model)
	}

	pick := func(provider appcfg.AIProvider) *appcfg.AIProvider {
		selected := provider
		if overrideModel != "" {
			selected.DefaultModel = overrideModel
		}
		return &selected
	}

	for _, id := range []string{providerID, strings.TrimSpace(cfg.Provider)} {
		if id == "" {
			continue
		}
		for _, provider := range cfg.Providers {
			if provider.Enabled && strings.TrimSpace(provider.ID) == id {
				return pick(provider)
			}
		}
	}

	for _, provider := range cfg.Providers {
		if provider.Enabled {
			return pick(provider)
		}
	}
	return nil
}
