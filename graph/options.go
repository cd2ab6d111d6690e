package graph

import "github.com/hambonesoftware/MIND/graph/emit"

// DefaultLoopBars is the length of the loop a session cycles through.
const DefaultLoopBars = 16

// Options configures Engine behavior.
//
// Zero values are valid; the engine substitutes defaults.
type Options struct {
	// Limits are the per-bar safety ceilings.
	Limits Limits

	// LoopBars is reported in every Response and used by Session to wrap the
	// bar index (default 16).
	LoopBars int

	// Metrics, when set, receives per-bar Prometheus metrics.
	Metrics *PrometheusMetrics

	// Emitter overrides the emitter passed to New.
	Emitter emit.Emitter
}

// Option is a functional option for configuring an Engine.
//
// Example:
//
//	engine, err := graph.New(compiler, emitter,
//	    graph.WithMaxNodeFirings(1024),
//	    graph.WithMaxTokens(2048),
//	)
type Option func(*engineConfig) error

// engineConfig collects options before they are applied to an Engine.
type engineConfig struct {
	opts Options
}

// WithOptions applies every non-zero field of opts. Later options override it.
func WithOptions(opts Options) Option {
	return func(cfg *engineConfig) error {
		if opts.Limits.MaxNodeFirings != 0 {
			cfg.opts.Limits.MaxNodeFirings = opts.Limits.MaxNodeFirings
		}
		if opts.Limits.MaxTokens != 0 {
			cfg.opts.Limits.MaxTokens = opts.Limits.MaxTokens
		}
		if opts.LoopBars != 0 {
			cfg.opts.LoopBars = opts.LoopBars
		}
		if opts.Metrics != nil {
			cfg.opts.Metrics = opts.Metrics
		}
		if opts.Emitter != nil {
			cfg.opts.Emitter = opts.Emitter
		}
		return nil
	}
}

// WithMaxNodeFirings sets how many tokens may be delivered to nodes in one bar.
//
// Default: 256. When the ceiling is reached the bar stops with a warning
// diagnostic and keeps the events produced so far.
func WithMaxNodeFirings(n int) Option {
	return func(cfg *engineConfig) error {
		if n < 1 {
			return &EngineError{Message: "max node firings must be positive", Code: "INVALID_OPTION"}
		}
		cfg.opts.Limits.MaxNodeFirings = n
		return nil
	}
}

// WithMaxTokens sets how many tokens may be created in one bar.
//
// Default: 512.
func WithMaxTokens(n int) Option {
	return func(cfg *engineConfig) error {
		if n < 1 {
			return &EngineError{Message: "max tokens must be positive", Code: "INVALID_OPTION"}
		}
		cfg.opts.Limits.MaxTokens = n
		return nil
	}
}

// WithLoopBars sets the loop length.
//
// Default: 16.
func WithLoopBars(n int) Option {
	return func(cfg *engineConfig) error {
		if n < 1 {
			return &EngineError{Message: "loop bars must be positive", Code: "INVALID_OPTION"}
		}
		cfg.opts.LoopBars = n
		return nil
	}
}

// WithMetrics enables Prometheus metrics collection.
//
// Example:
//
//	registry := prometheus.NewRegistry()
//	metrics := graph.NewPrometheusMetrics(registry)
//	engine, _ := graph.New(compiler, emitter, graph.WithMetrics(metrics))
//
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
func WithMetrics(metrics *PrometheusMetrics) Option {
	return func(cfg *engineConfig) error {
		cfg.opts.Metrics = metrics
		return nil
	}
}

// WithEmitter replaces the engine's emitter.
func WithEmitter(emitter emit.Emitter) Option {
	return func(cfg *engineConfig) error {
		cfg.opts.Emitter = emitter
		return nil
	}
}
