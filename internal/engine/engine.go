// Package engine is the buffer-oriented host API over the segmentation and
// routing engines.
//
// Every entry point writes one JSON value into a caller supplied buffer and
// returns the number of bytes written. Nothing panics out of an entry point:
// degenerate input yields the empty result and failures yield an error
// document.
package engine

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/copyleftdev/verdant/internal/metrics"
	"github.com/copyleftdev/verdant/internal/optimization/routing"
	"github.com/copyleftdev/verdant/internal/optimization/segmentation"
	"github.com/copyleftdev/verdant/internal/payload"
)

// DefaultTenant owns the centroids of calls that name no tenant.
const DefaultTenant = "default"

// Operation names used in logs and truncation metrics.
const (
	opClustering = "clustering"
	opRoute      = "route"
)

// tenantModel serializes access to one tenant's centroid state.
type tenantModel struct {
	mu    sync.Mutex
	model *segmentation.Model
}

// Engine owns one segmentation model per tenant and a route optimizer.
// It is safe for concurrent use.
type Engine struct {
	mu        sync.Mutex
	tenants   map[string]*tenantModel
	modelOpts []segmentation.Option

	optimizer *routing.Optimizer
	seed      func() int64

	logger  *zap.Logger
	metrics *metrics.Recorder
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder. A nil recorder discards metrics.
func WithMetrics(m *metrics.Recorder) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithOptimizer sets the route optimizer.
func WithOptimizer(o *routing.Optimizer) Option {
	return func(e *Engine) {
		if o != nil {
			e.optimizer = o
		}
	}
}

// WithSeedSource sets the source of route location seeds.
func WithSeedSource(seed func() int64) Option {
	return func(e *Engine) {
		if seed != nil {
			e.seed = seed
		}
	}
}

// WithModelOptions sets the options every new tenant model is created with.
func WithModelOptions(opts ...segmentation.Option) Option {
	return func(e *Engine) {
		e.modelOpts = append([]segmentation.Option(nil), opts...)
	}
}

// New creates an Engine. Without options it logs nothing, records no
// metrics, uses a single routing workspace and seeds routes from the wall
// clock.
func New(opts ...Option) *Engine {
	e := &Engine{
		tenants: make(map[string]*tenantModel),
		seed:    func() int64 { return time.Now().UnixNano() },
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.optimizer == nil {
		e.optimizer = routing.NewOptimizer(nil, routing.WithLogger(e.logger.Named("routing")))
	}
	return e
}

// Tenants returns the names of the tenants that have a model, sorted.
func (e *Engine) Tenants() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	names := make([]string, 0, len(e.tenants))
	for name := range e.tenants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// tenant returns the model of name, creating it from the seeds on first use.
func (e *Engine) tenant(name string) *tenantModel {
	if name == "" {
		name = DefaultTenant
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tenants[name]
	if !ok {
		t = &tenantModel{model: segmentation.NewModel(e.modelOpts...)}
		e.tenants[name] = t
		e.logger.Debug("tenant model created", zap.String("tenant", name))
	}
	return t
}

// write copies doc into dst and records a truncation if it did not fit.
func (e *Engine) write(op string, dst []byte, doc payload.Document) int {
	n, truncated := payload.WriteTo(dst, doc)
	if truncated {
		e.metrics.ObserveTruncation(op)
		e.logger.Debug("payload truncated",
			zap.String("operation", op),
			zap.Int("size", doc.Len()),
			zap.Int("capacity", len(dst)),
		)
	}
	return n
}

// recoverTo turns a panic in an entry point into the fallback payload. n and
// err point at the named results of the entry point; err may be nil.
func (e *Engine) recoverTo(op string, dst []byte, fallback payload.Document, n *int, err *error) {
	rec := recover()
	if rec == nil {
		return
	}
	e.logger.Error("engine panic recovered",
		zap.String("operation", op),
		zap.Any("panic", rec),
		zap.Stack("stack"),
	)
	if err != nil {
		*err = panicError(op)
	}
	*n = 0
	if len(dst) >= payload.MinBufferSize {
		*n = e.write(op, dst, fallback)
	}
}

func panicError(op string) error {
	return fmt.Errorf("%s failed", op)
}
