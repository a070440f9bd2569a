/*
engine.go - Public entry points of the incentive engine

PURPOSE:
  Wires the resolver, gate, evaluator and aggregator together and exposes
  the two operations collaborators use:

    Evaluate(record, schemes) -> AggregateResult
    ResolveField(record, logicalName) -> (Value, ok)

FAILURE SEMANTICS:
  A scheme that fails (malformed configuration, or a panic while
  evaluating it) is dropped from the result list and reported through the
  drop hook and AggregateResult.Dropped. Evaluation of the remaining
  schemes always proceeds. Evaluate never returns an error.

CONCURRENCY:
  The engine holds no mutable state. EvaluateBatch evaluates records in
  parallel against a single SchemeSet snapshot, so a hot reload during a
  batch cannot mix configuration versions.

USAGE:
  eng := incentive.NewEngine(
      incentive.WithResolver(incentive.NewResolver(incentive.WithSuffixes("_A", "_B"))),
      incentive.WithLogger(log.StandardLogger()),
  )
  agg := eng.Evaluate(record, schemes)
*/
package incentive

import (
	"context"
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DropFunc receives schemes dropped during evaluation.
type DropFunc func(rec Record, dropped DroppedScheme)

// Engine evaluates records against schemes.
type Engine struct {
	resolver  *Resolver
	evaluator *Evaluator
	policy    TotalPolicy
	onDrop    DropFunc
	workers   int
}

// Option configures an Engine.
type Option func(*Engine)

// WithResolver sets the column resolver (alias suffixes and table).
func WithResolver(r *Resolver) Option {
	return func(e *Engine) { e.resolver = r }
}

// WithTotalPolicy selects the grand-total rule.
func WithTotalPolicy(p TotalPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithDropHook installs the diagnostic callback for dropped schemes.
func WithDropHook(fn DropFunc) Option {
	return func(e *Engine) { e.onDrop = fn }
}

// WithLogger logs dropped schemes at warn level.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(e *Engine) {
		e.onDrop = func(rec Record, d DroppedScheme) {
			logger.WithFields(logrus.Fields{
				"record":    rec.Key,
				"scheme_id": d.SchemeID,
				"reason":    d.Reason,
			}).Warn("scheme dropped from evaluation")
		}
	}
}

// WithWorkers bounds EvaluateBatch parallelism. Values < 1 use GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// NewEngine creates an engine. Defaults: DefaultSuffixes, ExcludeTiered.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{policy: ExcludeTiered}
	for _, opt := range opts {
		opt(e)
	}
	if e.resolver == nil {
		e.resolver = NewResolver()
	}
	if e.workers < 1 {
		e.workers = runtime.GOMAXPROCS(0)
	}
	e.evaluator = NewEvaluator(e.resolver)
	return e
}

// Resolver returns the engine's column resolver.
func (e *Engine) Resolver() *Resolver { return e.resolver }

// Policy returns the grand-total policy in use.
func (e *Engine) Policy() TotalPolicy { return e.policy }

// ResolveField exposes the resolver's lookup, including the matched column.
func (e *Engine) ResolveField(rec Record, logical string) (Value, bool) {
	return e.resolver.Resolve(rec, logical)
}

// Evaluate computes every scheme for one record and aggregates the results.
func (e *Engine) Evaluate(rec Record, schemes []SchemeDefinition) AggregateResult {
	results := make([]EvaluationResult, 0, len(schemes))
	var dropped []DroppedScheme

	for _, s := range schemes {
		res, err := e.evaluateOne(rec, s)
		if err != nil {
			d := DroppedScheme{SchemeID: s.ID, Reason: err.Error()}
			dropped = append(dropped, d)
			if e.onDrop != nil {
				e.onDrop(rec, d)
			}
			continue
		}
		if res == nil {
			continue // suppressed: not eligible
		}
		results = append(results, *res)
	}

	agg := Aggregate(results, e.policy)
	agg.RecordKey = rec.Key
	agg.Dropped = dropped
	return agg
}

// EvaluateSet evaluates one record against a snapshot.
func (e *Engine) EvaluateSet(rec Record, set *SchemeSet) AggregateResult {
	if set == nil {
		return e.Evaluate(rec, nil)
	}
	agg := e.Evaluate(rec, set.schemes)
	agg.SchemeVersion = set.version
	return agg
}

// EvaluateBatch evaluates records in parallel against one snapshot.
// Results keep the order of records. The only error is ctx cancellation.
func (e *Engine) EvaluateBatch(ctx context.Context, records []Record, set *SchemeSet) ([]AggregateResult, error) {
	out := make([]AggregateResult, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = e.EvaluateSet(records[i], set)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) evaluateOne(rec Record, s SchemeDefinition) (res *EvaluationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = malformed(s.ID, "panic during evaluation: %v", r)
		}
	}()
	return e.evaluator.Evaluate(rec, s)
}

// String is used in log lines.
func (d DroppedScheme) String() string {
	return fmt.Sprintf("%s: %s", d.SchemeID, d.Reason)
}
