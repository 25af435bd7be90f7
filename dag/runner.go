package dag

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/agentflowhq/agentflow/logger"
)

var tracer = otel.Tracer("github.com/agentflowhq/agentflow/dag")

var errNoRoots = errors.New("plan has no root nodes")

// Runner executes a Plan. MaxConcurrency bounds how many nodes of a single
// frontier wave run at once; zero means unbounded, matching the teacher's
// convention for executeAll's Parallel strategy with no limit.
type Runner struct {
	MaxConcurrency int
}

// NewRunner returns a Runner with the given concurrency bound (0 = unbounded).
func NewRunner(maxConcurrency int) *Runner {
	return &Runner{MaxConcurrency: maxConcurrency}
}

// Execute runs plan to completion wave by wave, per spec §4.7:
//  1. Compute roots, seed each from initialInputs.
//  2. Repeatedly run every node whose predecessor has completed, concurrently.
//  3. On any node failure, stop advancing and return the first failure;
//     outputs collected so far are discarded.
//  4. Return once every node has produced an output.
func (r *Runner) Execute(ctx context.Context, plan *Plan, initialInputs map[string]any) (map[NodeID]any, error) {
	outputs := make(map[NodeID]any, len(plan.nodes))
	dependents := plan.dependents()
	frontier := plan.roots()
	if len(frontier) == 0 {
		return nil, &Error{kind: KindNode, cause: errNoRoots}
	}

	for len(frontier) > 0 {
		waveOutputs, err := r.runWave(ctx, plan, frontier, outputs, initialInputs)
		if err != nil {
			return nil, err
		}
		for id, out := range waveOutputs {
			outputs[id] = out
		}

		var next []NodeID
		for _, id := range frontier {
			next = append(next, dependents[id]...)
		}
		frontier = next
	}

	return outputs, nil
}

// runWave executes every node in frontier concurrently (bounded by
// MaxConcurrency), returning the map of newly produced outputs. On the
// first node failure the errgroup context is cancelled, so pending nodes
// in this wave observe ctx.Done() and exit early; per spec §5 that
// cancellation is best-effort, not a guarantee every handler stops
// immediately.
func (r *Runner) runWave(ctx context.Context, plan *Plan, frontier []NodeID, outputs map[NodeID]any, initialInputs map[string]any) (map[NodeID]any, error) {
	g, gctx := errgroup.WithContext(ctx)
	var sem *semaphore.Weighted
	if r.MaxConcurrency > 0 {
		sem = semaphore.NewWeighted(int64(r.MaxConcurrency))
	}

	var mu sync.Mutex
	results := make(map[NodeID]any, len(frontier))

	for _, id := range frontier {
		id := id
		n := plan.nodes[id]
		g.Go(func() error {
			if sem != nil {
				if err := sem.Acquire(gctx, 1); err != nil {
					return err
				}
				defer sem.Release(1)
			}

			in, err := plan.inputFor(n, initialInputs, outputs)
			if err != nil {
				return &Error{kind: KindNode, NodeID: id, cause: err}
			}

			spanCtx, span := tracer.Start(gctx, "dag.node", trace.WithAttributes(
				attribute.String("node.id", string(id)),
				attribute.Int("attempt", 1),
			))
			out, err := n.invoke(spanCtx, in)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				span.End()
				logger.Get(ctx).Error("dag node failed", "node_id", string(id), "error", err)
				return wrapNodeError(id, err)
			}
			span.End()
			logger.Get(ctx).Debug("dag node completed", "node_id", string(id))

			mu.Lock()
			results[id] = out
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func wrapNodeError(id NodeID, err error) error {
	if _, ok := err.(*TimeoutError); ok {
		return &Error{kind: KindTimeout, NodeID: id, cause: err}
	}
	return &Error{kind: KindNode, NodeID: id, cause: err}
}
