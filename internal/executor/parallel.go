package executor

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/vk/etude/internal/ctxlog"
	"github.com/vk/etude/internal/graph"
	"github.com/vk/etude/internal/registry"
	"github.com/vk/etude/internal/tensor"
)

// parallelRun owns all mutable scheduling state for one RunParallel call:
// the ready queue, the completion accounting and the failure record. No
// state outlives the call.
type parallelRun struct {
	reg   *registry.Registry
	ready chan *graph.Node

	// nodeWG counts down once per node, whether the node ran or was written
	// off as unreachable after an upstream failure.
	nodeWG   sync.WaitGroup
	workerWG sync.WaitGroup

	mu       sync.Mutex
	firstErr error
	// accounted records nodes already written off by a failure cascade so a
	// second failure upstream cannot double-count them.
	accounted map[*graph.Node]bool
}

// RunParallel executes the graph on a fixed pool of workers. Each node
// holds an atomic count of unsatisfied predecessors; completing a node
// decrements its successors and pushes any that reach zero onto the
// buffered ready queue, which doubles as the wakeup signal. The call blocks
// until every node is accounted for, then joins all workers.
//
// With one worker this degenerates to a valid topological execution and,
// for pure operators, produces the same tensors as Run. A node failure
// marks that node Error and leaves its transitive dependents unscheduled in
// Ready state; the call then returns ErrRuntime.
func RunParallel(ctx context.Context, g *graph.Graph, reg *registry.Registry, inputs []*tensor.Tensor, workers int) ([]*tensor.Tensor, error) {
	logger := ctxlog.FromContext(ctx)
	// prepare sorts as a side effect, which also rejects cyclic graphs
	// before any worker starts.
	if err := prepare(g, reg, inputs); err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	r := &parallelRun{
		reg:       reg,
		ready:     make(chan *graph.Node, len(g.Nodes)),
		accounted: make(map[*graph.Node]bool),
	}
	r.nodeWG.Add(len(g.Nodes))

	seeded := 0
	for _, n := range g.Nodes {
		n.SetPendingDeps(int32(len(n.Inputs)))
		if len(n.Inputs) == 0 {
			r.ready <- n
			seeded++
		}
	}
	logger.Debug("Starting parallel execution.",
		"nodes", g.Len(), "workers", workers, "roots", seeded)

	r.workerWG.Add(workers)
	for i := 0; i < workers; i++ {
		go r.worker(ctx, i)
	}

	r.nodeWG.Wait()
	close(r.ready)
	r.workerWG.Wait()

	if r.firstErr != nil {
		return nil, r.firstErr
	}
	logger.Debug("Parallel execution complete.", "nodes", g.Len())
	return collectOutputs(g)
}

// worker is the processing loop of one pool member. It blocks on the ready
// queue until a node arrives or the queue closes after completion.
func (r *parallelRun) worker(ctx context.Context, id int) {
	defer r.workerWG.Done()
	logger := ctxlog.FromContext(ctx)

	for n := range r.ready {
		r.mu.Lock()
		skipped := r.accounted[n]
		r.mu.Unlock()
		if skipped {
			continue
		}

		if err := runNode(r.reg, n); err != nil {
			logger.Error("Node execution failed.",
				"worker", id, "node", n.Name, "op", n.OpType, "error", err)
			r.fail(n, fmt.Errorf("%w: node %q: %v", ErrRuntime, n.Name, err))
		} else {
			for _, succ := range n.Outputs {
				if succ.DecPendingDeps() == 0 {
					r.ready <- succ
				}
			}
		}
		r.nodeWG.Done()
	}
}

// fail marks the node Error, records the first root cause and writes off
// every transitive dependent: none of them will be scheduled, because the
// failed node never decrements their pending counts.
func (r *parallelRun) fail(n *graph.Node, err error) {
	n.State = graph.StateError
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.firstErr == nil {
		r.firstErr = err
	}
	r.writeOffDependentsLocked(n)
}

func (r *parallelRun) writeOffDependentsLocked(n *graph.Node) {
	for _, succ := range n.Outputs {
		if r.accounted[succ] {
			continue
		}
		r.accounted[succ] = true
		r.nodeWG.Done()
		r.writeOffDependentsLocked(succ)
	}
}
