package optimizer

import (
	"context"

	"github.com/vk/etude/internal/ctxlog"
	"github.com/vk/etude/internal/graph"
)

// optimizeMemoryAccess computes per-tensor lifetime windows from the
// topological positions and marks nodes whose output may reuse an input
// buffer in place. It changes no edges and removes no nodes; executors act
// on the marks. The pass depends on step numbers, so it re-sorts the graph
// first when the cached order is stale.
//
// A node's output tensor lives over [ExecOrder of its producer, max
// ExecOrder of its consumers]. The sole input of node n may be overwritten
// by n exactly when its window closes at n's step and n is its only
// consumer, so no sibling can observe the buffer afterwards or, in the
// parallel path, concurrently. Producers in the declared input or output
// sets are excluded: their buffers belong to the caller.
func optimizeMemoryAccess(ctx context.Context, g *graph.Graph) (int, error) {
	logger := ctxlog.FromContext(ctx)

	if !g.Sorted() {
		if err := g.TopologicalSort(); err != nil {
			return 0, err
		}
	}

	for _, n := range g.Nodes {
		n.ReuseInput = -1
	}

	marked := 0
	for _, n := range g.Nodes {
		if len(n.Inputs) != 1 || n.IsGraphInput {
			continue
		}
		producer := n.Inputs[0]
		if producer.IsGraphInput || producer.IsGraphOutput {
			continue
		}
		if lastUseStep(producer) != n.ExecOrder || len(producer.Outputs) != 1 {
			continue
		}
		n.ReuseInput = 0
		marked++
		logger.Debug("Marked in-place reuse.", "node", n.Name, "producer", producer.Name)
	}

	if marked > 0 {
		g.MarkOptimized()
	}
	// Step numbers consumed here are re-derivable; downstream callers must
	// sort again before relying on the order.
	g.MarkMutated()
	return marked, nil
}

// lastUseStep returns the closing bound of a producer's output lifetime
// window: the greatest topological position among its consumers, or its own
// position when nothing consumes it.
func lastUseStep(producer *graph.Node) int {
	last := producer.ExecOrder
	for _, consumer := range producer.Outputs {
		if consumer.ExecOrder > last {
			last = consumer.ExecOrder
		}
	}
	return last
}
