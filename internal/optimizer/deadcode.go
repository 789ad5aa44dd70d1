package optimizer

import (
	"context"

	"github.com/vk/etude/internal/ctxlog"
	"github.com/vk/etude/internal/graph"
)

// eliminateDeadCode removes every node not reachable by walking backward
// from the graph's declared output nodes along predecessor edges, returning
// the number of nodes removed. Forward reachability from the input set is
// irrelevant: a node feeding nothing that feeds an output is dead even if
// an input reaches it. A graph with no declared outputs is left alone,
// since there is nothing to judge liveness against.
func eliminateDeadCode(ctx context.Context, g *graph.Graph) int {
	logger := ctxlog.FromContext(ctx)

	// The pass always invalidates the cached order, even when it removes
	// nothing; executors re-sort on demand.
	defer g.MarkMutated()

	if len(g.OutputNodes) == 0 {
		logger.Debug("Dead-code pass skipped: no declared outputs.")
		return 0
	}

	reachable := make(map[*graph.Node]bool, len(g.Nodes))
	stack := append([]*graph.Node(nil), g.OutputNodes...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reachable[n] {
			continue
		}
		reachable[n] = true
		stack = append(stack, n.Inputs...)
	}

	var dead []*graph.Node
	for _, n := range g.Nodes {
		if !reachable[n] {
			dead = append(dead, n)
		}
	}

	for _, n := range dead {
		logger.Debug("Removing dead node.", "node", n.Name, "op", n.OpType)
		detached, err := g.RemoveNode(n)
		if err != nil {
			continue
		}
		detached.Destroy()
	}
	if len(dead) > 0 {
		g.MarkOptimized()
	}
	return len(dead)
}
