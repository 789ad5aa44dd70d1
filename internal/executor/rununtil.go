package executor

import (
	"context"
	"fmt"

	"github.com/vk/etude/internal/ctxlog"
	"github.com/vk/etude/internal/graph"
	"github.com/vk/etude/internal/registry"
	"github.com/vk/etude/internal/tensor"
)

// RunUntil executes the topological prefix of the graph that ends at the
// target node, inclusive, and returns the target's output tensor. Nodes
// ordered after the target are left in Ready state; a later Run picks them
// up from scratch. Used for debugging partial pipelines and for probing an
// intermediate tensor without paying for the full graph.
func RunUntil(ctx context.Context, g *graph.Graph, reg *registry.Registry, inputs []*tensor.Tensor, target *graph.Node) (*tensor.Tensor, error) {
	logger := ctxlog.FromContext(ctx)
	if target == nil {
		return nil, fmt.Errorf("%w: nil target node", graph.ErrInvalidArgument)
	}
	if err := prepare(g, reg, inputs); err != nil {
		return nil, err
	}

	owned := false
	for _, n := range g.Nodes {
		if n == target {
			owned = true
			break
		}
	}
	if !owned {
		return nil, fmt.Errorf("%w: target node %q is not in the graph",
			graph.ErrInvalidArgument, target.Name)
	}

	for _, n := range g.ExecOrder() {
		if err := runNode(reg, n); err != nil {
			n.State = graph.StateError
			logger.Error("Node execution failed.", "node", n.Name, "op", n.OpType, "error", err)
			return nil, fmt.Errorf("%w: node %q: %v", ErrRuntime, n.Name, err)
		}
		if n == target {
			break
		}
	}

	if len(target.OutputTensors) == 0 || target.OutputTensors[0] == nil {
		return nil, fmt.Errorf("%w: target node %q produced no tensor", ErrRuntime, target.Name)
	}
	return target.OutputTensors[0], nil
}
