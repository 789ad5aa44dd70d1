package optimizer

import (
	"context"
	"errors"

	"github.com/vk/etude/internal/ctxlog"
	"github.com/vk/etude/internal/graph"
	"github.com/vk/etude/internal/ops"
	"github.com/vk/etude/internal/registry"
)

// fusedPair keys the fusion table by the (upstream, downstream) op types.
type fusedPair struct {
	upstream   string
	downstream string
}

// fusionTable lists the adjacent pairs the pass knows how to collapse.
var fusionTable = map[fusedPair]string{
	{ops.OpLinear, ops.OpReLU}:   ops.OpLinearReLU,
	{ops.OpConv1D, ops.OpReLU}:   ops.OpConv1DReLU,
	{ops.OpSTFT, ops.OpMelScale}: ops.OpMelSpectrogram,
}

// fuseOperators collapses fusable pairs until no match remains, returning
// the number of fusions performed. A pair qualifies when the upstream node
// has exactly one successor, that successor has exactly one predecessor,
// the upstream is not a declared graph output, the downstream is in neither
// declared set, and the fused tag is registered. The
// upstream node survives with the fused tag; the downstream node's
// successors are re-parented onto it and the downstream node is removed and
// destroyed.
func fuseOperators(ctx context.Context, g *graph.Graph, reg *registry.Registry) int {
	logger := ctxlog.FromContext(ctx)
	fused := 0

	// The pass always invalidates the cached order, even when it finds
	// nothing to fuse; executors re-sort on demand.
	defer g.MarkMutated()

	for {
		up, down, tag := findFusablePair(g, reg)
		if up == nil {
			return fused
		}
		logger.Debug("Fusing adjacent pair.",
			"upstream", up.Name, "downstream", down.Name, "fused_op", tag)

		// The upstream node's old operator state no longer matches its tag.
		if up.OnDestroy != nil {
			up.OnDestroy(up)
			up.OnDestroy = nil
		}
		up.OpData = nil
		up.Prepared = false
		up.OpType = tag

		for _, succ := range append([]*graph.Node(nil), down.Outputs...) {
			_ = g.Disconnect(down, succ)
			if err := g.Connect(up, succ); err != nil && !errors.Is(err, graph.ErrDuplicateEdge) {
				// Connect only fails on nil or self edges, neither of which
				// can occur here; a duplicate just means the edge survived.
				logger.Warn("Unexpected connect failure during fusion.", "error", err)
			}
		}

		detached, err := g.RemoveNode(down)
		if err == nil {
			detached.Destroy()
		}
		g.MarkOptimized()
		fused++
	}
}

func findFusablePair(g *graph.Graph, reg *registry.Registry) (*graph.Node, *graph.Node, string) {
	for _, up := range g.Nodes {
		if len(up.Outputs) != 1 || up.IsGraphOutput {
			continue
		}
		down := up.Outputs[0]
		// A declared input or output node must survive by name: removing it
		// would change the graph's entry or exit arity.
		if len(down.Inputs) != 1 || down.IsGraphInput || down.IsGraphOutput {
			continue
		}
		tag, ok := fusionTable[fusedPair{up.OpType, down.OpType}]
		if !ok {
			continue
		}
		if _, registered := reg.Find(tag); !registered {
			continue
		}
		return up, down, tag
	}
	return nil, nil, ""
}
