// Package optimizer rewrites computation graphs before execution. Three
// passes are exposed behind a flag bitmask and always apply in a fixed
// sequence: operator fusion, dead-code elimination, memory-access
// optimization. Each pass is all-or-nothing; the first failing pass aborts
// the remaining ones.
package optimizer

import (
	"context"
	"fmt"

	"github.com/vk/etude/internal/ctxlog"
	"github.com/vk/etude/internal/graph"
	"github.com/vk/etude/internal/registry"
)

// Flags selects which passes Optimize applies.
type Flags uint32

const (
	// FlagFusion rewrites fusable adjacent operator pairs into one node.
	FlagFusion Flags = 1 << iota
	// FlagDeadCode removes nodes not reachable backward from declared outputs.
	FlagDeadCode
	// FlagMemory marks tensors whose lifetimes permit in-place reuse.
	FlagMemory
)

// FlagAll enables every pass.
const FlagAll = FlagFusion | FlagDeadCode | FlagMemory

// Optimize applies the selected passes in their fixed order. Running it
// again with the same flags on an already optimized graph is a no-op: no
// fusable pairs or unreachable nodes remain.
func Optimize(ctx context.Context, g *graph.Graph, reg *registry.Registry, flags Flags) error {
	if g == nil || reg == nil {
		return fmt.Errorf("%w: nil graph or registry", graph.ErrInvalidArgument)
	}
	logger := ctxlog.FromContext(ctx)

	if flags&FlagFusion != 0 {
		fused := fuseOperators(ctx, g, reg)
		logger.Debug("Fusion pass complete.", "fused", fused, "nodes", g.Len())
	}
	if flags&FlagDeadCode != 0 {
		removed := eliminateDeadCode(ctx, g)
		logger.Debug("Dead-code pass complete.", "removed", removed, "nodes", g.Len())
	}
	if flags&FlagMemory != 0 {
		marked, err := optimizeMemoryAccess(ctx, g)
		if err != nil {
			return err
		}
		logger.Debug("Memory-access pass complete.", "in_place", marked)
	}
	return nil
}
