package graph

// visitState tracks a node's DFS color during ordering and cycle checks.
type visitState uint8

const (
	white visitState = iota // unvisited
	gray                    // on the current DFS stack
	black                   // finished
)

// TopologicalSort computes and caches an execution order consistent with
// every edge: for each edge u->v, u is placed before v. Nodes are visited in
// insertion order so independent subgraphs order deterministically. On
// success every node's ExecOrder is assigned and Sorted becomes true; on a
// cycle the order is discarded, Sorted stays false and ErrCycleDetected is
// returned.
func (g *Graph) TopologicalSort() error {
	if g == nil {
		return ErrInvalidArgument
	}
	if len(g.Nodes) == 0 {
		g.execOrder = nil
		g.sorted = true
		return nil
	}

	state := make(map[*Node]visitState, len(g.Nodes))
	order := make([]*Node, len(g.Nodes))
	idx := len(g.Nodes) - 1 // filled back to front in postorder

	var visit func(n *Node) error
	visit = func(n *Node) error {
		switch state[n] {
		case gray:
			return ErrCycleDetected
		case black:
			return nil
		}
		state[n] = gray
		for _, succ := range n.Outputs {
			if err := visit(succ); err != nil {
				return err
			}
		}
		state[n] = black
		order[idx] = n
		idx--
		return nil
	}

	for _, n := range g.Nodes {
		if state[n] == white {
			if err := visit(n); err != nil {
				g.execOrder = nil
				g.sorted = false
				return err
			}
		}
	}

	for i, n := range order {
		n.ExecOrder = i
	}
	g.execOrder = order
	g.sorted = true
	return nil
}

// HasCycle runs the same DFS as TopologicalSort but discards the ordering
// and leaves the sorted flag untouched. Callers that only need validity use
// it as a cheap pre-check.
func (g *Graph) HasCycle() bool {
	if g == nil || len(g.Nodes) == 0 {
		return false
	}

	state := make(map[*Node]visitState, len(g.Nodes))

	var visit func(n *Node) bool
	visit = func(n *Node) bool {
		switch state[n] {
		case gray:
			return true
		case black:
			return false
		}
		state[n] = gray
		for _, succ := range n.Outputs {
			if visit(succ) {
				return true
			}
		}
		state[n] = black
		return false
	}

	for _, n := range g.Nodes {
		if state[n] == white && visit(n) {
			return true
		}
	}
	return false
}
