package hclmodel

import (
	"context"
	"fmt"

	"github.com/vk/etude/internal/config"
	"github.com/vk/etude/internal/ctxlog"
	"github.com/vk/etude/internal/graph"
	"github.com/vk/etude/internal/tensor"
)

// BuildGraph populates a computation graph from a validated model
// description. Attribute expressions are evaluated statically here; the
// resulting values stay opaque to the graph and are decoded by each
// operator's Create at execute time.
func BuildGraph(ctx context.Context, m *config.Model, pool *tensor.Pool) (*graph.Graph, error) {
	logger := ctxlog.FromContext(ctx)
	if m == nil {
		return nil, fmt.Errorf("%w: nil model", graph.ErrInvalidArgument)
	}

	g := graph.New(len(m.Nodes), pool)
	g.Name = m.Name

	byName := make(map[string]*graph.Node, len(m.Nodes))
	for _, def := range m.Nodes {
		n, err := graph.NewNode(def.Name, def.OpType, pool)
		if err != nil {
			return nil, err
		}
		if def.Attributes != nil {
			val, diags := def.Attributes.Value(nil)
			if diags.HasErrors() {
				return nil, fmt.Errorf("hclmodel: attributes of node %q: %w", def.Name, diags)
			}
			n.Attrs = val
		}
		if err := g.AddNode(n); err != nil {
			return nil, err
		}
		byName[def.Name] = n
	}

	for _, c := range m.Connects {
		if err := g.Connect(byName[c.From], byName[c.To]); err != nil {
			return nil, fmt.Errorf("hclmodel: connect %s -> %s: %w", c.From, c.To, err)
		}
	}

	for _, name := range m.Inputs {
		g.MarkInput(byName[name])
	}
	for _, name := range m.Outputs {
		g.MarkOutput(byName[name])
	}

	logger.Debug("Graph populated from model description.",
		"model", m.Name, "nodes", g.Len(),
		"inputs", len(g.InputNodes), "outputs", len(g.OutputNodes))
	return g, nil
}
