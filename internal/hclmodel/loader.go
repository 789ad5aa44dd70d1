// Package hclmodel loads HCL model descriptions and populates computation
// graphs from them, playing the role the binary model-format loader plays
// in the full engine. It goes through the graph package's public surface
// only, so a loaded graph is indistinguishable from a hand-built one.
package hclmodel

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/etude/internal/config"
	"github.com/vk/etude/internal/ctxlog"
)

// LoadFile parses and validates the model description at path.
func LoadFile(ctx context.Context, path string) (*config.Model, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("hclmodel: failed to parse %s: %w", path, diags)
	}
	return decode(ctx, file.Body, path)
}

// LoadBytes parses and validates an in-memory model description. The
// filename only labels diagnostics.
func LoadBytes(ctx context.Context, src []byte, filename string) (*config.Model, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("hclmodel: failed to parse %s: %w", filename, diags)
	}
	return decode(ctx, file.Body, filename)
}

func decode(ctx context.Context, body hcl.Body, name string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)

	var root config.File
	if diags := gohcl.DecodeBody(body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("hclmodel: failed to decode %s: %w", name, diags)
	}
	if root.Model == nil {
		return nil, fmt.Errorf("hclmodel: %s contains no model block", name)
	}

	if err := validate(root.Model); err != nil {
		return nil, fmt.Errorf("hclmodel: invalid model %q: %w", root.Model.Name, err)
	}
	logger.Debug("Model description loaded.",
		"model", root.Model.Name,
		"nodes", len(root.Model.Nodes),
		"edges", len(root.Model.Connects))
	return root.Model, nil
}

// validate checks referential integrity of the description: unique node
// names, edge endpoints that exist, and declared inputs/outputs that name
// real nodes.
func validate(m *config.Model) error {
	names := make(map[string]bool, len(m.Nodes))
	for _, n := range m.Nodes {
		if n.Name == "" || n.OpType == "" {
			return fmt.Errorf("node with empty name or op type")
		}
		if names[n.Name] {
			return fmt.Errorf("duplicate node name %q", n.Name)
		}
		names[n.Name] = true
	}

	for _, c := range m.Connects {
		if !names[c.From] {
			return fmt.Errorf("connect references unknown node %q", c.From)
		}
		if !names[c.To] {
			return fmt.Errorf("connect references unknown node %q", c.To)
		}
	}

	for _, in := range m.Inputs {
		if !names[in] {
			return fmt.Errorf("declared input %q is not a node", in)
		}
	}
	for _, out := range m.Outputs {
		if !names[out] {
			return fmt.Errorf("declared output %q is not a node", out)
		}
	}
	return nil
}
