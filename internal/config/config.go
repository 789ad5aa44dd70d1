// Package config defines the parsed form of a model description: the node
// set, the edges between nodes, and the declared graph inputs and outputs.
// It is the contract between the HCL loader and the graph builder and holds
// no graph logic itself.
package config

import "github.com/hashicorp/hcl/v2"

// File is the root of one model description document.
type File struct {
	Model *Model `hcl:"model,block"`
}

// Model describes one computation graph. Inputs and Outputs name nodes
// from the Nodes list; the builder turns them into the graph's declared
// entry and exit sets.
type Model struct {
	Name    string   `hcl:"name,label"`
	Inputs  []string `hcl:"inputs,optional"`
	Outputs []string `hcl:"outputs,optional"`

	Nodes    []*Node    `hcl:"node,block"`
	Connects []*Connect `hcl:"connect,block"`
}

// Node declares one operation instance. Attributes stays an unevaluated
// expression here; the builder evaluates it into the opaque attribute value
// the owning operator decodes.
type Node struct {
	OpType string `hcl:"op,label"`
	Name   string `hcl:"name,label"`

	Attributes hcl.Expression `hcl:"attributes,optional"`
}

// Connect declares one directed edge between two named nodes.
type Connect struct {
	From string `hcl:"from"`
	To   string `hcl:"to"`
}
