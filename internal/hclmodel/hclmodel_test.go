package hclmodel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/etude/internal/executor"
	"github.com/vk/etude/internal/ops"
	"github.com/vk/etude/internal/registry"
	"github.com/vk/etude/internal/tensor"
)

const validModel = `
model "tts" {
  inputs  = ["source"]
  outputs = ["act"]

  node "input" "source" {}

  node "linear" "enc" {
    attributes = { weight = 2, bias = 1 }
  }

  node "relu" "act" {}

  connect {
    from = "source"
    to   = "enc"
  }

  connect {
    from = "enc"
    to   = "act"
  }
}
`

func TestLoadBytes_ValidModel(t *testing.T) {
	t.Parallel()

	m, err := LoadBytes(context.Background(), []byte(validModel), "model.hcl")
	require.NoError(t, err)

	assert.Equal(t, "tts", m.Name)
	assert.Equal(t, []string{"source"}, m.Inputs)
	assert.Equal(t, []string{"act"}, m.Outputs)
	require.Len(t, m.Nodes, 3)
	assert.Equal(t, "linear", m.Nodes[1].OpType)
	assert.Equal(t, "enc", m.Nodes[1].Name)
	require.Len(t, m.Connects, 2)
	assert.Equal(t, "source", m.Connects[0].From)
	assert.Equal(t, "enc", m.Connects[0].To)
}

func TestLoadBytes_ParseError(t *testing.T) {
	t.Parallel()

	_, err := LoadBytes(context.Background(), []byte(`model "x" {`), "broken.hcl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.hcl")
}

func TestLoadBytes_MissingModelBlock(t *testing.T) {
	t.Parallel()

	_, err := LoadBytes(context.Background(), []byte(""), "empty.hcl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no model block")
}

func TestLoadBytes_ValidationErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		src     string
		wantErr string
	}{
		{
			name: "duplicate node name",
			src: `
model "m" {
  node "relu" "a" {}
  node "linear" "a" {}
}
`,
			wantErr: "duplicate node name",
		},
		{
			name: "unknown connect endpoint",
			src: `
model "m" {
  node "relu" "a" {}
  connect {
    from = "a"
    to   = "ghost"
  }
}
`,
			wantErr: "unknown node",
		},
		{
			name: "declared input is not a node",
			src: `
model "m" {
  inputs = ["ghost"]
  node "relu" "a" {}
}
`,
			wantErr: "not a node",
		},
		{
			name: "declared output is not a node",
			src: `
model "m" {
  outputs = ["ghost"]
  node "relu" "a" {}
}
`,
			wantErr: "not a node",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadBytes(context.Background(), []byte(tc.src), "case.hcl")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestBuildGraph_FromDescription(t *testing.T) {
	t.Parallel()

	m, err := LoadBytes(context.Background(), []byte(validModel), "model.hcl")
	require.NoError(t, err)

	g, err := BuildGraph(context.Background(), m, nil)
	require.NoError(t, err)
	defer g.Close()

	assert.Equal(t, "tts", g.Name)
	assert.Equal(t, 3, g.Len())
	require.Len(t, g.InputNodes, 1)
	require.Len(t, g.OutputNodes, 1)
	assert.Equal(t, "source", g.InputNodes[0].Name)
	assert.Equal(t, "act", g.OutputNodes[0].Name)

	enc, ok := g.FindNodeByName("enc")
	require.True(t, ok)
	require.Len(t, enc.Inputs, 1)
	require.Len(t, enc.Outputs, 1)
	assert.Equal(t, "source", enc.Inputs[0].Name)
	assert.Equal(t, "act", enc.Outputs[0].Name)
	assert.False(t, enc.Attrs.IsNull(), "attributes must be evaluated onto the node")
}

func TestBuildGraph_NilModel(t *testing.T) {
	t.Parallel()

	_, err := BuildGraph(context.Background(), nil, nil)
	require.Error(t, err)
}

func TestBuildGraph_DuplicateConnect(t *testing.T) {
	t.Parallel()

	src := `
model "m" {
  node "relu" "a" {}
  node "relu" "b" {}
  connect {
    from = "a"
    to   = "b"
  }
  connect {
    from = "a"
    to   = "b"
  }
}
`
	m, err := LoadBytes(context.Background(), []byte(src), "dup.hcl")
	require.NoError(t, err)

	_, err = BuildGraph(context.Background(), m, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a -> b")
}

// TestLoadedModel_EndToEnd runs a loaded description through the executor,
// covering the loader, builder and operator attribute decoding together.
func TestLoadedModel_EndToEnd(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, err := LoadBytes(ctx, []byte(validModel), "model.hcl")
	require.NoError(t, err)

	pool := tensor.NewPool(1 << 10)
	g, err := BuildGraph(ctx, m, pool)
	require.NoError(t, err)
	defer g.Close()

	reg := registry.New(0)
	require.NoError(t, ops.RegisterAllOperators(reg))

	in, err := tensor.New(pool, tensor.Float32, []int{4})
	require.NoError(t, err)
	copy(in.Data, []float32{-2, -1, 0, 1})

	outputs, err := executor.Run(ctx, g, reg, []*tensor.Tensor{in})
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	// 2x+1 through relu.
	assert.Equal(t, []float32{0, 0, 1, 3}, outputs[0].Data)
}
