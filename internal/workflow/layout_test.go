package workflow

import (
	"testing"

	"github.com/reqforge/backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodes(ids ...string) []model.WorkflowNode {
	out := make([]model.WorkflowNode, len(ids))
	for i, id := range ids {
		out[i] = model.WorkflowNode{ID: id, Type: model.NodeTypeTask, Label: id}
	}
	return out
}

func edge(s, t string) model.WorkflowEdge {
	return model.WorkflowEdge{ID: s + "-" + t, Source: s, Target: t}
}

func positions(ns []model.WorkflowNode) map[string]model.Position {
	m := make(map[string]model.Position, len(ns))
	for _, n := range ns {
		m[n.ID] = n.Position
	}
	return m
}

func TestLayout_Linear(t *testing.T) {
	out := Layout(nodes("a", "b", "c"), []model.WorkflowEdge{edge("a", "b"), edge("b", "c")})
	p := positions(out)
	assert.Equal(t, model.Position{X: 50, Y: 50}, p["a"])
	assert.Equal(t, model.Position{X: 300, Y: 50}, p["b"])
	assert.Equal(t, model.Position{X: 550, Y: 50}, p["c"])
}

func TestLayout_BranchesShareColumn(t *testing.T) {
	in := nodes("start", "gw", "yes", "no", "end")
	out := Layout(in, []model.WorkflowEdge{
		edge("start", "gw"), edge("gw", "yes"), edge("gw", "no"), edge("yes", "end"), edge("no", "end"),
	})
	p := positions(out)
	assert.Equal(t, model.Position{X: 550, Y: 50}, p["yes"])
	assert.Equal(t, model.Position{X: 550, Y: 170}, p["no"])
	assert.Equal(t, 800.0, p["end"].X)
}

func TestLayout_CycleAndUnreachable(t *testing.T) {
	// b and c form a loop behind a
	in := nodes("a", "b", "c", "d")
	out := Layout(in, []model.WorkflowEdge{edge("a", "b"), edge("b", "c"), edge("c", "b")})
	p := positions(out)
	assert.Equal(t, 50.0, p["a"].X)
	assert.Equal(t, 300.0, p["b"].X)
	assert.Equal(t, 550.0, p["c"].X)
	// d has no incoming edges so it is a root
	assert.Equal(t, model.Position{X: 50, Y: 170}, p["d"])
}

func TestLayout_AllNodesHaveIncoming(t *testing.T) {
	in := nodes("x", "y", "z")
	out := Layout(in, []model.WorkflowEdge{edge("x", "y"), edge("y", "x"), edge("z", "z")})
	p := positions(out)
	assert.Equal(t, 50.0, p["x"].X)
	assert.Equal(t, 300.0, p["y"].X)
	// z is unreachable from the fallback root
	assert.Equal(t, 550.0, p["z"].X)
}

func TestLayout_IgnoresUnknownEdgesAndKeepsInput(t *testing.T) {
	in := nodes("a", "b")
	in[0].Position = model.Position{X: 999, Y: 999}
	out := Layout(in, []model.WorkflowEdge{edge("a", "ghost"), edge("ghost", "b")})
	require.Len(t, out, 2)
	assert.Equal(t, model.Position{X: 999, Y: 999}, in[0].Position)
	assert.Equal(t, model.Position{X: 50, Y: 50}, out[0].Position)
	assert.Equal(t, model.Position{X: 50, Y: 170}, out[1].Position)
}

func TestLayout_Empty(t *testing.T) {
	assert.Empty(t, Layout(nil, nil))
}
