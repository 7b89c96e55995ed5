// Package workflow places workflow diagram nodes on a level grid.
package workflow

import "github.com/reqforge/backend/internal/model"

const (
	ColumnWidth = 250
	RowHeight   = 120
	Margin      = 50
)

// Layout assigns positions by BFS level: roots (no incoming edges, or the first
// node when every node has one) sit in column 0 and each edge pushes an unplaced
// target one column right. Nodes not reachable from a root go one column past
// the deepest. Edges naming unknown nodes are ignored. The input is not modified.
func Layout(nodes []model.WorkflowNode, edges []model.WorkflowEdge) []model.WorkflowNode {
	out := make([]model.WorkflowNode, len(nodes))
	copy(out, nodes)
	if len(out) == 0 {
		return out
	}

	index := make(map[string]int, len(out))
	for i, n := range out {
		if _, dup := index[n.ID]; !dup {
			index[n.ID] = i
		}
	}

	adj := make(map[int][]int, len(out))
	indegree := make([]int, len(out))
	for _, e := range edges {
		s, ok1 := index[e.Source]
		t, ok2 := index[e.Target]
		if !ok1 || !ok2 {
			continue
		}
		adj[s] = append(adj[s], t)
		indegree[t]++
	}

	level := make([]int, len(out))
	placed := make([]bool, len(out))
	var queue []int
	for i := range out {
		if indegree[i] == 0 {
			placed[i] = true
			queue = append(queue, i)
		}
	}
	if len(queue) == 0 {
		placed[0] = true
		queue = append(queue, 0)
	}

	maxLevel := 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adj[cur] {
			if placed[next] {
				continue
			}
			placed[next] = true
			level[next] = level[cur] + 1
			if level[next] > maxLevel {
				maxLevel = level[next]
			}
			queue = append(queue, next)
		}
	}

	for i := range out {
		if !placed[i] {
			level[i] = maxLevel + 1
		}
	}

	rows := make(map[int]int)
	for i := range out {
		l := level[i]
		out[i].Position = model.Position{
			X: float64(l*ColumnWidth + Margin),
			Y: float64(rows[l]*RowHeight + Margin),
		}
		rows[l]++
	}
	return out
}
