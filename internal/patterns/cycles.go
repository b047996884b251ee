package patterns

import "github.com/tracelens/investigation-engine/pkg/models"

// Circular Flow Detection
//
// Builds a directed adjacency map from the link set and depth-first searches
// from every not-yet-visited node. Whenever the walk reaches a node already on
// the current path, the sub-path from that node's first occurrence to the
// current node is emitted as a cycle (length ≥ 2 to report, so self-loops are
// ignored).
//
// The visited set is shared across DFS roots. That bounds total work to
// O(V+E), but a node joining two distinct cycles only has the first-discovered
// cycle reported, and a cycle reachable only through a node consumed by an
// earlier unrelated walk can be missed entirely. This under-reporting is the
// agreed product behavior and is pinned by a regression test; do not reset
// visited per root without a product decision.
//
// The DFS is iterative with an explicit frame stack carrying the path vector,
// so adversarial chain-shaped inputs cannot blow the goroutine stack.

type dfsFrame struct {
	node string
	next int // index of the next neighbor to explore
}

// DetectCircularFlows finds closed directed paths in the link set.
func DetectCircularFlows(links []models.Link) []models.CircularFlow {
	adj := make(map[string][]string)
	var order []string
	seen := make(map[string]bool)
	addNode := func(id string) {
		if !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}
	for _, l := range links {
		addNode(l.Source)
		addNode(l.Target)
		adj[l.Source] = append(adj[l.Source], l.Target)
	}

	visited := make(map[string]bool, len(order))
	flows := []models.CircularFlow{}

	for _, root := range order {
		if visited[root] {
			continue
		}

		var stack []dfsFrame
		var path []string
		onPath := make(map[string]int) // node → index in path

		visited[root] = true
		stack = append(stack, dfsFrame{node: root})
		onPath[root] = 0
		path = append(path, root)

		for len(stack) > 0 {
			frame := &stack[len(stack)-1]
			neighbors := adj[frame.node]

			if frame.next >= len(neighbors) {
				// done with this node, unwind
				stack = stack[:len(stack)-1]
				delete(onPath, frame.node)
				path = path[:len(path)-1]
				continue
			}

			next := neighbors[frame.next]
			frame.next++

			if idx, ok := onPath[next]; ok {
				// Back-edge into the current path: the cycle is path[idx:].
				if len(path)-idx >= 2 {
					cycle := make([]string, len(path)-idx)
					copy(cycle, path[idx:])
					flows = append(flows, models.CircularFlow{
						Path:   cycle,
						Length: len(cycle),
					})
				}
				continue
			}
			if visited[next] {
				continue
			}

			visited[next] = true
			onPath[next] = len(path)
			path = append(path, next)
			stack = append(stack, dfsFrame{node: next})
		}
	}
	return flows
}
