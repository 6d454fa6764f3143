package dag

import (
	"fmt"
	"sort"
	"strings"
)

// Validation holds the derived structures produced by a successful Validate
// call. Order is a topological order over all task names; Adjacency maps a
// dependency to the tasks that depend on it; InDegree counts unresolved
// dependencies per task.
type Validation struct {
	Order     []string
	Adjacency map[string][]string
	InDegree  map[string]int
}

// Validate checks every dependency reference, builds the adjacency list and
// in-degree map, and runs a Kahn-style reduction to produce a topological
// order. It returns an error on the first missing dependency, or a cycle
// error naming the tasks left unordered.
func (g *Graph) Validate() (*Validation, error) {
	for _, name := range g.order {
		for _, dep := range g.tasks[name].Deps {
			if _, ok := g.tasks[dep]; !ok {
				return nil, fmt.Errorf("task %q depends on unknown task %q", name, dep)
			}
		}
	}

	adjacency := make(map[string][]string, len(g.tasks))
	inDegree := make(map[string]int, len(g.tasks))
	for _, name := range g.order {
		inDegree[name] = 0
	}
	for _, name := range g.order {
		for _, dep := range g.tasks[name].Deps {
			adjacency[dep] = append(adjacency[dep], name)
			inDegree[name]++
		}
	}

	// Kahn's algorithm. The queue is seeded and drained in insertion order
	// so the resulting order is deterministic for a given file.
	queue := make([]string, 0, len(g.tasks))
	remaining := make(map[string]int, len(inDegree))
	for _, name := range g.order {
		remaining[name] = inDegree[name]
		if inDegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	order := make([]string, 0, len(g.tasks))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)
		for _, next := range adjacency[current] {
			remaining[next]--
			if remaining[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(g.tasks) {
		var stuck []string
		for name, deg := range remaining {
			if deg > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("cycle detected in dependencies involving: %s", strings.Join(stuck, ", "))
	}

	return &Validation{Order: order, Adjacency: adjacency, InDegree: inDegree}, nil
}
