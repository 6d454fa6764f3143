package dag

// CriticalPath computes the expected minimum wall-clock completion time, in
// seconds, assuming unlimited parallelism. It is the longest
// dependency-weighted path through the graph: each task finishes at its own
// duration plus the latest finish among its dependencies.
//
// The order must be a topological order from Validate, so every dependency's
// earliest finish is known before its dependents are processed.
func CriticalPath(g *Graph, order []string) int {
	earliestFinish := make(map[string]int, len(order))
	longest := 0
	for _, name := range order {
		t := g.Task(name)
		finish := t.Duration
		for _, dep := range t.Deps {
			if df := earliestFinish[dep] + t.Duration; df > finish {
				finish = df
			}
		}
		earliestFinish[name] = finish
		if finish > longest {
			longest = finish
		}
	}
	return longest
}
