package dag

import "fmt"

// Task is a single named unit of simulated work. Duration is in whole
// seconds; Deps lists the names of tasks that must finish first.
type Task struct {
	Name     string
	Duration int
	Deps     []string
}

// Graph is a collection of tasks keyed by name. Insertion order is retained
// so that iteration, and therefore topological tie-breaking, is
// deterministic.
type Graph struct {
	tasks map[string]*Task
	order []string
}

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{tasks: make(map[string]*Task)}
}

// Add inserts a task into the graph. Adding a second task with the same name
// is an error; names are unique and case-sensitive.
func (g *Graph) Add(t *Task) error {
	if t.Name == "" {
		return fmt.Errorf("task name must not be empty")
	}
	if t.Duration < 0 {
		return fmt.Errorf("task %q: duration must be non-negative, got %d", t.Name, t.Duration)
	}
	if _, exists := g.tasks[t.Name]; exists {
		return fmt.Errorf("duplicate task name %q", t.Name)
	}
	g.tasks[t.Name] = t
	g.order = append(g.order, t.Name)
	return nil
}

// Task returns the task with the given name, or nil if it does not exist.
func (g *Graph) Task(name string) *Task {
	return g.tasks[name]
}

// Len returns the number of tasks in the graph.
func (g *Graph) Len() int {
	return len(g.tasks)
}

// Names returns all task names in insertion order.
func (g *Graph) Names() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}
