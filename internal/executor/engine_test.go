package executor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/taskgrid/internal/dag"
)

// fakePool completes tasks instantly in dispatch order, failing the ones
// named in failures. It lets engine tests control outcomes without timing.
type fakePool struct {
	results    chan Result
	dispatched []string
	failures   map[string]bool
}

func newFakePool(capacity int, failures ...string) *fakePool {
	p := &fakePool{
		results:  make(chan Result, capacity),
		failures: make(map[string]bool),
	}
	for _, name := range failures {
		p.failures[name] = true
	}
	return p
}

func (p *fakePool) Submit(ctx context.Context, task *dag.Task) {
	p.dispatched = append(p.dispatched, task.Name)
	res := Result{Task: task, StartedAt: time.Now(), FinishedAt: time.Now()}
	if p.failures[task.Name] {
		res.Err = fmt.Errorf("task %s exploded", task.Name)
	}
	p.results <- res
}

func (p *fakePool) Completions() <-chan Result { return p.results }
func (p *fakePool) Close()                     {}

func diamondGraph(t *testing.T) (*dag.Graph, *dag.Validation) {
	t.Helper()
	g := dag.New()
	require.NoError(t, g.Add(&dag.Task{Name: "A", Duration: 1}))
	require.NoError(t, g.Add(&dag.Task{Name: "B", Duration: 1, Deps: []string{"A"}}))
	require.NoError(t, g.Add(&dag.Task{Name: "C", Duration: 1, Deps: []string{"A"}}))
	require.NoError(t, g.Add(&dag.Task{Name: "D", Duration: 1, Deps: []string{"B", "C"}}))
	val, err := g.Validate()
	require.NoError(t, err)
	return g, val
}

func TestEngine_RunsEveryTaskOnce(t *testing.T) {
	graph, val := diamondGraph(t)
	pool := newFakePool(graph.Len())

	report, err := New(graph, val, pool).Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, report.Completed, 4)
	assert.Len(t, pool.dispatched, 4)
	assert.Equal(t, "A", pool.dispatched[0], "the only root must go first")
	assert.Equal(t, "D", pool.dispatched[3], "the join must go last")
}

func TestEngine_DependencyOrdering(t *testing.T) {
	graph, val := diamondGraph(t)
	pool := newFakePool(graph.Len())

	_, err := New(graph, val, pool).Run(context.Background())
	require.NoError(t, err)

	position := make(map[string]int, len(pool.dispatched))
	for i, name := range pool.dispatched {
		position[name] = i
	}
	for _, name := range graph.Names() {
		for _, dep := range graph.Task(name).Deps {
			assert.Less(t, position[dep], position[name],
				"%s must not be dispatched before %s completes", name, dep)
		}
	}
}

func TestEngine_FailureSkipsTransitiveDependents(t *testing.T) {
	graph, val := diamondGraph(t)
	pool := newFakePool(graph.Len(), "B")

	report, err := New(graph, val, pool).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execution failed for B")

	assert.Equal(t, []string{"B"}, report.Failed)
	assert.Equal(t, []string{"D"}, report.Skipped, "D depends on failed B and must never run")
	assert.ElementsMatch(t, []string{"A", "C"}, report.Completed)
	assert.NotContains(t, pool.dispatched, "D")
}

func TestEngine_RootFailureSkipsEverything(t *testing.T) {
	graph, val := diamondGraph(t)
	pool := newFakePool(graph.Len(), "A")

	report, err := New(graph, val, pool).Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, []string{"A"}, report.Failed)
	assert.Equal(t, []string{"B", "C", "D"}, report.Skipped)
	assert.Equal(t, []string{"A"}, pool.dispatched)
}

func TestEngine_ContextCancellation(t *testing.T) {
	graph, val := diamondGraph(t)

	// A pool that never completes anything forces the engine to wait.
	pool := &fakePool{results: make(chan Result), failures: map[string]bool{}}
	stalled := &stallingPool{fakePool: pool}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(graph, val, stalled).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

// stallingPool accepts submissions but never reports completions.
type stallingPool struct {
	*fakePool
}

func (p *stallingPool) Submit(ctx context.Context, task *dag.Task) {}
