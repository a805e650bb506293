package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder tracks node execution order across concurrent waves
type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) node(name string, update State) NodeFunc {
	return func(ctx context.Context, s State) (State, error) {
		r.mu.Lock()
		r.order = append(r.order, name)
		r.mu.Unlock()
		return update, nil
	}
}

func (r *recorder) indexOf(name string) int {
	for i, n := range r.order {
		if n == name {
			return i
		}
	}
	return -1
}

// diamondGraph builds the A → (B, C) → D shape with a fan-in field written
// by both middle nodes
func diamondGraph(rec *recorder, bUpdate, cUpdate State) *Graph {
	return NewGraph().
		AddNode("A", []string{"input"}, []string{"prepared"}, rec.node("A", State{"prepared": "ok"})).
		AddNode("B", []string{"prepared"}, []string{"items"}, rec.node("B", bUpdate)).
		AddNode("C", []string{"prepared"}, []string{"items"}, rec.node("C", cUpdate)).
		AddNode("D", []string{"items"}, []string{"output"}, rec.node("D", State{"output": "done"})).
		AddEdge("A", "B").
		AddEdge("A", "C").
		AddEdge("B", "D").
		AddEdge("C", "D").
		SetEntryPoint("A").
		SetFinishPoint("D").
		WithReducer("items", AppendStrings)
}

func TestExecuteRespectsDependencyOrder(t *testing.T) {
	rec := &recorder{}
	g, err := diamondGraph(rec,
		State{"items": []string{"from-b"}},
		State{"items": []string{"from-c"}},
	).Compile()
	require.NoError(t, err)

	final, err := g.Execute(context.Background(), State{"input": "x"})
	require.NoError(t, err)

	require.Len(t, rec.order, 4)
	assert.Equal(t, "A", rec.order[0])
	assert.Equal(t, "D", rec.order[3])
	assert.Less(t, rec.indexOf("B"), rec.indexOf("D"))
	assert.Less(t, rec.indexOf("C"), rec.indexOf("D"))

	out, err := final.GetString("output")
	require.NoError(t, err)
	assert.Equal(t, "done", out)
}

func TestExecuteFanInMergesInDeclarationOrder(t *testing.T) {
	// B and C run in the same wave; their contributions merge in the order
	// the nodes were declared, so the result is deterministic.
	rec := &recorder{}
	g, err := diamondGraph(rec,
		State{"items": []string{"from-b"}},
		State{"items": []string{"from-c"}},
	).Compile()
	require.NoError(t, err)

	final, err := g.Execute(context.Background(), State{"input": "x"})
	require.NoError(t, err)

	items, err := final.GetStrings("items")
	require.NoError(t, err)
	assert.Equal(t, []string{"from-b", "from-c"}, items)
}

func TestExecuteFanInKeepsDuplicates(t *testing.T) {
	rec := &recorder{}
	g, err := diamondGraph(rec,
		State{"items": []string{"same"}},
		State{"items": []string{"same"}},
	).Compile()
	require.NoError(t, err)

	final, err := g.Execute(context.Background(), State{"input": "x"})
	require.NoError(t, err)

	items, err := final.GetStrings("items")
	require.NoError(t, err)
	assert.Equal(t, []string{"same", "same"}, items)
}

func TestExecuteNodeFailureAbortsDownstream(t *testing.T) {
	boom := errors.New("model unavailable")
	var downstream int
	var mu sync.Mutex

	g, err := NewGraph().
		AddNode("first", nil, []string{"a"}, func(ctx context.Context, s State) (State, error) {
			return nil, boom
		}).
		AddNode("second", []string{"a"}, []string{"b"}, func(ctx context.Context, s State) (State, error) {
			mu.Lock()
			downstream++
			mu.Unlock()
			return State{"b": "x"}, nil
		}).
		AddEdge("first", "second").
		SetEntryPoint("first").
		SetFinishPoint("second").
		Compile()
	require.NoError(t, err)

	_, err = g.Execute(context.Background(), State{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), `node "first"`)
	assert.Equal(t, 0, downstream)
}

func TestExecuteMissingReadFailsLoudly(t *testing.T) {
	g, err := NewGraph().
		AddNode("only", []string{"never_written"}, []string{"out"}, func(ctx context.Context, s State) (State, error) {
			return State{"out": "x"}, nil
		}).
		SetEntryPoint("only").
		SetFinishPoint("only").
		Compile()
	require.NoError(t, err)

	_, err = g.Execute(context.Background(), State{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFieldNotSet)
	assert.Contains(t, err.Error(), "never_written")
}

func TestCompileRejectsEmptyGraph(t *testing.T) {
	_, err := NewGraph().Compile()
	assert.Error(t, err)
}

func TestCompileRejectsDuplicateNode(t *testing.T) {
	noop := func(ctx context.Context, s State) (State, error) { return nil, nil }

	_, err := NewGraph().
		AddNode("a", nil, nil, noop).
		AddNode("a", nil, nil, noop).
		SetEntryPoint("a").
		SetFinishPoint("a").
		Compile()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestCompileRejectsUnknownEdgeTarget(t *testing.T) {
	noop := func(ctx context.Context, s State) (State, error) { return nil, nil }

	_, err := NewGraph().
		AddNode("a", nil, nil, noop).
		AddEdge("a", "ghost").
		SetEntryPoint("a").
		SetFinishPoint("ghost").
		Compile()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown node")
}

func TestCompileRejectsMultipleSources(t *testing.T) {
	noop := func(ctx context.Context, s State) (State, error) { return nil, nil }

	_, err := NewGraph().
		AddNode("a", nil, nil, noop).
		AddNode("b", nil, nil, noop).
		AddNode("c", nil, nil, noop).
		AddEdge("a", "c").
		AddEdge("b", "c").
		SetEntryPoint("a").
		SetFinishPoint("c").
		Compile()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one source")
}

func TestCompileRejectsCycle(t *testing.T) {
	noop := func(ctx context.Context, s State) (State, error) { return nil, nil }

	_, err := NewGraph().
		AddNode("a", nil, nil, noop).
		AddNode("b", nil, nil, noop).
		AddNode("c", nil, nil, noop).
		AddNode("d", nil, nil, noop).
		AddEdge("a", "b").
		AddEdge("b", "c").
		AddEdge("c", "b").
		AddEdge("c", "d").
		SetEntryPoint("a").
		SetFinishPoint("d").
		Compile()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}
