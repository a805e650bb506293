// Package workflow implements a small directed task graph with explicit data
// dependencies. Nodes declare the state fields they read and write; edges
// declare execution order. Nodes whose predecessors have all completed run
// concurrently, and multi-writer fields merge through a per-field reducer.
package workflow

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// NodeFunc executes one task. It receives a snapshot of the accumulated
// state and returns a partial update (only the fields it writes).
type NodeFunc func(ctx context.Context, s State) (State, error)

// Node is one task in the graph
type Node struct {
	Name   string
	Reads  []string
	Writes []string
	Fn     NodeFunc
}

// Graph is a mutable graph definition. Build it with AddNode/AddEdge, then
// Compile it before executing.
type Graph struct {
	nodes    map[string]*Node
	order    []string // insertion order, used for deterministic merges
	preds    map[string][]string
	succs    map[string][]string
	reducers map[string]Reducer
	entry    string
	finish   string
	err      error
}

// NewGraph creates an empty graph definition
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		preds:    make(map[string][]string),
		succs:    make(map[string][]string),
		reducers: make(map[string]Reducer),
	}
}

// AddNode registers a task with its declared reads and writes
func (g *Graph) AddNode(name string, reads, writes []string, fn NodeFunc) *Graph {
	if _, exists := g.nodes[name]; exists {
		g.err = fmt.Errorf("duplicate node %q", name)
		return g
	}
	g.nodes[name] = &Node{Name: name, Reads: reads, Writes: writes, Fn: fn}
	g.order = append(g.order, name)
	return g
}

// AddEdge declares that `to` must not run before `from` has completed
func (g *Graph) AddEdge(from, to string) *Graph {
	g.preds[to] = append(g.preds[to], from)
	g.succs[from] = append(g.succs[from], to)
	return g
}

// SetEntryPoint declares the single source node
func (g *Graph) SetEntryPoint(name string) *Graph {
	g.entry = name
	return g
}

// SetFinishPoint declares the single sink node
func (g *Graph) SetFinishPoint(name string) *Graph {
	g.finish = name
	return g
}

// WithReducer declares the merge function for a multi-writer field.
// Fields without a reducer are overwritten by their single writer.
func (g *Graph) WithReducer(field string, r Reducer) *Graph {
	g.reducers[field] = r
	return g
}

// Compile validates the graph and returns an executable form. Validation
// requires a cycle-free graph with exactly one source (the entry point) and
// exactly one sink (the finish point), and edges that reference known nodes.
func (g *Graph) Compile() (*CompiledGraph, error) {
	if g.err != nil {
		return nil, g.err
	}
	if len(g.nodes) == 0 {
		return nil, fmt.Errorf("graph has no nodes")
	}

	for to, froms := range g.preds {
		if _, ok := g.nodes[to]; !ok {
			return nil, fmt.Errorf("edge references unknown node %q", to)
		}
		for _, from := range froms {
			if _, ok := g.nodes[from]; !ok {
				return nil, fmt.Errorf("edge references unknown node %q", from)
			}
		}
	}

	var sources, sinks []string
	for _, name := range g.order {
		if len(g.preds[name]) == 0 {
			sources = append(sources, name)
		}
		if len(g.succs[name]) == 0 {
			sinks = append(sinks, name)
		}
	}
	if len(sources) != 1 || sources[0] != g.entry {
		return nil, fmt.Errorf("graph must have exactly one source matching the entry point %q, got %v", g.entry, sources)
	}
	if len(sinks) != 1 || sinks[0] != g.finish {
		return nil, fmt.Errorf("graph must have exactly one sink matching the finish point %q, got %v", g.finish, sinks)
	}

	// Kahn's algorithm: if a topological order covers every node the graph
	// is acyclic
	indeg := make(map[string]int, len(g.nodes))
	for _, name := range g.order {
		indeg[name] = len(g.preds[name])
	}
	queue := []string{g.entry}
	visited := 0
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		visited++
		for _, succ := range g.succs[current] {
			indeg[succ]--
			if indeg[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}
	if visited != len(g.nodes) {
		return nil, fmt.Errorf("graph contains a cycle")
	}

	return &CompiledGraph{def: g}, nil
}

// CompiledGraph is a validated graph ready for execution. It carries no
// per-run state, so a single compiled graph may serve concurrent executions.
type CompiledGraph struct {
	def *Graph
}

// Execute runs the graph to completion and returns the full accumulated
// state. Execution proceeds in waves: every node whose predecessors have all
// completed runs concurrently, then the wave's partial updates merge in node
// declaration order through the per-field reducers. A node failure aborts
// the run; downstream nodes do not execute.
func (cg *CompiledGraph) Execute(ctx context.Context, initial State) (State, error) {
	g := cg.def

	indeg := make(map[string]int, len(g.nodes))
	for _, name := range g.order {
		indeg[name] = len(g.preds[name])
	}

	state := initial.Clone()
	if state == nil {
		state = make(State)
	}
	done := make(map[string]bool, len(g.nodes))

	for len(done) < len(g.nodes) {
		var wave []string
		for _, name := range g.order {
			if !done[name] && indeg[name] == 0 {
				wave = append(wave, name)
			}
		}

		// Every node's declared reads must be present before it runs
		for _, name := range wave {
			for _, field := range g.nodes[name].Reads {
				if _, ok := state[field]; !ok {
					return nil, fmt.Errorf("node %q: required field %q not produced by any predecessor: %w", name, field, ErrFieldNotSet)
				}
			}
		}

		updates := make([]State, len(wave))
		eg, waveCtx := errgroup.WithContext(ctx)
		for i, name := range wave {
			i, node := i, g.nodes[name]
			eg.Go(func() error {
				update, err := node.Fn(waveCtx, state.Clone())
				if err != nil {
					return fmt.Errorf("node %q: %w", node.Name, err)
				}
				updates[i] = update
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}

		// Merge in declaration order so fan-in accumulation is stable
		for _, update := range updates {
			for field, incoming := range update {
				if reducer, ok := g.reducers[field]; ok {
					state[field] = reducer(state[field], incoming)
				} else {
					state[field] = incoming
				}
			}
		}

		for _, name := range wave {
			done[name] = true
			for _, succ := range g.succs[name] {
				indeg[succ]--
			}
		}
	}

	return state, nil
}
