package builtins

import (
	"fmt"

	"github.com/achronyme/achronyme-core-sub001/registry"
	"github.com/achronyme/achronyme-core-sub001/values"
)

const edgesField = "edges"

func init() {
	registry.Default.Register("addEdge", 2, addEdgeHandler)
	registry.Default.Register("neighbors", 2, neighborsHandler)
	registry.Default.Register("degree", 2, degreeHandler)
}

// graphEdges returns the Record's "edges" Vector, creating an empty one on
// first use so a freshly-literal Record can be grown into a graph.
func graphEdges(g *values.Value) (*values.Record, *values.Vector, error) {
	rec, ok := g.Deref().ToRecord()
	if !ok {
		return nil, nil, fmt.Errorf("expects a Record, got %s", g.Type)
	}
	ev, ok := rec.Get(edgesField)
	if !ok {
		ev = values.NewVector(nil)
		rec.Set(edgesField, ev)
	}
	vec, ok := ev.Deref().ToVector()
	if !ok {
		return nil, nil, fmt.Errorf("graph %q field must be a Vector of Edges", edgesField)
	}
	return rec, vec, nil
}

func addEdgeHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	_, vec, err := graphEdges(args[0])
	if err != nil {
		return nil, fmt.Errorf("addEdge() %s", err)
	}
	edge := args[1].Deref()
	if edge.Type != values.TypeEdge {
		return nil, fmt.Errorf("addEdge() expects an Edge, got %s", edge.Type)
	}
	vec.Elements = append(vec.Elements, edge)
	return args[0], nil
}

func neighborsHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	_, vec, err := graphEdges(args[0])
	if err != nil {
		return nil, fmt.Errorf("neighbors() %s", err)
	}
	node := args[1]
	out := make([]*values.Value, 0)
	for _, ev := range vec.Elements {
		e, ok := ev.Deref().Data.(*values.Edge)
		if !ok {
			continue
		}
		if values.Equal(e.From, node) {
			out = append(out, e.To)
		} else if !e.Directed && values.Equal(e.To, node) {
			out = append(out, e.From)
		}
	}
	return values.NewVector(out), nil
}

func degreeHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	neighborsVal, err := neighborsHandler(ctx, args)
	if err != nil {
		return nil, err
	}
	vec, _ := neighborsVal.ToVector()
	return values.Number(float64(len(vec.Elements))), nil
}
