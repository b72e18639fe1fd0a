package builtins

import (
	"fmt"
	"strings"

	"github.com/achronyme/achronyme-core-sub001/registry"
	"github.com/achronyme/achronyme-core-sub001/values"
)

func init() {
	registry.Default.Register("split", 2, splitHandler)
	registry.Default.Register("join", 2, joinHandler)
	registry.Default.Register("trim", 1, trimHandler)
	registry.Default.Register("upper", 1, upperHandler)
	registry.Default.Register("lower", 1, lowerHandler)
	registry.Default.Register("replace", 3, replaceHandler)
	registry.Default.Register("contains", 2, containsHandler)
	registry.Default.Register("startsWith", 2, startsWithHandler)
	registry.Default.Register("endsWith", 2, endsWithHandler)
}

func asString(name string, v *values.Value) (string, error) {
	s, ok := v.Deref().ToString()
	if !ok {
		return "", fmt.Errorf("%s() expects a String, got %s", name, v.Type)
	}
	return s, nil
}

func splitHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	s, err := asString("split", args[0])
	if err != nil {
		return nil, err
	}
	sep, err := asString("split", args[1])
	if err != nil {
		return nil, err
	}
	parts := strings.Split(s, sep)
	out := make([]*values.Value, len(parts))
	for i, p := range parts {
		out[i] = values.String(p)
	}
	return values.NewVector(out), nil
}

func joinHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	elems, ok := asVectorElements(args[0])
	if !ok {
		return nil, fmt.Errorf("join() expects a Vector, got %s", args[0].Type)
	}
	sep, err := asString("join", args[1])
	if err != nil {
		return nil, err
	}
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = values.Display(e)
	}
	return values.String(strings.Join(parts, sep)), nil
}

func trimHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	s, err := asString("trim", args[0])
	if err != nil {
		return nil, err
	}
	return values.String(strings.TrimSpace(s)), nil
}

func upperHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	s, err := asString("upper", args[0])
	if err != nil {
		return nil, err
	}
	return values.String(strings.ToUpper(s)), nil
}

func lowerHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	s, err := asString("lower", args[0])
	if err != nil {
		return nil, err
	}
	return values.String(strings.ToLower(s)), nil
}

func replaceHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	s, err := asString("replace", args[0])
	if err != nil {
		return nil, err
	}
	old, err := asString("replace", args[1])
	if err != nil {
		return nil, err
	}
	newStr, err := asString("replace", args[2])
	if err != nil {
		return nil, err
	}
	return values.String(strings.ReplaceAll(s, old, newStr)), nil
}

func containsHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	s, err := asString("contains", args[0])
	if err != nil {
		return nil, err
	}
	sub, err := asString("contains", args[1])
	if err != nil {
		return nil, err
	}
	return values.Boolean(strings.Contains(s, sub)), nil
}

func startsWithHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	s, err := asString("startsWith", args[0])
	if err != nil {
		return nil, err
	}
	prefix, err := asString("startsWith", args[1])
	if err != nil {
		return nil, err
	}
	return values.Boolean(strings.HasPrefix(s, prefix)), nil
}

func endsWithHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	s, err := asString("endsWith", args[0])
	if err != nil {
		return nil, err
	}
	suffix, err := asString("endsWith", args[1])
	if err != nil {
		return nil, err
	}
	return values.Boolean(strings.HasSuffix(s, suffix)), nil
}
