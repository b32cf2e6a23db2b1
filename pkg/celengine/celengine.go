package celengine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"golang.org/x/sync/singleflight"
)

// Engine compiles boolean CEL expressions over a fixed set of variables and
// keeps the resulting programs. Concurrent first use of the same expression
// compiles once.
type Engine struct {
	env   *cel.Env
	mu    sync.RWMutex
	progs map[string]cel.Program
	group singleflight.Group
}

// New builds an engine whose environment declares the keys of attrs, typed
// from their sample values.
func New(attrs map[string]any) (*Engine, error) {
	env, err := BuildCelEnvFromAttributes(attrs)
	if err != nil {
		return nil, err
	}
	return &Engine{env: env, progs: make(map[string]cel.Program)}, nil
}

func BuildCelEnvFromAttributes(attrs map[string]any) (*cel.Env, error) {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	variables := make([]cel.EnvOption, 0, len(keys))
	for _, key := range keys {
		switch attrs[key].(type) {
		case string:
			variables = append(variables, cel.Variable(key, cel.StringType))
		case int, int64:
			variables = append(variables, cel.Variable(key, cel.IntType))
		case float32, float64:
			variables = append(variables, cel.Variable(key, cel.DoubleType))
		case bool:
			variables = append(variables, cel.Variable(key, cel.BoolType))
		case map[string]any:
			variables = append(variables, cel.Variable(key, cel.MapType(cel.StringType, cel.DynType)))
		case []any:
			variables = append(variables, cel.Variable(key, cel.ListType(cel.DynType)))
		default:
			variables = append(variables, cel.Variable(key, cel.DynType))
		}
	}

	return cel.NewEnv(variables...)
}

// Compile type-checks expr and requires a boolean result.
func (e *Engine) Compile(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.progs[expr]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	v, err, _ := e.group.Do(expr, func() (any, error) {
		ast, issues := e.env.Compile(expr)
		if issues != nil && issues.Err() != nil {
			return nil, issues.Err()
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("expression %q must return bool, got %s", expr, ast.OutputType())
		}

		prg, err := e.env.Program(ast)
		if err != nil {
			return nil, err
		}

		e.mu.Lock()
		e.progs[expr] = prg
		e.mu.Unlock()
		return prg, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(cel.Program), nil
}

func (e *Engine) Evaluate(expr string, attrs map[string]any) (bool, error) {
	prg, err := e.Compile(expr)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(attrs)
	if err != nil {
		return false, err
	}

	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expected bool from expression, got %T (%v)", out.Value(), out.Value())
	}
	return b, nil
}
