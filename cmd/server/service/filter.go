package service

import (
	"fmt"
	"sync"

	"github.com/duette-app/duette/cmd/server/models"
	"github.com/google/cel-go/cel"
)

// maxCachedFilters bounds the program cache, filters come from clients
const maxCachedFilters = 256

// FilterEvaluator compiles CEL expressions over `video` and caches the programs
type FilterEvaluator struct {
	env      *cel.Env
	cache    map[string]cel.Program
	maxCache int
	mu       sync.RWMutex
}

// NewFilterEvaluator creates an evaluator
func NewFilterEvaluator() (*FilterEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("video", cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	return &FilterEvaluator{
		env:      env,
		cache:    make(map[string]cel.Program),
		maxCache: maxCachedFilters,
	}, nil
}

// Compile checks expr and caches its program
func (f *FilterEvaluator) Compile(expr string) (cel.Program, error) {
	f.mu.RLock()
	prg, ok := f.cache[expr]
	f.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, issues := f.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: expression must return bool, got %s", ErrInvalidFilter, ast.OutputType())
	}

	prg, err := f.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}

	f.mu.Lock()
	if len(f.cache) >= f.maxCache {
		f.cache = make(map[string]cel.Program)
	}
	f.cache[expr] = prg
	f.mu.Unlock()

	return prg, nil
}

// Apply keeps the videos for which expr is true. An empty expr keeps all.
func (f *FilterEvaluator) Apply(expr string, videos []*models.Video) ([]*models.Video, error) {
	if expr == "" {
		return videos, nil
	}

	prg, err := f.Compile(expr)
	if err != nil {
		return nil, err
	}

	kept := make([]*models.Video, 0, len(videos))
	for _, v := range videos {
		out, _, err := prg.Eval(map[string]any{"video": v.Fields()})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
		}
		if match, ok := out.Value().(bool); ok && match {
			kept = append(kept, v)
		}
	}
	return kept, nil
}

// CacheSize returns the number of cached expressions
func (f *FilterEvaluator) CacheSize() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.cache)
}
