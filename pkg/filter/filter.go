// Package filter selects entities with JMESPath expressions evaluated over
// their JSON rendering (guid, typeName, displayText, status, attributes).
package filter

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jmespath/go-jmespath"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Evaluator compiles expressions once and caches them
type Evaluator struct {
	cache map[string]*jmespath.JMESPath
	mu    sync.RWMutex
}

func NewEvaluator() *Evaluator {
	return &Evaluator{
		cache: make(map[string]*jmespath.JMESPath),
	}
}

// Validate checks if an expression compiles
func (e *Evaluator) Validate(expression string) error {
	_, err := e.getOrCompile(expression)
	return err
}

// Match reports whether expression is truthy for the entity. Null, false, the
// empty string, zero and empty collections are falsy.
func (e *Evaluator) Match(expression string, entity models.Entity) (bool, error) {
	compiled, err := e.getOrCompile(expression)
	if err != nil {
		return false, fmt.Errorf("invalid expression %q: %w", expression, err)
	}

	doc, err := document(entity)
	if err != nil {
		return false, err
	}

	result, err := compiled.Search(doc)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate expression %q: %w", expression, err)
	}
	return truthy(result), nil
}

// Select keeps the entities the expression matches, in order
func (e *Evaluator) Select(expression string, entities []models.Entity) ([]models.Entity, error) {
	out := make([]models.Entity, 0, len(entities))
	for _, entity := range entities {
		ok, err := e.Match(expression, entity)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, entity)
		}
	}
	return out, nil
}

func document(entity models.Entity) (any, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entity %s: %w", entity.ID, err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode entity %s: %w", entity.ID, err)
	}
	return doc, nil
}

func truthy(result any) bool {
	switch v := result.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case float64:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}

func (e *Evaluator) getOrCompile(expression string) (*jmespath.JMESPath, error) {
	e.mu.RLock()
	if compiled, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return compiled, nil
	}
	e.mu.RUnlock()

	compiled, err := jmespath.Compile(expression)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[expression] = compiled
	e.mu.Unlock()

	return compiled, nil
}
