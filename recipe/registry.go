package recipe

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/kbukum/tablemut/errors"
	"github.com/kbukum/tablemut/observability"
)

// Registry holds validated recipes by name. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	recipes map[string]Recipe
}

// NewRegistry validates and registers recipes.
func NewRegistry(recipes ...Recipe) (*Registry, error) {
	reg := &Registry{recipes: make(map[string]Recipe, len(recipes))}
	for _, r := range recipes {
		if err := reg.Register(r); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Register adds r. Names must be unique.
func (reg *Registry) Register(r Recipe) error {
	if err := r.Validate(); err != nil {
		return err
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, exists := reg.recipes[r.Name]; exists {
		return errors.InvalidInput("name", fmt.Sprintf("recipe %q is already registered", r.Name))
	}
	reg.recipes[r.Name] = r
	return nil
}

// Get returns the recipe registered under name.
func (reg *Registry) Get(name string) (Recipe, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.recipes[name]
	if !ok {
		return Recipe{}, errors.NotFound("recipe", name)
	}
	return r, nil
}

// List returns all recipes sorted by name.
func (reg *Registry) List() []Recipe {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]Recipe, 0, len(reg.recipes))
	for _, r := range reg.recipes {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b Recipe) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Len returns the number of registered recipes.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.recipes)
}

// CheckHealth reports the registry as degraded when it holds no recipes,
// since every transform request would fail.
func (reg *Registry) CheckHealth(context.Context) observability.Health {
	n := reg.Len()
	h := observability.Health{
		Name:    "recipes",
		Status:  observability.HealthStatusUp,
		Details: map[string]string{"count": strconv.Itoa(n)},
	}
	if n == 0 {
		h.Status = observability.HealthStatusDegraded
		h.Message = "no recipes configured"
	}
	return h
}
