package integrators

import (
	"fmt"
	"sort"

	"github.com/san-kum/cartpoles/internal/dynamo"
)

var registry = map[string]func() dynamo.Integrator{
	"fe":  func() dynamo.Integrator { return NewEuler() },
	"rk4": func() dynamo.Integrator { return NewRK4() },
}

// Default is the scheme used when none is configured.
const Default = "rk4"

// Get returns a fresh integrator for name; an empty name selects RK4.
func Get(name string) (dynamo.Integrator, error) {
	if name == "" {
		name = Default
	}
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", dynamo.ErrUnknownIntegrator, name, Names())
	}
	return fn(), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
