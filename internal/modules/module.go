// Package modules holds the built-in modules of the reference daemon. Each
// module registers its hooks while it initializes and never blocks a tick.
package modules

import (
	"fmt"
	"io"

	"github.com/eliteGoblin/focusd/daemon_core/internal/daemon"
)

// Module is one pluggable unit of daemon work.
type Module interface {
	// Name identifies the module in init failure messages.
	Name() string

	// Init registers hooks and timers on rt. Messages written to diag
	// reach whoever launched the daemon.
	Init(rt *daemon.Runtime, diag io.Writer) error
}

// Registry keeps modules in initialization order.
type Registry struct {
	modules []Module
	byName  map[string]Module
}

// NewRegistry creates a registry holding mods in the given order.
func NewRegistry(mods ...Module) (*Registry, error) {
	r := &Registry{byName: make(map[string]Module)}
	for _, m := range mods {
		if err := r.Register(m); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register appends m. Names must be unique.
func (r *Registry) Register(m Module) error {
	if _, dup := r.byName[m.Name()]; dup {
		return fmt.Errorf("module %q registered twice", m.Name())
	}
	r.byName[m.Name()] = m
	r.modules = append(r.modules, m)
	return nil
}

// Get returns a module by name.
func (r *Registry) Get(name string) (Module, bool) {
	m, ok := r.byName[name]
	return m, ok
}

// List returns the module names in initialization order.
func (r *Registry) List() []string {
	names := make([]string, len(r.modules))
	for i, m := range r.modules {
		names[i] = m.Name()
	}
	return names
}

// Steps returns the init table.
func (r *Registry) Steps() []daemon.InitStep {
	steps := make([]daemon.InitStep, len(r.modules))
	for i, m := range r.modules {
		steps[i] = daemon.InitStep{Name: m.Name(), Init: m.Init}
	}
	return steps
}
