package targets

import (
	"github.com/rotisserie/eris"
)

// Registry holds every target that can take part in a run. It's assembled in
// one place before the run starts and must not be modified afterwards.
type Registry struct {
	targets map[string]*Target
	order   []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		targets: make(map[string]*Target),
	}
}

// Add registers the given target. Names are unique; registering the same name
// twice is an error.
func (r *Registry) Add(target *Target) error {
	if target.Name == "" {
		return eris.New("can't register a target without a name")
	}

	if _, present := r.targets[target.Name]; present {
		return eris.Errorf("target %s is already registered", target.Name)
	}

	r.targets[target.Name] = target
	r.order = append(r.order, target.Name)
	return nil
}

// Get looks up a target by name.
func (r *Registry) Get(name string) (*Target, bool) {
	target, ok := r.targets[name]
	return target, ok
}

// Names returns all registered target names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len returns the number of registered targets.
func (r *Registry) Len() int {
	return len(r.targets)
}
