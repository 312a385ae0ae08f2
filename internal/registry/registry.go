package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrNotRegistered = errors.New("service not registered")
	ErrCycle         = errors.New("circular dependency detected")
	ErrInitFailed    = errors.New("service initialization failed")
)

// Factory constructs a service instance from its resolved dependencies,
// keyed by dependency name.
type Factory func(deps map[string]any) (any, error)

// Options control lifecycle and wiring of a registration.
type Options struct {
	// Singleton services are constructed at most once; transient services are
	// constructed on every Get.
	Singleton bool
	// Dependencies are resolved before the factory runs.
	Dependencies []string
	// Lazy singletons are constructed on first Get instead of InitEager.
	Lazy bool
}

type registration struct {
	name     string
	instance any
	factory  Factory
	opts     Options
	built    bool
}

// Registry resolves component names to instances. It is the one authorized
// holder of process-wide service state; everything else takes collaborators
// as constructor parameters.
type Registry struct {
	mu            sync.RWMutex
	registrations map[string]*registration
	mocks         map[string]any
	mockMode      bool
}

func New() *Registry {
	return &Registry{
		registrations: make(map[string]*registration),
		mocks:         make(map[string]any),
	}
}

// RegisterInstance registers an already-constructed singleton.
func (r *Registry) RegisterInstance(name string, instance any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registrations[name] = &registration{
		name:     name,
		instance: instance,
		opts:     Options{Singleton: true},
		built:    true,
	}
}

// Register registers a factory-built service.
func (r *Registry) Register(name string, factory Factory, opts Options) error {
	if factory == nil {
		return fmt.Errorf("%w: %s has nil factory", ErrInitFailed, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registrations[name] = &registration{name: name, factory: factory, opts: opts}
	return nil
}

// Get resolves a service by name, constructing it (and its dependency chain)
// if needed. Mock registrations shadow real ones while mock mode is enabled.
func (r *Registry) Get(name string) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolve(name, nil)
}

// MustGet is Get for wiring paths where a missing service is a programming error.
func (r *Registry) MustGet(name string) any {
	v, err := r.Get(name)
	if err != nil {
		panic(err)
	}
	return v
}

// Has reports whether a name is registered (or mocked while mock mode is on).
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.mockMode {
		if _, ok := r.mocks[name]; ok {
			return true
		}
	}
	_, ok := r.registrations[name]
	return ok
}

// Names returns all registered service names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.registrations))
	for name := range r.registrations {
		out = append(out, name)
	}
	return out
}

// InitEager constructs every non-lazy singleton up front so wiring failures
// surface at startup rather than mid-turn.
func (r *Registry) InitEager() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, reg := range r.registrations {
		if !reg.opts.Singleton || reg.opts.Lazy || reg.built {
			continue
		}
		if _, err := r.resolve(name, nil); err != nil {
			return err
		}
	}
	return nil
}

// RegisterMock installs a test double that shadows the real registration
// while mock mode is enabled.
func (r *Registry) RegisterMock(name string, impl any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mocks[name] = impl
}

func (r *Registry) EnableMockMode() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mockMode = true
}

func (r *Registry) DisableMockMode() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mockMode = false
}

// Reset drops constructed instances and mocks. With keepRegistrations the
// factories stay so services rebuild on next Get; otherwise everything goes.
func (r *Registry) Reset(keepRegistrations bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mocks = make(map[string]any)
	r.mockMode = false
	if !keepRegistrations {
		r.registrations = make(map[string]*registration)
		return
	}
	for _, reg := range r.registrations {
		if reg.factory != nil {
			reg.instance = nil
			reg.built = false
		}
	}
}

// resolve must be called with the write lock held. path carries the current
// dependency chain for cycle reporting.
func (r *Registry) resolve(name string, path []string) (any, error) {
	if r.mockMode {
		if impl, ok := r.mocks[name]; ok {
			return impl, nil
		}
	}

	reg, ok := r.registrations[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}

	for _, seen := range path {
		if seen == name {
			cycle := append(append([]string{}, path...), name)
			return nil, fmt.Errorf("%w: %s", ErrCycle, strings.Join(cycle, " -> "))
		}
	}

	if reg.opts.Singleton && reg.built {
		return reg.instance, nil
	}

	deps := make(map[string]any, len(reg.opts.Dependencies))
	childPath := append(path, name)
	for _, dep := range reg.opts.Dependencies {
		v, err := r.resolve(dep, childPath)
		if err != nil {
			return nil, err
		}
		deps[dep] = v
	}

	instance, err := reg.factory(deps)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInitFailed, name, err)
	}
	if instance == nil {
		return nil, fmt.Errorf("%w: %s factory returned nil", ErrInitFailed, name)
	}

	if reg.opts.Singleton {
		reg.instance = instance
		reg.built = true
	}
	return instance, nil
}
