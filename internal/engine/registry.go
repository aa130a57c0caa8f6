package engine

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the installed engines and the per-language engine priority
// lists ("policies"). It is safe for concurrent use; reads vastly outnumber
// writes (policies only change at startup and via admin callbacks).
type Registry struct {
	mu            sync.RWMutex
	engines       map[string]Engine
	descriptors   map[string]Descriptor
	policies      map[string][]string
	defaultPolicy []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		engines:     make(map[string]Engine),
		descriptors: make(map[string]Descriptor),
		policies:    make(map[string][]string),
	}
}

// Register adds an engine under its descriptor name. Registering a duplicate
// name is a programming error and returns one.
func (r *Registry) Register(e Engine) error {
	desc := e.Describe()
	if desc.Name == "" {
		return fmt.Errorf("engine: refusing to register engine with empty name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.engines[desc.Name]; exists {
		return fmt.Errorf("engine: %q already registered", desc.Name)
	}
	r.engines[desc.Name] = e
	r.descriptors[desc.Name] = desc
	return nil
}

// Get returns the engine registered under name.
func (r *Registry) Get(name string) (Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[name]
	return e, ok
}

// Describe returns the descriptor for name.
func (r *Registry) Describe(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[name]
	return d, ok
}

// Names returns the registered engine names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetPolicy replaces the engine priority list for lang. The list may name
// engines that are not (yet) registered; they are skipped at lookup time.
func (r *Registry) SetPolicy(lang string, names []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[lang] = append([]string(nil), names...)
}

// SetDefaultPolicy replaces the list used for languages without an explicit
// policy.
func (r *Registry) SetDefaultPolicy(names []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultPolicy = append([]string(nil), names...)
}

// Policy returns the priority list for lang, falling back to the default
// policy, then to all registered names. The second result reports whether an
// explicit per-language policy existed.
func (r *Registry) Policy(lang string) ([]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.policies[lang]; ok {
		return append([]string(nil), p...), true
	}
	if len(r.defaultPolicy) > 0 {
		return append([]string(nil), r.defaultPolicy...), false
	}
	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, false
}

// PolicyLanguages returns the languages with an explicit policy, sorted.
func (r *Registry) PolicyLanguages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	langs := make([]string, 0, len(r.policies))
	for lang := range r.policies {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// Promote moves name to the front of the policy for lang, creating the policy
// from the current lookup order if none exists. Unregistered names are
// accepted (they are skipped at routing time anyway).
func (r *Registry) Promote(lang, name string) {
	current, _ := r.Policy(lang)
	next := make([]string, 0, len(current)+1)
	next = append(next, name)
	for _, n := range current {
		if n != name {
			next = append(next, n)
		}
	}
	r.SetPolicy(lang, next)
}

// Languages returns the union of all registered engines' language tags, sorted.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := make(map[string]bool)
	for _, d := range r.descriptors {
		for lang := range d.Languages {
			set[lang] = true
		}
	}
	langs := make([]string, 0, len(set))
	for lang := range set {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}
