package discovery

import "fmt"

// Registry maps a site kind ("listing", "feed") to its discoverer.
type Registry struct {
	discoverers map[string]Discoverer
}

func NewRegistry() *Registry {
	return &Registry{discoverers: map[string]Discoverer{}}
}

// Register adds or replaces the discoverer for kind.
func (r *Registry) Register(kind string, d Discoverer) {
	if r.discoverers == nil {
		r.discoverers = map[string]Discoverer{}
	}
	r.discoverers[kind] = d
}

// Resolve returns the discoverer for kind or an error if it is absent.
func (r *Registry) Resolve(kind string) (Discoverer, error) {
	if d, ok := r.discoverers[kind]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("no discoverer registered for kind %q", kind)
}
