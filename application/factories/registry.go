package factories

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"graphengine/domain/core/aggregates"
	"graphengine/domain/core/valueobjects"
	pkgerrors "graphengine/pkg/errors"
)

// Registry maps each domain to its factory. It is built once at startup and
// never changes afterwards, so concurrent lookups need no locking.
type Registry struct {
	factories map[valueobjects.Domain]NodeFactory
}

// NewRegistry builds a registry. Registering two factories for one domain is an error.
func NewRegistry(factories ...NodeFactory) (*Registry, error) {
	r := &Registry{factories: make(map[valueobjects.Domain]NodeFactory, len(factories))}
	for _, f := range factories {
		if f == nil {
			return nil, fmt.Errorf("nil factory")
		}
		d := f.Domain()
		if !d.IsValid() {
			return nil, fmt.Errorf("factory declares unknown domain %q", d)
		}
		if _, dup := r.factories[d]; dup {
			return nil, fmt.Errorf("factory for domain %s registered twice", d)
		}
		r.factories[d] = f
	}
	return r, nil
}

// NewDefaultRegistry registers the built-in factory of every domain.
func NewDefaultRegistry(logger *zap.Logger) (*Registry, error) {
	vs, err := NewVisualScriptFactory(logger)
	if err != nil {
		return nil, err
	}
	mat, err := NewMaterialFactory(logger)
	if err != nil {
		return nil, err
	}
	particle, err := NewParticleFactory(logger)
	if err != nil {
		return nil, err
	}
	anim, err := NewAnimStateFactory(logger)
	if err != nil {
		return nil, err
	}
	return NewRegistry(vs, mat, particle, anim)
}

// FactoryFor returns the factory of a domain
func (r *Registry) FactoryFor(d valueobjects.Domain) (NodeFactory, error) {
	f, ok := r.factories[d]
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.KindDomainUnsupported, "no node factory for %s graphs", d).
			WithDetail("domain", d.String())
	}
	return f, nil
}

// FactoryForGraph picks the factory from the graph's own domain.
func (r *Registry) FactoryForGraph(g *aggregates.Graph) (NodeFactory, error) {
	if g == nil {
		return nil, pkgerrors.New(pkgerrors.KindGraphNotFound, "graph is required")
	}
	return r.FactoryFor(g.Domain())
}

// Domains lists the registered domains, sorted.
func (r *Registry) Domains() []valueobjects.Domain {
	out := make([]valueobjects.Domain, 0, len(r.factories))
	for d := range r.factories {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
