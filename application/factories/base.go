package factories

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"graphengine/domain/core/aggregates"
	"graphengine/domain/core/entities"
	"graphengine/domain/core/valueobjects"
	"graphengine/domain/services/pins"
	pkgerrors "graphengine/pkg/errors"
)

// nodeBuild is the instance-specific part of a node resolved from its params.
type nodeBuild struct {
	Title   string
	Pins    []entities.PinSpec
	Payload entities.Payload
}

// buildFunc resolves a type plus params into pins and a payload. It runs after
// required params have been checked.
type buildFunc func(t *NodeType, params entities.Params) (*nodeBuild, error)

// catalogFactory is the shared NodeFactory implementation. Domain factories
// embed it and register build functions for their dynamic types; every other
// type is built from its catalog pins alone.
type catalogFactory struct {
	domain   valueobjects.Domain
	catalog  *Catalog
	builders map[string]buildFunc
	static   buildFunc
	logger   *zap.Logger
}

func newCatalogFactory(domain valueobjects.Domain, logger *zap.Logger, static buildFunc, builders map[string]buildFunc) (*catalogFactory, error) {
	cat, err := LoadCatalog(domain)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	keyed := make(map[string]buildFunc, len(builders))
	for name, fn := range builders {
		t, ok := cat.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%s factory builds %q but the catalog does not declare it", domain, name)
		}
		keyed[t.Name] = fn
	}
	return &catalogFactory{
		domain:   domain,
		catalog:  cat,
		builders: keyed,
		static:   static,
		logger:   logger.With(zap.String("domain", domain.String())),
	}, nil
}

// Domain returns the domain this factory serves
func (f *catalogFactory) Domain() valueobjects.Domain {
	return f.domain
}

// Catalog exposes the decoded catalog
func (f *catalogFactory) Catalog() *Catalog {
	return f.catalog
}

func (f *catalogFactory) CreateNode(g *aggregates.Graph, typeName string, params entities.Params, pos valueobjects.Position) (*entities.Node, error) {
	if g == nil {
		return nil, pkgerrors.New(pkgerrors.KindInvalidRequest, "graph is required")
	}
	if g.Domain() != f.domain {
		return nil, pkgerrors.Newf(pkgerrors.KindDomainMismatch,
			"%s factory cannot create nodes in a %s graph", f.domain, g.Domain())
	}

	t, ok := f.catalog.Lookup(typeName)
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.KindFactoryUnsupportedType,
			"%s graphs have no node type %q", f.domain, typeName).
			WithDetail("type", typeName)
	}
	if missing := missingParams(t, params); len(missing) > 0 {
		return nil, pkgerrors.Newf(pkgerrors.KindMissingRequiredParam,
			"%s requires %s", t.Name, strings.Join(missing, ", ")).
			WithDetail("type", t.Name).
			WithDetail("missing", missing)
	}

	built, err := f.resolve(t, params)
	if err != nil {
		return nil, err
	}
	node, err := entities.NewNode(entities.NodeDefinition{
		TypeName: t.Name,
		Title:    built.Title,
		Domain:   f.domain,
		Payload:  built.Payload,
		Position: pos,
		Template: built.Pins,
		Params:   params,
	})
	if err != nil {
		return nil, pkgerrors.Newf(pkgerrors.KindInternal, "%s: %v", t.Name, err).WithCause(err)
	}
	if err := f.applyPinProperties(node, t, params); err != nil {
		return nil, err
	}
	if err := g.AddNode(node); err != nil {
		return nil, err
	}

	f.logger.Debug("node created",
		zap.String("type", t.Name),
		zap.String("name", node.Name()),
		zap.String("node_id", node.ID().String()),
		zap.Int("pins", node.PinCount()))
	return node, nil
}

func (f *catalogFactory) resolve(t *NodeType, params entities.Params) (*nodeBuild, error) {
	build := f.static
	if fn, ok := f.builders[t.Name]; ok {
		build = fn
	}
	built, err := build(t, params)
	if err != nil {
		if pkgerrors.KindOf(err) == pkgerrors.KindInternal {
			return nil, pkgerrors.Newf(pkgerrors.KindInvalidRequest, "%s: %v", t.Name, err).WithCause(err)
		}
		return nil, err
	}
	if built.Title == "" {
		built.Title = t.Title
	}
	return built, nil
}

// applyPinProperties treats params that name an input pin as that pin's default,
// so {"InString": "hi"} works as a creation property. Other unknown params are ignored.
func (f *catalogFactory) applyPinProperties(node *entities.Node, t *NodeType, params entities.Params) error {
	declared := make(map[string]bool, len(t.Required)+len(t.Optional))
	for _, k := range append(append([]string{}, t.Required...), t.Optional...) {
		declared[strings.ToLower(k)] = true
	}
	for _, key := range params.Keys() {
		if declared[strings.ToLower(key)] {
			continue
		}
		p := pins.Find(node, key, valueobjects.PinInput)
		if p == nil || !p.Type().CarriesValue() {
			f.logger.Debug("ignoring unknown node property", zap.String("type", t.Name), zap.String("property", key))
			continue
		}
		raw, err := json.Marshal(params[key])
		if err != nil {
			return pkgerrors.Newf(pkgerrors.KindInvalidPinValue, "property %q: %v", key, err)
		}
		v, err := pins.DecodeValue(p, raw)
		if err != nil {
			return err
		}
		p.AssignDefault(v)
		node.NotifyPinDefaultChanged(p)
	}
	return nil
}

// Supports reports whether typeName or an alias of it is declared
func (f *catalogFactory) Supports(typeName string) bool {
	_, ok := f.catalog.Lookup(typeName)
	return ok
}

// SupportedTypes returns the canonical type names, sorted
func (f *catalogFactory) SupportedTypes() []string {
	return f.catalog.Types()
}

func (f *catalogFactory) RequiredParams(typeName string) []string {
	if t, ok := f.catalog.Lookup(typeName); ok {
		return append([]string(nil), t.Required...)
	}
	return nil
}

func (f *catalogFactory) OptionalParams(typeName string) []string {
	if t, ok := f.catalog.Lookup(typeName); ok {
		return append([]string(nil), t.Optional...)
	}
	return nil
}

// Describe returns the discovery view of a type
func (f *catalogFactory) Describe(typeName string) (TypeInfo, bool) {
	t, ok := f.catalog.Lookup(typeName)
	if !ok {
		return TypeInfo{}, false
	}
	_, dynamic := f.builders[t.Name]
	return TypeInfo{
		Domain:      f.domain,
		Name:        t.Name,
		Title:       t.Title,
		Description: t.Description,
		Class:       t.Class,
		Aliases:     append([]string(nil), t.Aliases...),
		Required:    append([]string(nil), t.Required...),
		Optional:    append([]string(nil), t.Optional...),
		Dynamic:     dynamic,
		Pins:        pinInfos(t.Pins),
	}, true
}

type savedLink struct {
	pin   string
	dir   valueobjects.PinDirection
	other *entities.Pin
}

// ReconstructNode reallocates the node's pins. Defaults carry over when the
// value still fits the new type, split pins are split again, and links are
// remade through the schema. Links whose pin no longer exists are dropped.
func (f *catalogFactory) ReconstructNode(g *aggregates.Graph, node *entities.Node) error {
	if node == nil || !g.Owns(node) {
		return pkgerrors.New(pkgerrors.KindRefNotFound, "node is not part of the graph")
	}

	specs := node.Template()
	if t, ok := f.catalog.Lookup(node.TypeName()); ok {
		built, err := f.resolve(t, node.Params())
		if err != nil {
			f.logger.Warn("reconstruct fell back to the allocated template",
				zap.String("node", node.Name()), zap.Error(err))
		} else {
			specs = built.Pins
		}
	}

	old := node.Pins()
	var links []savedLink
	for _, p := range old {
		for _, other := range p.Links() {
			links = append(links, savedLink{pin: p.Name(), dir: p.Direction(), other: other})
		}
	}
	for _, p := range old {
		g.BreakPinLinks(p, false)
	}

	fresh := make([]*entities.Pin, 0, len(specs))
	landing := make(map[string]bool)
	for _, spec := range specs {
		p := entities.NewPin(spec)
		if prev := topLevelPin(old, spec.Name, spec.Direction); prev != nil && spec.Type.CarriesValue() && !prev.IsSplit() {
			if v, err := pins.ConvertValue(p, prev.Default()); err == nil {
				p.AssignDefault(v)
			}
		}
		fresh = append(fresh, p)
		landing[pinKey(spec.Name, spec.Direction)] = true
		if prev := topLevelPin(old, spec.Name, spec.Direction); prev != nil && prev.IsSplit() && prev.Type().Equals(spec.Type) {
			for _, c := range prev.Children() {
				landing[pinKey(c.Name(), c.Direction())] = true
			}
		}
	}

	dropped := 0
	for _, l := range links {
		if !landing[pinKey(l.pin, l.dir)] {
			dropped++
		}
	}
	if err := g.ReplaceNodePins(node, fresh, dropped); err != nil {
		return err
	}

	for _, prev := range old {
		if !prev.IsSplit() {
			continue
		}
		p := topLevelPin(fresh, prev.Name(), prev.Direction())
		if p == nil || !p.Type().Equals(prev.Type()) || !pins.CanSplit(g, p) {
			continue
		}
		children, err := pins.Split(g, p)
		if err != nil {
			continue
		}
		for _, c := range children {
			pc := childNamed(prev, c.Name())
			if pc == nil {
				continue
			}
			if err := pins.SetDefault(g, c, pc.Default()); err != nil {
				f.logger.Warn("sub-pin default dropped on reconstruct",
					zap.String("pin", c.Path()), zap.Error(err))
			}
		}
	}

	for _, l := range links {
		p := pinNamed(node.Pins(), l.pin, l.dir)
		other := l.other
		if other.Node() == node {
			// The far end was one of this node's old pins.
			other = pinNamed(node.Pins(), other.Name(), other.Direction())
		}
		if p == nil || other == nil || !g.Owns(other.Node()) {
			continue
		}
		if _, err := pins.Connect(g, p, other); err != nil {
			dropped++
			f.logger.Warn("link dropped on reconstruct",
				zap.String("pin", p.Path()), zap.String("other", other.Path()), zap.Error(err))
		}
	}

	f.logger.Debug("node reconstructed",
		zap.String("name", node.Name()),
		zap.Int("pins", node.PinCount()),
		zap.Int("dropped_links", dropped))
	return nil
}

func pinKey(name string, dir valueobjects.PinDirection) string {
	return string(dir) + "/" + strings.ToLower(name)
}

func pinNamed(list []*entities.Pin, name string, dir valueobjects.PinDirection) *entities.Pin {
	for _, p := range list {
		if p.Direction() == dir && strings.EqualFold(p.Name(), name) {
			return p
		}
	}
	return nil
}

func topLevelPin(list []*entities.Pin, name string, dir valueobjects.PinDirection) *entities.Pin {
	for _, p := range list {
		if !p.IsSubPin() && p.Direction() == dir && strings.EqualFold(p.Name(), name) {
			return p
		}
	}
	return nil
}

func childNamed(parent *entities.Pin, name string) *entities.Pin {
	for _, c := range parent.Children() {
		if strings.EqualFold(c.Name(), name) {
			return c
		}
	}
	return nil
}

// missingParams lists the required params that are absent or empty, sorted.
func missingParams(t *NodeType, params entities.Params) []string {
	var missing []string
	for _, key := range t.Required {
		if s, ok := params.String(key); !ok || strings.TrimSpace(s) == "" {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}

// overrideDefault returns a copy of specs in which the named pin takes its
// default from params[key], when that param is set.
func overrideDefault(specs []entities.PinSpec, pinName string, params entities.Params, key string) ([]entities.PinSpec, error) {
	v, ok := params.Lookup(key)
	if !ok || v == nil {
		return specs, nil
	}
	out := append([]entities.PinSpec(nil), specs...)
	for i := range out {
		if out[i].Name != pinName {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, pkgerrors.Newf(pkgerrors.KindInvalidPinValue, "parameter %q: %v", key, err)
		}
		val, err := pins.DecodeValue(entities.NewPin(out[i]), raw)
		if err != nil {
			return nil, err
		}
		out[i].Default = &val
		return out, nil
	}
	return out, nil
}

// stringList reads a param given as a JSON array or a comma-separated string.
func stringList(params entities.Params, key string) []string {
	v, ok := params.Lookup(key)
	if !ok || v == nil {
		return nil
	}
	var raw []string
	switch t := v.(type) {
	case []string:
		raw = t
	case []any:
		for _, item := range t {
			raw = append(raw, fmt.Sprint(item))
		}
	default:
		raw = strings.Split(fmt.Sprint(t), ",")
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func findSpec(specs []entities.PinSpec, pinName string) (entities.PinSpec, bool) {
	for _, s := range specs {
		if s.Name == pinName {
			return s, true
		}
	}
	return entities.PinSpec{}, false
}
