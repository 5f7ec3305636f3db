package factories

import (
	"strings"

	"go.uber.org/zap"

	"graphengine/domain/core/entities"
	"graphengine/domain/core/valueobjects"
	pkgerrors "graphengine/pkg/errors"
)

var (
	scriptUsages = map[string]bool{"spawn": true, "update": true, "event": true}
	particleOps  = map[string]bool{"add": true, "subtract": true, "multiply": true, "divide": true, "min": true, "max": true}
)

// ParticlePayload is the payload of particle graph nodes.
type ParticlePayload struct {
	Class      string   `json:"class"`
	Usage      string   `json:"usage,omitempty"`
	Script     string   `json:"script,omitempty"`
	Op         string   `json:"op,omitempty"`
	Attributes []string `json:"attributes,omitempty"`
}

func (p *ParticlePayload) Kind() string { return p.Class }

func (p *ParticlePayload) Clone() entities.Payload {
	c := *p
	c.Attributes = append([]string(nil), p.Attributes...)
	return &c
}

// ParticleFactory creates particle script nodes.
type ParticleFactory struct {
	*catalogFactory
}

// NewParticleFactory loads the particle catalog
func NewParticleFactory(logger *zap.Logger) (*ParticleFactory, error) {
	f := &ParticleFactory{}
	base, err := newCatalogFactory(valueobjects.DomainParticle, logger, f.buildStatic, map[string]buildFunc{
		"ParticleInput":  f.buildUsage,
		"ParticleOutput": f.buildUsage,
		"Module":         f.buildModule,
		"MapGet":         f.mapBuilder(valueobjects.PinOutput),
		"MapSet":         f.mapBuilder(valueobjects.PinInput),
		"Op":             f.buildOp,
	})
	if err != nil {
		return nil, err
	}
	f.catalogFactory = base
	return f, nil
}

func (f *ParticleFactory) buildStatic(t *NodeType, _ entities.Params) (*nodeBuild, error) {
	return &nodeBuild{Pins: t.Pins, Payload: &ParticlePayload{Class: t.Class}}, nil
}

func (f *ParticleFactory) buildUsage(t *NodeType, params entities.Params) (*nodeBuild, error) {
	usage := strings.ToLower(params.StringOr("usage", "update"))
	if !scriptUsages[usage] {
		return nil, pkgerrors.Newf(pkgerrors.KindInvalidRequest, "%s usage must be spawn, update or event, got %q", t.Name, usage)
	}
	return &nodeBuild{Pins: t.Pins, Payload: &ParticlePayload{Class: t.Class, Usage: usage}}, nil
}

func (f *ParticleFactory) buildModule(t *NodeType, params entities.Params) (*nodeBuild, error) {
	name, _ := params.String("script")
	sig, ok := f.catalog.Script(name)
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.KindInvalidRequest,
			"unknown module script %q (known: %s)", name, strings.Join(f.catalog.Scripts(), ", ")).
			WithDetail("script", name)
	}
	return &nodeBuild{
		Title:   sig.Title,
		Pins:    sig.Pins,
		Payload: &ParticlePayload{Class: t.Class, Script: sig.Name},
	}, nil
}

// mapBuilder adds one pin per "name:type" attribute in the given direction.
func (f *ParticleFactory) mapBuilder(dir valueobjects.PinDirection) buildFunc {
	return func(t *NodeType, params entities.Params) (*nodeBuild, error) {
		attrs := stringList(params, "attributes")
		specs := append([]entities.PinSpec(nil), t.Pins...)
		for _, attr := range attrs {
			name, typ, found := strings.Cut(attr, ":")
			if !found {
				typ = "float"
			}
			pinType, err := valueobjects.ParsePinType(typ)
			if err != nil || pinType.IsExecLike() {
				return nil, pkgerrors.Newf(pkgerrors.KindInvalidRequest, "attribute %q has an unusable type %q", name, typ)
			}
			specs = append(specs, entities.PinSpec{Name: strings.TrimSpace(name), Direction: dir, Type: pinType})
		}
		return &nodeBuild{Pins: sortInputsFirst(specs), Payload: &ParticlePayload{Class: t.Class, Attributes: attrs}}, nil
	}
}

func (f *ParticleFactory) buildOp(t *NodeType, params entities.Params) (*nodeBuild, error) {
	op, _ := params.String("op")
	op = strings.ToLower(strings.TrimSpace(op))
	if !particleOps[op] {
		return nil, pkgerrors.Newf(pkgerrors.KindInvalidRequest, "unknown op %q", op).WithDetail("op", op)
	}
	pinType, err := valueobjects.ParsePinType(params.StringOr("type", "float"))
	if err != nil || !pinType.CarriesValue() {
		return nil, pkgerrors.Newf(pkgerrors.KindInvalidRequest, "Op type %q is not a value type", params.StringOr("type", "float"))
	}
	specs := []entities.PinSpec{
		{Name: "A", Direction: valueobjects.PinInput, Type: pinType},
		{Name: "B", Direction: valueobjects.PinInput, Type: pinType},
		{Name: "Result", Direction: valueobjects.PinOutput, Type: pinType},
	}
	return &nodeBuild{
		Title:   strings.ToUpper(op[:1]) + op[1:],
		Pins:    specs,
		Payload: &ParticlePayload{Class: t.Class, Op: op},
	}, nil
}

// sortInputsFirst keeps declaration order within each direction.
func sortInputsFirst(specs []entities.PinSpec) []entities.PinSpec {
	out := make([]entities.PinSpec, 0, len(specs))
	for _, dir := range []valueobjects.PinDirection{valueobjects.PinInput, valueobjects.PinOutput} {
		for _, s := range specs {
			if s.Direction == dir {
				out = append(out, s)
			}
		}
	}
	return out
}
