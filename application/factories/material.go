package factories

import (
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/zap"

	"graphengine/domain/core/entities"
	"graphengine/domain/core/valueobjects"
	pkgerrors "graphengine/pkg/errors"
)

// valuePins are the pins whose default a material expression stores as its constant.
var valuePins = map[string]bool{"R": true, "Constant": true, "DefaultValue": true}

// ExpressionPayload is the payload of material expressions. Value mirrors the
// default of the expression's value pin.
type ExpressionPayload struct {
	Class         string    `json:"class"`
	ParameterName string    `json:"parameter_name,omitempty"`
	Group         string    `json:"group,omitempty"`
	Texture       string    `json:"texture,omitempty"`
	CoordIndex    int       `json:"coordinate_index,omitempty"`
	Value         cty.Value `json:"-"`
}

func (p *ExpressionPayload) Kind() string            { return p.Class }
func (p *ExpressionPayload) Clone() entities.Payload { c := *p; return &c }

// PinDefaultChanged keeps Value in step with the value pin.
func (p *ExpressionPayload) PinDefaultChanged(_ *entities.Node, pin *entities.Pin) {
	if valuePins[pin.Name()] {
		p.Value = pin.Default()
	}
}

// MaterialFactory creates material expressions.
type MaterialFactory struct {
	*catalogFactory
}

// NewMaterialFactory loads the material catalog
func NewMaterialFactory(logger *zap.Logger) (*MaterialFactory, error) {
	f := &MaterialFactory{}
	base, err := newCatalogFactory(valueobjects.DomainMaterial, logger, f.buildStatic, map[string]buildFunc{
		"Constant":        f.valueBuilder("R"),
		"Constant3Vector": f.valueBuilder("Constant"),
		"ScalarParameter": f.buildParameter,
		"VectorParameter": f.buildParameter,
		"TextureSample":   f.buildTextureSample,
		"TexCoord":        f.buildTexCoord,
	})
	if err != nil {
		return nil, err
	}
	f.catalogFactory = base
	return f, nil
}

func (f *MaterialFactory) buildStatic(t *NodeType, _ entities.Params) (*nodeBuild, error) {
	return &nodeBuild{Pins: t.Pins, Payload: &ExpressionPayload{Class: t.Class, Value: valueobjects.NoValue()}}, nil
}

// valueBuilder builds a constant expression whose "value" param seeds pinName.
func (f *MaterialFactory) valueBuilder(pinName string) buildFunc {
	return func(t *NodeType, params entities.Params) (*nodeBuild, error) {
		specs, err := overrideDefault(t.Pins, pinName, params, "value")
		if err != nil {
			return nil, err
		}
		return &nodeBuild{Pins: specs, Payload: &ExpressionPayload{Class: t.Class, Value: seededValue(specs, pinName)}}, nil
	}
}

func (f *MaterialFactory) buildParameter(t *NodeType, params entities.Params) (*nodeBuild, error) {
	specs, err := overrideDefault(t.Pins, "DefaultValue", params, "value")
	if err != nil {
		return nil, err
	}
	name, _ := params.String("parameter_name")
	return &nodeBuild{
		Title: name,
		Pins:  specs,
		Payload: &ExpressionPayload{
			Class:         t.Class,
			ParameterName: name,
			Group:         params.StringOr("group", "None"),
			Value:         seededValue(specs, "DefaultValue"),
		},
	}, nil
}

func (f *MaterialFactory) buildTextureSample(t *NodeType, params entities.Params) (*nodeBuild, error) {
	return &nodeBuild{
		Pins:    t.Pins,
		Payload: &ExpressionPayload{Class: t.Class, Texture: params.StringOr("texture", ""), Value: valueobjects.NoValue()},
	}, nil
}

func (f *MaterialFactory) buildTexCoord(t *NodeType, params entities.Params) (*nodeBuild, error) {
	idx, _, err := params.Int("index")
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.KindInvalidRequest, err.Error())
	}
	if idx < 0 || idx > 7 {
		return nil, pkgerrors.Newf(pkgerrors.KindInvalidRequest, "TexCoord index must be between 0 and 7, got %d", idx)
	}
	return &nodeBuild{
		Pins:    t.Pins,
		Payload: &ExpressionPayload{Class: t.Class, CoordIndex: idx, Value: valueobjects.NoValue()},
	}, nil
}

func seededValue(specs []entities.PinSpec, pinName string) cty.Value {
	spec, ok := findSpec(specs, pinName)
	if !ok {
		return valueobjects.NoValue()
	}
	if spec.Default != nil {
		return *spec.Default
	}
	return spec.Type.ZeroValue()
}
