package pins

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"graphengine/domain/core/aggregates"
	"graphengine/domain/core/entities"
	"graphengine/domain/core/valueobjects"
	pkgerrors "graphengine/pkg/errors"
)

// GetDefault returns the pin's default value. A linked pin keeps its default.
func GetDefault(pin *entities.Pin) cty.Value {
	if pin == nil {
		return valueobjects.NoValue()
	}
	return pin.Default()
}

// GetDefaultString returns the default rendered as JSON
func GetDefaultString(pin *entities.Pin) string {
	return valueobjects.FormatValue(GetDefault(pin))
}

// SetDefault converts value to the pin's type and assigns it. The owning node
// is always notified, even when the pin is linked.
func SetDefault(g *aggregates.Graph, pin *entities.Pin, value cty.Value) error {
	if pin == nil {
		return pkgerrors.New(pkgerrors.KindPinNotFound, "pin is required")
	}
	if pin.IsSplit() {
		return pkgerrors.Newf(pkgerrors.KindInvalidPinValue,
			"%s is split; set its sub-pins or recombine it first", pin.Path())
	}
	converted, err := ConvertValue(pin, value)
	if err != nil {
		return err
	}
	return g.SetPinDefault(pin, converted)
}

// DecodeValue parses a JSON document into a value of the pin's type.
func DecodeValue(pin *entities.Pin, raw json.RawMessage) (cty.Value, error) {
	if pin == nil {
		return cty.NilVal, pkgerrors.New(pkgerrors.KindPinNotFound, "pin is required")
	}
	ty, err := ctyjson.ImpliedType(raw)
	if err != nil {
		return cty.NilVal, pkgerrors.Newf(pkgerrors.KindInvalidPinValue, "%s: value is not valid JSON", pin.Path()).WithCause(err)
	}
	v, err := ctyjson.Unmarshal(raw, ty)
	if err != nil {
		return cty.NilVal, pkgerrors.Newf(pkgerrors.KindInvalidPinValue, "%s: value is not valid JSON", pin.Path()).WithCause(err)
	}
	return ConvertValue(pin, v)
}

// ConvertValue coerces v to the pin's value type. Numeric strings, scalar
// broadcast into material vectors and "(X=1,Y=2,Z=3)" struct literals are accepted.
func ConvertValue(pin *entities.Pin, v cty.Value) (cty.Value, error) {
	t := pin.Type()
	if !t.CarriesValue() {
		return cty.NilVal, pkgerrors.Newf(pkgerrors.KindInvalidPinValue, "%s is a %s pin and has no default value", pin.Path(), t)
	}
	if v.IsNull() {
		return cty.NilVal, pkgerrors.Newf(pkgerrors.KindInvalidPinValue, "%s: value cannot be null", pin.Path())
	}

	ty := t.ValueType()
	if ty.Equals(cty.DynamicPseudoType) {
		return v, nil
	}

	if _, ok := t.StructFields(); ok && v.Type().Equals(cty.String) {
		parsed, err := parseStructLiteral(v.AsString())
		if err != nil {
			return cty.NilVal, pkgerrors.Newf(pkgerrors.KindInvalidPinValue, "%s: %v", pin.Path(), err)
		}
		v = parsed
	}
	if t.Arity() > 1 && v.Type().Equals(cty.Number) {
		elems := make([]cty.Value, t.Arity())
		for i := range elems {
			elems[i] = v
		}
		v = cty.ListVal(elems)
	}

	out, err := convert.Convert(v, ty)
	if err != nil {
		return cty.NilVal, pkgerrors.Newf(pkgerrors.KindInvalidPinValue,
			"%s expects %s: %v", pin.Path(), t, err)
	}
	if !out.IsWhollyKnown() || out.IsNull() {
		return cty.NilVal, pkgerrors.Newf(pkgerrors.KindInvalidPinValue, "%s: value must be known", pin.Path())
	}

	switch {
	case t.Category == valueobjects.PinCategoryInt:
		if !out.AsBigFloat().IsInt() {
			return cty.NilVal, pkgerrors.Newf(pkgerrors.KindInvalidPinValue, "%s expects an integer", pin.Path())
		}
	case t.Arity() > 1:
		if out.LengthInt() != t.Arity() {
			return cty.NilVal, pkgerrors.Newf(pkgerrors.KindInvalidPinValue,
				"%s expects %d components, got %d", pin.Path(), t.Arity(), out.LengthInt())
		}
	}
	return out, nil
}

// parseStructLiteral reads the "(X=1.0,Y=2.0,Z=3.0)" text form hosts use for struct defaults.
func parseStructLiteral(s string) (cty.Value, error) {
	body := strings.TrimSpace(s)
	if !strings.HasPrefix(body, "(") || !strings.HasSuffix(body, ")") {
		return cty.NilVal, fmt.Errorf("struct literal %q must look like (X=1,Y=2)", s)
	}
	body = strings.TrimSuffix(strings.TrimPrefix(body, "("), ")")
	attrs := map[string]cty.Value{}
	for _, part := range strings.Split(body, ",") {
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return cty.NilVal, fmt.Errorf("struct literal member %q has no '='", part)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return cty.NilVal, fmt.Errorf("struct literal member %q is not a number", part)
		}
		attrs[strings.TrimSpace(key)] = cty.NumberFloatVal(f)
	}
	return cty.ObjectVal(attrs), nil
}

// CanSplit asks the graph schema whether pin can be expanded now.
func CanSplit(g *aggregates.Graph, pin *entities.Pin) bool {
	return pin != nil && g.Schema().CanSplit(pin)
}

// CanRecombine asks the graph schema whether pin (or its parent) can be folded back.
func CanRecombine(g *aggregates.Graph, pin *entities.Pin) bool {
	return pin != nil && g.Schema().CanRecombine(pin)
}

// Split expands a structured pin into one sub-pin per member. Sub-pins take
// their defaults from the parent's current value.
func Split(g *aggregates.Graph, pin *entities.Pin) ([]*entities.Pin, error) {
	if pin == nil {
		return nil, pkgerrors.New(pkgerrors.KindPinNotFound, "pin is required")
	}
	if !CanSplit(g, pin) {
		return nil, pkgerrors.Newf(pkgerrors.KindNotSplittable,
			"%s (%s) cannot be split in its current state", pin.Path(), pin.Type())
	}
	fields, _ := pin.Type().StructFields()

	parent := pin.Default()
	children := make([]*entities.Pin, 0, len(fields))
	for _, f := range fields {
		def := f.Type.ZeroValue()
		if parent.Type().IsObjectType() && !parent.IsNull() && parent.Type().HasAttribute(f.Name) {
			if attr, err := convert.Convert(parent.GetAttr(f.Name), f.Type.ValueType()); err == nil && !attr.IsNull() {
				def = attr
			}
		}
		children = append(children, entities.NewPin(entities.PinSpec{
			Name:         pin.Name() + "_" + f.Name,
			FriendlyName: pin.DisplayName() + " " + f.Name,
			Direction:    pin.Direction(),
			Type:         f.Type,
			Default:      &def,
		}))
	}

	if err := g.SplitPin(pin, children); err != nil {
		return nil, err
	}
	return children, nil
}

// Recombine folds a split pin back together. Either the parent or any sub-pin
// may be given. Links on the sub-pins are broken first.
func Recombine(g *aggregates.Graph, pin *entities.Pin) error {
	if pin == nil {
		return pkgerrors.New(pkgerrors.KindPinNotFound, "pin is required")
	}
	parent := pin
	if parent.IsSubPin() {
		parent = parent.Parent()
	}
	if !CanRecombine(g, parent) {
		return pkgerrors.Newf(pkgerrors.KindNotRecombinable, "%s is not split", parent.Path())
	}

	attrs := make(map[string]cty.Value)
	for _, child := range parent.Children() {
		g.BreakPinLinks(child, true)
		member := strings.TrimPrefix(child.Name(), parent.Name()+"_")
		attrs[member] = child.Default()
	}
	value, err := convert.Convert(cty.ObjectVal(attrs), parent.Type().ValueType())
	if err != nil {
		value = parent.Type().ZeroValue()
	}
	return g.RecombinePin(parent, value)
}
