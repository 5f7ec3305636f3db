package valueobjects

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// PinDirection is the side of a node a pin sits on.
type PinDirection string

const (
	PinInput  PinDirection = "input"
	PinOutput PinDirection = "output"
)

// ParsePinDirection accepts "input"/"in" and "output"/"out", case-insensitively.
func ParsePinDirection(s string) (PinDirection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "input", "in":
		return PinInput, nil
	case "output", "out":
		return PinOutput, nil
	}
	return "", fmt.Errorf("unknown pin direction %q", s)
}

// Opposite returns the direction a compatible pin must have
func (d PinDirection) Opposite() PinDirection {
	if d == PinInput {
		return PinOutput
	}
	return PinInput
}

func (d PinDirection) String() string {
	return string(d)
}

// PinCategory is the coarse type of a pin.
type PinCategory string

const (
	PinCategoryExec         PinCategory = "exec"
	PinCategoryBool         PinCategory = "bool"
	PinCategoryInt          PinCategory = "int"
	PinCategoryFloat        PinCategory = "float"
	PinCategoryString       PinCategory = "string"
	PinCategoryName         PinCategory = "name"
	PinCategoryObject       PinCategory = "object"
	PinCategoryStruct       PinCategory = "struct"
	PinCategoryWildcard     PinCategory = "wildcard"
	PinCategoryDelegate     PinCategory = "delegate"
	PinCategoryFloat1       PinCategory = "float1"
	PinCategoryFloat2       PinCategory = "float2"
	PinCategoryFloat3       PinCategory = "float3"
	PinCategoryFloat4       PinCategory = "float4"
	PinCategoryTexture      PinCategory = "texture"
	PinCategoryParameterMap PinCategory = "parameter_map"
	PinCategoryTransition   PinCategory = "transition"
)

var knownCategories = map[PinCategory]bool{
	PinCategoryExec: true, PinCategoryBool: true, PinCategoryInt: true, PinCategoryFloat: true,
	PinCategoryString: true, PinCategoryName: true, PinCategoryObject: true, PinCategoryStruct: true,
	PinCategoryWildcard: true, PinCategoryDelegate: true, PinCategoryFloat1: true, PinCategoryFloat2: true,
	PinCategoryFloat3: true, PinCategoryFloat4: true, PinCategoryTexture: true,
	PinCategoryParameterMap: true, PinCategoryTransition: true,
}

// StructField is one named member of a structured pin type.
type StructField struct {
	Name string
	Type PinType
}

// structLayouts holds the member layout of the struct types pins can carry.
// A struct registered with no fields has an opaque value and cannot be split.
var structLayouts = map[string][]StructField{
	"Vector": {
		{Name: "X", Type: FloatPin()},
		{Name: "Y", Type: FloatPin()},
		{Name: "Z", Type: FloatPin()},
	},
	"Vector2D": {
		{Name: "X", Type: FloatPin()},
		{Name: "Y", Type: FloatPin()},
	},
	"Rotator": {
		{Name: "Roll", Type: FloatPin()},
		{Name: "Pitch", Type: FloatPin()},
		{Name: "Yaw", Type: FloatPin()},
	},
	"LinearColor": {
		{Name: "R", Type: FloatPin()},
		{Name: "G", Type: FloatPin()},
		{Name: "B", Type: FloatPin()},
		{Name: "A", Type: FloatPin()},
	},
	"Transform": nil,
}

// typeShorthands lets catalogs write "vector" instead of "struct:Vector".
var typeShorthands = map[string]PinType{
	"vector":      StructPin("Vector"),
	"vector2d":    StructPin("Vector2D"),
	"rotator":     StructPin("Rotator"),
	"linearcolor": StructPin("LinearColor"),
	"color":       StructPin("LinearColor"),
	"transform":   StructPin("Transform"),
	"real":        FloatPin(),
	"double":      FloatPin(),
	"integer":     {Category: PinCategoryInt},
	"text":        {Category: PinCategoryString},
}

// PinType is the full type of a pin: a category plus an optional sub-category
// (struct name for struct pins, class name for object pins).
type PinType struct {
	Category    PinCategory `json:"category"`
	SubCategory string      `json:"sub_category,omitempty"`
}

// FloatPin is the common scalar type
func FloatPin() PinType {
	return PinType{Category: PinCategoryFloat}
}

// ExecPin is the execution flow type
func ExecPin() PinType {
	return PinType{Category: PinCategoryExec}
}

// StructPin creates a struct pin type with the given struct name
func StructPin(name string) PinType {
	return PinType{Category: PinCategoryStruct, SubCategory: name}
}

// ParsePinType parses "category" or "category:sub" forms, plus shorthands like "vector".
func ParsePinType(s string) (PinType, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return PinType{}, fmt.Errorf("pin type cannot be empty")
	}
	if t, ok := typeShorthands[strings.ToLower(raw)]; ok {
		return t, nil
	}

	category, sub, _ := strings.Cut(raw, ":")
	t := PinType{Category: PinCategory(strings.ToLower(category)), SubCategory: sub}
	if !knownCategories[t.Category] {
		return PinType{}, fmt.Errorf("unknown pin category %q", category)
	}
	if t.Category == PinCategoryStruct {
		if _, ok := structLayouts[sub]; !ok {
			return PinType{}, fmt.Errorf("unknown struct type %q", sub)
		}
	}
	return t, nil
}

// MustParsePinType is ParsePinType for static tables; it panics on bad input.
func MustParsePinType(s string) PinType {
	t, err := ParsePinType(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t PinType) String() string {
	if t.SubCategory == "" {
		return string(t.Category)
	}
	return string(t.Category) + ":" + t.SubCategory
}

// Equals compares category and sub-category
func (t PinType) Equals(other PinType) bool {
	return t.Category == other.Category && t.SubCategory == other.SubCategory
}

// IsExecLike reports whether the pin models flow rather than data.
func (t PinType) IsExecLike() bool {
	switch t.Category {
	case PinCategoryExec, PinCategoryDelegate, PinCategoryTransition, PinCategoryParameterMap:
		return true
	}
	return false
}

// CarriesValue reports whether a pin of this type can hold a default value.
func (t PinType) CarriesValue() bool {
	return !t.IsExecLike()
}

// IsNumeric reports whether the pin holds a scalar or vector of numbers.
func (t PinType) IsNumeric() bool {
	switch t.Category {
	case PinCategoryInt, PinCategoryFloat, PinCategoryFloat1, PinCategoryFloat2,
		PinCategoryFloat3, PinCategoryFloat4:
		return true
	}
	return false
}

// Arity is the component count of material float vectors, 1 for everything else.
func (t PinType) Arity() int {
	switch t.Category {
	case PinCategoryFloat2:
		return 2
	case PinCategoryFloat3:
		return 3
	case PinCategoryFloat4:
		return 4
	}
	return 1
}

// StructFields returns the member layout for a splittable struct type.
func (t PinType) StructFields() ([]StructField, bool) {
	if t.Category != PinCategoryStruct {
		return nil, false
	}
	fields := structLayouts[t.SubCategory]
	return fields, len(fields) > 0
}

// ValueType maps the pin type to the cty type its default value has.
func (t PinType) ValueType() cty.Type {
	switch t.Category {
	case PinCategoryBool:
		return cty.Bool
	case PinCategoryInt, PinCategoryFloat, PinCategoryFloat1:
		return cty.Number
	case PinCategoryString, PinCategoryName, PinCategoryObject, PinCategoryTexture:
		return cty.String
	case PinCategoryFloat2, PinCategoryFloat3, PinCategoryFloat4:
		return cty.List(cty.Number)
	case PinCategoryStruct:
		fields, ok := t.StructFields()
		if !ok {
			return cty.String
		}
		attrs := make(map[string]cty.Type, len(fields))
		for _, f := range fields {
			attrs[f.Name] = f.Type.ValueType()
		}
		return cty.Object(attrs)
	}
	return cty.DynamicPseudoType
}

// NoValue is the default held by pins that carry no data.
func NoValue() cty.Value {
	return cty.NullVal(cty.DynamicPseudoType)
}

// ZeroValue is the value a freshly allocated pin holds when no default is declared.
func (t PinType) ZeroValue() cty.Value {
	if !t.CarriesValue() || t.Category == PinCategoryWildcard {
		return NoValue()
	}
	switch t.Category {
	case PinCategoryBool:
		return cty.False
	case PinCategoryInt, PinCategoryFloat, PinCategoryFloat1:
		return cty.Zero
	case PinCategoryString, PinCategoryName, PinCategoryObject, PinCategoryTexture:
		return cty.StringVal("")
	case PinCategoryFloat2, PinCategoryFloat3, PinCategoryFloat4:
		elems := make([]cty.Value, t.Arity())
		for i := range elems {
			elems[i] = cty.Zero
		}
		return cty.ListVal(elems)
	case PinCategoryStruct:
		fields, ok := t.StructFields()
		if !ok {
			return cty.StringVal("")
		}
		attrs := make(map[string]cty.Value, len(fields))
		for _, f := range fields {
			attrs[f.Name] = f.Type.ZeroValue()
		}
		return cty.ObjectVal(attrs)
	}
	return NoValue()
}
