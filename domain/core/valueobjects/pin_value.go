package valueobjects

import (
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// FormatValue renders a pin value as compact JSON. Null and unknown values render as "null".
func FormatValue(v cty.Value) string {
	if v.IsNull() || !v.IsWhollyKnown() {
		return "null"
	}
	buf, err := ctyjson.Marshal(v, v.Type())
	if err != nil {
		return v.GoString()
	}
	return string(buf)
}

// ValuesEqual compares two pin values structurally.
func ValuesEqual(a, b cty.Value) bool {
	return a.RawEquals(b)
}
