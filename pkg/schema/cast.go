package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Cast converts v to the target type. It never fails: numbers coerce
// numerically, booleans by truthiness, text by stringification and options
// by clamped rounding. Casting to Opaque or to an absent type returns v
// unchanged.
func (v Value) Cast(t TypeSpec) Value {
	switch t.Kind {
	case KindOpaque, KindNone:
		return v
	case KindNumber:
		return NewNumber(v.toNumber())
	case KindBoolean:
		return NewBoolean(v.toBool())
	case KindText:
		return NewText(v.toText())
	case KindOption:
		if v.spec.Kind == KindNumber || v.spec.Kind == KindText {
			return NewOption(roundIndex(v.toNumber()), t.Choices)
		}
		return NewOption(v.toIndex(), t.Choices)
	}
	return v
}

func (v Value) toNumber() float64 {
	switch v.spec.Kind {
	case KindNumber:
		return v.num
	case KindBoolean:
		if v.flag {
			return 1
		}
		return 0
	case KindText:
		return parseNumber(v.text)
	case KindOption:
		return float64(v.index)
	case KindOpaque:
		return FromGo(v.opaque).opaqueSafe().toNumber()
	default:
		return 0
	}
}

func (v Value) toBool() bool {
	switch v.spec.Kind {
	case KindNumber:
		return v.num != 0 && !math.IsNaN(v.num)
	case KindBoolean:
		return v.flag
	case KindText:
		return parseBool(v.text)
	case KindOption:
		return v.index != 0
	case KindOpaque:
		return FromGo(v.opaque).opaqueSafe().toBool()
	default:
		return false
	}
}

func (v Value) toText() string {
	switch v.spec.Kind {
	case KindNumber:
		return formatNumber(v.num)
	case KindBoolean:
		return strconv.FormatBool(v.flag)
	case KindText:
		return v.text
	case KindOption:
		return strconv.Itoa(v.index)
	case KindOpaque:
		if v.opaque == nil {
			return ""
		}
		if s, ok := v.opaque.(fmt.Stringer); ok {
			return s.String()
		}
		return fmt.Sprint(v.opaque)
	default:
		return ""
	}
}

func (v Value) toIndex() int {
	switch v.spec.Kind {
	case KindOption:
		return v.index
	case KindBoolean:
		if v.flag {
			return 1
		}
		return 0
	default:
		return roundIndex(v.toNumber())
	}
}

// opaqueSafe stops an Opaque payload that wraps another Opaque from recursing.
func (v Value) opaqueSafe() Value {
	if v.spec.Kind == KindOpaque {
		return Value{}
	}
	return v
}

// parseNumber uses cty's string-to-number conversion; unparseable text is 0.
func parseNumber(s string) float64 {
	f, _ := parseNumberOK(s)
	return f
}

func parseNumberOK(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	converted, err := convert.Convert(cty.StringVal(s), cty.Number)
	if err != nil || converted.IsNull() || !converted.IsKnown() {
		return 0, false
	}
	f, _ := converted.AsBigFloat().Float64()
	return f, true
}

// formatNumber uses cty's canonical number-to-string conversion so that
// integers print without exponent or trailing zeros.
func formatNumber(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	converted, err := convert.Convert(cty.NumberFloatVal(f), cty.String)
	if err != nil {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return converted.AsString()
}

func parseBool(s string) bool {
	clean := strings.ToLower(strings.TrimSpace(s))
	if converted, err := convert.Convert(cty.StringVal(clean), cty.Bool); err == nil && converted.IsKnown() && !converted.IsNull() {
		return converted.True()
	}
	switch clean {
	case "", "0", "n", "no", "off", "false":
		return false
	}
	if f, ok := parseNumberOK(clean); ok {
		return f != 0
	}
	return true
}

func roundIndex(f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int(math.Round(f))
}

func clampIndex(i, n int) int {
	if n < 1 {
		n = 1
	}
	if i < 0 {
		return 0
	}
	if i > n-1 {
		return n - 1
	}
	return i
}

func goNumber(x any) (float64, bool) {
	switch n := x.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
