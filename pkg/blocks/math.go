package blocks

import (
	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/schema"
)

func binaryNumber(kind string, op func(a, b float64) float64) domain.Definition {
	return Function(kind,
		[]schema.Field{schema.F("a", schema.Number()), schema.F("b", schema.Number())},
		[]schema.Field{schema.F("result", schema.Number())},
		func(_, in schema.Values) (schema.Values, error) {
			return schema.Values{"result": schema.NewNumber(op(in.Get("a").Float(), in.Get("b").Float()))}, nil
		})
}

// Add outputs a + b.
func Add() domain.Definition {
	return binaryNumber("add", func(a, b float64) float64 { return a + b })
}

// Multiply outputs a * b.
func Multiply() domain.Definition {
	return binaryNumber("multiply", func(a, b float64) float64 { return a * b })
}

// Gain outputs its input scaled by the "factor" setting.
func Gain(factor float64) domain.Definition {
	def := Function("gain",
		[]schema.Field{schema.F("in", schema.Number())},
		[]schema.Field{schema.F("out", schema.Number())},
		func(settings, in schema.Values) (schema.Values, error) {
			return schema.Values{"out": schema.NewNumber(in.Get("in").Float() * settings.Get("factor").Float())}, nil
		})
	def.Settings = []schema.Field{{Name: "factor", Type: schema.Number(), Default: schema.NewNumber(factor)}}
	return def
}

// Greater outputs a > b.
func Greater() domain.Definition {
	return Function("greater",
		[]schema.Field{schema.F("a", schema.Number()), schema.F("b", schema.Number())},
		[]schema.Field{schema.F("result", schema.Boolean())},
		func(_, in schema.Values) (schema.Values, error) {
			return schema.Values{"result": schema.NewBoolean(in.Get("a").Float() > in.Get("b").Float())}, nil
		})
}

// Not negates its input.
func Not() domain.Definition {
	return Function("not",
		[]schema.Field{schema.F("in", schema.Boolean())},
		[]schema.Field{schema.F("out", schema.Boolean())},
		func(_, in schema.Values) (schema.Values, error) {
			return schema.Values{"out": schema.NewBoolean(!in.Get("in").Bool())}, nil
		})
}

func binaryBool(kind string, op func(a, b bool) bool) domain.Definition {
	return Function(kind,
		[]schema.Field{schema.F("a", schema.Boolean()), schema.F("b", schema.Boolean())},
		[]schema.Field{schema.F("result", schema.Boolean())},
		func(_, in schema.Values) (schema.Values, error) {
			return schema.Values{"result": schema.NewBoolean(op(in.Get("a").Bool(), in.Get("b").Bool()))}, nil
		})
}

// And outputs a && b.
func And() domain.Definition {
	return binaryBool("and", func(a, b bool) bool { return a && b })
}

// Or outputs a || b.
func Or() domain.Definition {
	return binaryBool("or", func(a, b bool) bool { return a || b })
}
