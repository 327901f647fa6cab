// Package schema provides the dynamically typed values carried by ports and
// settings, and the type specifications they are declared with.
//
// A Value holds one of five kinds: Number, Boolean, Text, Option(N) and
// Opaque. Casting between kinds never fails:
//
//	v := schema.NewText(" 42 ")
//	n := v.Cast(schema.Number())   // number(42)
//	o := n.Cast(schema.Option(3))  // option(3)(2), clamped
//	b := o.Cast(schema.Boolean())  // bool(true)
//
// Text to number and number to text conversions go through cty so that
// integers survive a round trip exactly.
//
// Field is the named-typed pair used to declare ports, settings and graph
// slots, and the unit the reconcile package matches on.
package schema
