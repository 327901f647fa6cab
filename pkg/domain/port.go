package domain

import "github.com/aretw0/weave/pkg/schema"

// PortID is a stable handle into a Graph's port arena.
type PortID uint64

// PortClass separates value-carrying ports from execution triggers.
type PortClass uint8

const (
	DataFlow PortClass = iota
	ControlFlow
)

func (c PortClass) String() string {
	if c == ControlFlow {
		return "control"
	}
	return "data"
}

// Direction is the side of a port: Source ports produce, Sink ports consume.
type Direction uint8

const (
	Source Direction = iota
	Sink
)

func (d Direction) String() string {
	if d == Sink {
		return "sink"
	}
	return "source"
}

// Port is a connection point owned by exactly one Block.
type Port struct {
	ID        PortID
	Block     BlockID
	Name      string
	Class     PortClass
	Direction Direction
	Type      schema.TypeSpec

	// Value is the carried value (DataFlow only). Sources hold the last
	// computed output; sinks hold the last pulled input.
	Value schema.Value

	// Unconnected is what a DataFlow sink reads while it has no upstream link.
	Unconnected schema.Value
}

// Field returns the port's named-typed pair.
func (p *Port) Field() schema.Field {
	return schema.Field{Name: p.Name, Type: p.Type}
}

// CanConnect reports whether p and o may be linked.
func (p *Port) CanConnect(o *Port) bool {
	return p.Class == o.Class && p.Direction != o.Direction
}

// PortSpec declares a port in a block Definition.
type PortSpec struct {
	schema.Field
	Class     PortClass
	Direction Direction
}

// DataIn declares a DataFlow sink.
func DataIn(name string, t schema.TypeSpec) PortSpec {
	return PortSpec{Field: schema.F(name, t), Class: DataFlow, Direction: Sink}
}

// DataInDefault declares a DataFlow sink with an explicit unconnected value.
func DataInDefault(name string, v schema.Value) PortSpec {
	return PortSpec{Field: schema.Field{Name: name, Type: v.Type(), Default: v}, Class: DataFlow, Direction: Sink}
}

// DataOut declares a DataFlow source.
func DataOut(name string, t schema.TypeSpec) PortSpec {
	return PortSpec{Field: schema.F(name, t), Class: DataFlow, Direction: Source}
}

// ControlIn declares a ControlFlow sink ("begin" trigger).
func ControlIn(name string) PortSpec {
	return PortSpec{Field: schema.F(name, schema.None()), Class: ControlFlow, Direction: Sink}
}

// ControlOut declares a ControlFlow source ("completed" trigger).
func ControlOut(name string) PortSpec {
	return PortSpec{Field: schema.F(name, schema.None()), Class: ControlFlow, Direction: Source}
}
