package domain

import (
	"fmt"
	"slices"

	"github.com/aretw0/weave/pkg/schema"
)

// Link is one connection, normalised so Source is always the source port.
type Link struct {
	Source PortID `json:"source"`
	Sink   PortID `json:"sink"`
}

// Slot is a named external input or output of a Graph.
type Slot struct {
	Name  string
	Type  schema.TypeSpec
	Value schema.Value
	// Default is the declared initial value, if any.
	Default schema.Value
}

// Field returns the slot's declaration, including its default.
func (s *Slot) Field() schema.Field {
	return schema.Field{Name: s.Name, Type: s.Type, Default: s.Default}
}

// Graph is an arena of blocks and ports. Blocks and ports are addressed by
// handles; connections live in a link table keyed by port.
//
// A Graph is not safe for concurrent use. Hosts mutate it between ticks.
type Graph struct {
	Name    string
	Inputs  []*Slot
	Outputs []*Slot

	blocks    map[BlockID]*Block
	order     []BlockID
	ports     map[PortID]*Port
	links     map[PortID]map[PortID]struct{}
	nextBlock BlockID
	nextPort  PortID
}

// NewGraph creates an empty graph.
func NewGraph(name string) *Graph {
	return &Graph{
		Name:   name,
		blocks: make(map[BlockID]*Block),
		ports:  make(map[PortID]*Port),
		links:  make(map[PortID]map[PortID]struct{}),
	}
}

// AddBlock creates a block from a definition and returns it.
func (g *Graph) AddBlock(name string, def Definition) *Block {
	g.nextBlock++
	b := &Block{
		ID:        g.nextBlock,
		Name:      name,
		Kind:      def.Kind,
		Compute:   def.Compute,
		Step:      def.Step,
		Branching: def.Branching,
	}
	for _, f := range def.Settings {
		b.Settings = append(b.Settings, Setting{Name: f.Name, Type: f.Type, Value: f.Initial()})
	}
	g.blocks[b.ID] = b
	g.order = append(g.order, b.ID)
	for _, spec := range def.Ports {
		g.addPort(b, spec)
	}
	return b
}

// RemoveBlock deletes a block, severing every connection of its ports.
func (g *Graph) RemoveBlock(id BlockID) error {
	b, ok := g.blocks[id]
	if !ok {
		return structural("remove block", id, 0, ErrBlockNotFound)
	}
	for _, pid := range b.ports {
		g.sever(pid)
		delete(g.ports, pid)
	}
	delete(g.blocks, id)
	g.order = slices.DeleteFunc(g.order, func(x BlockID) bool { return x == id })
	return nil
}

// Block looks up a block by handle.
func (g *Graph) Block(id BlockID) (*Block, bool) {
	b, ok := g.blocks[id]
	return b, ok
}

// BlockByName returns the first block with the given name.
func (g *Graph) BlockByName(name string) (*Block, bool) {
	for _, id := range g.order {
		if b := g.blocks[id]; b.Name == name {
			return b, true
		}
	}
	return nil, false
}

// Blocks returns every block in insertion order.
func (g *Graph) Blocks() []*Block {
	out := make([]*Block, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.blocks[id])
	}
	return out
}

// BlocksOfKind returns the blocks whose Kind matches.
func (g *Graph) BlocksOfKind(kind string) []*Block {
	var out []*Block
	for _, id := range g.order {
		if b := g.blocks[id]; b.Kind == kind {
			out = append(out, b)
		}
	}
	return out
}

// Len returns the number of blocks.
func (g *Graph) Len() int { return len(g.order) }

// Port looks up a port by handle.
func (g *Graph) Port(id PortID) (*Port, bool) {
	p, ok := g.ports[id]
	return p, ok
}

// Ports returns a block's ports in declaration order.
func (g *Graph) Ports(id BlockID) []*Port {
	b, ok := g.blocks[id]
	if !ok {
		return nil
	}
	out := make([]*Port, 0, len(b.ports))
	for _, pid := range b.ports {
		out = append(out, g.ports[pid])
	}
	return out
}

// PortGroup returns a block's ports of one class and direction, in order.
func (g *Graph) PortGroup(id BlockID, class PortClass, dir Direction) []*Port {
	var out []*Port
	for _, p := range g.Ports(id) {
		if p.Class == class && p.Direction == dir {
			out = append(out, p)
		}
	}
	return out
}

// FindPort returns the block's first port with the given direction and name.
func (g *Graph) FindPort(id BlockID, dir Direction, name string) (*Port, bool) {
	for _, p := range g.Ports(id) {
		if p.Direction == dir && p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// AddPort appends a port to an existing block.
func (g *Graph) AddPort(id BlockID, spec PortSpec) (*Port, error) {
	b, ok := g.blocks[id]
	if !ok {
		return nil, structural("add port", id, 0, ErrBlockNotFound)
	}
	return g.addPort(b, spec), nil
}

func (g *Graph) addPort(b *Block, spec PortSpec) *Port {
	g.nextPort++
	p := &Port{
		ID:        g.nextPort,
		Block:     b.ID,
		Name:      spec.Name,
		Class:     spec.Class,
		Direction: spec.Direction,
		Type:      spec.Type,
	}
	if spec.Class == DataFlow {
		p.Value = spec.Initial()
		p.Unconnected = spec.Initial()
	}
	g.ports[p.ID] = p
	b.ports = append(b.ports, p.ID)
	return p
}

// RemovePort deletes a port owned by the block, severing its connections.
func (g *Graph) RemovePort(id BlockID, pid PortID) error {
	b, ok := g.blocks[id]
	if !ok {
		return structural("remove port", id, pid, ErrBlockNotFound)
	}
	p, ok := g.ports[pid]
	if !ok || p.Block != id {
		return structural("remove port", id, pid, ErrPortNotOwned)
	}
	g.sever(pid)
	delete(g.ports, pid)
	b.ports = slices.DeleteFunc(b.ports, func(x PortID) bool { return x == pid })
	return nil
}

// RenamePort changes a port's name in place; its links are untouched.
func (g *Graph) RenamePort(pid PortID, name string) error {
	p, ok := g.ports[pid]
	if !ok {
		return structural("rename port", 0, pid, ErrPortNotFound)
	}
	p.Name = name
	return nil
}

// RetypePort changes a port's declared type, re-casting the values it holds.
func (g *Graph) RetypePort(pid PortID, t schema.TypeSpec) error {
	p, ok := g.ports[pid]
	if !ok {
		return structural("retype port", 0, pid, ErrPortNotFound)
	}
	if p.Type.Equal(t) {
		return nil
	}
	p.Type = t
	if p.Class == DataFlow {
		p.Value = p.Value.Cast(t)
		p.Unconnected = p.Unconnected.Cast(t)
	}
	return nil
}

// Connect links two ports. Ports must share a class and differ in direction.
// A DataFlow sink keeps a single link: connecting it drops any previous one.
func (g *Graph) Connect(a, b PortID) error {
	pa, ok := g.ports[a]
	if !ok {
		return structural("connect", 0, a, ErrPortNotFound)
	}
	pb, ok := g.ports[b]
	if !ok {
		return structural("connect", 0, b, ErrPortNotFound)
	}
	if !pa.CanConnect(pb) {
		return structural("connect", pa.Block, a, fmt.Errorf("%w: %s %s %q and %s %s %q",
			ErrIncompatiblePorts, pa.Class, pa.Direction, pa.Name, pb.Class, pb.Direction, pb.Name))
	}
	src, sink := pa, pb
	if src.Direction == Sink {
		src, sink = pb, pa
	}
	if g.Connected(src.ID, sink.ID) {
		return nil
	}
	if sink.Class == DataFlow {
		for prev := range g.links[sink.ID] {
			g.unlink(prev, sink.ID)
		}
	}
	g.link(src.ID, sink.ID)
	return nil
}

// ConnectNamed links fromBlock.fromPort (a source) to toBlock.toPort (a sink).
func (g *Graph) ConnectNamed(fromBlock, fromPort, toBlock, toPort string) error {
	from, ok := g.BlockByName(fromBlock)
	if !ok {
		return structural("connect", 0, 0, fmt.Errorf("%w: %s", ErrBlockNotFound, fromBlock))
	}
	to, ok := g.BlockByName(toBlock)
	if !ok {
		return structural("connect", 0, 0, fmt.Errorf("%w: %s", ErrBlockNotFound, toBlock))
	}
	src, ok := g.FindPort(from.ID, Source, fromPort)
	if !ok {
		return structural("connect", from.ID, 0, fmt.Errorf("%w: %s.%s", ErrPortNotFound, fromBlock, fromPort))
	}
	sink, ok := g.FindPort(to.ID, Sink, toPort)
	if !ok {
		return structural("connect", to.ID, 0, fmt.Errorf("%w: %s.%s", ErrPortNotFound, toBlock, toPort))
	}
	return g.Connect(src.ID, sink.ID)
}

// Disconnect removes the link between two ports. It fails if none exists.
func (g *Graph) Disconnect(a, b PortID) error {
	if _, ok := g.ports[a]; !ok {
		return structural("disconnect", 0, a, ErrPortNotFound)
	}
	if _, ok := g.ports[b]; !ok {
		return structural("disconnect", 0, b, ErrPortNotFound)
	}
	if !g.Connected(a, b) {
		return structural("disconnect", 0, a, ErrNotConnected)
	}
	g.unlink(a, b)
	return nil
}

// Connected reports whether a link exists between a and b, in either order.
func (g *Graph) Connected(a, b PortID) bool {
	_, ok := g.links[a][b]
	return ok
}

// Links returns the ports linked to id, ordered by handle.
func (g *Graph) Links(id PortID) []PortID {
	out := make([]PortID, 0, len(g.links[id]))
	for other := range g.links[id] {
		out = append(out, other)
	}
	slices.Sort(out)
	return out
}

// Upstream returns the source feeding a DataFlow sink, if any.
func (g *Graph) Upstream(sink PortID) (*Port, bool) {
	for other := range g.links[sink] {
		return g.ports[other], true
	}
	return nil, false
}

// AllLinks returns every connection once, ordered by source then sink.
func (g *Graph) AllLinks() []Link {
	var out []Link
	for a, peers := range g.links {
		p := g.ports[a]
		if p.Direction != Source {
			continue
		}
		for b := range peers {
			out = append(out, Link{Source: a, Sink: b})
		}
	}
	slices.SortFunc(out, func(x, y Link) int {
		if x.Source != y.Source {
			return int(x.Source) - int(y.Source)
		}
		return int(x.Sink) - int(y.Sink)
	})
	return out
}

func (g *Graph) link(a, b PortID) {
	if g.links[a] == nil {
		g.links[a] = make(map[PortID]struct{})
	}
	if g.links[b] == nil {
		g.links[b] = make(map[PortID]struct{})
	}
	g.links[a][b] = struct{}{}
	g.links[b][a] = struct{}{}
}

func (g *Graph) unlink(a, b PortID) {
	delete(g.links[a], b)
	delete(g.links[b], a)
	if len(g.links[a]) == 0 {
		delete(g.links, a)
	}
	if len(g.links[b]) == 0 {
		delete(g.links, b)
	}
}

// sever drops every link of a port.
func (g *Graph) sever(id PortID) {
	for other := range g.links[id] {
		g.unlink(id, other)
	}
}

// --- External slots ---

// AddInput declares an external input slot.
func (g *Graph) AddInput(f schema.Field) *Slot {
	s := &Slot{Name: f.Name, Type: f.Type, Value: f.Initial(), Default: f.Default}
	g.Inputs = append(g.Inputs, s)
	return s
}

// AddOutput declares an external output slot.
func (g *Graph) AddOutput(f schema.Field) *Slot {
	s := &Slot{Name: f.Name, Type: f.Type, Value: f.Initial(), Default: f.Default}
	g.Outputs = append(g.Outputs, s)
	return s
}

// Input returns the named input slot.
func (g *Graph) Input(name string) (*Slot, bool) { return findSlot(g.Inputs, name) }

// Output returns the named output slot.
func (g *Graph) Output(name string) (*Slot, bool) { return findSlot(g.Outputs, name) }

// SetInput assigns an input slot, casting to its declared type.
func (g *Graph) SetInput(name string, v schema.Value) error {
	s, ok := g.Input(name)
	if !ok {
		return fmt.Errorf("graph %q: %w: input %s", g.Name, ErrPortNotFound, name)
	}
	s.Value = v.Cast(s.Type)
	return nil
}

// InputFields returns the input slot schema in order.
func (g *Graph) InputFields() []schema.Field { return slotFields(g.Inputs) }

// OutputFields returns the output slot schema in order.
func (g *Graph) OutputFields() []schema.Field { return slotFields(g.Outputs) }

// OutputValues snapshots every output slot.
func (g *Graph) OutputValues() schema.Values {
	out := make(schema.Values, len(g.Outputs))
	for _, s := range g.Outputs {
		out[s.Name] = s.Value
	}
	return out
}

func findSlot(slots []*Slot, name string) (*Slot, bool) {
	for _, s := range slots {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

func slotFields(slots []*Slot) []schema.Field {
	out := make([]schema.Field, len(slots))
	for i, s := range slots {
		out[i] = s.Field()
	}
	return out
}
