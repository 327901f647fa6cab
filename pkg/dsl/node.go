package dsl

import "github.com/aretw0/weave/pkg/domain"

// BlockBuilder provides a fluent API for configuring a block.
type BlockBuilder struct {
	name     string
	kind     string
	settings map[string]any
	builder  *Builder
}

// Set assigns a setting, as it would appear in a YAML project.
func (n *BlockBuilder) Set(key string, value any) *BlockBuilder {
	n.settings[key] = value
	return n
}

// Then links this step's "completed" port to the target's "begin" port.
func (n *BlockBuilder) Then(target string) *BlockBuilder {
	return n.On(domain.PortCompleted, target)
}

// On links a named control output, such as "true" or "body", to the
// target's "begin" port.
func (n *BlockBuilder) On(port, target string) *BlockBuilder {
	n.builder.Link(n.name+"."+port, target+"."+domain.PortBegin)
	return n
}

// Feed links a data output to a "block.port" sink.
func (n *BlockBuilder) Feed(port, sink string) *BlockBuilder {
	n.builder.Link(n.name+"."+port, sink)
	return n
}

// Name returns the block name.
func (n *BlockBuilder) Name() string { return n.name }
