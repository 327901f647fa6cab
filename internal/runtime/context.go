package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/schema"
)

// stepContext is the domain.StepContext handed to a step of one instance.
type stepContext struct {
	ctx   context.Context
	e     *Engine
	inst  *Instance
	block *domain.Block
}

var _ domain.StepContext = (*stepContext)(nil)

func (c *stepContext) Block() *domain.Block { return c.block }

func (c *stepContext) Input(name string) schema.Value {
	p, ok := c.inst.Graph.FindPort(c.block.ID, domain.Sink, name)
	if !ok || p.Class != domain.DataFlow {
		return schema.Value{}
	}
	pull(c.inst.Graph, p)
	return p.Value
}

func (c *stepContext) Setting(name string) schema.Value {
	s, ok := c.block.Setting(name)
	if !ok {
		return schema.Value{}
	}
	return s.Value
}

func (c *stepContext) SetOutput(name string, v schema.Value) {
	p, ok := c.inst.Graph.FindPort(c.block.ID, domain.Source, name)
	if !ok || p.Class != domain.DataFlow {
		return
	}
	p.Value = v.Cast(p.Type)
}

func (c *stepContext) Now() time.Time { return c.e.clock.Now() }

func (c *stepContext) State() *domain.StepState { return c.inst.state(c.block.ID) }

func (c *stepContext) Launch(procedure string, onDone func()) (string, error) {
	return c.e.launchChild(c.ctx, c.inst, procedure, onDone)
}

func (c *stepContext) Invalidate(reason string) {
	invalidate(c.ctx, c.e.logger, c.e.hooks, c.e.clock, c.block, c.inst.ID, reason)
}

func (c *stepContext) Logger() *slog.Logger {
	return c.e.logger.With("instance", c.inst.ID, "block", c.block.Name)
}
