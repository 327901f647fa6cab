package blocks

import (
	"errors"
	"fmt"

	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/ports"
	"github.com/aretw0/weave/pkg/schema"
)

// Block kinds provided by this package.
const (
	KindConstant = "constant"
	KindScript   = "script"
	KindInput    = "input"
	KindOutput   = "output"
	KindSubGraph = "subgraph"
	KindDevice   = "device"
)

// ErrMissingChild is returned by a SubGraph whose child graph is unavailable.
var ErrMissingChild = errors.New("missing child graph")

// Constant emits its "value" setting on its "value" output.
func Constant(v schema.Value) domain.Definition {
	return domain.Definition{
		Kind:     KindConstant,
		Settings: []schema.Field{{Name: "value", Type: v.Type(), Default: v}},
		Ports:    []domain.PortSpec{domain.DataOut("value", v.Type())},
		Compute: func(settings, _ schema.Values) (schema.Values, error) {
			return schema.Values{"value": settings.Get("value")}, nil
		},
	}
}

// Function wraps a host output function with the given port schema.
func Function(kind string, inputs, outputs []schema.Field, fn domain.ComputeFunc) domain.Definition {
	return domain.Definition{
		Kind:    kind,
		Ports:   dataPorts(inputs, outputs),
		Compute: fn,
	}
}

// Script binds a named script of runner to the given port schema. The script
// name is kept as the "script" setting so it can be edited like any other.
func Script(name string, runner ports.ScriptRunner, inputs, outputs []schema.Field) domain.Definition {
	return domain.Definition{
		Kind:     KindScript,
		Settings: []schema.Field{{Name: "script", Type: schema.Text(), Default: schema.NewText(name)}},
		Ports:    dataPorts(inputs, outputs),
		Compute: func(settings, inputs schema.Values) (schema.Values, error) {
			script := settings.Get("script").String()
			out, err := runner.Run(script, settings, inputs)
			if err != nil {
				return nil, fmt.Errorf("script %s: %w", script, err)
			}
			return out, nil
		},
	}
}

// GraphInput exposes an external input slot of the enclosing graph.
func GraphInput(slot *domain.Slot) domain.Definition {
	return domain.Definition{
		Kind:  KindInput,
		Ports: []domain.PortSpec{domain.DataOut("value", slot.Type)},
		Compute: func(_, _ schema.Values) (schema.Values, error) {
			return schema.Values{"value": slot.Value}, nil
		},
	}
}

// GraphOutput writes its input into an external output slot.
func GraphOutput(slot *domain.Slot) domain.Definition {
	return domain.Definition{
		Kind:  KindOutput,
		Ports: []domain.PortSpec{domain.DataIn("value", slot.Type)},
		Compute: func(_, in schema.Values) (schema.Values, error) {
			slot.Value = in.Get("value").Cast(slot.Type)
			return nil, nil
		},
	}
}

// Device forwards its boolean channels to sink, in order, on every round.
func Device(channels int, sink ports.DeviceSink) domain.Definition {
	specs := make([]domain.PortSpec, channels)
	for i := range specs {
		specs[i] = domain.DataIn(ChannelName(i), schema.Boolean())
	}
	return domain.Definition{
		Kind:  KindDevice,
		Ports: specs,
		Compute: func(_, in schema.Values) (schema.Values, error) {
			if sink == nil {
				return nil, errors.New("no device attached")
			}
			states := make([]bool, channels)
			for i := range states {
				states[i] = in.Get(ChannelName(i)).Bool()
			}
			return nil, sink.Write(states)
		},
	}
}

// ChannelName names the i-th (zero-based) device channel.
func ChannelName(i int) string { return fmt.Sprintf("ch%d", i+1) }

func dataPorts(inputs, outputs []schema.Field) []domain.PortSpec {
	specs := make([]domain.PortSpec, 0, len(inputs)+len(outputs))
	for _, f := range inputs {
		specs = append(specs, domain.PortSpec{Field: f, Class: domain.DataFlow, Direction: domain.Sink})
	}
	for _, f := range outputs {
		specs = append(specs, domain.PortSpec{Field: f, Class: domain.DataFlow, Direction: domain.Source})
	}
	return specs
}
