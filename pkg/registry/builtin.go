package registry

import (
	"errors"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/weave/pkg/blocks"
	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/schema"
)

type constantConfig struct {
	Type  string `mapstructure:"type"`
	Value any    `mapstructure:"value"`
}

type gainConfig struct {
	Factor float64 `mapstructure:"factor"`
}

type scriptConfig struct {
	Script  string              `mapstructure:"script"`
	Inputs  []map[string]string `mapstructure:"inputs"`
	Outputs []map[string]string `mapstructure:"outputs"`
}

type slotConfig struct {
	Slot string `mapstructure:"slot"`
}

type deviceConfig struct {
	Device   string `mapstructure:"device"`
	Channels int    `mapstructure:"channels"`
}

type subgraphConfig struct {
	File string `mapstructure:"file"`
}

type latchConfig struct {
	Type string `mapstructure:"type"`
}

type loopConfig struct {
	Count int `mapstructure:"count"`
}

type waitConfig struct {
	Seconds float64 `mapstructure:"seconds"`
}

type callConfig struct {
	Procedure string `mapstructure:"procedure"`
}

type forkConfig struct {
	Branches int `mapstructure:"branches"`
}

// decode maps generic settings onto a typed config, accepting "3" for 3 and
// the like, and rejecting unknown keys.
func decode(settings map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(settings); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

func fixed(def func() domain.Definition) Constructor {
	return func(_ Env, settings map[string]any) (domain.Definition, error) {
		if err := decode(settings, &struct{}{}); err != nil {
			return domain.Definition{}, err
		}
		return def(), nil
	}
}

func registerBuiltins(r *Registry) {
	r.Register(blocks.KindConstant, buildConstant)
	r.Register("gain", func(_ Env, s map[string]any) (domain.Definition, error) {
		cfg := gainConfig{Factor: 1}
		if err := decode(s, &cfg); err != nil {
			return domain.Definition{}, err
		}
		return blocks.Gain(cfg.Factor), nil
	})
	r.Register("add", fixed(blocks.Add))
	r.Register("multiply", fixed(blocks.Multiply))
	r.Register("greater", fixed(blocks.Greater))
	r.Register("not", fixed(blocks.Not))
	r.Register("and", fixed(blocks.And))
	r.Register("or", fixed(blocks.Or))
	r.Register(blocks.KindScript, buildScript)
	r.Register(blocks.KindInput, buildSlot(true))
	r.Register(blocks.KindOutput, buildSlot(false))
	r.Register(blocks.KindDevice, buildDevice)
	r.Register(blocks.KindSubGraph, buildSubGraph)

	r.Register(domain.KindStart, fixed(blocks.Start))
	r.Register(domain.KindEnd, buildEnd)
	r.Register(blocks.KindAction, buildAction)
	r.Register(blocks.KindLatch, buildLatch)
	r.Register(blocks.KindIf, fixed(blocks.If))
	r.Register(blocks.KindLoop, func(_ Env, s map[string]any) (domain.Definition, error) {
		var cfg loopConfig
		if err := decode(s, &cfg); err != nil {
			return domain.Definition{}, err
		}
		return blocks.Loop(cfg.Count), nil
	})
	r.Register(blocks.KindWait, func(_ Env, s map[string]any) (domain.Definition, error) {
		var cfg waitConfig
		if err := decode(s, &cfg); err != nil {
			return domain.Definition{}, err
		}
		return blocks.Wait(time.Duration(cfg.Seconds * float64(time.Second))), nil
	})
	r.Register(blocks.KindCall, func(_ Env, s map[string]any) (domain.Definition, error) {
		var cfg callConfig
		if err := decode(s, &cfg); err != nil {
			return domain.Definition{}, err
		}
		if cfg.Procedure == "" {
			return domain.Definition{}, errors.New("procedure is required")
		}
		return blocks.Call(cfg.Procedure), nil
	})
	r.Register(blocks.KindFork, func(_ Env, s map[string]any) (domain.Definition, error) {
		cfg := forkConfig{Branches: 2}
		if err := decode(s, &cfg); err != nil {
			return domain.Definition{}, err
		}
		if cfg.Branches < 1 {
			return domain.Definition{}, fmt.Errorf("fork needs at least one branch, got %d", cfg.Branches)
		}
		return blocks.Fork(cfg.Branches), nil
	})
}

func buildConstant(_ Env, s map[string]any) (domain.Definition, error) {
	var cfg constantConfig
	if err := decode(s, &cfg); err != nil {
		return domain.Definition{}, err
	}
	v := schema.FromGo(cfg.Value)
	if cfg.Type != "" {
		t, err := schema.ParseType(cfg.Type)
		if err != nil {
			return domain.Definition{}, err
		}
		v = v.Cast(t)
	}
	return blocks.Constant(v), nil
}

func buildScript(env Env, s map[string]any) (domain.Definition, error) {
	var cfg scriptConfig
	if err := decode(s, &cfg); err != nil {
		return domain.Definition{}, err
	}
	if cfg.Script == "" {
		return domain.Definition{}, errors.New("script is required")
	}
	if env.Scripts == nil {
		return domain.Definition{}, errors.New("no script runner configured")
	}
	inputs, err := schema.ParseFields(cfg.Inputs)
	if err != nil {
		return domain.Definition{}, fmt.Errorf("inputs: %w", err)
	}
	outputs, err := schema.ParseFields(cfg.Outputs)
	if err != nil {
		return domain.Definition{}, fmt.Errorf("outputs: %w", err)
	}
	return blocks.Script(cfg.Script, env.Scripts, inputs, outputs), nil
}

func buildSlot(input bool) Constructor {
	return func(env Env, s map[string]any) (domain.Definition, error) {
		var cfg slotConfig
		if err := decode(s, &cfg); err != nil {
			return domain.Definition{}, err
		}
		if env.Graph == nil {
			return domain.Definition{}, errors.New("no graph to bind slots of")
		}
		if input {
			slot, ok := env.Graph.Input(cfg.Slot)
			if !ok {
				return domain.Definition{}, fmt.Errorf("unknown input slot %q", cfg.Slot)
			}
			return blocks.GraphInput(slot), nil
		}
		slot, ok := env.Graph.Output(cfg.Slot)
		if !ok {
			return domain.Definition{}, fmt.Errorf("unknown output slot %q", cfg.Slot)
		}
		return blocks.GraphOutput(slot), nil
	}
}

func buildDevice(env Env, s map[string]any) (domain.Definition, error) {
	cfg := deviceConfig{Channels: 1}
	if err := decode(s, &cfg); err != nil {
		return domain.Definition{}, err
	}
	if cfg.Channels < 1 {
		return domain.Definition{}, fmt.Errorf("device needs at least one channel, got %d", cfg.Channels)
	}
	// A missing sink still yields a block; it invalidates on its first round.
	return blocks.Device(cfg.Channels, env.Devices[cfg.Device]), nil
}

func buildSubGraph(env Env, s map[string]any) (domain.Definition, error) {
	var cfg subgraphConfig
	if err := decode(s, &cfg); err != nil {
		return domain.Definition{}, err
	}
	if cfg.File == "" {
		return domain.Definition{}, errors.New("file is required")
	}
	if env.Resolve == nil {
		return blocks.SubGraph(nil, env.Update), &UnresolvedError{Ref: cfg.File, Err: blocks.ErrMissingChild}
	}
	child, err := env.Resolve(cfg.File)
	if err != nil {
		return blocks.SubGraph(nil, env.Update), &UnresolvedError{Ref: cfg.File, Err: err}
	}
	return blocks.SubGraph(child, env.Update), nil
}

func scriptAction(env Env, script string) blocks.ActionFunc {
	if script == "" {
		return nil
	}
	return func(sc domain.StepContext) error {
		if env.Scripts == nil {
			return errors.New("no script runner configured")
		}
		_, err := env.Scripts.Run(script, sc.Block().SettingValues(), nil)
		return err
	}
}

type actionConfig struct {
	Script string `mapstructure:"script"`
}

func buildEnd(env Env, s map[string]any) (domain.Definition, error) {
	var cfg actionConfig
	if err := decode(s, &cfg); err != nil {
		return domain.Definition{}, err
	}
	return blocks.End(scriptAction(env, cfg.Script)), nil
}

func buildAction(env Env, s map[string]any) (domain.Definition, error) {
	var cfg actionConfig
	if err := decode(s, &cfg); err != nil {
		return domain.Definition{}, err
	}
	return blocks.Action(scriptAction(env, cfg.Script)), nil
}

func buildLatch(_ Env, s map[string]any) (domain.Definition, error) {
	var cfg latchConfig
	if err := decode(s, &cfg); err != nil {
		return domain.Definition{}, err
	}
	t, err := schema.ParseType(cfg.Type)
	if err != nil {
		return domain.Definition{}, err
	}
	return blocks.Latch(t), nil
}
