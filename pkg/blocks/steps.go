package blocks

import (
	"fmt"
	"math"
	"time"

	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/schema"
)

// Step kinds provided by this package.
const (
	KindAction = "action"
	KindLatch  = "latch"
	KindIf     = "if"
	KindLoop   = "loop"
	KindWait   = "wait"
	KindCall   = "call"
	KindFork   = "fork"
)

// Port names of the branching steps.
const (
	PortYes      = "yes"
	PortNo       = "no"
	PortRepeat   = "repeat"
	PortFinished = "finished"
)

// ActionFunc is the side effect of an Action or End step. A returned error
// invalidates the step.
type ActionFunc func(sc domain.StepContext) error

var done = []string{domain.PortCompleted}

// Start is the procedure's entry step. It completes immediately.
func Start() domain.Definition {
	return domain.Definition{
		Kind:  domain.KindStart,
		Ports: []domain.PortSpec{domain.ControlOut(domain.PortCompleted)},
		Step:  firesImmediately{},
	}
}

// End runs fn when reached, or when the procedure stops without reaching it.
// fn may be nil.
func End(fn ActionFunc) domain.Definition {
	return domain.Definition{
		Kind:  domain.KindEnd,
		Ports: []domain.PortSpec{domain.ControlIn(domain.PortBegin)},
		Step:  actionStep{fn: fn, fires: []string{}},
	}
}

// Action runs fn once and completes. Extra ports are appended to the
// begin/completed pair.
func Action(fn ActionFunc, extra ...domain.PortSpec) domain.Definition {
	return domain.Definition{
		Kind:  KindAction,
		Ports: append(stepPorts(domain.PortCompleted), extra...),
		Step:  actionStep{fn: fn, fires: done},
	}
}

// Latch copies its "value" input to its "value" output when executed, so a
// procedure can hold a value steady between steps.
func Latch(t schema.TypeSpec) domain.Definition {
	def := Action(func(sc domain.StepContext) error {
		sc.SetOutput("value", sc.Input("value"))
		return nil
	}, domain.DataIn("value", t), domain.DataOut("value", t))
	def.Kind = KindLatch
	return def
}

// If fires "yes" when its condition holds and "no" otherwise.
func If() domain.Definition {
	return domain.Definition{
		Kind:  KindIf,
		Ports: append(stepPorts(PortYes, PortNo), domain.DataIn("condition", schema.Boolean())),
		Step:  ifStep{},
	}
}

// Loop re-fires "repeat" until it has executed "count" times, then fires
// "finished". "index" reads 0, 1, ... across the executions.
func Loop(count int) domain.Definition {
	return domain.Definition{
		Kind: KindLoop,
		Ports: append(stepPorts(PortRepeat, PortFinished),
			domain.DataInDefault("count", schema.NewNumber(float64(count))),
			domain.DataOut("index", schema.Number()),
		),
		Step: loopStep{},
	}
}

// Wait completes once "duration" seconds elapsed since activation, or as soon
// as "skip" is asserted. "progress" reports the elapsed fraction in [0,1].
func Wait(d time.Duration) domain.Definition {
	return domain.Definition{
		Kind: KindWait,
		Ports: append(stepPorts(domain.PortCompleted),
			domain.DataInDefault("duration", schema.NewNumber(d.Seconds())),
			domain.DataIn("skip", schema.Boolean()),
			domain.DataOut("progress", schema.Number()),
		),
		Step: waitStep{},
	}
}

// Call launches the procedure named by its "procedure" setting as a child
// instance and completes once the child goes idle.
func Call(procedure string) domain.Definition {
	return domain.Definition{
		Kind:     KindCall,
		Settings: []schema.Field{{Name: "procedure", Type: schema.Text(), Default: schema.NewText(procedure)}},
		Ports:    append(stepPorts(domain.PortCompleted), domain.DataOut("running", schema.Boolean())),
		Step:     callStep{},
	}
}

// Fork fires all of its n branches at once.
func Fork(n int) domain.Definition {
	names := make([]string, n)
	for i := range names {
		names[i] = BranchName(i)
	}
	return domain.Definition{
		Kind:      KindFork,
		Ports:     stepPorts(names...),
		Step:      firesImmediately{ports: names},
		Branching: domain.Parallel,
	}
}

// BranchName names the i-th (zero-based) fork branch.
func BranchName(i int) string { return fmt.Sprintf("branch%d", i+1) }

func stepPorts(completed ...string) []domain.PortSpec {
	specs := []domain.PortSpec{domain.ControlIn(domain.PortBegin)}
	for _, name := range completed {
		specs = append(specs, domain.ControlOut(name))
	}
	return specs
}

type firesImmediately struct{ ports []string }

func (firesImmediately) Activate(domain.StepContext) {}

func (s firesImmediately) Execute(domain.StepContext) []string {
	if s.ports == nil {
		return done
	}
	return s.ports
}

type actionStep struct {
	fn    ActionFunc
	fires []string
}

func (actionStep) Activate(domain.StepContext) {}

func (s actionStep) Execute(sc domain.StepContext) []string {
	if s.fn != nil {
		if err := s.fn(sc); err != nil {
			sc.Invalidate(err.Error())
			return nil
		}
	}
	return s.fires
}

type ifStep struct{}

func (ifStep) Activate(domain.StepContext) {}

func (ifStep) Execute(sc domain.StepContext) []string {
	if sc.Input("condition").Bool() {
		return []string{PortYes}
	}
	return []string{PortNo}
}

type loopStep struct{}

func (loopStep) Activate(domain.StepContext) {}

func (loopStep) Execute(sc domain.StepContext) []string {
	st := sc.State()
	count := int(math.Round(sc.Input("count").Float()))
	sc.SetOutput("index", schema.NewNumber(float64(st.Iteration)))
	st.Iteration++
	if st.Iteration < count {
		return []string{PortRepeat}
	}
	st.Iteration = 0
	return []string{PortFinished}
}

type waitStep struct{}

func (waitStep) Activate(sc domain.StepContext) {
	sc.SetOutput("progress", schema.NewNumber(0))
}

func (waitStep) Execute(sc domain.StepContext) []string {
	st := sc.State()
	elapsed := sc.Now().Sub(st.ActivatedAt).Seconds()
	duration := sc.Input("duration").Float()

	progress := 1.0
	if duration > 0 {
		progress = min(max(elapsed/duration, 0), 1)
	}
	st.Progress = progress
	sc.SetOutput("progress", schema.NewNumber(progress))

	if elapsed >= duration || sc.Input("skip").Bool() {
		return done
	}
	return nil
}

type callStep struct{}

func (callStep) Activate(sc domain.StepContext) {
	st := sc.State()
	procedure := sc.Setting("procedure").String()

	var id string
	id, err := sc.Launch(procedure, func() {
		if st.Child == id {
			st.ChildDone = true
		}
	})
	if err != nil {
		sc.Invalidate(fmt.Sprintf("call %s: %v", procedure, err))
		return
	}
	st.Child = id
	sc.SetOutput("running", schema.NewBoolean(true))
}

func (callStep) Execute(sc domain.StepContext) []string {
	if !sc.State().ChildDone {
		return nil
	}
	sc.SetOutput("running", schema.NewBoolean(false))
	return done
}
