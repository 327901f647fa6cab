// Package process runs script blocks as external commands.
//
// Only registered commands can run. Settings and inputs reach the process as
// environment variables (WEAVE_SET_<NAME>, WEAVE_IN_<NAME>) rather than
// arguments, so values can never inject flags. A JSON object on stdout
// becomes the script outputs; any other output is returned as "stdout".
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/weave/pkg/ports"
	"github.com/aretw0/weave/pkg/schema"
)

// DefaultTimeout bounds a single script execution.
const DefaultTimeout = 2 * time.Second

// ErrNotRegistered is returned for script names missing from the allow-list.
var ErrNotRegistered = errors.New("script not registered")

// Runner implements ports.ScriptRunner over local processes.
type Runner struct {
	registry map[string]ScriptConfig
	baseDir  string
	timeout  time.Duration
}

var _ ports.ScriptRunner = (*Runner)(nil)

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithScripts populates the allow-list from a loaded config.
func WithScripts(scripts map[string]ScriptConfig) RunnerOption {
	return func(r *Runner) {
		for name, s := range scripts {
			r.registry[name] = s
		}
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// WithTimeout bounds each execution. Non-positive values keep the default.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewRunner creates a new process runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: make(map[string]ScriptConfig),
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted command to the allow-list.
func (r *Runner) Register(name string, command string, args ...string) {
	r.registry[name] = ScriptConfig{Name: name, Command: command, Args: args}
}

// Names returns the registered script names, sorted.
func (r *Runner) Names() []string {
	names := make([]string, 0, len(r.registry))
	for name := range r.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes the named script and decodes its stdout.
func (r *Runner) Run(name string, settings, inputs schema.Values) (schema.Values, error) {
	script, ok := r.registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, script.Command, script.Args...)
	cmd.Dir = r.baseDir
	cmd.WaitDelay = 100 * time.Millisecond
	cmd.Env = append(cmd.Environ(), environ(script, settings, inputs)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("script %s timed out after %s", name, r.timeout)
		}
		return nil, fmt.Errorf("script %s failed: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return decode(stdout.String())
}

func environ(script ScriptConfig, settings, inputs schema.Values) []string {
	var env []string
	for k, v := range script.Environment {
		env = append(env, k+"="+v)
	}
	for k, v := range settings {
		env = append(env, "WEAVE_SET_"+strings.ToUpper(k)+"="+v.String())
	}
	for k, v := range inputs {
		env = append(env, "WEAVE_IN_"+strings.ToUpper(k)+"="+v.String())
	}
	sort.Strings(env)
	return env
}

func decode(output string) (schema.Values, error) {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return schema.Values{}, nil
	}
	if strings.HasPrefix(trimmed, "{") {
		var obj map[string]any
		if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
			return nil, fmt.Errorf("invalid script output: %w", err)
		}
		out := make(schema.Values, len(obj))
		for k, v := range obj {
			out[k] = schema.FromGo(v)
		}
		return out, nil
	}
	return schema.Values{"stdout": schema.NewText(trimmed)}, nil
}
