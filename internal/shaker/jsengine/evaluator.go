// Package jsengine evaluates candidate orderings as ECMAScript function
// bodies on an embedded goja runtime.
package jsengine

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/copyleftdev/shakelines/internal/errors"
	"github.com/copyleftdev/shakelines/internal/shaker"
)

// ErrTimeout is wrapped by errors from calls that ran past the call timeout.
var ErrTimeout = errors.New("evaluation timed out").WithComponent("jsengine")

// Config configures an Evaluator.
type Config struct {
	// CallTimeout interrupts a single call that runs longer than this.
	// Zero disables the timeout.
	CallTimeout time.Duration
}

// Evaluator runs line sequences as the body of a function whose parameters
// are the argument names, like `Function(...argNames, body)`.
//
// Every call runs in a fresh runtime, so globals, reassigned builtins and
// patched prototypes from one call are never seen by the next. The compiled
// program is cached and shared between runtimes. An Evaluator must not be
// used from more than one goroutine at a time.
type Evaluator struct {
	cfg        Config
	newRuntime func() *goja.Runtime

	// the most recently compiled program, reused across timing runs
	lastSource string
	lastProg   *goja.Program
}

var _ shaker.Evaluator = (*Evaluator)(nil)

// New creates an Evaluator.
func New(cfg Config) *Evaluator {
	return &Evaluator{
		cfg:        cfg,
		newRuntime: goja.New,
	}
}

// Factory returns a constructor for independent evaluators, one per search.
func Factory(cfg Config) func() shaker.Evaluator {
	return func() shaker.Evaluator { return New(cfg) }
}

// Evaluate implements shaker.Evaluator. undefined and null results are
// returned as nil; other values are exported to their Go equivalents.
func (e *Evaluator) Evaluate(lines []string, argNames []string, argValues []any) (any, error) {
	prog, err := e.compile(lines, argNames)
	if err != nil {
		return nil, err
	}

	vm := e.newRuntime()
	v, err := vm.RunProgram(prog)
	if err != nil {
		return nil, errors.Wrap(err, "candidate does not load").WithComponent("jsengine").WithOperation("load")
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, errors.New("candidate is not a function").WithComponent("jsengine").WithOperation("load")
	}

	args := make([]goja.Value, len(argNames))
	for i := range args {
		if i < len(argValues) {
			args[i] = vm.ToValue(argValues[i])
		} else {
			args[i] = goja.Undefined()
		}
	}

	// The runtime is dropped after this call, so an interrupt that fires
	// late cannot reach another call.
	if e.cfg.CallTimeout > 0 {
		timer := time.AfterFunc(e.cfg.CallTimeout, func() {
			vm.Interrupt(ErrTimeout)
		})
		defer timer.Stop()
	}

	v, err = fn(goja.Undefined(), args...)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return nil, errors.Wrap(ErrTimeout, "candidate interrupted").WithOperation("call")
		}
		return nil, errors.Wrap(err, "candidate threw").WithComponent("jsengine").WithOperation("call")
	}

	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	return v.Export(), nil
}

// compile turns the body into a program, reusing the previous one when the
// source is unchanged.
func (e *Evaluator) compile(lines []string, argNames []string) (*goja.Program, error) {
	src := source(lines, argNames)
	if e.lastProg != nil && src == e.lastSource {
		return e.lastProg, nil
	}

	prog, err := goja.Compile("candidate.js", src, false)
	if err != nil {
		return nil, errors.Wrap(err, "candidate does not compile").WithComponent("jsengine").WithOperation("compile")
	}

	e.lastSource, e.lastProg = src, prog
	return prog, nil
}

var builderPool = sync.Pool{New: func() any { return new(strings.Builder) }}

// source wraps the lines in a function expression.
func source(lines []string, argNames []string) string {
	b := builderPool.Get().(*strings.Builder)
	defer func() {
		b.Reset()
		builderPool.Put(b)
	}()

	fmt.Fprintf(b, "(function(%s) {\n", strings.Join(argNames, ", "))
	b.WriteString(shaker.JoinLines(lines))
	b.WriteString("\n})")
	return b.String()
}
