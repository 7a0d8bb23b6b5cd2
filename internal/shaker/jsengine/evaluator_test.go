package jsengine

import (
	"context"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/shakelines/internal/errors"
	"github.com/copyleftdev/shakelines/internal/shaker"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name    string
		lines   []string
		names   []string
		values  []any
		want    any
		wantErr bool
	}{
		{
			name:  "assignment then return",
			lines: []string{"a = 1;", "return a;"},
			want:  int64(1),
		},
		{
			name:    "use before definition",
			lines:   []string{"return a;", "a = 1;"},
			wantErr: true,
		},
		{
			name:  "undefined",
			lines: []string{"return undefined;", "return 5;"},
			want:  nil,
		},
		{
			name:  "null",
			lines: []string{"return null;"},
			want:  nil,
		},
		{
			name:  "falls off the end",
			lines: []string{"x = 1;"},
			want:  nil,
		},
		{
			name:   "arguments",
			lines:  []string{"return n * m;"},
			names:  []string{"n", "m"},
			values: []any{6, 7},
			want:   int64(42),
		},
		{
			name:  "missing argument is undefined",
			lines: []string{"return typeof m;"},
			names: []string{"n", "m"},
			want:  "undefined",
		},
		{
			name:  "float",
			lines: []string{"return 1 / 4;"},
			want:  0.25,
		},
		{
			name:    "syntax error",
			lines:   []string{"return (;"},
			wantErr: true,
		},
		{
			name:    "throw",
			lines:   []string{"throw new Error('boom');"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(Config{})
			got, err := e.Evaluate(tt.lines, tt.names, tt.values)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateIsolatesCalls(t *testing.T) {
	tests := []struct {
		name  string
		first []string
		then  []string
		want  any
	}{
		{
			name:  "new global",
			first: []string{"leak = 3;", "return leak;"},
			then:  []string{"return typeof leak;"},
			want:  "undefined",
		},
		{
			name:  "reassigned global",
			first: []string{"Math = 0;", "return Math;"},
			then:  []string{"return typeof Math;"},
			want:  "object",
		},
		{
			name:  "patched builtin",
			first: []string{"Math.random = function() { return 7; };", "return Math.random();"},
			then:  []string{"return Math.random() < 1;"},
			want:  true,
		},
		{
			name:  "patched prototype",
			first: []string{"Object.prototype.extra = 1;", "return 0;"},
			then:  []string{"return typeof ({}).extra;"},
			want:  "undefined",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(Config{})

			_, err := e.Evaluate(tt.first, nil, nil)
			require.NoError(t, err)

			got, err := e.Evaluate(tt.then, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateLateInterruptDoesNotReachNextCall(t *testing.T) {
	e := New(Config{CallTimeout: time.Minute})

	var runtimes []*goja.Runtime
	e.newRuntime = func() *goja.Runtime {
		vm := goja.New()
		runtimes = append(runtimes, vm)
		return vm
	}

	_, err := e.Evaluate([]string{"return 1;"}, nil, nil)
	require.NoError(t, err)

	// a timer that fires just after the call returned
	runtimes[0].Interrupt(ErrTimeout)

	got, err := e.Evaluate([]string{"return 1;"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)

	require.Len(t, runtimes, 2)
	assert.NotSame(t, runtimes[0], runtimes[1])
}

func TestEvaluateReusesCompiledFunction(t *testing.T) {
	e := New(Config{})
	lines := []string{"return 2;"}

	_, err := e.Evaluate(lines, nil, nil)
	require.NoError(t, err)
	first, prog := e.lastSource, e.lastProg

	_, err = e.Evaluate(lines, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, first, e.lastSource)
	assert.Same(t, prog, e.lastProg)
	assert.Equal(t, "(function() {\nreturn 2;\n})", first)
}

func TestEvaluateTimeout(t *testing.T) {
	e := New(Config{CallTimeout: 20 * time.Millisecond})

	_, err := e.Evaluate([]string{"while (true) {}"}, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))

	// the evaluator is usable again afterwards
	got, err := e.Evaluate([]string{"return 1;"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestFactory(t *testing.T) {
	factory := Factory(Config{})
	a, b := factory(), factory()
	assert.NotSame(t, a, b)
}

func TestShakeWithJavaScript(t *testing.T) {
	tests := []struct {
		name     string
		req      shaker.Request
		wantMode shaker.Mode
		wantCode string
		solved   bool
	}{
		{
			name:     "optimize",
			req:      shaker.Request{Code: "a = 1;\nreturn a;", Expected: 1},
			wantMode: shaker.ModeOptimize,
			wantCode: "a = 1;\nreturn a;",
			solved:   true,
		},
		{
			name:     "recovery",
			req:      shaker.Request{Code: "return undefined;\nreturn 5;", Expected: 5},
			wantMode: shaker.ModeRecovery,
			wantCode: "return 5;\nreturn undefined;",
			solved:   true,
		},
		{
			name:     "reassigned global in the original",
			req:      shaker.Request{Code: "Math = 0;\nreturn typeof Math;", Expected: "object"},
			wantMode: shaker.ModeRecovery,
			wantCode: "return typeof Math;\nMath = 0;",
			solved:   true,
		},
		{
			name: "no solution",
			req: shaker.Request{
				Code:     "return undefined;\nx = 1;\ny=2;\nz=3;\n",
				ArgNames: []string{"z", "q"},
				Expected: 1,
			},
			wantMode: shaker.ModeRecovery,
			wantCode: shaker.NoSolution,
			solved:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := shaker.New(New(Config{}), shaker.Config{Iterations: 50})
			require.NoError(t, err)

			report, err := s.Run(context.Background(), tt.req)
			require.NoError(t, err)

			assert.Equal(t, tt.wantMode, report.Mode)
			assert.Equal(t, tt.wantCode, report.ResultCode)
			assert.Equal(t, tt.solved, report.Solved())
		})
	}
}
