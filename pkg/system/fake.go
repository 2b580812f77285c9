package system

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
)

// ErrExitStatus stands in for a non-zero exit in scripted results.
var ErrExitStatus = errors.New("exit status 1")

// Result is the scripted outcome of one command.
type Result struct {
	Stdout []byte
	Err    error
}

// Call records one invocation seen by a FakeRunner.
type Call struct {
	Name string
	Args []string
}

func (c Call) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// FakeRunner returns scripted results keyed by command name. Commands
// without a script behave as if the binary were not installed.
type FakeRunner struct {
	mu      sync.Mutex
	results map[string]Result
	calls   []Call
}

func NewFakeRunner() *FakeRunner {
	return &FakeRunner{results: make(map[string]Result)}
}

// Script sets the result returned for every invocation of name.
func (f *FakeRunner) Script(name string, r Result) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[name] = r
	return f
}

func (f *FakeRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return f.invoke(name, args)
}

func (f *FakeRunner) Run(ctx context.Context, name string, args ...string) error {
	_, err := f.invoke(name, args)
	return err
}

// Calls returns the invocations seen so far.
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns how many times name was invoked.
func (f *FakeRunner) CallCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Name == name {
			n++
		}
	}
	return n
}

func (f *FakeRunner) invoke(name string, args []string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Name: name, Args: append([]string(nil), args...)})

	r, ok := f.results[name]
	if !ok {
		return nil, &exec.Error{Name: name, Err: exec.ErrNotFound}
	}
	return r.Stdout, r.Err
}
