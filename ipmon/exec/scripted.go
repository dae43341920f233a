package exec

import (
	"context"
	"strings"
	"sync"
)

// Call is a single invocation recorded by ScriptedRunner.
type Call struct {
	Path string
	Args []string
}

// ScriptedRunner is a Runner that never spawns anything. It replies with
// canned results keyed by the space-joined arguments and records every call.
// It is used for testing. A zero-value instance replies with an empty, successful
// Result to everything.
type ScriptedRunner struct {
	mutex   sync.Mutex
	results map[string]scriptedReply
	calls   []Call
}

type scriptedReply struct {
	result Result
	err    error
}

var _ Runner = (*ScriptedRunner)(nil)

// Reply sets the result returned when the runner is called with the given
// arguments.
func (r *ScriptedRunner) Reply(args []string, result Result, err error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.results == nil {
		r.results = make(map[string]scriptedReply)
	}

	r.results[strings.Join(args, " ")] = scriptedReply{result, err}
}

// Run records the call and returns the scripted reply.
func (r *ScriptedRunner) Run(ctx context.Context, path string, args ...string) (Result, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.calls = append(r.calls, Call{
		Path: path,
		Args: append([]string(nil), args...),
	})

	reply := r.results[strings.Join(args, " ")]
	return reply.result, reply.err
}

// Calls returns a copy of all recorded calls.
func (r *ScriptedRunner) Calls() []Call {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return append([]Call(nil), r.calls...)
}
