// File: executor/builder.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// LocalExecutorBuilder follows the functional-options idiom: a value
// type plus a list of ExecutorOption closures applied in order,
// finishing with Build.
package executor

import (
	"fmt"

	"github.com/brianshih1/mini-async-runtime/reactor"
)

// Placement selects whether a LocalExecutor's thread is pinned to one
// logical CPU. The actual affinity syscall happens inside Run/Run[R],
// after the calling goroutine has locked itself to its OS thread —
// setting affinity any earlier would pin whatever thread happens to be
// running the builder, which the Go scheduler is free to change before
// Run ever starts.
type Placement interface {
	cpu() (id int, bound bool)
}

// Unbound leaves the executor's OS thread wherever the scheduler puts it.
type Unbound struct{}

func (Unbound) cpu() (int, bool) { return 0, false }

// Fixed pins the executor's OS thread to exactly one logical CPU before
// the run loop starts, the recommended thread-per-core deployment.
type Fixed struct {
	CPU int
}

func (f Fixed) cpu() (int, bool) { return f.CPU, true }

// LocalExecutorBuilder accumulates construction options for one
// LocalExecutor. The zero value is Unbound with a fresh default Reactor.
type LocalExecutorBuilder struct {
	placement Placement
	name      string
}

// NewLocalExecutorBuilder starts a builder with Unbound placement.
func NewLocalExecutorBuilder() *LocalExecutorBuilder {
	return &LocalExecutorBuilder{placement: Unbound{}}
}

// ExecutorOption customizes a LocalExecutorBuilder before Build.
type ExecutorOption func(*LocalExecutorBuilder)

// WithPlacement sets the CPU placement policy.
func WithPlacement(p Placement) ExecutorOption {
	return func(b *LocalExecutorBuilder) { b.placement = p }
}

// WithName attaches a diagnostic name to the executor's default queue.
func WithName(name string) ExecutorOption {
	return func(b *LocalExecutorBuilder) { b.name = name }
}

// Apply applies opts to the builder in order.
func (b *LocalExecutorBuilder) Apply(opts ...ExecutorOption) *LocalExecutorBuilder {
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build constructs the LocalExecutor and wires a fresh Reactor. The
// placement policy is only recorded here; it is applied to the real OS
// thread inside Run/Run[R], once that thread is locked in place.
func (b *LocalExecutorBuilder) Build() (*LocalExecutor, error) {
	placement := b.placement
	if placement == nil {
		placement = Unbound{}
	}
	cpu, bound := placement.cpu()
	rx, err := reactor.New()
	if err != nil {
		return nil, fmt.Errorf("executor: build reactor: %w", err)
	}
	name := b.name
	if name == "" {
		name = "default"
	}
	return newLocalExecutor(rx, cpu, bound, name), nil
}
