// File: asyncio/sleep.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package asyncio

import (
	"fmt"
	"time"

	"github.com/brianshih1/mini-async-runtime/executor"
	"github.com/brianshih1/mini-async-runtime/internal/task"
)

// Sleep returns a Future that completes once d has elapsed, scheduled
// on the Timer of the currently-bound executor's Reactor rather than
// blocking an OS thread.
func Sleep(d time.Duration) task.Future[struct{}] {
	return &sleepFuture{d: d}
}

type sleepFuture struct {
	d     time.Duration
	armed bool
	fired bool
}

func (f *sleepFuture) Poll(w *task.Waker) (struct{}, bool) {
	if f.fired {
		return struct{}{}, true
	}
	if !f.armed {
		ex := executor.Current()
		if ex == nil {
			panic(fmt.Errorf("asyncio: Sleep called with no executor bound to this thread"))
		}
		f.armed = true
		wk := w.Clone()
		if _, err := ex.Reactor().Timer().Schedule(f.d, func() {
			f.fired = true
			wk.Wake()
		}); err != nil {
			panic(fmt.Errorf("asyncio: schedule sleep: %w", err))
		}
		return struct{}{}, false
	}
	return struct{}{}, f.fired
}
