// File: asyncio/sleep_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package asyncio

import (
	"testing"
	"time"

	"github.com/brianshih1/mini-async-runtime/executor"
)

func TestSleepCompletesAfterDeadline(t *testing.T) {
	ex, err := executor.NewLocalExecutorBuilder().Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer ex.Close()

	start := time.Now()
	_, err = executor.Run[struct{}](ex, Sleep(20*time.Millisecond))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("expected Sleep to block for at least 20ms, only took %v", elapsed)
	}
}
