//go:build linux

package cmd

import (
	"fmt"

	perf "github.com/hodgesds/perf-utils"
)

// instrumentPerf runs the solve under a hardware instruction counter.
// Opening the counter needs perf_event access; when that fails the
// solve still runs, just uncounted.
func instrumentPerf(run func() error) error {
	var (
		inner  error
		called bool
	)
	pv, err := perf.CPUInstructions(func() error {
		called = true
		inner = run()
		return inner
	})
	if !called {
		fmt.Printf("perf counters unavailable (%v), running without\n", err)
		return run()
	}
	if inner == nil && pv != nil {
		fmt.Printf("perf: %d instructions retired, counter running %d of %d ns\n",
			pv.Value, pv.TimeRunning, pv.TimeEnabled)
	}
	return inner
}
