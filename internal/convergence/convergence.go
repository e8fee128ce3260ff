// Package convergence decides, once per iteration, whether a loop must keep
// going, may stop, or has gone quiet long enough to be terminated.
package convergence

import (
	"fmt"

	"github.com/terrylica/ralph-universal/internal/limits"
)

// Verdict is the outcome of a convergence check.
type Verdict string

const (
	Continue  Verdict = "continue"
	Stop      Verdict = "stop"
	ForceStop Verdict = "force_stop"
)

// Observation is what is known about the run at the moment of the check.
type Observation struct {
	ElapsedSeconds             int64
	Iteration                  int
	SecondsSinceLastInvocation int64
	Done                       bool
}

// Decide applies the policy in precedence order: stall, ceiling, floor, then
// the external done signal.
func Decide(b limits.Bounds, obs Observation) Verdict {
	v, _ := decide(b, obs)
	return v
}

// Explain returns the verdict together with a one-line reason suitable for
// logs and hook output.
func Explain(b limits.Bounds, obs Observation) (Verdict, string) {
	return decide(b, obs)
}

func decide(b limits.Bounds, obs Observation) (Verdict, string) {
	switch {
	case obs.SecondsSinceLastInvocation > b.StallGapSeconds:
		return ForceStop, fmt.Sprintf("stale loop: no hook activity for %ds (stall gap %ds)",
			obs.SecondsSinceLastInvocation, b.StallGapSeconds)
	case obs.ElapsedSeconds >= b.MaxSeconds:
		return Stop, fmt.Sprintf("time ceiling reached: %ds elapsed of %ds", obs.ElapsedSeconds, b.MaxSeconds)
	case obs.Iteration >= b.MaxIterations:
		return Stop, fmt.Sprintf("iteration ceiling reached: %d of %d", obs.Iteration, b.MaxIterations)
	case obs.ElapsedSeconds < b.MinSeconds:
		return Continue, fmt.Sprintf("below time floor: %ds of %ds", obs.ElapsedSeconds, b.MinSeconds)
	case obs.Iteration < b.MinIterations:
		return Continue, fmt.Sprintf("below iteration floor: %d of %d", obs.Iteration, b.MinIterations)
	case obs.Done:
		return Stop, "task reported complete"
	default:
		return Continue, "task not complete"
	}
}
