package engine

import (
	"sync/atomic"
)

// RunState is the engine lifecycle state.
type RunState int32

const (
	// RunStateIdle means Start has not been called.
	RunStateIdle RunState = iota
	// RunStateRunning means the engine is claiming and executing jobs.
	RunStateRunning
	// RunStateDraining means no new claims are issued; in-flight handler
	// invocations get up to the grace period to finish.
	RunStateDraining
	// RunStateHalted means the engine has stopped. Handler invocations
	// still running at the grace cutoff were abandoned; their rows stay
	// executing until the lifeline rescues them.
	RunStateHalted
)

func (s RunState) String() string {
	switch s {
	case RunStateIdle:
		return "idle"
	case RunStateRunning:
		return "running"
	case RunStateDraining:
		return "draining"
	case RunStateHalted:
		return "halted"
	}
	return "unknown"
}

// coordinator tracks the shutdown lifecycle. Transitions only move forward.
type coordinator struct {
	state atomic.Int32
}

func (c *coordinator) State() RunState {
	return RunState(c.state.Load())
}

func (c *coordinator) to(s RunState) {
	for {
		cur := c.state.Load()
		if cur >= int32(s) {
			return
		}
		if c.state.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}
