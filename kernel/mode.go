package kernel

import "fmt"

// SchedulingMode selects how the kernel reacts to quantum expiry.
type SchedulingMode uint8

const (
	// ModeCooperative keeps the clock running but never forces a
	// switch; processes run until they exit or block.
	ModeCooperative SchedulingMode = iota
	// ModePreemptive arms a deferred switch when the quantum
	// expires. The switch itself happens at the next kernel entry,
	// never in the middle of the timer interrupt.
	ModePreemptive
)

func (m SchedulingMode) String() string {
	switch m {
	case ModeCooperative:
		return "cooperative"
	case ModePreemptive:
		return "preemptive"
	default:
		return fmt.Sprintf("SchedulingMode(%d)", uint8(m))
	}
}
