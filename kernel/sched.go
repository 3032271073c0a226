package kernel

import (
	"sync"
	"sync/atomic"
)

// DefaultQuantum is the time slice budget in timer ticks.
const DefaultQuantum = 100

// TickHz is the nominal timer frequency. Elapsed ticks divide by it
// to give whole seconds of uptime.
const TickHz = 100

// Scheduler rotates the processor through ready processes in strict
// round-robin order. It owns the ready queue, the identity of the
// current process, and the two tick counters; whether an expired
// quantum actually forces a switch is the kernel's decision, not the
// scheduler's.
type Scheduler struct {
	mu      sync.Mutex
	ready   []ProcessID
	current ProcessID
	quantum uint32
	counter uint32
	elapsed atomic.Uint64
}

// NewScheduler builds an idle scheduler. A zero quantum selects
// DefaultQuantum.
func NewScheduler(quantum uint32) *Scheduler {
	if quantum == 0 {
		quantum = DefaultQuantum
	}
	return &Scheduler{quantum: quantum}
}

// Enqueue appends pid to the ready queue unless it is already
// queued, so double-enqueueing is harmless.
func (s *Scheduler) Enqueue(pid ProcessID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueueLocked(pid)
}

func (s *Scheduler) enqueueLocked(pid ProcessID) {
	for _, queued := range s.ready {
		if queued == pid {
			return
		}
	}
	s.ready = append(s.ready, pid)
}

// Dequeue pops the head of the ready queue.
func (s *Scheduler) Dequeue() (ProcessID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dequeueLocked()
}

func (s *Scheduler) dequeueLocked() (ProcessID, bool) {
	if len(s.ready) == 0 {
		return NoProcess, false
	}
	pid := s.ready[0]
	s.ready = s.ready[1:]
	return pid, true
}

// Current reports which process holds the processor, if any.
func (s *Scheduler) Current() (ProcessID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.current != NoProcess
}

// SetCurrent records pid as the running process. NoProcess marks the
// scheduler idle.
func (s *Scheduler) SetCurrent(pid ProcessID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = pid
}

// ReadyCount reports how many processes are queued behind the
// current one.
func (s *Scheduler) ReadyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ready)
}

// Tick advances both counters by one timer tick and reports whether
// the quantum expired. Expiry resets the intra-slice counter, so a
// fresh slice begins whether or not a switch follows. The elapsed
// counter always advances, preemptive or not.
func (s *Scheduler) Tick() bool {
	s.elapsed.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter++
	if s.counter >= s.quantum {
		s.counter = 0
		return true
	}
	return false
}

// Quantum reports the configured time slice in ticks.
func (s *Scheduler) Quantum() uint32 {
	return s.quantum
}

// Elapsed reports timer ticks since the scheduler was built.
func (s *Scheduler) Elapsed() uint64 {
	return s.elapsed.Load()
}

// ElapsedSeconds reports whole seconds of uptime at TickHz.
func (s *Scheduler) ElapsedSeconds() uint64 {
	return s.elapsed.Load() / TickHz
}

// Schedule performs one round-robin rotation: the current process
// goes back to the tail of the ready queue if it is still Running,
// is dropped if it blocked or exited, and the head of the queue
// becomes current. It returns the previous and next ids, NoProcess
// standing for none. table resolves the status of the outgoing
// process.
func (s *Scheduler) Schedule(table *Table) (prev, next ProcessID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev = s.current
	if prev != NoProcess {
		if st, err := table.Status(prev); err == nil && st == StatusRunning {
			s.enqueueLocked(prev)
		}
	}
	next, _ = s.dequeueLocked()
	s.current = next
	return prev, next
}
