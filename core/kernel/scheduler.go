package kernel

const maxTasks = 32

// Task is a cooperative unit of execution.
//
// Process runs to completion and returns; it must not block. The handle is
// the value bound at registration, so one value can serve several
// registrations and tell them apart.
type Task interface {
	Process(handle uint8)
}

type registration struct {
	task   Task
	sig    *Signal
	handle uint8
}

// Scheduler dispatches registered tasks whose signals have pending
// notifications. There is no preemption and no priority: entries are
// scanned in registration order on every pass.
type Scheduler struct {
	entries [maxTasks]registration
	count   uint8
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// AddTask binds (task, signal, handle) into the dispatch table.
// It reports false when the table is full.
func (s *Scheduler) AddTask(t Task, sig *Signal, handle uint8) bool {
	if t == nil || sig == nil {
		return false
	}
	if s.count >= maxTasks {
		return false
	}
	s.entries[s.count] = registration{task: t, sig: sig, handle: handle}
	s.count++
	return true
}

// Tasks returns the number of registrations.
func (s *Scheduler) Tasks() int { return int(s.count) }

// RunOnce makes one pass over the table, dispatching every entry whose
// signal consumes. It reports whether any handler fired; when it returns
// false the caller may idle the CPU.
func (s *Scheduler) RunOnce() bool {
	ran := false
	for i := uint8(0); i < s.count; i++ {
		e := &s.entries[i]
		if e.sig.Consume() {
			e.task.Process(e.handle)
			ran = true
		}
	}
	return ran
}

// Run loops forever, calling idle between passes that dispatched nothing.
func (s *Scheduler) Run(idle func()) {
	for {
		if !s.RunOnce() && idle != nil {
			idle()
		}
	}
}
