package objs

import "sync"

/// Spinlock_t mirrors the kernel's raw spinlock: mutual exclusion plus the
/// holder's pid so recovery handlers can tell whether the faulted process
/// is the one holding it.
type Spinlock_t struct {
	sync.Mutex
	Name   string
	Locked bool
	Pid    int
}

/// Init (re)initializes the spinlock in place, matching the teacher's
/// recovery_handler_spinlock()-style "reinit rather than reallocate".
func (l *Spinlock_t) Init(name string) {
	l.Name = name
	l.Locked = false
	l.Pid = 0
}

/// Acquire takes the spinlock on behalf of pid.
func (l *Spinlock_t) Acquire(pid int) {
	l.Lock()
	l.Locked = true
	l.Pid = pid
}

/// Release gives up the spinlock.
func (l *Spinlock_t) Release() {
	l.Locked = false
	l.Pid = 0
	l.Unlock()
}

/// Holding reports whether pid currently holds the lock.
func (l *Spinlock_t) Holding(pid int) bool {
	return l.Locked && l.Pid == pid
}

/// Sleeplock_t mirrors the kernel's sleeplock: a blocking lock held across
/// I/O, embedding a Spinlock_t the way sleeplock.c embeds a raw spinlock.
type Sleeplock_t struct {
	Lk     Spinlock_t
	Locked bool
	Pid    int
	Name   string
	cond   *sync.Cond
}

/// Init (re)initializes the sleeplock in place.
func (s *Sleeplock_t) Init(name string) {
	s.Lk.Init(name + ".lk")
	s.Locked = false
	s.Pid = 0
	s.Name = name
	s.cond = sync.NewCond(&s.Lk)
}

/// Acquire blocks until the sleeplock is free, then takes it for pid.
func (s *Sleeplock_t) Acquire(pid int) {
	s.Lk.Acquire(pid)
	if s.cond == nil {
		s.cond = sync.NewCond(&s.Lk)
	}
	for s.Locked {
		s.cond.Wait()
	}
	s.Locked = true
	s.Pid = pid
	s.Lk.Release()
}

/// AcquireWithoutSleep busy-waits rather than blocking on the condition
/// variable, for use during recovery where a real scheduler sleep would
/// deadlock the single recovery worker (mirrors acquiresleep_wo_sleep()).
func (s *Sleeplock_t) AcquireWithoutSleep(pid int) {
	for {
		s.Lk.Acquire(pid)
		if !s.Locked {
			s.Locked = true
			s.Pid = pid
			s.Lk.Release()
			return
		}
		s.Lk.Release()
	}
}

/// Release gives up the sleeplock and wakes one waiter.
func (s *Sleeplock_t) Release() {
	s.Lk.Acquire(s.Pid)
	s.Locked = false
	s.Pid = 0
	if s.cond != nil {
		s.cond.Signal()
	}
	s.Lk.Release()
}

/// Holding reports whether pid currently holds the sleeplock.
func (s *Sleeplock_t) Holding(pid int) bool {
	return s.Locked && s.Pid == pid
}
