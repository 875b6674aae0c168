package nmi

import (
	"runtime"
	"sync"

	"defs"
)

// Recoverer_i is the minimal contract the shepherd needs from the
// recovery subsystem (§6): classify-and-fix one victim, and know when
// every queued victim has been serviced. recovery.Kernel_t satisfies
// this without either package importing the other.
type Recoverer_i interface {
	Recover(broken uint64, pid int, sp, s0 uint64) defs.Err_t
	LogAllRecoveryEnd()
}

// Shepherd_t is the NMI entry point every simulated UE trap calls
// (§4.5). Exactly one goroutine at a time actually runs recovery
// surgery — the "first victim" — while every other concurrent arrival
// ("follower") enqueues behind it and spin-waits for its own
// termination code, mirroring the original's "recovery proceeds on the
// kernel stack of whichever CPU got the NMI first" shape without an
// actual IPI/NMI mechanism to model.
type Shepherd_t struct {
	queue *Queue_t
	k     Recoverer_i

	roleMu sync.Mutex
	active bool
}

func NewShepherd(capacity int, k Recoverer_i) *Shepherd_t {
	return &Shepherd_t{queue: NewQueue(capacity), k: k}
}

// Enter is what a UE trap calls with the faulted address and the
// interrupted thread's identity. It returns once this victim's
// after-treatment code is known, whether this goroutine did the
// recovery work itself or waited for another one to.
func (s *Shepherd_t) Enter(v Victim_t) defs.Err_t {
	s.roleMu.Lock()
	slot, ok := s.queue.TryEnqueue(v)
	if !ok {
		s.roleMu.Unlock()
		return defs.AtFailStop
	}
	amShepherd := !s.active
	if amShepherd {
		s.active = true
	}
	s.roleMu.Unlock()

	if amShepherd {
		return s.drive(slot)
	}
	return s.await(slot)
}

// drive runs recovery for every queued victim starting at firstSlot,
// including any follower that enqueues while the shepherd is still
// working, and returns firstSlot's own termination code. The
// roleMu-guarded "am I still the shepherd" check is what closes the
// race between "no more work" and "a follower just enqueued" (see
// DESIGN.md).
func (s *Shepherd_t) drive(firstSlot int) defs.Err_t {
	i := firstSlot
	var firstCode defs.Err_t
	for {
		s.roleMu.Lock()
		if i >= s.queue.Len() {
			s.active = false
			s.roleMu.Unlock()
			break
		}
		s.roleMu.Unlock()

		v := s.queue.At(i)
		code := s.k.Recover(v.Broken, v.Pid, v.Sp, v.S0)
		s.queue.SetCode(i, code)
		if i == firstSlot {
			firstCode = code
		}
		i++
	}
	s.k.LogAllRecoveryEnd()
	return firstCode
}

// await spin-waits for the shepherd to stamp slot's termination code.
// A real kernel would park the follower on a sleep channel; this
// module has no scheduler to sleep on, so it yields the goroutine
// instead (mirrors acquiresleep_wo_sleep()'s busy-wait style already
// used by objs.Sleeplock_t.AcquireWithoutSleep).
func (s *Shepherd_t) await(slot int) defs.Err_t {
	for {
		if code, ok := s.queue.PollCode(slot); ok {
			return code
		}
		runtime.Gosched()
	}
}
