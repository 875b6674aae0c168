// Package nmi implements the NMI shepherd and its follower queue (C5):
// the entry point every simulated memory-error trap calls into, which
// enforces single-threaded recovery while letting concurrent victims
// cooperatively enqueue behind whichever one got there first. Grounded
// in the original kernel's nmi.c/nmi.h.
package nmi

import (
	"sync"

	"golang.org/x/sync/semaphore"

	"defs"
)

/// Victim_t is what an NMI hands the shepherd: which address faulted
/// and the simulated trap-frame identity of the thread it interrupted.
/// pid/sp/s0 travel as explicit fields rather than through a
/// runtime-patched thread-local, since this module runs as ordinary
/// user-space Go.
type Victim_t struct {
	Broken uint64
	Pid    int
	Sp, S0 uint64
}

type slot_t struct {
	v    Victim_t
	code defs.Err_t
}

/// Queue_t is the fixed-capacity follower queue — "allocated on the
/// victim's kernel stack" in the original, here a preallocated slice
/// guarded by a weighted semaphore so enqueue past capacity fails
/// instead of growing, matching "queue overflow ⇒ fail-stop" (§8).
type Queue_t struct {
	sem   *semaphore.Weighted
	mu    sync.Mutex
	slots []slot_t
	n     int
	cap   int
}

func NewQueue(capacity int) *Queue_t {
	return &Queue_t{
		sem:   semaphore.NewWeighted(int64(capacity)),
		slots: make([]slot_t, capacity),
		cap:   capacity,
	}
}

/// TryEnqueue reserves the next slot for v. ok is false once the queue
/// is at capacity — the caller must fail-stop.
func (q *Queue_t) TryEnqueue(v Victim_t) (slot int, ok bool) {
	if !q.sem.TryAcquire(1) {
		return 0, false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	slot = q.n
	q.slots[slot] = slot_t{v: v}
	q.n++
	return slot, true
}

/// SetCode stamps the termination code for an already-enqueued slot.
func (q *Queue_t) SetCode(slot int, code defs.Err_t) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.slots[slot].code = code
}

/// PollCode reports the termination code for slot, if one has been set.
func (q *Queue_t) PollCode(slot int) (defs.Err_t, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	c := q.slots[slot].code
	return c, c != 0
}

/// Len reports how many victims have been enqueued so far (grows as
/// followers arrive).
func (q *Queue_t) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

/// At returns the victim recorded at slot i.
func (q *Queue_t) At(i int) Victim_t {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.slots[i].v
}
