// Package rcs implements the recovery-locking layer (C3): a set of
// class-indexed barriers a recovery handler acquires before touching a
// kernel data structure, so an ordinary thread and a recovery handler
// never observe the structure mid-surgery. Grounded in the original
// kernel's rcs.c/rcs.h (read in full from original_source/kernel/) and
// in the teacher's lock.Spinlock_t for the giant/per-node two-axis
// locking idiom already used by fs.Bcache_t (one giant cache lock plus
// one sleeplock per buffer).
package rcs

import (
	"sync"

	"defs"
)

/// Class enumerates the recovery lock classes: the "giant" classes
/// cover a whole table, the node classes are indexed further by address
/// via searchRecoveryIdx.
type Class int

const (
	ClassBuf Class = iota
	ClassFile
	ClassInode
	ClassConsole
	ClassPrint
	ClassTickslock
	numClasses
)

/// MaxDepth is the deepest a single process's recovery-lock history may
/// nest; exceeding it is a programming error, not a recoverable
/// condition.
const MaxDepth = 5

/// classLock_t is one barrier: entered normally it just counts holders;
/// a recovery handler calling beginExclusive blocks new entrants and
/// waits for the existing ones to drain before it may proceed.
type classLock_t struct {
	mu        sync.Mutex
	cond      *sync.Cond
	count     int
	exclusive bool
}

func newClassLock() *classLock_t {
	cl := &classLock_t{}
	cl.cond = sync.NewCond(&cl.mu)
	return cl
}

func (cl *classLock_t) enter() {
	cl.mu.Lock()
	for cl.exclusive {
		cl.cond.Wait()
	}
	cl.count++
	cl.mu.Unlock()
}

func (cl *classLock_t) exit() {
	cl.mu.Lock()
	cl.count--
	cl.cond.Broadcast()
	cl.mu.Unlock()
}

func (cl *classLock_t) beginExclusive() {
	cl.mu.Lock()
	for cl.exclusive {
		cl.cond.Wait()
	}
	cl.exclusive = true
	for cl.count > 0 {
		cl.cond.Wait()
	}
	cl.mu.Unlock()
}

func (cl *classLock_t) endExclusive() {
	cl.mu.Lock()
	cl.exclusive = false
	cl.cond.Broadcast()
	cl.mu.Unlock()
}

/// NodeKey identifies one per-node barrier: a class plus the address of
/// the specific buf/file/inode it guards.
type NodeKey struct {
	Class Class
	Addr  uint64
}

type entry_t struct {
	class  Class
	addr   uint64
	isNode bool
}

/// RCS_t is the whole recovery-locking layer: the fixed giant locks,
/// a lazily populated map of node locks, and a per-process history used
/// by ExitAll and the hardware-interrupt partial-exit path.
type RCS_t struct {
	giant [numClasses]*classLock_t

	nodeMu sync.Mutex
	nodes  map[NodeKey]*classLock_t

	histMu sync.Mutex
	hist   map[int][]entry_t
}

func New() *RCS_t {
	r := &RCS_t{
		nodes: map[NodeKey]*classLock_t{},
		hist:  map[int][]entry_t{},
	}
	for i := range r.giant {
		r.giant[i] = newClassLock()
	}
	return r
}

/// searchRecoveryIdx returns the barrier for (class, addr), creating it
/// on first use.
func (r *RCS_t) searchRecoveryIdx(c Class, addr uint64) *classLock_t {
	key := NodeKey{c, addr}
	r.nodeMu.Lock()
	defer r.nodeMu.Unlock()
	cl, ok := r.nodes[key]
	if !ok {
		cl = newClassLock()
		r.nodes[key] = cl
	}
	return cl
}

func (r *RCS_t) pushHistory(pid int, e entry_t) defs.Err_t {
	r.histMu.Lock()
	defer r.histMu.Unlock()
	if len(r.hist[pid]) >= MaxDepth {
		return defs.AtFailStop
	}
	r.hist[pid] = append(r.hist[pid], e)
	return 0
}

func (r *RCS_t) popHistory(pid int, c Class, isNode bool, addr uint64) {
	r.histMu.Lock()
	defer r.histMu.Unlock()
	stack := r.hist[pid]
	for i := len(stack) - 1; i >= 0; i-- {
		e := stack[i]
		if e.class == c && e.isNode == isNode && (!isNode || e.addr == addr) {
			r.hist[pid] = append(stack[:i], stack[i+1:]...)
			return
		}
	}
}

/// Enter acquires the giant barrier for class c on behalf of pid.
/// Reentry by the same pid is allowed and simply counts again. Returns
/// defs.AtFailStop if pid's history is already at MaxDepth.
func (r *RCS_t) Enter(pid int, c Class) defs.Err_t {
	if err := r.pushHistory(pid, entry_t{class: c}); err != 0 {
		return err
	}
	r.giant[c].enter()
	return 0
}

/// Exit releases one Enter(pid, c).
func (r *RCS_t) Exit(pid int, c Class) {
	r.popHistory(pid, c, false, 0)
	r.giant[c].exit()
}

/// EnterNode acquires the giant barrier for c and then the node barrier
/// for addr, in that order — giant-then-node — to match the order the
/// surgery code itself acquires locks in, preventing inversion.
func (r *RCS_t) EnterNode(pid int, c Class, addr uint64) defs.Err_t {
	if err := r.pushHistory(pid, entry_t{class: c, addr: addr, isNode: true}); err != 0 {
		return err
	}
	r.giant[c].enter()
	r.searchRecoveryIdx(c, addr).enter()
	return 0
}

/// ExitNode releases one EnterNode(pid, c, addr).
func (r *RCS_t) ExitNode(pid int, c Class, addr uint64) {
	r.popHistory(pid, c, true, addr)
	r.searchRecoveryIdx(c, addr).exit()
	r.giant[c].exit()
}

/// ExitAll drains the whole history for pid, in LIFO order, at handler
/// end.
func (r *RCS_t) ExitAll(pid int) {
	r.histMu.Lock()
	stack := r.hist[pid]
	delete(r.hist, pid)
	r.histMu.Unlock()

	for i := len(stack) - 1; i >= 0; i-- {
		e := stack[i]
		if e.isNode {
			r.searchRecoveryIdx(e.class, e.addr).exit()
		}
		r.giant[e.class].exit()
	}
}

/// ExitInterruptClass exits only the single class a hardware interrupt
/// implicated (console, print, or tickslock) rather than pid's whole
/// history, for the after-treatment "return to kernel" path (§4.3/§4.8).
/// A no-op if the class isn't in pid's history.
func (r *RCS_t) ExitInterruptClass(pid int, c Class) {
	r.histMu.Lock()
	stack := r.hist[pid]
	idx := -1
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].class == c {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.histMu.Unlock()
		return
	}
	e := stack[idx]
	r.hist[pid] = append(stack[:idx], stack[idx+1:]...)
	r.histMu.Unlock()

	if e.isNode {
		r.searchRecoveryIdx(e.class, e.addr).exit()
	}
	r.giant[e.class].exit()
}

/// BeginExclusive blocks new entrants to class c and waits for existing
/// holders to drain; used by a recovery handler before it performs
/// surgery on the giant structure.
func (r *RCS_t) BeginExclusive(c Class) { r.giant[c].beginExclusive() }

/// EndExclusive releases a prior BeginExclusive.
func (r *RCS_t) EndExclusive(c Class) { r.giant[c].endExclusive() }

/// BeginExclusiveNode is BeginExclusive for a single node barrier.
func (r *RCS_t) BeginExclusiveNode(c Class, addr uint64) {
	r.searchRecoveryIdx(c, addr).beginExclusive()
}

/// EndExclusiveNode releases a prior BeginExclusiveNode.
func (r *RCS_t) EndExclusiveNode(c Class, addr uint64) {
	r.searchRecoveryIdx(c, addr).endExclusive()
}

/// HistoryDepth reports how many entries pid currently has outstanding,
/// for tests and diagnostics.
func (r *RCS_t) HistoryDepth(pid int) int {
	r.histMu.Lock()
	defer r.histMu.Unlock()
	return len(r.hist[pid])
}
