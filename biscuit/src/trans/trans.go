// Package trans implements the shadow-transaction log (C4): narrow,
// per-process transactions wrapping the handful of small mutations
// that would otherwise leave a structure and its mirror/metadata out of
// sync if an uncorrectable error landed mid-mutation. Grounded in the
// original kernel's trans.c/trans.h and in the teacher's own log commit
// protocol (fs.Log_t.Commit, which already brackets "outstanding
// operation" counters the same way).
package trans

import (
	"sync"

	"objs"
)

/// LogSnapshot_t is the pre-image captured on entering a log
/// transaction: the log header plus the outstanding-operation count,
/// exactly what the buf/inode recovery handler needs to restore the
/// mirror.
type LogSnapshot_t struct {
	Header      objs.LogHeader_t
	Outstanding int
}

/// Trans_t tracks, per pid, the nesting depth and pre-image for each of
/// the three protected operation kinds. All three counters support
/// reentrant nesting — only the outermost Enter takes a fresh snapshot,
/// and only the outermost Exit clears it.
type Trans_t struct {
	mu sync.Mutex

	logDepth map[int]int
	logSnap  map[int]LogSnapshot_t

	ptDepth map[int]int

	allocDepth map[int]int
	allocSnap  map[int][]int // stack of in-flight free-list node indices
}

func New() *Trans_t {
	return &Trans_t{
		logDepth:   map[int]int{},
		logSnap:    map[int]LogSnapshot_t{},
		ptDepth:    map[int]int{},
		allocDepth: map[int]int{},
		allocSnap:  map[int][]int{},
	}
}

// --- log header + outstanding op-count ---

/// EnterTransLog begins (or nests into) a log transaction for pid,
/// snapshotting the current header and outstanding count on first
/// entry.
func (t *Trans_t) EnterTransLog(pid int, header objs.LogHeader_t, outstanding int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.logDepth[pid] == 0 {
		t.logSnap[pid] = LogSnapshot_t{Header: header, Outstanding: outstanding}
	}
	t.logDepth[pid]++
}

/// ExitTransLog ends one level of log transaction for pid, discarding
/// the snapshot once the outermost level exits cleanly.
func (t *Trans_t) ExitTransLog(pid int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.logDepth[pid] == 0 {
		return
	}
	t.logDepth[pid]--
	if t.logDepth[pid] == 0 {
		delete(t.logSnap, pid)
	}
}

/// CheckAndHandleTransLog reports whether pid was inside a log
/// transaction (ok=true) and, if so, the pre-image the buf/inode
/// recovery handler should copy back into the mirror.
func (t *Trans_t) CheckAndHandleTransLog(pid int) (snap LogSnapshot_t, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.logDepth[pid] == 0 {
		return LogSnapshot_t{}, false
	}
	return t.logSnap[pid], true
}

// --- page-table mutation ---

/// EnterTransPagetable begins (or nests into) a page-table mutation
/// transaction for pid. No pre-image is kept — recovery can only choose
/// to kill the process or fail-stop, never roll the mutation back.
func (t *Trans_t) EnterTransPagetable(pid int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ptDepth[pid]++
}

/// ExitTransPagetable ends one level of page-table transaction for pid.
func (t *Trans_t) ExitTransPagetable(pid int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ptDepth[pid] > 0 {
		t.ptDepth[pid]--
	}
}

/// CheckAndHandleTransPagetable reports whether pid was inside a
/// page-table mutation; the caller (after-treatment) picks kill or
/// fail-stop per the active error-handling mode.
func (t *Trans_t) CheckAndHandleTransPagetable(pid int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ptDepth[pid] > 0
}

// --- allocator free node ---

/// EnterTransAllocFree records nodeIdx as the free-list node currently
/// being unlinked/relinked for pid. Nested calls push additional
/// in-flight nodes.
func (t *Trans_t) EnterTransAllocFree(pid int, nodeIdx int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.allocDepth[pid]++
	t.allocSnap[pid] = append(t.allocSnap[pid], nodeIdx)
}

/// ExitTransAllocFree ends the innermost allocator-free transaction for
/// pid.
func (t *Trans_t) ExitTransAllocFree(pid int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.allocDepth[pid] == 0 {
		return
	}
	t.allocDepth[pid]--
	stack := t.allocSnap[pid]
	if len(stack) > 0 {
		t.allocSnap[pid] = stack[:len(stack)-1]
	}
}

/// CheckAndHandleTransAllocFree reports whether pid was mid-unlink of a
/// free-list node and, if so, pops and returns that node's index so the
/// caller can re-insert it onto the free list.
func (t *Trans_t) CheckAndHandleTransAllocFree(pid int) (nodeIdx int, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	stack := t.allocSnap[pid]
	if len(stack) == 0 {
		return 0, false
	}
	nodeIdx = stack[len(stack)-1]
	t.allocSnap[pid] = stack[:len(stack)-1]
	if t.allocDepth[pid] > 0 {
		t.allocDepth[pid]--
	}
	return nodeIdx, true
}
