// Package mlist implements the object registry (C1): a per-class address
// registry answering "which kernel object contains address a?". Grounded
// in the original kernel's mlist.c/mlist.h and in the teacher's own
// fs.BlkList_t (an intrusive, header-rooted list of kernel objects).
//
// Entries live page-wise in singly linked pages: each page links to the
// next through its next field (nil on the last page), its last slot is
// left unused, and a deregistered slot is overwritten with a sentinel
// value rather than compacted. An alternative, non-intrusive
// vector-of-vectors design would drop the page chain entirely (see
// design notes in SPEC_FULL.md) — this package keeps the page chain
// because demonstrating it is part of the point of this repository.
package mlist

import "sync"

/// EntrySize is the number of uint64 entries per backing page; the last
/// slot of each page is left unused (the next-page link is page_t.next).
const EntrySize = 4096 / 8

/// Class enumerates the fixed M-List object classes.
type Class int

const (
	ClassBuf Class = iota
	ClassFile
	ClassInode
	ClassLog
	ClassLogHeader
	ClassPipe
	ClassSleeplock
	ClassSpinlock
	ClassConsole
	ClassDevsw
	ClassPrint
	ClassKmem
	ClassRun
	ClassPagetable
	numClasses
)

/// page_t is one intrusive registry page.
type page_t struct {
	entries [EntrySize]uint64
	next    *page_t
}

// emptySentinel marks a slot whose entry was deregistered, as distinct
// from a never-used slot (0); both count as free for Register and are
// skipped by Lookup and Each.
var emptySentinel uint64 = 0x0505050505050505

/// class_t is one class's registry: a giant lock plus its page chain.
type class_t struct {
	mu   sync.Mutex
	head *page_t
}

/// Registry_t is the whole M-List: one class_t per class plus the
/// finer-grained lock used solely by the page-table class, mirroring
/// mlist.ptb_lock in the original.
type Registry_t struct {
	classes [numClasses]class_t
	ptbMu   sync.Mutex
	ptbHead *page_t
	alloc   func() bool /// safe-allocator gate; returns false on OOM
}

/// New builds an empty registry. alloc, if non-nil, is consulted before
/// growing a class by one page and should use the shepherd's safe
/// allocator rather than the ordinary one (§4.4/§5); a nil alloc always
/// succeeds.
func New(alloc func() bool) *Registry_t {
	r := &Registry_t{alloc: alloc}
	for i := range r.classes {
		r.classes[i].head = &page_t{}
	}
	r.ptbHead = &page_t{}
	return r
}

func (r *Registry_t) canGrow() bool {
	if r.alloc == nil {
		return true
	}
	return r.alloc()
}

/// Register inserts addr into the class's ring. Idempotent: inserting an
/// address already present is a no-op. Growing the ring when the current
/// page is full is fatal to the recovery attempt (escalates to fail-stop)
/// if the safe allocator refuses.
func (r *Registry_t) Register(addr uint64, c Class) bool {
	cl := &r.classes[c]
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return registerInto(cl, addr, r.canGrow)
}

func registerInto(cl *class_t, addr uint64, canGrow func() bool) bool {
	for page := cl.head; page != nil; page = page.next {
		for i := 0; i < EntrySize-1; i++ {
			if page.entries[i] == addr {
				return true // already registered
			}
		}
	}
	page := cl.head
	for {
		for i := 0; i < EntrySize-1; i++ {
			if page.entries[i] == 0 || page.entries[i] == emptySentinel {
				page.entries[i] = addr
				return true
			}
		}
		if page.next == nil {
			if !canGrow() {
				return false
			}
			page.next = &page_t{}
		}
		page = page.next
	}
}

/// Deregister removes an entry. span == 0 requests an exact match; span >
/// 0 removes any entry inside [addr, addr+span).
func (r *Registry_t) Deregister(addr uint64, c Class, span uint64) {
	cl := &r.classes[c]
	cl.mu.Lock()
	defer cl.mu.Unlock()
	for page := cl.head; page != nil; page = page.next {
		for i := 0; i < EntrySize-1; i++ {
			e := page.entries[i]
			if e == 0 || e == emptySentinel {
				continue
			}
			if span == 0 {
				if e == addr {
					page.entries[i] = emptySentinel
				}
			} else if e >= addr && e < addr+span {
				page.entries[i] = emptySentinel
			}
		}
	}
}

/// Lookup returns the registered base address owning addr for class c and
/// objSize bytes, i.e. the entry e such that e <= addr < e+objSize, or
/// (0, false).
func (r *Registry_t) Lookup(addr uint64, c Class, objSize uint64) (uint64, bool) {
	cl := &r.classes[c]
	cl.mu.Lock()
	defer cl.mu.Unlock()
	for page := cl.head; page != nil; page = page.next {
		for i := 0; i < EntrySize-1; i++ {
			e := page.entries[i]
			if e == 0 || e == emptySentinel {
				continue
			}
			if addr >= e && addr < e+objSize {
				return e, true
			}
		}
	}
	return 0, false
}

/// Each calls f with every live entry of class c, in ring order.
func (r *Registry_t) Each(c Class, f func(addr uint64)) {
	cl := &r.classes[c]
	cl.mu.Lock()
	defer cl.mu.Unlock()
	for page := cl.head; page != nil; page = page.next {
		for i := 0; i < EntrySize-1; i++ {
			e := page.entries[i]
			if e != 0 && e != emptySentinel {
				f(e)
			}
		}
	}
}
