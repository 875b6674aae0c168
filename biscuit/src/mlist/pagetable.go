package mlist

// Pagetable registration packs (pid, level) into the low 12 bits of the
// entry word alongside the page-aligned address, trading address
// alignment for metadata packing — mirrored from mlist_pagetable.c's
// register_ptb_mlist/delete_ptb_mlist/delete_ptb_mlist_all.

const pidShift = 4
const pidMask = 0xff // supports pid 0..255 in bits [11:4]
const levelMask = 0xf // level in bits [3:0]

func packPTNode(addr uint64, pid, level int) uint64 {
	return (addr &^ 0xfff) | (uint64(pid&pidMask) << pidShift) | uint64(level&levelMask)
}

func unpackPid(node uint64) int   { return int((node >> pidShift) & pidMask) }
func unpackLevel(node uint64) int { return int(node & levelMask) }
func unpackAddr(node uint64) uint64 { return node &^ 0xfff }

/// RegisterPagetable records addr (page-aligned) at the given level for
/// pid in the dedicated pagetable M-List.
func (r *Registry_t) RegisterPagetable(pid int, addr uint64, level int) bool {
	r.ptbMu.Lock()
	defer r.ptbMu.Unlock()
	node := packPTNode(addr, pid, level)
	page := r.ptbHead
	for {
		for i := 0; i < EntrySize-1; i++ {
			if page.entries[i] == 0 || page.entries[i] == emptySentinel {
				page.entries[i] = node
				return true
			}
		}
		if page.next == nil {
			if !r.canGrow() {
				return false
			}
			page.next = &page_t{}
		}
		page = page.next
	}
}

/// DeletePagetable removes the (page-aligned) address from the pagetable
/// M-List, regardless of pid/level.
func (r *Registry_t) DeletePagetable(addr uint64) {
	r.ptbMu.Lock()
	defer r.ptbMu.Unlock()
	target := addr &^ 0xfff
	for page := r.ptbHead; page != nil; page = page.next {
		for i := 0; i < EntrySize-1; i++ {
			if unpackAddr(page.entries[i]) == target && page.entries[i] != 0 {
				page.entries[i] = 0
				return
			}
		}
	}
}

/// DeletePagetableAll removes every entry owned by pid, e.g. on process
/// exit or exec().
func (r *Registry_t) DeletePagetableAll(pid int) {
	r.ptbMu.Lock()
	defer r.ptbMu.Unlock()
	for page := r.ptbHead; page != nil; page = page.next {
		for i := 0; i < EntrySize-1; i++ {
			if page.entries[i] != 0 && unpackPid(page.entries[i]) == pid {
				page.entries[i] = 0
			}
		}
	}
}

/// LookupPagetable reports the (pid, level) recorded for a page-aligned
/// address, or ok=false.
func (r *Registry_t) LookupPagetable(addr uint64) (pid, level int, ok bool) {
	r.ptbMu.Lock()
	defer r.ptbMu.Unlock()
	target := addr &^ 0xfff
	for page := r.ptbHead; page != nil; page = page.next {
		for i := 0; i < EntrySize-1; i++ {
			e := page.entries[i]
			if e != 0 && unpackAddr(e) == target {
				return unpackPid(e), unpackLevel(e), true
			}
		}
	}
	return 0, 0, false
}
