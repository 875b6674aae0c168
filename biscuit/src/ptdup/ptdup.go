// Package ptdup implements the page-table duplication store (C2): a
// shadow copy of a process's L2/L1 page-table words plus a run-length
// compressed record of every L0 (leaf) mapping, used to rebuild a leaf
// page table that recovery finds corrupted. Grounded in the original
// kernel's ptdup.c/ptdup.h and in the teacher's mem.Pmap_t/mem.Pg_t
// layout (vm/pmap.go, mem/pg.go).
package ptdup

import "sync"

const entsPerPage = 512

/// Store_t is one process's duplication store: a shadow L2 table, lazily
/// allocated shadow L1 tables, and the PTDS/PTED run lists recording every
/// leaf mapping. L1 mirrors and L0 records are addressed by slice index
/// rather than pointer, per the arena-indexing convention used elsewhere
/// in this module.
type Store_t struct {
	mu sync.Mutex

	l2 [entsPerPage]uint64
	l1 [entsPerPage]*[entsPerPage]uint64 // nil until CreateL1

	// ptds/pted hold every recorded leaf mapping as encoded words (see
	// bits.go). A run (PTDS) covers 2..511 contiguous virtual pages
	// mapped to contiguous physical pages; anything that doesn't fit a
	// run is recorded as a single PTED.
	ptds []uint64
	pted []uint64
}

/// Manager_t indexes one Store_t per process root, keyed by the
/// process's L2 table's physical address — the original's idx_ptdup.
type Manager_t struct {
	mu    sync.Mutex
	heads map[uint64]*Store_t
}

func NewManager() *Manager_t {
	return &Manager_t{heads: map[uint64]*Store_t{}}
}

/// Init creates (or resets) the duplication store for a process root.
func (m *Manager_t) Init(root uint64) *Store_t {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &Store_t{}
	m.heads[root] = s
	return s
}

/// Lookup returns the store for a process root, if any.
func (m *Manager_t) Lookup(root uint64) (*Store_t, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.heads[root]
	return s, ok
}

/// DeleteAll drops the whole duplication store for a process root, e.g.
/// on process exit.
func (m *Manager_t) DeleteAll(root uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.heads, root)
}

/// UpdateL2 mirrors a write to L2[idx] into the shadow table.
func (s *Store_t) UpdateL2(idx int, entry uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.l2[idx] = entry
}

/// CreateL1 allocates the shadow L1 table for L2 slot idx, if absent.
func (s *Store_t) CreateL1(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.l1[idx] == nil {
		s.l1[idx] = &[entsPerPage]uint64{}
	}
}

/// UpdateL1 mirrors a write to L1[l2idx][l1idx] into the shadow table,
/// creating the shadow L1 page first if needed.
func (s *Store_t) UpdateL1(l2idx, l1idx int, entry uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.l1[l2idx] == nil {
		s.l1[l2idx] = &[entsPerPage]uint64{}
	}
	s.l1[l2idx][l1idx] = entry
}

/// RecoverL2 returns a copy of the shadow L2 table, to be installed over
/// the corrupted live one.
func (s *Store_t) RecoverL2() [entsPerPage]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.l2
}

/// RecoverL1 returns a copy of the shadow L1 table for L2 slot idx.
func (s *Store_t) RecoverL1(idx int) (tbl [entsPerPage]uint64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.l1[idx] == nil {
		return tbl, false
	}
	return *s.l1[idx], true
}

/// Add records a new leaf mapping. The store first tries to extend an
/// existing PTDS run (either direction); failing that it tries to fuse
/// with an existing PTED to start a new run; failing that it records a
/// bare PTED.
func (s *Store_t) Add(vpn, ppn uint64, perm uint8, user bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(vpn, ppn, perm, user)
}

func ppnAt(w uint64, i int) uint64 { return ptdsPhysAt(w, i) }

/// ClearUser updates the record covering vpn. If vpn is a lone PTED, that
/// PTED is removed. If vpn lies inside a PTDS run, vpn stays recorded: a
/// PTDS of length exactly 2 decomposes completely into two PTEDs with
/// PermP|PermW (no user bit); a PTDS of length > 2 decomposes only its
/// last two pages into such PTEDs and shrinks by two,
/// regardless of where within the run vpn sits — a deliberate
/// simplification over the original's edge-vs-middle split, recorded as
/// an explicit simplification rather than attempted bit-for-bit fidelity.
func (s *Store_t) ClearUser(vpn uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, w := range s.ptds {
		size := PTDS2SIZE(w)
		start := PTDS2VA(w)
		if vpn < start || vpn > start+uint64(size)-1 {
			continue
		}
		if size == 2 {
			s.ptds = append(s.ptds[:i], s.ptds[i+1:]...)
			s.pted = append(s.pted,
				VA2PTED(start, PTDS2PPN(w), PermP|PermW),
				VA2PTED(start+1, ppnAt(w, 1), PermP|PermW))
			return
		}
		last0 := start + uint64(size) - 2
		last1 := start + uint64(size) - 1
		s.pted = append(s.pted,
			VA2PTED(last0, ppnAt(w, size-2), PermP|PermW),
			VA2PTED(last1, ppnAt(w, size-1), PermP|PermW))
		s.ptds[i] = SIZE2PTDS(w, size-2)
		return
	}

	for i, w := range s.pted {
		if PTED2VA(w) == vpn {
			s.pted = append(s.pted[:i], s.pted[i+1:]...)
			return
		}
	}
}

/// Delete removes every recorded mapping whose virtual page falls in
/// [vpnStart, vpnStart+count), splitting any PTDS run that only
/// partially overlaps the range. Surviving fragments of a split run are
/// re-added through addLocked so they re-merge into runs where possible.
func (s *Store_t) Delete(vpnStart uint64, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	end := vpnStart + uint64(count)

	kept := s.pted[:0]
	for _, w := range s.pted {
		if v := PTED2VA(w); v < vpnStart || v >= end {
			kept = append(kept, w)
		}
	}
	s.pted = kept

	oldRuns := s.ptds
	s.ptds = nil
	for _, w := range oldRuns {
		size := PTDS2SIZE(w)
		start := PTDS2VA(w)
		last := start + uint64(size) - 1
		if last < vpnStart || start >= end {
			s.ptds = append(s.ptds, w)
			continue
		}
		for i := 0; i < size; i++ {
			v := start + uint64(i)
			if v >= vpnStart && v < end {
				continue
			}
			s.addLocked(v, ppnAt(w, i), PermP|PermW, PTDS2UB(w))
		}
	}
}

/// addLocked is Add's body, callable while s.mu is already held.
func (s *Store_t) addLocked(vpn, ppn uint64, perm uint8, user bool) {
	for i, w := range s.ptds {
		size := PTDS2SIZE(w)
		desc := PTDS2ORDER(w)
		start := PTDS2VA(w)
		end := start + uint64(size) - 1
		if !desc && vpn == end+1 && ppnAt(w, size-1)+1 == ppn && size < 511 {
			s.ptds[i] = SIZE2PTDS(w, size+1)
			return
		}
		if desc && vpn == end+1 && ppnAt(w, size-1)-1 == ppn && size < 511 {
			s.ptds[i] = SIZE2PTDS(w, size+1)
			return
		}
		if !desc && vpn+1 == start && ppn+1 == PTDS2PPN(w) && size < 511 {
			s.ptds[i] = VA2PTDS(vpn, ppn, size+1, false, user)
			return
		}
	}

	for i, w := range s.pted {
		ov := PTED2VA(w)
		opn := PTED2PPN(w)
		if vpn == ov+1 && ppn == opn+1 {
			s.pted = append(s.pted[:i], s.pted[i+1:]...)
			s.ptds = append(s.ptds, VA2PTDS(ov, opn, 2, false, user))
			return
		}
		if vpn == ov+1 && ppn+1 == opn {
			s.pted = append(s.pted[:i], s.pted[i+1:]...)
			s.ptds = append(s.ptds, VA2PTDS(ov, opn, 2, true, user))
			return
		}
	}

	s.pted = append(s.pted, VA2PTED(vpn, ppn, perm))
}

/// RecoverL0 rebuilds a full 2MiB L0 leaf page (512 PTEs covering
/// virtual pages [baseVPN, baseVPN+512)) from the recorded PTDS/PTED
/// entries. touched is false if no entries at all cover this region
/// (nothing to recover, caller should leave the page alone) — it is not
/// false merely because some slots are unmapped.
func (s *Store_t) RecoverL0(baseVPN uint64) (page [entsPerPage]uint64, touched bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range s.ptds {
		size := PTDS2SIZE(w)
		start := PTDS2VA(w)
		for i := 0; i < size; i++ {
			v := start + uint64(i)
			if v < baseVPN || v >= baseVPN+entsPerPage {
				continue
			}
			page[v-baseVPN] = VA2PTED(v, ppnAt(w, i), PermP|PermW)
			touched = true
		}
	}
	for _, w := range s.pted {
		v := PTED2VA(w)
		if v < baseVPN || v >= baseVPN+entsPerPage {
			continue
		}
		page[v-baseVPN] = w
		touched = true
	}
	return page, touched
}
