package ptdup

import "testing"

func TestBitPacking(t *testing.T) {
	w := VA2PTED(12345, 6789, PermP|PermW)
	if PTED2VA(w) != 12345 || PTED2PPN(w) != 6789 || PTED2PERM(w) != PermP|PermW {
		t.Fatalf("round trip failed: va=%d ppn=%d perm=%d", PTED2VA(w), PTED2PPN(w), PTED2PERM(w))
	}

	d := VA2PTDS(100, 200, 5, false, true)
	if PTDS2VA(d) != 100 || PTDS2PPN(d) != 200 || PTDS2SIZE(d) != 5 || PTDS2ORDER(d) || !PTDS2UB(d) {
		t.Fatalf("ptds round trip failed")
	}
	d = SIZE2PTDS(d, 6)
	if PTDS2SIZE(d) != 6 {
		t.Fatal("size2ptds failed")
	}
	d = ORDER2PTDS(d, true)
	if !PTDS2ORDER(d) {
		t.Fatal("order2ptds failed")
	}
	d = UB2PTDS(d, false)
	if PTDS2UB(d) {
		t.Fatal("ub2ptds failed")
	}
	d = PPN2PTDS(d, 999)
	if PTDS2PPN(d) != 999 {
		t.Fatal("ppn2ptds failed")
	}
}

func TestAddMergesIntoRun(t *testing.T) {
	s := &Store_t{}
	s.Add(10, 500, PermP|PermW, true)
	s.Add(11, 501, PermP|PermW, true)
	if len(s.ptds) != 1 || len(s.pted) != 0 {
		t.Fatalf("expected one run after two adjacent adds, got ptds=%d pted=%d", len(s.ptds), len(s.pted))
	}
	if PTDS2SIZE(s.ptds[0]) != 2 {
		t.Fatalf("run size = %d, want 2", PTDS2SIZE(s.ptds[0]))
	}
	s.Add(12, 502, PermP|PermW, true)
	if len(s.ptds) != 1 || PTDS2SIZE(s.ptds[0]) != 3 {
		t.Fatalf("run did not extend: ptds=%v", s.ptds)
	}
}

func TestAddDescendingRun(t *testing.T) {
	s := &Store_t{}
	s.Add(10, 500, PermP|PermW, true)
	s.Add(11, 499, PermP|PermW, true)
	if len(s.ptds) != 1 || !PTDS2ORDER(s.ptds[0]) {
		t.Fatalf("expected a descending run, got ptds=%v pted=%v", s.ptds, s.pted)
	}
}

func TestAddUnrelatedStaysSeparatePTEDs(t *testing.T) {
	s := &Store_t{}
	s.Add(10, 500, PermP, true)
	s.Add(9000, 1, PermW, true)
	if len(s.pted) != 2 || len(s.ptds) != 0 {
		t.Fatalf("expected two bare PTEDs, got ptds=%d pted=%d", len(s.ptds), len(s.pted))
	}
}

func TestClearUserShortRunFullyDecomposes(t *testing.T) {
	s := &Store_t{}
	s.Add(10, 500, PermP|PermW, true)
	s.Add(11, 501, PermP|PermW, true)
	s.ClearUser(10)
	if len(s.ptds) != 0 || len(s.pted) != 2 {
		t.Fatalf("length-2 run should fully decompose, got ptds=%d pted=%d", len(s.ptds), len(s.pted))
	}
}

func TestClearUserLongRunShrinks(t *testing.T) {
	s := &Store_t{}
	for i := uint64(0); i < 5; i++ {
		s.Add(10+i, 500+i, PermP|PermW, true)
	}
	if PTDS2SIZE(s.ptds[0]) != 5 {
		t.Fatalf("setup failed, run size = %d", PTDS2SIZE(s.ptds[0]))
	}
	s.ClearUser(10)
	if len(s.ptds) != 1 || PTDS2SIZE(s.ptds[0]) != 3 {
		t.Fatalf("run should shrink to 3, got size %d (n runs %d)", PTDS2SIZE(s.ptds[0]), len(s.ptds))
	}
	if len(s.pted) != 2 {
		t.Fatalf("expected 2 split-off PTEDs, got %d", len(s.pted))
	}
}

func TestDeleteRangeSplitsRun(t *testing.T) {
	s := &Store_t{}
	for i := uint64(0); i < 10; i++ {
		s.Add(100+i, 2000+i, PermP|PermW, true)
	}
	s.Delete(104, 2) // remove vpn 104,105 from the middle of the run

	page, touched := s.RecoverL0(512)
	if touched {
		t.Fatal("region starting at 512 should not be touched")
	}
	page, touched = s.RecoverL0(100)
	if !touched {
		t.Fatal("region containing the run should be touched")
	}
	for _, v := range []uint64{104, 105} {
		if page[v-100] != 0 {
			t.Fatalf("vpn %d should have been deleted", v)
		}
	}
	for _, v := range []uint64{100, 101, 102, 103, 106, 107, 108, 109} {
		if page[v-100] == 0 {
			t.Fatalf("vpn %d should have survived the delete", v)
		}
	}
}

func TestL2L1RecoveryRoundTrip(t *testing.T) {
	s := &Store_t{}
	s.UpdateL2(3, 0xdeadbeef)
	s.CreateL1(3)
	s.UpdateL1(3, 7, 0xcafef00d)

	l2 := s.RecoverL2()
	if l2[3] != 0xdeadbeef {
		t.Fatalf("l2[3] = %#x, want 0xdeadbeef", l2[3])
	}
	l1, ok := s.RecoverL1(3)
	if !ok || l1[7] != 0xcafef00d {
		t.Fatalf("l1 recovery failed: ok=%v l1[7]=%#x", ok, l1[7])
	}
	if _, ok := s.RecoverL1(4); ok {
		t.Fatal("recovering an L1 never created should report ok=false")
	}
}

func TestManagerLifecycle(t *testing.T) {
	m := NewManager()
	s := m.Init(0x1000)
	s.UpdateL2(0, 42)

	got, ok := m.Lookup(0x1000)
	if !ok || got != s {
		t.Fatal("lookup after init failed")
	}
	m.DeleteAll(0x1000)
	if _, ok := m.Lookup(0x1000); ok {
		t.Fatal("lookup after DeleteAll should miss")
	}
}
