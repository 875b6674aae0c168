package trans

import (
	"testing"

	"objs"
)

func TestLogTransactionSnapshotAndCheck(t *testing.T) {
	tr := New()
	lh := objs.LogHeader_t{N: 3}
	tr.EnterTransLog(1, lh, 5)

	snap, ok := tr.CheckAndHandleTransLog(1)
	if !ok || snap.Header.N != 3 || snap.Outstanding != 5 {
		t.Fatalf("check = (%+v, %v), want matching snapshot", snap, ok)
	}

	tr.ExitTransLog(1)
	if _, ok := tr.CheckAndHandleTransLog(1); ok {
		t.Fatal("check after exit should report not-inside")
	}
}

func TestLogTransactionNesting(t *testing.T) {
	tr := New()
	tr.EnterTransLog(1, objs.LogHeader_t{N: 1}, 1)
	tr.EnterTransLog(1, objs.LogHeader_t{N: 99}, 99) // nested enter must not overwrite snapshot
	snap, _ := tr.CheckAndHandleTransLog(1)
	if snap.Header.N != 1 {
		t.Fatalf("nested enter overwrote snapshot: got N=%d, want 1", snap.Header.N)
	}
	tr.ExitTransLog(1)
	if _, ok := tr.CheckAndHandleTransLog(1); !ok {
		t.Fatal("should still be inside after only one of two exits")
	}
	tr.ExitTransLog(1)
	if _, ok := tr.CheckAndHandleTransLog(1); ok {
		t.Fatal("should be outside after both exits")
	}
}

func TestPagetableTransaction(t *testing.T) {
	tr := New()
	if tr.CheckAndHandleTransPagetable(1) {
		t.Fatal("should not be inside before any enter")
	}
	tr.EnterTransPagetable(1)
	if !tr.CheckAndHandleTransPagetable(1) {
		t.Fatal("should be inside after enter")
	}
	tr.ExitTransPagetable(1)
	if tr.CheckAndHandleTransPagetable(1) {
		t.Fatal("should not be inside after exit")
	}
}

func TestAllocFreeTransactionStack(t *testing.T) {
	tr := New()
	tr.EnterTransAllocFree(1, 10)
	tr.EnterTransAllocFree(1, 20)

	idx, ok := tr.CheckAndHandleTransAllocFree(1)
	if !ok || idx != 20 {
		t.Fatalf("check = (%d, %v), want (20, true) — innermost first", idx, ok)
	}
	idx, ok = tr.CheckAndHandleTransAllocFree(1)
	if !ok || idx != 10 {
		t.Fatalf("check = (%d, %v), want (10, true)", idx, ok)
	}
	if _, ok := tr.CheckAndHandleTransAllocFree(1); ok {
		t.Fatal("stack should be empty now")
	}
}

func TestPerProcessIsolation(t *testing.T) {
	tr := New()
	tr.EnterTransPagetable(1)
	if tr.CheckAndHandleTransPagetable(2) {
		t.Fatal("pid 2 should be unaffected by pid 1's transaction")
	}
}
