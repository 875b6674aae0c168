package mlist

import "testing"

func TestRegisterLookupDeregister(t *testing.T) {
	r := New(nil)
	const objSize = 64
	addr := uint64(0x1000)

	if ok := r.Register(addr, ClassBuf); !ok {
		t.Fatal("register failed")
	}
	for k := uint64(0); k < objSize; k++ {
		if base, ok := r.Lookup(addr+k, ClassBuf, objSize); !ok || base != addr {
			t.Fatalf("lookup(%#x) = (%#x, %v), want (%#x, true)", addr+k, base, ok, addr)
		}
	}
	if _, ok := r.Lookup(addr+objSize, ClassBuf, objSize); ok {
		t.Fatal("lookup past object end should miss")
	}

	r.Deregister(addr, ClassBuf, 0)
	if _, ok := r.Lookup(addr, ClassBuf, objSize); ok {
		t.Fatal("lookup after deregister should miss")
	}
}

func TestRegisterIdempotent(t *testing.T) {
	r := New(nil)
	r.Register(0x2000, ClassFile)
	r.Register(0x2000, ClassFile)
	n := 0
	r.Each(ClassFile, func(uint64) { n++ })
	if n != 1 {
		t.Fatalf("duplicate register produced %d entries, want 1", n)
	}
}

func TestDeregisterSpan(t *testing.T) {
	r := New(nil)
	r.Register(0x3000, ClassInode)
	r.Register(0x3040, ClassInode)
	r.Register(0x4000, ClassInode)
	r.Deregister(0x3000, ClassInode, 0x80)
	remaining := map[uint64]bool{}
	r.Each(ClassInode, func(a uint64) { remaining[a] = true })
	if remaining[0x3000] || remaining[0x3040] || !remaining[0x4000] {
		t.Fatalf("unexpected surviving set: %v", remaining)
	}
}

func TestGrowsPastOnePage(t *testing.T) {
	r := New(nil)
	for i := 0; i < EntrySize*2; i++ {
		if !r.Register(uint64((i+1)*0x40), ClassBuf) {
			t.Fatalf("register %d failed", i)
		}
	}
	n := 0
	r.Each(ClassBuf, func(uint64) { n++ })
	if n != EntrySize*2 {
		t.Fatalf("got %d entries after growth, want %d", n, EntrySize*2)
	}
}

func TestSafeAllocatorRefusal(t *testing.T) {
	calls := 0
	r := New(func() bool {
		calls++
		return false
	})
	for i := 0; i < EntrySize-1; i++ {
		if !r.Register(uint64((i+1)*0x40), ClassBuf) {
			t.Fatalf("register %d should still fit in first page", i)
		}
	}
	if ok := r.Register(0xffff, ClassBuf); ok {
		t.Fatal("register should fail once the safe allocator refuses growth")
	}
	if calls == 0 {
		t.Fatal("safe allocator gate was never consulted")
	}
}

func TestPagetableMList(t *testing.T) {
	r := New(nil)
	if !r.RegisterPagetable(7, 0x1000, 2) {
		t.Fatal("register failed")
	}
	pid, level, ok := r.LookupPagetable(0x1000)
	if !ok || pid != 7 || level != 2 {
		t.Fatalf("lookup = (%d,%d,%v), want (7,2,true)", pid, level, ok)
	}
	r.DeletePagetable(0x1000)
	if _, _, ok := r.LookupPagetable(0x1000); ok {
		t.Fatal("lookup after delete should miss")
	}
}

func TestPagetableMListDeleteAll(t *testing.T) {
	r := New(nil)
	r.RegisterPagetable(1, 0x1000, 2)
	r.RegisterPagetable(1, 0x2000, 1)
	r.RegisterPagetable(2, 0x3000, 1)
	r.DeletePagetableAll(1)
	if _, _, ok := r.LookupPagetable(0x1000); ok {
		t.Fatal("pid 1 entry should be gone")
	}
	if _, _, ok := r.LookupPagetable(0x2000); ok {
		t.Fatal("pid 1 entry should be gone")
	}
	if _, _, ok := r.LookupPagetable(0x3000); !ok {
		t.Fatal("pid 2 entry should survive")
	}
}
