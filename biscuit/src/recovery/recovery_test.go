package recovery

import (
	"testing"

	"defs"
	"mlist"
	"objs"
)

// fakeTrap is the minimal objs.Trap_i a test needs: every origin lookup
// returns a fixed answer, and the Return*/CompleteIRQ calls just count.
type fakeTrap struct {
	origin   objs.TrapOrigin
	returned []int
}

func (t *fakeTrap) IdentifyOrigin(pid int, sp, s0 uint64) objs.TrapOrigin { return t.origin }
func (t *fakeTrap) CompleteIRQ(irq int)                                  {}
func (t *fakeTrap) ReturnToUser(p *objs.Proc_t)                          { t.returned = append(t.returned, p.Pid) }
func (t *fakeTrap) ReturnToKernel(sp, s0 uint64, irq int)                {}

type fakeFS struct{ recovered int }

func (f *fakeFS) Readsb()          {}
func (f *fakeFS) BeginOp()         {}
func (f *fakeFS) EndOp()           {}
func (f *fakeFS) Commit()          {}
func (f *fakeFS) RecoverFromLog()  { f.recovered++ }

type fakeDisk struct{}

func (fakeDisk) Info() []objs.DiskInfoEntry { return nil }
func (fakeDisk) UsedIdx() int               { return 0 }
func (fakeDisk) AdvanceUsedIdx()            {}
func (fakeDisk) Wake(b *objs.Buf_t)         {}

type fakeAlloc struct{}

func (fakeAlloc) Kalloc() int            { return -1 }
func (fakeAlloc) Kfree(i int, junk bool) {}

func testKernel(t *testing.T) (*Kernel_t, *objs.ProcTable_t, *fakeTrap) {
	t.Helper()
	procs := objs.NewProcTable(4)
	trap := &fakeTrap{origin: objs.UserTrap}
	k := NewKernel(Collaborators_t{
		Procs: procs,
		Disk:  fakeDisk{},
		FS:    &fakeFS{},
		Alloc: fakeAlloc{},
		Trap:  trap,
	}, 4, 4, 4, 64)
	return k, procs, trap
}

func addProc(procs *objs.ProcTable_t, pid int) *objs.Proc_t {
	for _, p := range procs.Procs {
		if p.State == objs.UNUSED {
			p.State = objs.RUNNING
			p.Pid = pid
			return p
		}
	}
	return nil
}

func TestClassifyPagetableUsesDedicatedRegistry(t *testing.T) {
	k, procs, _ := testKernel(t)
	p := addProc(procs, 1)
	root, pt := k.NewPagetableRoot(p.Pid, 8)
	p.Pagetable = pt

	class, base, ok := k.classify(root)
	if !ok || class != mlist.ClassPagetable || base != root {
		t.Fatalf("classify(%#x) = (%v, %#x, %v), want (pagetable, %#x, true)", root, class, base, ok, root)
	}
}

func TestRecoverPagetableRebuildsFromShadow(t *testing.T) {
	k, procs, _ := testKernel(t)
	p := addProc(procs, 2)
	root, pt := k.NewPagetableRoot(p.Pid, 8)
	p.Pagetable = pt

	store, ok := k.Ptdup.Lookup(root)
	if !ok {
		t.Fatal("ptdup store missing after NewPagetableRoot")
	}
	store.UpdateL2(0, objs.PTE_P|objs.PTE_W)
	store.UpdateL1(0, 3, objs.PTE_P|objs.PTE_U)

	// Simulate corruption: the live table is wiped.
	p.Pagetable = objs.NewPagetable(8)

	code := k.Recover(root, p.Pid, 0, 0)
	if code != defs.AtSyscallRedo {
		t.Fatalf("recoverPagetable code = %v, want AtSyscallRedo", code)
	}
	if p.Pagetable.L2[0]&objs.PTE_P == 0 {
		t.Fatal("recovered L2[0] lost the present bit")
	}
	if p.Pagetable.Pages[0][3]&objs.PTE_U == 0 {
		t.Fatal("recovered L1[0][3] lost the shadowed entry")
	}

	if _, _, ok := k.Mlist.LookupPagetable(root); !ok {
		t.Fatal("pagetable M-List entry lost across recovery")
	}
}

func TestRecoverPagetableFailStopWithoutRegistration(t *testing.T) {
	k, procs, _ := testKernel(t)
	p := addProc(procs, 3)
	p.Pagetable = objs.NewPagetable(8)

	code := k.Recover(0x123000, p.Pid, 0, 0)
	if code != defs.AtFailStop {
		t.Fatalf("code = %v, want AtFailStop for an address the registry never saw", code)
	}
}

func TestRecoverPipeWakesBlockedWaiterAndRedirectsDescriptors(t *testing.T) {
	k, procs, _ := testKernel(t)
	p := addProc(procs, 4)
	idx, pipe := k.NewPipeTracked()

	f := &objs.File_t{Type: 1, Pipe: pipe, Readable: true}
	p.Ofile[0] = f

	// A reader or writer blocked on the pipe waits by receiving from
	// Waiters; recovery must leave a wake-up token there so the waiter
	// observes the pipe tearing down instead of hanging forever.
	code := k.Recover(idx, p.Pid, 0, 0)
	if code != defs.AtPipe {
		t.Fatalf("code = %v, want AtPipe", code)
	}
	select {
	case <-pipe.Waiters:
	default:
		t.Fatal("old pipe's waiter channel holds no wake-up token after recovery")
	}
	if f.Pipe == pipe {
		t.Fatal("descriptor still points at the torn-down pipe")
	}
	if f.Pipe.Readopen || f.Pipe.Writeopen {
		t.Fatal("replacement pipe should start closed on both ends")
	}
}

func TestRecoverDevswFailStopsWithoutHook(t *testing.T) {
	k, procs, _ := testKernel(t)
	p := addProc(procs, 5)
	idx := uint64(0x200000) // outside every buffer slot NewKernel registers
	k.Mlist.Register(idx, mlist.ClassDevsw)

	code := k.Recover(idx, p.Pid, 0, 0)
	if code != defs.AtFailStop {
		t.Fatalf("code = %v, want AtFailStop when DevswInit is unset", code)
	}
}

func TestRecoverDevswReinstallsDriversWithHook(t *testing.T) {
	k, procs, _ := testKernel(t)
	p := addProc(procs, 6)
	idx := uint64(0x200000) // outside every buffer slot NewKernel registers
	k.Mlist.Register(idx, mlist.ClassDevsw)

	called := false
	k.DevswInit = func(d *objs.Devsw_t) {
		called = true
		maj, _ := defs.Unmkdev(defs.Mkdev(defs.D_CONSOLE, 0))
		d.Table[maj].Read = func(p *objs.Proc_t, dst []uint8, n int) (int, int) { return n, 0 }
	}

	code := k.Recover(idx, p.Pid, 0, 0)
	if code != defs.AtSyscallRedo {
		t.Fatalf("code = %v, want AtSyscallRedo", code)
	}
	if !called {
		t.Fatal("DevswInit hook was never invoked")
	}
	fresh := k.Devsw.Load()
	if fresh.Table[defs.D_CONSOLE].Read == nil {
		t.Fatal("console driver entry was not reinstalled at D_CONSOLE's major number")
	}
}

func TestRecoveredCacheDedupesRepeatBreaks(t *testing.T) {
	k, procs, trap := testKernel(t)
	p := addProc(procs, 7)
	trap.origin = objs.UserTrap
	idx := uint64(0x200000) // outside every buffer slot NewKernel registers
	k.Mlist.Register(idx, mlist.ClassConsole)

	first := k.Recover(idx, p.Pid, 0, 0)
	// Flip the origin; if the second call actually re-ran the handler
	// it would see KernelTrap and return AtReturnToKernel instead.
	trap.origin = objs.KernelTrap
	second := k.Recover(idx, p.Pid, 0, 0)
	if first != second {
		t.Fatalf("second Recover() = %v, want cached %v", second, first)
	}
}
