// Package recovery implements the object-specific recovery handlers
// (C6), the singleton kernel state they operate on, and the glue that
// ties the object registry, the page-table duplication store, the
// recovery-locking layer and the shadow-transaction log together into
// one coherent "fix the damaged object, repair its peers, decide the
// after-treatment" pipeline. Grounded in the original kernel's
// recovery.c/recovery.h family (read in full from
// original_source/kernel/) and, for the singleton-swap shape, in the
// design notes' "globally mutable singletons -> atomic.Pointer[T]"
// re-architecture pointer.
package recovery

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"caller"
	"mlist"
	"objs"
	"ptdup"
	"rcs"
	"stats"
	"trans"
)

/// Mode selects how aggressively recovery trades survivability for
/// consistency when a UE lands mid-syscall in a function the mode
/// table (SPEC_FULL.md §7) marks as conditionally recoverable.
type Mode int

const (
	Conservative Mode = iota
	Aggressive
)

func (m Mode) String() string {
	if m == Aggressive {
		return "aggressive"
	}
	return "conservative"
}

/// Config_t is the single runtime-togglable recovery configuration
/// (§6 Configuration): mode defaults to Conservative, matching the
/// spec, and FillJunk controls whether freed pages are stomped with a
/// recognizable byte pattern (the "fill with junk on free" design
/// note) to catch dangling reads in tests.
type Config_t struct {
	mode     atomic.Int32
	FillJunk bool

	/// TraceDistinctPaths enables the shepherd's first-seen-call-path
	/// diagnostic (caller.Distinct_caller_t): the first NMI to arrive via
	/// a given internal Go call chain gets its stack logged once.
	TraceDistinctPaths bool
}

func (c *Config_t) Mode() Mode   { return Mode(c.mode.Load()) }
func (c *Config_t) SetMode(m Mode) { c.mode.Store(int32(m)) }

/// EnableTracing turns the first-seen-call-path diagnostic on or off.
func (k *Kernel_t) EnableTracing(on bool) {
	k.Config.TraceDistinctPaths = on
	k.distinct.Lock()
	k.distinct.Enabled = on
	k.distinct.Unlock()
}

/// Printer_i is the boot-console sink for the "start/end <class>
/// recovery: <ticks>" instrumentation lines (§6 Instrumentation).
type Printer_i interface {
	Printf(format string, args ...interface{})
}

/// nullPrinter discards everything; used when a caller doesn't care to
/// observe the instrumentation stream.
type nullPrinter struct{}

func (nullPrinter) Printf(string, ...interface{}) {}

/// Kernel_t gathers every singleton the recovery subsystem touches —
/// the object registry, duplication store, locking layer, transaction
/// log, and the wholesale-replaceable object-table singletons
/// themselves — into one process-wide state, per the design notes'
/// "model as process-wide state S with a single initialization edge,
/// an atomic swap for wholesale replacement" pointer. Each table-wide
/// singleton lives behind atomic.Pointer[T] so a handler's wholesale
/// replacement becomes visible with one atomic store, never a
/// half-updated struct.
type Kernel_t struct {
	Config Config_t

	Mlist *mlist.Registry_t
	Ptdup *ptdup.Manager_t
	Rcs   *rcs.RCS_t
	Trans *trans.Trans_t

	Bcache atomic.Pointer[objs.Bcache_t]
	Ftable atomic.Pointer[objs.Ftable_t]
	Icache atomic.Pointer[objs.Icache_t]
	Log    atomic.Pointer[objs.Log_t]
	Cons   atomic.Pointer[objs.Cons_t]
	Pr     atomic.Pointer[objs.Pr_t]
	Devsw  atomic.Pointer[objs.Devsw_t]
	Kmem   atomic.Pointer[objs.Kmem_t]

	Procs objs.ProcTable_i
	Disk  objs.Disk_i
	FS    objs.FS_i
	Alloc objs.Allocator_i
	Trap  objs.Trap_i

	// DevswInit reinstalls a fresh device-switch table's driver function
	// pointers after a UE condemns Devsw_t (§4.6.7); nil means the device
	// table cannot be reconstructed and the handler fail-stops.
	DevswInit func(*objs.Devsw_t)

	Printer Printer_i

	recovered recoveredCache_t

	reserveMu  sync.Mutex
	reserve    []int /// pre-reserved page indices, the "safe allocator" (§4.1/§4.4/§5)
	reserveNew func() int /// refill hook for reserve; nothing sets or calls it, so the pool is fixed

	// pipes is the pipe arena: pipes are allocated dynamically rather
	// than living in a fixed slot table like Bcache_t/Ftable_t/Icache_t,
	// so each one is tracked at the index the M-List registry knows it
	// by, per the arena/slice-index addressing convention used
	// throughout this module.
	pipeMu sync.Mutex
	pipes  []*objs.Pipe_t

	cyclesMu sync.Mutex
	cycles   map[mlist.Class]*stats.Cycles_t

	/// distinct tracks which internal Go call chains have already
	/// triggered a Recover call, for the TraceDistinctPaths diagnostic.
	distinct caller.Distinct_caller_t
}

/// Collaborators_t bundles the external-system contracts (§6) a
/// Kernel_t needs; tests supply in-memory objs.* implementations, a
/// real port would supply the actual kernel subsystems.
type Collaborators_t struct {
	Procs objs.ProcTable_i
	Disk  objs.Disk_i
	FS    objs.FS_i
	Alloc objs.Allocator_i
	Trap  objs.Trap_i
}

/// NewKernel builds a Kernel_t with fresh singletons of the given
/// sizes and wires it to the supplied collaborators. reservePages
/// seeds the safe-allocator pool that registry growth and in-handler
/// replacement draw from, kept separate from the ordinary kmem pool so
/// that recovering kmem itself never needs kmem.
func NewKernel(co Collaborators_t, nbuf, nfile, ninode, reservePages int) *Kernel_t {
	k := &Kernel_t{
		Ptdup:   ptdup.NewManager(),
		Rcs:     rcs.New(),
		Trans:   trans.New(),
		Procs:   co.Procs,
		Disk:    co.Disk,
		FS:      co.FS,
		Alloc:   co.Alloc,
		Trap:    co.Trap,
		Printer: nullPrinter{},
		cycles:  map[mlist.Class]*stats.Cycles_t{},
	}
	k.reserve = make([]int, reservePages)
	for i := range k.reserve {
		k.reserve[i] = i
	}
	k.Mlist = mlist.New(k.safeGrow)

	k.Bcache.Store(objs.NewBcache(nbuf))
	k.Ftable.Store(objs.NewFtable(nfile))
	k.Icache.Store(objs.NewIcache(ninode))
	k.Log.Store(objs.NewLog(0, 0))
	k.Cons.Store(objs.NewCons())
	k.Pr.Store(objs.NewPr())
	k.Devsw.Store(objs.NewDevsw())
	k.Kmem.Store(objs.NewKmem(reservePages))

	for i := range k.Bcache.Load().Buf {
		k.Mlist.Register(uint64(i+1), mlist.ClassBuf)
	}
	return k
}

/// safeGrow is the registry's growth gate: it pops one page from the
/// reserve pool rather than touching the ordinary allocator, so
/// registering new entries never depends on the allocator recovery may
/// currently be rebuilding (§4.1, §5).
func (k *Kernel_t) safeGrow() bool {
	k.reserveMu.Lock()
	defer k.reserveMu.Unlock()
	if len(k.reserve) == 0 {
		return false
	}
	k.reserve = k.reserve[:len(k.reserve)-1]
	return true
}

/// SafeAlloc hands out one page index from the reserve pool for a
/// handler's internal-surgery replacement object, or -1 if the pool is
/// exhausted (locally fatal, per §4.1/§7: "internal allocation failure
/// is locally fatal").
func (k *Kernel_t) SafeAlloc() int {
	k.reserveMu.Lock()
	defer k.reserveMu.Unlock()
	if len(k.reserve) == 0 {
		return -1
	}
	i := k.reserve[len(k.reserve)-1]
	k.reserve = k.reserve[:len(k.reserve)-1]
	return i
}

/// SafeFree returns a page index to the reserve pool, e.g. when a
/// handler decides not to use a page it provisionally reserved.
func (k *Kernel_t) SafeFree(i int) {
	k.reserveMu.Lock()
	defer k.reserveMu.Unlock()
	k.reserve = append(k.reserve, i)
}

/// NewPipeTracked allocates a pipe and registers it in the object
/// registry under its arena index, so a later UE against it can be
/// classified and recovered the same way a buf/file/inode slot is.
func (k *Kernel_t) NewPipeTracked() (idx uint64, p *objs.Pipe_t) {
	k.pipeMu.Lock()
	p = objs.NewPipe()
	idx = uint64(len(k.pipes))
	k.pipes = append(k.pipes, p)
	k.pipeMu.Unlock()
	k.Mlist.Register(idx, mlist.ClassPipe)
	return idx, p
}

func (k *Kernel_t) pipeAt(idx uint64) *objs.Pipe_t {
	k.pipeMu.Lock()
	defer k.pipeMu.Unlock()
	if int(idx) < 0 || int(idx) >= len(k.pipes) {
		return nil
	}
	return k.pipes[idx]
}

func (k *Kernel_t) replacePipeAt(idx uint64, p *objs.Pipe_t) {
	k.pipeMu.Lock()
	defer k.pipeMu.Unlock()
	if int(idx) >= 0 && int(idx) < len(k.pipes) {
		k.pipes[idx] = p
	}
}

/// NewPagetableRoot allocates a fresh root page table for pid out of
/// the safe reserve pool, seeds its PTDUP shadow store, and registers
/// it in the dedicated pagetable M-List at the root level — the
/// registration recoverPagetable later depends on to classify a UE
/// against it and recover it.
func (k *Kernel_t) NewPagetableRoot(pid, npages int) (root uint64, pt *objs.Pagetable_t) {
	i := k.SafeAlloc()
	if i < 0 {
		return 0, nil
	}
	root = uint64(i) * uint64(objs.PGSIZE)
	pt = objs.NewPagetable(npages)
	k.Ptdup.Init(root)
	k.Mlist.RegisterPagetable(pid, root, rootLevel)
	return root, pt
}

/// ForgetPagetableRoot tears down the bookkeeping NewPagetableRoot set
/// up, e.g. on process exit or exec(): the PTDUP shadow store, the
/// dedicated M-List entry, and the reserve-pool slot all go away
/// together.
func (k *Kernel_t) ForgetPagetableRoot(pid int, root uint64) {
	k.Ptdup.DeleteAll(root)
	k.Mlist.DeletePagetableAll(pid)
	k.SafeFree(int(root / uint64(objs.PGSIZE)))
}

func (k *Kernel_t) cyclesFor(c mlist.Class) *stats.Cycles_t {
	k.cyclesMu.Lock()
	defer k.cyclesMu.Unlock()
	cy, ok := k.cycles[c]
	if !ok {
		cy = new(stats.Cycles_t)
		k.cycles[c] = cy
	}
	return cy
}

func (k *Kernel_t) logStart(c mlist.Class) uint64 {
	k.Printer.Printf("start %s recovery: %d\n", className(c), stats.Rdtsc())
	return stats.Rdtsc()
}

func (k *Kernel_t) logEnd(c mlist.Class, start uint64) {
	k.cyclesFor(c).Add(start)
	k.Printer.Printf("end %s recovery: %d\n", className(c), stats.Rdtsc())
}

/// LogAllRecoveryEnd emits the spec's final "end all recovery
/// operations" instrumentation line, called once by the shepherd after
/// every queued victim has been serviced.
func (k *Kernel_t) LogAllRecoveryEnd() {
	k.Printer.Printf("end all recovery operations: %d\n", stats.Rdtsc())
}

func className(c mlist.Class) string {
	switch c {
	case mlist.ClassBuf:
		return "struct buf"
	case mlist.ClassFile:
		return "struct file"
	case mlist.ClassInode:
		return "struct inode"
	case mlist.ClassLog:
		return "struct log"
	case mlist.ClassLogHeader:
		return "struct logheader"
	case mlist.ClassPipe:
		return "struct pipe"
	case mlist.ClassSleeplock:
		return "struct sleeplock"
	case mlist.ClassSpinlock:
		return "struct spinlock"
	case mlist.ClassConsole:
		return "struct cons"
	case mlist.ClassDevsw:
		return "struct devsw"
	case mlist.ClassPrint:
		return "struct pr"
	case mlist.ClassKmem:
		return "struct kmem"
	case mlist.ClassRun:
		return "struct run"
	case mlist.ClassPagetable:
		return "struct pagetable"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

/// objSizes maps each class to the byte span an address must fall
/// within to count as "inside" a registered entry of that class
/// (§4.1's lookup contract: e <= addr < e+sizeof(class)). classify()
/// no longer consults this for ClassPagetable (see below), but
/// Recover still needs a span for that class to record a dedup-cache
/// entry covering the whole page rather than the single broken word.
var objSizes = map[mlist.Class]uint64{
	mlist.ClassBuf:        uint64(unsafe.Sizeof(objs.Buf_t{})),
	mlist.ClassFile:       uint64(unsafe.Sizeof(objs.File_t{})),
	mlist.ClassInode:      uint64(unsafe.Sizeof(objs.Inode_t{})),
	mlist.ClassLog:        uint64(unsafe.Sizeof(objs.Log_t{})),
	mlist.ClassLogHeader:  uint64(unsafe.Sizeof(objs.LogHeader_t{})),
	mlist.ClassPipe:       uint64(unsafe.Sizeof(objs.Pipe_t{})),
	mlist.ClassSleeplock:  uint64(unsafe.Sizeof(objs.Sleeplock_t{})),
	mlist.ClassSpinlock:   uint64(unsafe.Sizeof(objs.Spinlock_t{})),
	mlist.ClassConsole:    uint64(unsafe.Sizeof(objs.Cons_t{})),
	mlist.ClassDevsw:      uint64(unsafe.Sizeof(objs.Devsw_t{})),
	mlist.ClassPrint:      uint64(unsafe.Sizeof(objs.Pr_t{})),
	mlist.ClassKmem:       uint64(objs.PGSIZE),
	mlist.ClassRun:        uint64(unsafe.Sizeof(objs.RunNode_t{})),
	mlist.ClassPagetable:  uint64(objs.PGSIZE),
}

/// classifyOrder is the fixed order classify() probes the generic
/// registry in, once LookupPagetable has ruled out the dedicated
/// pagetable M-List. Order doesn't affect correctness (classes
/// partition disjoint address spaces in practice) but is kept stable
/// for reproducible instrumentation ordering.
var classifyOrder = []mlist.Class{
	mlist.ClassBuf, mlist.ClassFile, mlist.ClassInode, mlist.ClassLog,
	mlist.ClassLogHeader, mlist.ClassPipe, mlist.ClassSleeplock,
	mlist.ClassSpinlock, mlist.ClassConsole, mlist.ClassDevsw,
	mlist.ClassPrint, mlist.ClassKmem, mlist.ClassRun,
}

/// classify answers "which registered class, if any, contains addr" —
/// the object-registry lookup step of the control path (§2). Pagetable
/// pages live in their own dedicated, (pid,level)-packed M-List rather
/// than the generic per-class entry rings every other class uses
/// (mirroring mlist.ptb_lock's separate lock in the original), so they
/// are classified through LookupPagetable instead of the generic loop.
func (k *Kernel_t) classify(addr uint64) (c mlist.Class, base uint64, ok bool) {
	if _, _, ok := k.Mlist.LookupPagetable(addr); ok {
		return mlist.ClassPagetable, addr &^ 0xfff, true
	}
	for _, c := range classifyOrder {
		if base, ok := k.Mlist.Lookup(addr, c, objSizes[c]); ok {
			return c, base, true
		}
	}
	return 0, 0, false
}
