package objs

import (
	"sync"
	"sync/atomic"
	"time"
)

/// Accnt_t mirrors accnt.Accnt_t: per-process accounting, reused here so
/// the instrumentation layer has somewhere to attribute recovery latency.
type Accnt_t struct {
	sync.Mutex
	Userns int64
	Sysns  int64
}

/// Utadd adds delta nanoseconds to the user-time counter.
func (a *Accnt_t) Utadd(delta int64) { atomic.AddInt64(&a.Userns, delta) }

/// Now returns the current time, mirroring accnt.Accnt_t.Now.
func (a *Accnt_t) Now() time.Time { return time.Now() }

/// OpenArg is one entry of the per-process open-args table (C8): the
/// (path, mode) pair recorded so a RESERVED descriptor can be reopened.
type OpenArg struct {
	Path  string
	Omode int
	Used  bool
}

/// Proc_t is a process-table entry, adapted from tinfo.Tnote_t plus
/// accnt.Accnt_t, extended with the fields the recovery subsystem reads:
/// kernel "stack" (recorded call tags rather than a real trap frame),
/// open file table, cwd, pagetable, and the open-args table for C8.
type Proc_t struct {
	sync.Mutex
	Pid        int
	Killed     bool
	State      ProcState
	Kstack     []FuncTag /// simulated return-address trail, bottom to top
	Ofile      [NOFILE]*File_t
	Reserved   [NOFILE]bool /// RESERVED marker (§4.6.2/§4.8): descriptor lost to a UE, pending reopen
	Cwd        *Inode_t
	Pagetable  *Pagetable_t
	Accnt      Accnt_t
	OpenArgs   [NOFILE]OpenArg
	UserCoop   bool
	RCSHistory []int /// class flags entered, most recent last (len <= 5)
}

/// FuncTag names an interruptible kernel procedure.  The original stack
/// walk compared return addresses against hard-coded {start,end} ranges;
/// here the "kernel stack" a caller hands to a handler is simply the list
/// of procedures it claims to be nested inside, tagged by name, so tests
/// can construct scenarios without a real trap frame.
type FuncTag string

/// ProcTable_i is the minimal process-manager contract (§6): searching by
/// pid and the handful of fields/methods recovery handlers touch.
type ProcTable_i interface {
	SearchByPid(pid int) *Proc_t
	Each(f func(*Proc_t))
	Freeproc(p *Proc_t)
	Exit(p *Proc_t)
}

/// ProcTable_t is the default, in-memory ProcTable_i used by tests and by
/// the reference wiring in recovery.Kernel_t.
type ProcTable_t struct {
	mu    sync.Mutex
	Procs []*Proc_t
}

func NewProcTable(n int) *ProcTable_t {
	pt := &ProcTable_t{Procs: make([]*Proc_t, n)}
	for i := range pt.Procs {
		pt.Procs[i] = &Proc_t{State: UNUSED}
	}
	return pt
}

func (pt *ProcTable_t) SearchByPid(pid int) *Proc_t {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	for _, p := range pt.Procs {
		if p.Pid == pid && p.State != UNUSED {
			return p
		}
	}
	return nil
}

func (pt *ProcTable_t) Each(f func(*Proc_t)) {
	pt.mu.Lock()
	procs := append([]*Proc_t{}, pt.Procs...)
	pt.mu.Unlock()
	for _, p := range procs {
		if p.State != UNUSED {
			f(p)
		}
	}
}

func (pt *ProcTable_t) Freeproc(p *Proc_t) {
	p.Lock()
	defer p.Unlock()
	*p = Proc_t{State: UNUSED}
}

func (pt *ProcTable_t) Exit(p *Proc_t) {
	p.Lock()
	p.State = ZOMBIE
	p.Unlock()
}
