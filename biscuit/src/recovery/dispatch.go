package recovery

import (
	"defs"
	"mlist"
	"rcs"
)

// classRCS maps an M-List class onto its recovery-locking-layer giant
// class, for the handful of classes R.C.S. actually guards (§4.3: the
// giant classes are buffer cache, file table, inode cache, plus the
// hardware-interrupt classes console/print/tickslock). Classes outside
// this set rely on their own embedded lock instead.
func classRCS(c mlist.Class) (rcs.Class, bool) {
	switch c {
	case mlist.ClassBuf:
		return rcs.ClassBuf, true
	case mlist.ClassFile:
		return rcs.ClassFile, true
	case mlist.ClassInode:
		return rcs.ClassInode, true
	case mlist.ClassConsole:
		return rcs.ClassConsole, true
	case mlist.ClassPrint:
		return rcs.ClassPrint, true
	case mlist.ClassSpinlock:
		return rcs.ClassTickslock, true
	default:
		return 0, false
	}
}

// Recover is the "M-List-tracker that dispatches to the right class
// handler" the NMI shepherd invokes (§4.5 first-victim path, §2
// control path: "NMI shepherd -> object registry lookup -> acquire
// recovery locks -> transactional/shadow consistency fix ->
// class-specific handler -> after-treatment"). It returns the
// after-treatment termination code, which the nmi package's shepherd
// returns from Enter; aftertreat.Dispatch is what turns such a code
// into control flow.
func (k *Kernel_t) Recover(broken uint64, pid int, sp, s0 uint64) defs.Err_t {
	if k.Config.TraceDistinctPaths {
		if first, trace := k.distinct.Distinct(); first {
			k.Printer.Printf("recovery: new call path:\n%s", trace)
		}
	}

	if code, ok := k.recovered.lookup(broken); ok {
		return code
	}

	class, base, ok := k.classify(broken)
	if !ok {
		// Unregistered address: kernel text, the root inode, the
		// console T_DEVICE inode, or anything else outside the
		// registry. §1 Non-goals / §7 taxonomy: unrecoverable class
		// fault.
		return defs.AtFailStop
	}

	proc := k.Procs.SearchByPid(pid)
	var kstack []FuncTag
	if proc != nil {
		kstack = proc.Kstack
	}
	frames := CollectFrames(kstack, sp, s0)

	start := k.logStart(class)
	defer k.logEnd(class, start)

	if rc, held := classRCS(class); held {
		k.Rcs.BeginExclusiveNode(rc, base)
		defer k.Rcs.EndExclusiveNode(rc, base)
	}

	var code defs.Err_t
	switch class {
	case mlist.ClassBuf:
		code = k.recoverBuf(base, pid, proc, frames, sp, s0)
	case mlist.ClassFile:
		code = k.recoverFile(base, pid, proc, frames)
	case mlist.ClassInode:
		code = k.recoverInode(base, pid, proc, frames)
	case mlist.ClassLog, mlist.ClassLogHeader:
		code = k.recoverLog(pid, proc, frames)
	case mlist.ClassPagetable:
		code = k.recoverPagetable(base, pid, proc, frames)
	case mlist.ClassKmem:
		code = k.recoverKmem(pid, frames)
	case mlist.ClassRun:
		code = k.recoverRun(base, pid, frames)
	case mlist.ClassConsole:
		code = k.recoverCons(pid, proc, sp, s0)
	case mlist.ClassPrint:
		code = k.recoverPr(pid, proc, sp, s0)
	case mlist.ClassDevsw:
		code = k.recoverDevsw(pid, frames)
	case mlist.ClassPipe:
		code = k.recoverPipe(base, pid, proc, frames)
	case mlist.ClassSpinlock:
		code = k.recoverTickslock(pid, proc, sp, s0)
	case mlist.ClassSleeplock:
		code = k.recoverSleeplock(base, pid, frames)
	default:
		code = defs.AtFailStop
	}

	objSize := objSizes[class]
	k.recovered.record(base, base+objSize, code, pid, rcsClassOrNone(class))
	return code
}

func rcsClassOrNone(c mlist.Class) rcs.Class {
	if rc, ok := classRCS(c); ok {
		return rc
	}
	return rcs.Class(-1)
}

// gate runs the common-shape step 1 fail-stop gate and reports
// whether the handler must stop immediately, and with what code.
func (k *Kernel_t) gate(frames CallerSet) (code defs.Err_t, stop bool) {
	switch ModeOutcome(frames, k.Config.Mode()) {
	case OutcomeFailStop:
		return defs.AtFailStop, true
	case OutcomeProcessKill:
		return defs.AtProcessKill, true
	default:
		return 0, false
	}
}
