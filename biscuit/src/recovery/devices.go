package recovery

import (
	"defs"
	"objs"
	"rcs"
)

// recoverCons implements the console handler (§4.6.7): console state
// is only ever touched from an interrupt context, so recovery is
// purely trap-origin-driven rather than stack-tag-driven.
func (k *Kernel_t) recoverCons(pid int, proc *objs.Proc_t, sp, s0 uint64) defs.Err_t {
	k.Cons.Store(objs.NewCons())
	return k.afterIntrClass(pid, proc, sp, s0, rcs.ClassConsole)
}

// recoverPr implements the print-subsystem handler (§4.6.7), the same
// shape as recoverCons for Pr_t.
func (k *Kernel_t) recoverPr(pid int, proc *objs.Proc_t, sp, s0 uint64) defs.Err_t {
	k.Pr.Store(objs.NewPr())
	return k.afterIntrClass(pid, proc, sp, s0, rcs.ClassPrint)
}

// recoverDevsw implements the device-switch-table handler (§4.6.7). A
// fresh table has no driver function pointers; only a caller that
// wired DevswInit can repopulate them, so the default behavior is
// fail-stop — the device table cannot be conjured from nothing.
func (k *Kernel_t) recoverDevsw(pid int, frames CallerSet) defs.Err_t {
	if code, stop := k.gate(frames); stop {
		return code
	}
	if k.DevswInit == nil {
		return defs.AtFailStop
	}
	fresh := objs.NewDevsw()
	k.DevswInit(fresh)
	k.Devsw.Store(fresh)
	return defs.AtSyscallRedo
}

// afterIntrClass is the shared trap-origin tail of the hardware
// interrupt class handlers (console, print): exit only the implicated
// recovery-lock class from pid's history and resume on the side the
// interrupt actually came from.
func (k *Kernel_t) afterIntrClass(pid int, proc *objs.Proc_t, sp, s0 uint64, class rcs.Class) defs.Err_t {
	if k.Trap == nil || proc == nil {
		return defs.AtFailStop
	}
	origin := k.Trap.IdentifyOrigin(pid, sp, s0)
	k.Rcs.ExitInterruptClass(pid, class)
	if origin == objs.UserTrap {
		return defs.AtReturnToUser
	}
	return defs.AtReturnToKernel
}
