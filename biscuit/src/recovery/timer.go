package recovery

import (
	"defs"
	"objs"
	"rcs"
)

// recoverTickslock implements the timer/tickslock handler (§4.6.9):
// like console and print, the tick spinlock is only ever taken from
// the clock-interrupt path, so recovery is purely trap-origin-driven.
func (k *Kernel_t) recoverTickslock(pid int, proc *objs.Proc_t, sp, s0 uint64) defs.Err_t {
	return k.afterIntrClass(pid, proc, sp, s0, rcs.ClassTickslock)
}

// recoverSleeplock implements the handler for a standalone sleeplock
// object (§4.6.9) — one not embedded in a buf/inode slot already
// covered by their own class handlers. base is not resolved to a lock
// object and nothing is reinitialized: the handler runs the fail-stop
// gate and returns SYSCALL_REDO, leaving whatever invariant the lock
// protected to be re-checked on syscall redo.
func (k *Kernel_t) recoverSleeplock(base uint64, pid int, frames CallerSet) defs.Err_t {
	if code, stop := k.gate(frames); stop {
		return code
	}
	_ = base
	return defs.AtSyscallRedo
}
