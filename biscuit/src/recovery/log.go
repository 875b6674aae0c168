package recovery

import (
	"defs"
	"objs"
)

// recoverLog implements the write-ahead-log handler (§4.6.4). The log
// spinlock guards both the header and the outstanding-operation
// counter, so a UE landing anywhere inside it condemns the whole
// Log_t: a fresh one is installed at the same start/size, and its
// header is repopulated either from the shadow-transaction pre-image
// (if the faulted process was mid log_write) or reset empty (safe:
// the log is only ever a cache of not-yet-committed writes, so an
// empty header just means those writes must be redone, which the
// syscall-redo after-treatment already asks for).
func (k *Kernel_t) recoverLog(pid int, proc *objs.Proc_t, frames CallerSet) defs.Err_t {
	if code, stop := k.gate(frames); stop {
		return code
	}

	old := k.Log.Load()
	fresh := objs.NewLog(old.Start, old.Size)

	if snap, ok := k.Trans.CheckAndHandleTransLog(pid); ok {
		fresh.Lh = snap.Header
		fresh.Outstanding = snap.Outstanding
	} else {
		fresh.Outstanding = old.Outstanding
	}
	fresh.Committing = false

	k.Log.Store(fresh)

	if k.FS != nil {
		k.FS.RecoverFromLog()
	}

	if frames.Contains(FnCommit) || frames.Contains(FnInstallTrans) {
		return defs.AtSyscallRedo
	}
	if frames.Contains(FnLogWrite) || frames.Contains(FnWriteLog) {
		return defs.AtSyscallRedo
	}
	return defs.AtSyscallFail
}
