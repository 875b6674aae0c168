package recovery

import (
	"defs"
	"objs"
)

// recoverBuf implements the buffer-cache handler (§4.6.1). brokenBase
// is the registry entry's address, decoded back to a slot index using
// the 1-based scheme NewKernel registers buffer slots under (there are
// no real pointers to register in user-space Go).
func (k *Kernel_t) recoverBuf(brokenBase uint64, pid int, proc *objs.Proc_t, frames CallerSet, sp, s0 uint64) defs.Err_t {
	if frames.Contains(FnDiskIntr) {
		return k.afterDiskIntr(pid, proc, sp, s0)
	}
	if code, stop := k.gate(frames); stop {
		return code
	}

	idx := int(brokenBase) - 1
	bc := k.Bcache.Load()
	if idx < 0 || idx >= len(bc.Buf) {
		return defs.AtFailStop
	}

	bc.Lock.Acquire(pid)
	brokenBlockno := bc.Buf[idx].Blockno
	bc.Unlink(idx)
	bc.Buf[idx] = objs.Buf_t{}
	bc.Buf[idx].Lock.Init("buf")
	bc.InsertTail(idx)
	bc.Lock.Release()

	// Drain the disk used-ring for any entry still pointing at the
	// buffer that just got replaced.
	if k.Disk != nil {
		for _, e := range k.Disk.Info() {
			if e.B == &bc.Buf[idx] {
				k.Disk.AdvanceUsedIdx()
			}
		}
	}

	log := k.Log.Load()
	if log.Committing {
		switch {
		case frames.Contains(FnInstallTrans):
			k.FS.RecoverFromLog()
		case frames.Contains(FnCommit):
			k.FS.Commit()
		}
	}

	// If the broken buffer's block number is still referenced by the
	// log header, evict it by left-shift and decrement both the
	// header and its shadow copy (§4.6.1).
	for i := 0; i < log.Lh.N; i++ {
		if log.Lh.Block[i] != brokenBlockno {
			continue
		}
		copy(log.Lh.Block[i:], log.Lh.Block[i+1:log.Lh.N])
		log.Lh.N--
		if snap, ok := k.Trans.CheckAndHandleTransLog(pid); ok {
			if snap.Header.N > 0 {
				snap.Header.N--
			}
		}
		break
	}

	if proc != nil {
		k.releaseInherited(proc, idx)
	}

	return defs.AtSyscallRedo
}

// releaseInherited stands for the common shape's "release inherited
// sleeplocks and spinlocks held by the faulted process" step on the
// replaced buffer. Its body is empty: the fresh buffer's lock starts
// unlocked, and no other lock the faulted process holds is released.
func (k *Kernel_t) releaseInherited(proc *objs.Proc_t, slot int) {
	_ = proc
	_ = slot
}

// afterDiskIntr implements the two disk-interrupt rows of the mode
// table (§7): a UE landing inside the disk-interrupt handler is
// treated purely by trap origin, independent of mode for the
// user-trap case. The kernel-trap case is listed in SPEC_FULL.md §7's
// mode table as mode/class dependent; this repository resolves it
// conservatively (fail-stop) unless aggressive mode is active, in
// which case it always returns to the interrupted kernel context —
// recorded as an explicit Open Question decision in DESIGN.md.
func (k *Kernel_t) afterDiskIntr(pid int, proc *objs.Proc_t, sp, s0 uint64) defs.Err_t {
	if k.Trap == nil || proc == nil {
		return defs.AtFailStop
	}
	origin := k.Trap.IdentifyOrigin(pid, sp, s0)
	if origin == objs.UserTrap {
		return defs.AtReturnToUser
	}
	if k.Config.Mode() == Aggressive {
		return defs.AtReturnToKernel
	}
	return defs.AtFailStop
}
