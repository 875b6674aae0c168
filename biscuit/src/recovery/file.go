package recovery

import (
	"defs"
	"objs"
)

// recoverFile implements the file-table / file-slot handler (§4.6.2).
// A single broken slot condemns the *entire* table: a fresh table is
// allocated, the broken slot is cleared, surviving slots are
// shallow-copied across, and every process descriptor pointing into
// the old table is redirected to the same index in the new one.
func (k *Kernel_t) recoverFile(brokenBase uint64, pid int, proc *objs.Proc_t, frames CallerSet) defs.Err_t {
	if code, stop := k.gate(frames); stop {
		return code
	}

	old := k.Ftable.Load()
	brokenIdx := int(brokenBase) - 1
	if brokenIdx < 0 || brokenIdx >= len(old.File) {
		return defs.AtFailStop
	}

	fresh := objs.NewFtable(len(old.File))
	for i := range old.File {
		if i == brokenIdx {
			continue
		}
		fresh.File[i] = old.File[i]
	}
	brokenPipe := old.File[brokenIdx].Pipe
	brokenInode := old.File[brokenIdx].Ip

	k.Ftable.Store(fresh)

	coopOn := proc != nil && proc.UserCoop
	var brokenDescProc *objs.Proc_t
	var brokenFd int = -1

	k.Procs.Each(func(p *objs.Proc_t) {
		p.Lock()
		defer p.Unlock()
		for fd := range p.Ofile {
			if p.Ofile[fd] == &old.File[brokenIdx] {
				if p.Pid == pid {
					brokenDescProc, brokenFd = p, fd
				}
				p.Ofile[fd] = nil
				if coopOn && brokenPipe == nil {
					p.Reserved[fd] = true
				}
			} else if i := slotIndex(old, p.Ofile[fd]); i >= 0 && i != brokenIdx {
				p.Ofile[fd] = &fresh.File[i]
			}
		}
	})

	// Pipe sibling handling (§4.6.2): mark the surviving sibling's
	// open flags closed and kill every process holding it.
	if brokenPipe != nil {
		brokenPipe.Lock.Acquire(pid)
		brokenPipe.Readopen = false
		brokenPipe.Writeopen = false
		brokenPipe.Wake()
		brokenPipe.Lock.Release()
		k.Procs.Each(func(p *objs.Proc_t) {
			p.Lock()
			defer p.Unlock()
			for fd := range p.Ofile {
				if p.Ofile[fd] != nil && p.Ofile[fd].Pipe == brokenPipe {
					p.Killed = true
				}
			}
		})
	}

	// The ref-count invariant of §4.6.2 (inode.ref equals the count of
	// descriptors+cwds pointing to it) is not checked here, and no
	// search for the lost inode is made: brokenInode, read from the
	// broken slot before clearing, is not used further.
	_ = brokenInode
	_ = brokenDescProc
	_ = brokenFd

	return fileAfterTreatment(frames, coopOn, brokenPipe)
}

// fileAfterTreatment implements after_treatment() from the original's
// recovery_handler_file.c: the default is SYSCALL_FAIL, upgraded to
// REOPEN_SYSCALL_REDO only when cooperation is on and no pipe sibling
// was broken (a broken pipe sibling forces SYSCALL_FAIL regardless of
// cooperation), then revised per whichever of the named procedures
// appears on the simulated stack — exit wins outright, the rest are
// applied in stack order like the original's unbroken loop.
func fileAfterTreatment(frames CallerSet, coopOn bool, brokenPipe *objs.Pipe_t) defs.Err_t {
	ret := defs.AtSyscallFail
	if coopOn {
		ret = defs.AtReopenSyscallRedo
	}
	if brokenPipe != nil {
		ret = defs.AtSyscallFail
	}
	for _, f := range frames {
		switch f {
		case FnSysClose:
			ret = defs.AtSyscallSuccess
		case FnExit:
			return defs.AtProcessKill
		case FnSysWrite:
			if coopOn {
				ret = defs.AtReopenSyscallFail
			}
		}
	}
	return ret
}

// slotIndex returns the index of f within ft.File, or -1.
func slotIndex(ft *objs.Ftable_t, f *objs.File_t) int {
	if f == nil {
		return -1
	}
	for i := range ft.File {
		if &ft.File[i] == f {
			return i
		}
	}
	return -1
}
