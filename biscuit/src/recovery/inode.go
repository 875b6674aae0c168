package recovery

import (
	"defs"
	"objs"
)

// recoverInode implements the inode-cache / inode-slot handler
// (§4.6.3). Like the file-table handler, a single broken slot
// condemns the whole cache: a fresh cache is allocated, surviving
// slots are shallow-copied with fresh sleeplocks, and the icache
// pointer is swapped atomically.
func (k *Kernel_t) recoverInode(brokenBase uint64, pid int, proc *objs.Proc_t, frames CallerSet) defs.Err_t {
	if code, stop := k.gate(frames); stop {
		return code
	}

	old := k.Icache.Load()
	brokenIdx := int(brokenBase) - 1
	if brokenIdx < 0 || brokenIdx >= len(old.Inode) {
		return defs.AtFailStop
	}

	hasDevice, hasRoot := false, false
	fresh := objs.NewIcache(len(old.Inode))
	for i := range old.Inode {
		if i == brokenIdx {
			continue
		}
		fresh.Inode[i].Valid = old.Inode[i].Valid
		fresh.Inode[i].Inum = old.Inode[i].Inum
		fresh.Inode[i].Type = old.Inode[i].Type
		fresh.Inode[i].Major = old.Inode[i].Major
		fresh.Inode[i].Minor = old.Inode[i].Minor
		fresh.Inode[i].Nlink = old.Inode[i].Nlink
		fresh.Inode[i].Size = old.Inode[i].Size
		fresh.Inode[i].Ref = old.Inode[i].Ref
		if old.Inode[i].Type == objs.T_DEVICE {
			hasDevice = true
		}
		if old.Inode[i].Inum == objs.ROOTINO {
			hasRoot = true
		}
	}
	if !hasDevice || !hasRoot {
		return defs.AtFailStop
	}

	broken := &old.Inode[brokenIdx]
	k.Icache.Store(fresh)

	coopOn := proc != nil && proc.UserCoop
	var brokenFile *objs.File_t

	k.Procs.Each(func(p *objs.Proc_t) {
		p.Lock()
		defer p.Unlock()
		if p.Cwd == broken {
			p.Cwd = &fresh.Inode[brokenIdx]
		}
		for fd := range p.Ofile {
			f := p.Ofile[fd]
			if f == nil || f.Ip != broken {
				continue
			}
			brokenFile = f
			p.Ofile[fd] = nil
			if coopOn {
				p.Reserved[fd] = true
			}
		}
	})

	return inodeAfterTreatment(frames, coopOn, brokenFile)
}

// inodeAfterTreatment implements after_treatment_inode() from the
// original's recovery_handler_inode.c: the bare default is
// SYSCALL_FAIL, or plain SYSCALL_REDO (not REOPEN_SYSCALL_REDO —
// that code is reserved for the sys_unlink branch below, when a file
// referencing the broken inode was actually found) when cooperation
// is on, then revised per whichever of the named procedures appears
// on the simulated stack, applied in stack order; idup wins outright.
func inodeAfterTreatment(frames CallerSet, coopOn bool, brokenFile *objs.File_t) defs.Err_t {
	ret := defs.AtSyscallFail
	if coopOn {
		ret = defs.AtSyscallRedo
	}
	for _, f := range frames {
		switch f {
		case FnIdup:
			return defs.AtProcessKill
		case FnSysClose:
			ret = defs.AtSyscallSuccess
		case FnSysUnlink:
			if coopOn {
				if brokenFile != nil {
					ret = defs.AtReopenSyscallRedo
				} else {
					ret = defs.AtSyscallRedo
				}
			}
		case FnSysChdir, FnSysFstat, FnSysLink, FnSysRead:
			if coopOn {
				ret = defs.AtReopenSyscallRedo
			} else {
				ret = defs.AtSyscallFail
			}
		}
	}
	return ret
}
