package recovery

import (
	"defs"
	"objs"
)

// rootLevel is the level value RegisterPagetable records for a
// process's L2 root, as opposed to an L1 child page.
const rootLevel = 2

// recoverPagetable implements the page-table handler (§4.6.5). A
// corrupted Pagetable_t cannot be trusted at any level, so the whole
// thing is rebuilt from the PTDUP shadow store keyed by the process's
// root: L2 comes back verbatim, and every L1 page the store still
// remembers is reinstalled at the same index. A process whose root has
// no shadow store at all (never duplicated, or already torn down) is
// unrecoverable.
//
// base is classified through the dedicated pagetable M-List
// (mlist.LookupPagetable) rather than the generic per-class registry,
// since that is the only place (pid, level) metadata for a pagetable
// page is recorded. Only a broken root is reconstructible here: an L1
// page broken in isolation has no addressable "root" to recover
// through in this model (Pagetable_t carries no back-pointer to its
// own root address), so it fail-stops rather than guessing.
func (k *Kernel_t) recoverPagetable(base uint64, pid int, proc *objs.Proc_t, frames CallerSet) defs.Err_t {
	if code, stop := k.gate(frames); stop {
		return code
	}
	if proc == nil || proc.Pagetable == nil {
		return defs.AtFailStop
	}

	owner, level, ok := k.Mlist.LookupPagetable(base)
	if !ok || level != rootLevel {
		return defs.AtFailStop
	}

	store, ok := k.Ptdup.Lookup(base)
	if !ok {
		return defs.AtFailStop
	}

	fresh := objs.NewPagetable(len(proc.Pagetable.Pages))
	fresh.L2 = store.RecoverL2()
	for i := range fresh.L2 {
		if fresh.L2[i]&objs.PTE_P == 0 {
			continue
		}
		if i >= len(fresh.Pages) {
			continue
		}
		if l1, ok := store.RecoverL1(i); ok {
			copy(fresh.Pages[i][:], l1[:])
		}
	}

	proc.Lock()
	proc.Pagetable = fresh
	proc.Unlock()

	k.Mlist.DeletePagetable(base)
	k.Mlist.RegisterPagetable(owner, base, rootLevel)

	if k.Trans.CheckAndHandleTransPagetable(pid) {
		if k.Config.Mode() == Aggressive {
			return defs.AtProcessKill
		}
		return defs.AtFailStop
	}
	return defs.AtSyscallRedo
}
