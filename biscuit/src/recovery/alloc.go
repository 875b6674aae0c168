package recovery

import (
	"defs"
	"mlist"
	"objs"
)

// recoverKmem implements the page-allocator handler (§4.6.6) for a UE
// inside Kmem_t itself: the allocator's own bookkeeping (lock plus
// freelist head) is untrustworthy, so a fresh Kmem_t is installed and
// its freelist rebuilt only from run nodes the object registry still
// vouches for. A run node the registry has no record of is presumed
// lost and left permanently off the freelist — leaking one page is
// preferable to reusing metadata that cannot be trusted.
func (k *Kernel_t) recoverKmem(pid int, frames CallerSet) defs.Err_t {
	if code, stop := k.gate(frames); stop {
		return code
	}

	old := k.Kmem.Load()
	fresh := objs.NewKmem(len(old.Pages))
	copy(fresh.Pages, old.Pages)

	alive := map[uint64]bool{}
	k.Mlist.Each(mlist.ClassRun, func(addr uint64) { alive[addr] = true })

	head, prev := -1, -1
	for i := range fresh.Run {
		if !alive[uint64(i)] {
			fresh.Run[i] = objs.RunNode_t{Next: -1}
			continue
		}
		fresh.Run[i] = objs.RunNode_t{Next: -1}
		if head == -1 {
			head = i
		} else {
			fresh.Run[prev].Next = i
		}
		prev = i
	}
	fresh.Freelist = head

	k.Kmem.Store(fresh)
	return defs.AtSyscallRedo
}

// recoverRun implements the single-free-node handler (§4.6.6): the
// node at base is unlinked from the freelist it sits on and
// deregistered, rather than trusting its Next pointer to splice it
// back in.
func (k *Kernel_t) recoverRun(base uint64, pid int, frames CallerSet) defs.Err_t {
	if code, stop := k.gate(frames); stop {
		return code
	}

	idx := int(base)
	kmem := k.Kmem.Load()
	if idx < 0 || idx >= len(kmem.Run) {
		return defs.AtFailStop
	}

	kmem.Lock.Acquire(pid)
	if kmem.Freelist == idx {
		kmem.Freelist = kmem.Run[idx].Next
	} else {
		for i := kmem.Freelist; i != -1; i = kmem.Run[i].Next {
			if kmem.Run[i].Next == idx {
				kmem.Run[i].Next = kmem.Run[idx].Next
				break
			}
		}
	}
	kmem.Run[idx] = objs.RunNode_t{Next: -1}
	kmem.Lock.Release()

	k.Mlist.Deregister(base, mlist.ClassRun, 0)
	return defs.AtSyscallRedo
}
