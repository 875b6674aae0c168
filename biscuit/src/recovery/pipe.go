package recovery

import (
	"defs"
	"objs"
)

// recoverPipe implements the pipe handler (§4.6.8, supplemented
// scenario "pipe writer-blocked-wake" in SPEC_FULL.md §8). A pipe's
// ring buffer and its two open-flags are one inseparable unit: a UE
// anywhere inside Pipe_t condemns the whole thing. The broken pipe is
// marked closed on both ends and every waiter parked on its channel is
// woken, so a blocked reader or writer observes EOF/EPIPE instead of
// hanging forever; every descriptor referencing it is then redirected
// to a fresh, already-closed pipe so later close()s have somewhere
// harmless to land, and every process other than the faulted one that
// held such a descriptor is marked killed.
func (k *Kernel_t) recoverPipe(base uint64, pid int, proc *objs.Proc_t, frames CallerSet) defs.Err_t {
	if code, stop := k.gate(frames); stop {
		return code
	}

	old := k.pipeAt(base)
	if old == nil {
		return defs.AtFailStop
	}

	old.Lock.Acquire(pid)
	old.Readopen = false
	old.Writeopen = false
	old.Wake()
	old.Lock.Release()

	fresh := objs.NewPipe()
	fresh.Readopen = false
	fresh.Writeopen = false
	k.replacePipeAt(base, fresh)

	k.Procs.Each(func(p *objs.Proc_t) {
		p.Lock()
		defer p.Unlock()
		for fd := range p.Ofile {
			f := p.Ofile[fd]
			if f != nil && f.Pipe == old {
				f.Pipe = fresh
				if p.Pid != pid {
					p.Killed = true
				}
			}
		}
	})

	return defs.AtPipe
}
