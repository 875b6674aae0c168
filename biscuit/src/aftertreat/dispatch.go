// Package aftertreat implements the after-treatment dispatcher (C7):
// the last step of every recovery handler, turning a termination code
// into the concrete action that resumes the system — completing a
// syscall, asking the user library to redo or reopen, killing a
// process, or resuming an interrupted trap. Grounded in the original
// kernel's aftertreat.c/aftertreat.h (read in full from
// original_source/kernel/).
package aftertreat

import "defs"

/// Hooks_i bundles the external actions After-Treatment invokes (§6):
/// completing the current syscall, killing a process, resuming an
/// interrupted trap, completing the interrupt controller, and asking
/// the user-cooperation layer to resurrect RESERVED descriptors.
type Hooks_i interface {
	SyscallReturn(pid int, value int)
	ProcessExit(pid int)
	ReturnToUser(pid int)
	ReturnToKernel(sp, s0 uint64, irq int)
	CompleteIRQ(irq int)
	Reopen(pid int) defs.Err_t
}

/// Dispatch performs the table in §4.7 for one victim's termination
/// code. sp/s0/irq are only meaningful for the RETURN_TO_* and
/// interrupt-class codes; pid identifies the faulted process for
/// every other code.
func Dispatch(code defs.Err_t, pid int, sp, s0 uint64, irq int, h Hooks_i) {
	switch code {
	case defs.AtSyscallSuccess:
		h.SyscallReturn(pid, int(code))
		h.ReturnToUser(pid)

	case defs.AtSyscallFail:
		// No handler in this repository pairs a structural termination
		// code with a specific errno; EIO stands in as the generic "the
		// operation that was in flight did not complete" signal.
		h.SyscallReturn(pid, -int(defs.EIO))
		h.ReturnToUser(pid)

	case defs.AtSyscallRedo:
		h.SyscallReturn(pid, -int(code))
		h.ReturnToUser(pid)

	case defs.AtReopenSyscallFail:
		reopenThen(pid, -int(defs.EIO), h)

	case defs.AtReopenSyscallRedo:
		reopenThen(pid, -int(code), h)

	case defs.AtProcessKill:
		h.ProcessExit(pid)

	case defs.AtReturnToUser:
		h.CompleteIRQ(irq)
		h.ReturnToUser(pid)

	case defs.AtReturnToKernel:
		h.CompleteIRQ(irq)
		h.ReturnToKernel(sp, s0, irq)

	case defs.AtPipe:
		// A broken pipe's surviving sibling was already marked closed
		// and its holders killed by the pipe handler; the faulted
		// process itself just observes EIO on its own next access.
		h.SyscallReturn(pid, -int(defs.EIO))
		h.ReturnToUser(pid)

	case defs.AtFailStop:
		panic("recovery: fail-stop")

	default:
		panic("recovery: unrecognized after-treatment code")
	}
}

// reopenThen asks the user-cooperation layer to resurrect this pid's
// RESERVED descriptors before completing the syscall. If reopen
// itself fails, that failure takes priority over the original
// syscall's fail/redo disposition — the library can't safely redo an
// operation through a descriptor it couldn't reopen. Otherwise value
// (the original fail/redo signal) is what the user library observes.
func reopenThen(pid int, value int, h Hooks_i) {
	if err := h.Reopen(pid); err != 0 {
		h.SyscallReturn(pid, -int(err))
		h.ReturnToUser(pid)
		return
	}
	h.SyscallReturn(pid, value)
	h.ReturnToUser(pid)
}
