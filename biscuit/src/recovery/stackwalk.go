package recovery

//go:generate go run ./gentags

import "objs"

// FuncTag names an interruptible kernel procedure (§4.6 common shape
// step 1, §9 "stack-walk heuristics" design note). The original stack
// walk compares return addresses against hard-coded {start,end}
// ranges recovered from the kernel binary's symbol table; this module
// has no binary to walk, so the "kernel stack" a caller hands a
// handler is simply the ordered list of procedures it claims to be
// nested inside, and the {start,end} table becomes the FuncTag
// constants below plus the lookup table in ModeOutcome — "data, not
// code", per the design note.
type FuncTag = objs.FuncTag

// The procedures named in the mode table (SPEC_FULL.md §7), several per
// row, plus idup, which is not in that table and is checked only by the
// inode handler's after-treatment.
const (
	FnEndOp     FuncTag = "end_op"
	FnChdir     FuncTag = "chdir"
	FnFreeproc  FuncTag = "freeproc"
	FnUvmunmap  FuncTag = "uvmunmap"
	FnKvminit   FuncTag = "kvminit"
	FnProcinit  FuncTag = "procinit"
	FnBrelse    FuncTag = "brelse"
	FnSysLink   FuncTag = "sys_link"
	FnSysWrite  FuncTag = "sys_write"
	FnSysUnlink FuncTag = "sys_unlink"
	FnBfree     FuncTag = "bfree"
	FnDirlink   FuncTag = "dirlink"
	FnIput      FuncTag = "iput"
	FnIdup      FuncTag = "idup"
	FnIupdate   FuncTag = "iupdate"
	FnLogWrite  FuncTag = "log_write"
	FnSysOpen   FuncTag = "sys_open"
	FnCreate    FuncTag = "create"
	FnPipealloc FuncTag = "pipealloc"
	FnFork      FuncTag = "fork"
	FnSysExec   FuncTag = "sys_exec"
	FnUvmalloc  FuncTag = "uvmalloc"
	FnUvmcopy   FuncTag = "uvmcopy"
	FnWriteLog  FuncTag = "write_log"
	FnExit      FuncTag = "exit"

	// Named for the file/inode handlers' own after-treatment branches
	// (§4.6.2/§4.6.3), distinct from the mode table's fail-stop gate.
	FnSysClose FuncTag = "sys_close"
	FnSysChdir FuncTag = "sys_chdir"
	FnSysFstat FuncTag = "sys_fstat"
	FnSysRead  FuncTag = "sys_read"

	// Named for the buffer handler's stack-trace branch (§4.6.1):
	// redo install_trans vs redo commit depending on which is on the
	// simulated stack.
	FnInstallTrans FuncTag = "install_trans"
	FnCommit       FuncTag = "commit"

	// FnDiskIntr marks the disk-interrupt handler context the mode
	// table's last two rows describe ("inside disk-interrupt handler
	// from a user/kernel trap").
	FnDiskIntr FuncTag = "virtio_disk_intr"

	// FnClockIntr names the clock-interrupt procedure. No handler
	// consults it: the timer handler (§4.6.9) chooses
	// return-to-user/return-to-kernel from the trap origin alone.
	FnClockIntr FuncTag = "clockintr"
)

// DEPTH bounds how many simulated frames a caller-supplied kernel
// stack is trimmed to before a handler inspects it, mirroring the
// original's fixed-size frame buffer for the stack walk.
const DEPTH = 30

// onePage is the threshold §4.6's common shape uses to choose a
// top-down vs bottom-up frame walk: "top-down if s0-sp <= one page,
// bottom-up from the kernel-stack base otherwise".
const onePage = 4096

// CallerSet is the trimmed, order-normalized frame list a handler's
// fail-stop gate consults.
type CallerSet []FuncTag

// Contains reports whether tag appears anywhere in the set.
func (cs CallerSet) Contains(tag FuncTag) bool {
	for _, f := range cs {
		if f == tag {
			return true
		}
	}
	return false
}

// CollectFrames builds the CallerSet a handler inspects from a
// process's simulated kernel stack and its recorded sp/s0, applying
// the original's top-down-vs-bottom-up split and DEPTH cap.
func CollectFrames(kstack []FuncTag, sp, s0 uint64) CallerSet {
	frames := kstack
	if len(frames) > DEPTH {
		frames = frames[len(frames)-DEPTH:]
	}
	if s0 >= sp && s0-sp <= onePage {
		out := make(CallerSet, len(frames))
		copy(out, frames)
		return out
	}
	out := make(CallerSet, len(frames))
	for i, f := range frames {
		out[len(frames)-1-i] = f
	}
	return out
}

// Outcome is what the fail-stop gate (§4.6 common shape step 1)
// decides for an interrupted procedure under the active mode.
type Outcome int

const (
	// OutcomeProceed: the interrupted procedure is recoverable; the
	// handler continues into internal surgery.
	OutcomeProceed Outcome = iota
	// OutcomeFailStop: unrecoverable in either mode.
	OutcomeFailStop
	// OutcomeProcessKill: recoverable only by killing the process.
	OutcomeProcessKill
	// OutcomeSyscallFailOrKill: aggressive mode may choose either
	// syscall-fail or process-kill; the caller picks per the
	// specific handler's own judgement (§7's table lists both as
	// acceptable aggressive-mode outcomes).
	OutcomeSyscallFailOrKill
)

// alwaysFailStop names procedures unrecoverable under both modes
// (§7's first mode-table row group).
var alwaysFailStop = []FuncTag{FnFreeproc, FnUvmunmap, FnKvminit, FnProcinit, FnBrelse}

// modeDependent names procedures that fail-stop under Conservative
// but may be salvaged under Aggressive (§7's second row group).
var modeDependent = []FuncTag{
	FnSysLink, FnSysWrite, FnSysUnlink, FnBfree, FnDirlink, FnIput,
	FnIupdate, FnLogWrite, FnSysOpen, FnCreate, FnPipealloc, FnFork,
	FnSysExec, FnUvmalloc, FnUvmcopy, FnWriteLog,
}

// ModeOutcome applies the mode table (§7) to a collected CallerSet.
func ModeOutcome(cs CallerSet, mode Mode) Outcome {
	if cs.Contains(FnEndOp) && cs.Contains(FnChdir) {
		return OutcomeFailStop
	}
	for _, f := range alwaysFailStop {
		if cs.Contains(f) {
			return OutcomeFailStop
		}
	}
	if cs.Contains(FnExit) {
		return OutcomeProcessKill
	}
	for _, f := range modeDependent {
		if cs.Contains(f) {
			if mode == Conservative {
				return OutcomeFailStop
			}
			return OutcomeSyscallFailOrKill
		}
	}
	return OutcomeProceed
}
