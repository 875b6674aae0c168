package aftertreat

import (
	"testing"

	"defs"
)

type recordingHooks struct {
	syscallPid, syscallVal int
	syscallCalled          bool
	exitPid                int
	exitCalled             bool
	returnedToUser         bool
	returnedToKernel       bool
	sp, s0                 uint64
	completedIRQ           int
	irqCompleted           bool
	irqBeforeKernel        bool
	reopenErr              defs.Err_t
	reopenCalled           bool
}

func (h *recordingHooks) SyscallReturn(pid int, value int) {
	h.syscallCalled = true
	h.syscallPid = pid
	h.syscallVal = value
}
func (h *recordingHooks) ProcessExit(pid int) { h.exitCalled = true; h.exitPid = pid }
func (h *recordingHooks) ReturnToUser(pid int) { h.returnedToUser = true }
func (h *recordingHooks) ReturnToKernel(sp, s0 uint64, irq int) {
	h.returnedToKernel = true
	h.irqBeforeKernel = h.irqCompleted
	h.sp, h.s0 = sp, s0
}
func (h *recordingHooks) CompleteIRQ(irq int) { h.irqCompleted = true; h.completedIRQ = irq }
func (h *recordingHooks) Reopen(pid int) defs.Err_t {
	h.reopenCalled = true
	return h.reopenErr
}

func TestDispatchSyscallSuccess(t *testing.T) {
	h := &recordingHooks{}
	Dispatch(defs.AtSyscallSuccess, 7, 0, 0, 0, h)
	if !h.syscallCalled || h.syscallVal != int(defs.AtSyscallSuccess) {
		t.Fatalf("want syscall return %d, got called=%v val=%d", defs.AtSyscallSuccess, h.syscallCalled, h.syscallVal)
	}
	if !h.returnedToUser {
		t.Fatal("want return to user")
	}
}

func TestDispatchSyscallFailUsesEIO(t *testing.T) {
	h := &recordingHooks{}
	Dispatch(defs.AtSyscallFail, 1, 0, 0, 0, h)
	if h.syscallVal != -int(defs.EIO) {
		t.Fatalf("syscallVal = %d, want %d", h.syscallVal, -int(defs.EIO))
	}
}

func TestDispatchProcessKill(t *testing.T) {
	h := &recordingHooks{}
	Dispatch(defs.AtProcessKill, 42, 0, 0, 0, h)
	if !h.exitCalled || h.exitPid != 42 {
		t.Fatalf("want ProcessExit(42), got called=%v pid=%d", h.exitCalled, h.exitPid)
	}
	if h.syscallCalled || h.returnedToUser {
		t.Fatal("process-kill must not also touch the syscall/user-return path")
	}
}

func TestDispatchReturnToKernelCompletesIRQFirst(t *testing.T) {
	h := &recordingHooks{}
	Dispatch(defs.AtReturnToKernel, 1, 0x1000, 0x2000, 5, h)
	if !h.irqCompleted || h.completedIRQ != 5 {
		t.Fatal("want IRQ 5 completed")
	}
	if !h.returnedToKernel || h.sp != 0x1000 || h.s0 != 0x2000 {
		t.Fatal("want return to kernel with the supplied sp/s0")
	}
	if !h.irqBeforeKernel {
		t.Fatal("want the IRQ completed before returning to kernel")
	}
}

func TestDispatchReopenSyscallRedoSucceeds(t *testing.T) {
	h := &recordingHooks{reopenErr: 0}
	Dispatch(defs.AtReopenSyscallRedo, 3, 0, 0, 0, h)
	if !h.reopenCalled {
		t.Fatal("want Reopen called")
	}
	if !h.syscallCalled || h.syscallVal != -int(defs.AtReopenSyscallRedo) {
		t.Fatalf("want the redo signal stamped as the syscall return, got called=%v val=%d", h.syscallCalled, h.syscallVal)
	}
	if !h.returnedToUser {
		t.Fatal("want return to user after reopen")
	}
}

func TestDispatchSyscallRedoSignalsUserLibrary(t *testing.T) {
	h := &recordingHooks{}
	Dispatch(defs.AtSyscallRedo, 3, 0, 0, 0, h)
	if !h.syscallCalled || h.syscallVal != -int(defs.AtSyscallRedo) {
		t.Fatalf("want the redo signal stamped as the syscall return, got called=%v val=%d", h.syscallCalled, h.syscallVal)
	}
	if !h.returnedToUser {
		t.Fatal("want return to user")
	}
}

func TestDispatchReopenFailurePreemptsOriginalDisposition(t *testing.T) {
	h := &recordingHooks{reopenErr: defs.ENOENT}
	Dispatch(defs.AtReopenSyscallRedo, 3, 0, 0, 0, h)
	if h.syscallVal != -int(defs.ENOENT) {
		t.Fatalf("syscallVal = %d, want %d (reopen's own failure takes priority)", h.syscallVal, -int(defs.ENOENT))
	}
}

func TestDispatchPipeReturnsEIO(t *testing.T) {
	h := &recordingHooks{}
	Dispatch(defs.AtPipe, 9, 0, 0, 0, h)
	if h.syscallVal != -int(defs.EIO) || !h.returnedToUser {
		t.Fatal("want EIO returned to user for a broken pipe's faulted process")
	}
}

func TestDispatchFailStopPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("want panic on AtFailStop")
		}
	}()
	Dispatch(defs.AtFailStop, 1, 0, 0, 0, &recordingHooks{})
}
