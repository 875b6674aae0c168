package defs

/// Err_t is the kernel's signed error/result code, returned in place of the
/// native error interface so it can travel across the same channel as a
/// syscall return value (a0 on the trap frame).  Zero means success.
type Err_t int

/// Standard errno-style codes, returned negated (e.g. -defs.ENOMEM).
const (
	EPERM        Err_t = 1
	ENOENT       Err_t = 2
	ESRCH        Err_t = 3
	EINTR        Err_t = 4
	EIO          Err_t = 5
	ENOMEM       Err_t = 12
	EFAULT       Err_t = 14
	EEXIST       Err_t = 17
	ENOTDIR      Err_t = 20
	EISDIR       Err_t = 21
	EINVAL       Err_t = 22
	ENOHEAP      Err_t = 23
	EMFILE       Err_t = 24
	ENOSPC       Err_t = 28
	ENAMETOOLONG Err_t = 36
	ENOSYS       Err_t = 38
	ENOTEMPTY    Err_t = 39
)

/// After-treatment termination codes.  These share the Err_t value space
/// with the errno range above but are always returned as positive values
/// in [2,11]; the boundary never overlaps because errno values returned to
/// callers are always negated while these never are.
const (
	AtSyscallSuccess     Err_t = 2
	AtSyscallFail        Err_t = 3
	AtSyscallRedo        Err_t = 4
	AtReopenSyscallFail  Err_t = 5
	AtReopenSyscallRedo  Err_t = 6
	AtFailStop           Err_t = 7
	AtProcessKill        Err_t = 8
	AtReturnToUser       Err_t = 9
	AtReturnToKernel     Err_t = 10
	AtPipe               Err_t = 11
)
