// Package objs holds the minimal kernel object model the recovery
// subsystem operates on: buffer cache, file table, inode cache, pipes,
// the log, console/print/device-switch state, the page allocator, the
// process table and the simulated page-table levels.  None of it
// implements real disk I/O or scheduling; it exists so the recovery
// handlers have concrete structures to repair and so the end-to-end
// scenarios can run as ordinary Go tests.
package objs

/// Fixed table sizes, mirrored from the original kernel's param.h.
const (
	NBUF   = 30
	NFILE  = 100
	NINODE = 50
	NOFILE = 16
	NPROC  = 64
	NUM    = 8 // disk used-ring depth
)

/// Inode types.
const (
	T_UNUSED = 0
	T_DIR    = 1
	T_FILE   = 2
	T_DEVICE = 3
)

const ROOTINO = 1

/// File descriptor types and sentinels.
const (
	FD_NONE  = 0
	FD_INODE = 1
	FD_PIPE  = 2

	/// RESERVED marks a descriptor slot whose backing object was lost to
	/// a UE and is pending user-cooperative reopen.
	RESERVED = -1
)

/// Process states relevant to recovery.
type ProcState int

const (
	UNUSED ProcState = iota
	EMBRYO
	SLEEPING
	RUNNABLE
	RUNNING
	ZOMBIE
	RECOVERING
)
