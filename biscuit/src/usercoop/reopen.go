// Package usercoop implements the user-cooperation and re-open table
// (C8): the per-process open-args record a descriptor's (path, mode)
// is reopened from once recovery marks it RESERVED, and the reopen
// walk itself. Grounded in the original kernel's usercoop.c/usercoop.h
// and in the teacher's fd.Fd_t open/close bookkeeping style.
package usercoop

import (
	"golang.org/x/text/unicode/norm"

	"defs"
	"objs"
)

/// Opener_i is the minimal filesystem contract reopen needs: turn a
/// recorded (path, mode) back into a live file object.
type Opener_i interface {
	Open(path string, omode int) (*objs.File_t, defs.Err_t)
}

/// Record stores (path, mode) for fd in p's open-args table, called by
/// the user library's open() wrapper on every successful open.
func Record(p *objs.Proc_t, fd int, path string, omode int) {
	p.OpenArgs[fd] = objs.OpenArg{Path: path, Omode: omode, Used: true}
}

/// Clear drops fd's open-args entry, called on close().
func Clear(p *objs.Proc_t, fd int) {
	p.OpenArgs[fd] = objs.OpenArg{}
}

/// ForkOpenArgs deep-copies parent's open-args table and RESERVED
/// markers into child, matching §4.8's "on fork the table is
/// deep-copied" — both are fixed-size array fields, so a plain
/// assignment already copies by value; the helper exists so call
/// sites name the operation instead of reaching into Proc_t directly.
func ForkOpenArgs(child, parent *objs.Proc_t) {
	child.OpenArgs = parent.OpenArgs
	child.Reserved = parent.Reserved
}

/// Reopen walks p's descriptors for RESERVED slots and asks open to
/// resurrect each one's recorded (path, mode) into the same numeric
/// fd. Two RESERVED slots that recorded byte-distinct but
/// Unicode-equivalent paths (e.g. differently composed accents) are
/// recognized as the same file and share one reopened object via
/// golang.org/x/text/unicode/norm's canonical-form comparison, rather
/// than opening the path twice; every other slot shares the first
/// successful open's *objs.File_t for its path and bumps its Ref, the
/// same filedup-style sharing the original's do_reopen() does, per
/// §4.8. Returns the first error
/// encountered, if any, and reopens nothing further once one does.
func Reopen(p *objs.Proc_t, open Opener_i) defs.Err_t {
	opened := map[string]*objs.File_t{}

	for fd := range p.Reserved {
		if !p.Reserved[fd] {
			continue
		}
		arg := p.OpenArgs[fd]
		key := norm.NFC.String(arg.Path)

		f, ok := opened[key]
		if !ok {
			var err defs.Err_t
			f, err = open.Open(arg.Path, arg.Omode)
			if err != 0 {
				return err
			}
			opened[key] = f
		} else {
			f.Ref++
		}

		p.Ofile[fd] = f
		p.Reserved[fd] = false
	}
	return 0
}
