package recovery

import "sync"

import "defs"
import "rcs"

// recoveredDepth is the fixed size of the recovered-address sliding
// cache (§3 "Recovered-Address Record": "DEPTH=30").
const recoveredDepth = 30

type recoveredEntry_t struct {
	start, end uint64
	code       defs.Err_t
	pid        int
	rcsFlag    rcs.Class
	valid      bool
}

// recoveredCache_t deduplicates NMIs that refer to memory a prior
// recovery already replaced: once a class handler has rebuilt a
// range, a second NMI against the same range (e.g. a racing CPU that
// read the stale address before the pointer swap propagated) is
// answered from the cache instead of re-running surgery.
type recoveredCache_t struct {
	mu      sync.Mutex
	entries [recoveredDepth]recoveredEntry_t
	next    int
}

func (c *recoveredCache_t) record(start, end uint64, code defs.Err_t, pid int, class rcs.Class) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[c.next] = recoveredEntry_t{start: start, end: end, code: code, pid: pid, rcsFlag: class, valid: true}
	c.next = (c.next + 1) % recoveredDepth
}

func (c *recoveredCache_t) lookup(addr uint64) (defs.Err_t, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.valid && addr >= e.start && addr < e.end {
			return e.code, true
		}
	}
	return 0, false
}
