package objs

/// Inode_t is one inode-cache slot, adapted from fs.Superblock_t's
/// field-accessor style but kept as plain fields here since the recovery
/// handler needs direct struct-copy semantics when shallow-copying
/// surviving slots into a fresh cache.
type Inode_t struct {
	Lock  Sleeplock_t
	Valid bool
	Inum  int
	Type  int
	Major int
	Minor int
	Nlink int
	Size  int
	Ref   int
}

/// Icache_t is the whole inode cache plus its giant spinlock.
type Icache_t struct {
	Lock  Spinlock_t
	Inode []Inode_t
}

/// NewIcache builds an n-slot inode cache.
func NewIcache(n int) *Icache_t {
	ic := &Icache_t{Inode: make([]Inode_t, n)}
	ic.Lock.Init("icache")
	for i := range ic.Inode {
		ic.Inode[i].Lock.Init("inode")
	}
	return ic
}
