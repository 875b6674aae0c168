package objs

/// RunNode_t is a single free-list node, tracked by the M-List's
/// "allocator free node" class.  Addressed by index into Kmem_t.Pages
/// rather than a raw pointer, per the arena re-architecture note.
type RunNode_t struct {
	Next int /// index of the following free node, or -1
}

/// Kmem_t is the page allocator: a fixed pool plus a free-list head index.
type Kmem_t struct {
	Lock     Spinlock_t
	Pages    [][PGSIZE]uint8
	Run      []RunNode_t
	Freelist int /// index of the first free page, or -1
}

const PGSIZE = 4096

/// NewKmem builds an allocator over n pages, all initially free and
/// chained in index order.
func NewKmem(n int) *Kmem_t {
	k := &Kmem_t{
		Pages: make([][PGSIZE]uint8, n),
		Run:   make([]RunNode_t, n),
	}
	k.Lock.Init("kmem")
	for i := 0; i < n; i++ {
		if i == n-1 {
			k.Run[i].Next = -1
		} else {
			k.Run[i].Next = i + 1
		}
	}
	if n > 0 {
		k.Freelist = 0
	} else {
		k.Freelist = -1
	}
	return k
}

/// Kalloc pops a page off the free list, or -1 if exhausted.
func (k *Kmem_t) Kalloc() int {
	k.Lock.Acquire(0)
	defer k.Lock.Release()
	i := k.Freelist
	if i == -1 {
		return -1
	}
	k.Freelist = k.Run[i].Next
	return i
}

/// Kfree pushes page i back onto the free list, optionally filling it
/// with a recognizable junk byte first so dangling reads are easy to spot
/// in tests (the "fill with junk on free" policy from the design notes).
func (k *Kmem_t) Kfree(i int, fillJunk bool) {
	if fillJunk {
		for j := range k.Pages[i] {
			k.Pages[i][j] = 0x5a
		}
	}
	k.Lock.Acquire(0)
	defer k.Lock.Release()
	k.Run[i].Next = k.Freelist
	k.Freelist = i
}
