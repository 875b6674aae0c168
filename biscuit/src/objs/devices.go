package objs

/// Cons_t is the console's small recoverable state.
type Cons_t struct {
	Lock    Spinlock_t
	Locking bool
}

/// NewCons builds a fresh console state.
func NewCons() *Cons_t {
	c := &Cons_t{Locking: true}
	c.Lock.Init("cons")
	return c
}

/// Pr_t is the print subsystem's recoverable state.
type Pr_t struct {
	Lock    Spinlock_t
	Locking bool
}

/// NewPr builds a fresh print state.
func NewPr() *Pr_t {
	p := &Pr_t{Locking: true}
	p.Lock.Init("pr")
	return p
}

/// DevswEntry holds a device's read/write function pointers.
type DevswEntry struct {
	Read  func(p *Proc_t, dst []uint8, n int) (int, int)
	Write func(p *Proc_t, src []uint8, n int) (int, int)
}

/// Devsw_t is the device-switch table, indexed by major device number.
type Devsw_t struct {
	Lock  Spinlock_t
	Table [16]DevswEntry
}

/// NewDevsw builds a fresh device-switch table.
func NewDevsw() *Devsw_t {
	d := &Devsw_t{}
	d.Lock.Init("devsw")
	return d
}
