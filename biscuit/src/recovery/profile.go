package recovery

import (
	"io"
	"time"

	"github.com/google/pprof/profile"
)

// WriteProfile encodes the per-class recovery cycle counters
// accumulated so far into a pprof profile and writes it (gzipped
// proto, per profile.Profile.Write) to w. §6's Instrumentation
// section asks only for the "start/end <class> recovery: <ticks>"
// console lines; this is the offline counterpart — a profile a
// developer can load into `pprof -top` to see which object class is
// burning the most recovery time, built from the exact same
// stats.Cycles_t counters the console lines are derived from.
func (k *Kernel_t) WriteProfile(w io.Writer) error {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "recoveries", Unit: "count"},
			{Type: "cycles", Unit: "nanoseconds"},
		},
		TimeNanos: time.Now().UnixNano(),
	}

	classFn := map[string]*profile.Function{}
	classLoc := map[string]*profile.Location{}
	var nextID uint64

	k.cyclesMu.Lock()
	defer k.cyclesMu.Unlock()

	for c, cy := range k.cycles {
		name := className(c)
		nextID++
		fn := &profile.Function{ID: nextID, Name: name, SystemName: name}
		p.Function = append(p.Function, fn)
		classFn[name] = fn

		nextID++
		loc := &profile.Location{
			ID:   nextID,
			Line: []profile.Line{{Function: fn, Line: 1}},
		}
		p.Location = append(p.Location, loc)
		classLoc[name] = loc

		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{1, int64(*cy)},
			Label:    map[string][]string{"class": {name}},
		})
	}

	return p.Write(w)
}
