package nmi

import (
	"sync"
	"testing"
	"time"

	"defs"
)

// fakeRecoverer hands back a fixed code per broken address and counts
// how many times LogAllRecoveryEnd fires so tests can check it runs
// exactly once per shepherd tour, not once per victim.
type fakeRecoverer struct {
	mu       sync.Mutex
	seen     []uint64
	endCalls int
	delay    time.Duration
}

func (f *fakeRecoverer) Recover(broken uint64, pid int, sp, s0 uint64) defs.Err_t {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.seen = append(f.seen, broken)
	f.mu.Unlock()
	return defs.AtSyscallSuccess
}

func (f *fakeRecoverer) LogAllRecoveryEnd() {
	f.mu.Lock()
	f.endCalls++
	f.mu.Unlock()
}

func TestShepherdSingleVictim(t *testing.T) {
	r := &fakeRecoverer{}
	s := NewShepherd(4, r)

	code := s.Enter(Victim_t{Broken: 0x1000, Pid: 1})
	if code != defs.AtSyscallSuccess {
		t.Fatalf("code = %v, want AtSyscallSuccess", code)
	}
	if r.endCalls != 1 {
		t.Fatalf("endCalls = %d, want 1", r.endCalls)
	}
}

func TestShepherdFollowersArriveInOrder(t *testing.T) {
	r := &fakeRecoverer{delay: 5 * time.Millisecond}
	s := NewShepherd(8, r)

	results := make(chan defs.Err_t, 3)
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		addr := uint64(0x2000 + i)
		go func() {
			defer wg.Done()
			// Stagger arrivals so the first goroutine reliably becomes
			// the shepherd and the rest enqueue as followers behind it.
			time.Sleep(time.Duration(i) * time.Millisecond)
			results <- s.Enter(Victim_t{Broken: addr, Pid: i})
		}()
	}
	wg.Wait()
	close(results)

	for code := range results {
		if code != defs.AtSyscallSuccess {
			t.Fatalf("follower code = %v, want AtSyscallSuccess", code)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.seen) != 3 {
		t.Fatalf("Recover called %d times, want 3", len(r.seen))
	}
	for i := 0; i < 3; i++ {
		if want := s.queue.At(i).Broken; r.seen[i] != want {
			t.Fatalf("Recover call %d handled %#x, want %#x (queue arrival order)", i, r.seen[i], want)
		}
	}
	if r.endCalls != 1 {
		t.Fatalf("endCalls = %d, want exactly 1 shepherd tour", r.endCalls)
	}
}

func TestShepherdQueueOverflowFailStops(t *testing.T) {
	r := &fakeRecoverer{delay: 20 * time.Millisecond}
	s := NewShepherd(1, r)

	// Occupy the only slot with a slow-resolving shepherd run.
	done := make(chan defs.Err_t, 1)
	go func() { done <- s.Enter(Victim_t{Broken: 0x3000, Pid: 1}) }()
	time.Sleep(2 * time.Millisecond)

	code := s.Enter(Victim_t{Broken: 0x3001, Pid: 2})
	if code != defs.AtFailStop {
		t.Fatalf("code = %v, want AtFailStop on queue overflow", code)
	}
	if got := <-done; got != defs.AtSyscallSuccess {
		t.Fatalf("first victim code = %v, want AtSyscallSuccess", got)
	}
}
