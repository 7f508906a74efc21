// Package scatter implements tab's threaded scatter/gather execution
// model: a program containing a literal "-->" is split into a scatter half
// (compiled once per worker, run against a shared guarded input-line
// sequence) and a gather half (compiled once, run against the round-robin
// multiplexed output of all workers).
//
// Grounded directly on _examples/original_source/threaded.h: ThreadedSeqFile
// (a mutex-guarded shared line source), ThreadGroupSeq (per-worker hand-off
// slots, each a syncvar_t{result, can_produce, can_consume, mutex,
// finished}, multiplexed round-robin by next()), and run_threaded (the
// split/compile/run/join driver). The C++ condition_variable pair becomes a
// single sync.Cond per slot here since Go's sync.Cond already serializes on
// one Locker; two C++ condvars sharing one mutex collapse to one Go
// sync.Cond broadcasting to both producer and consumer sides, which is the
// idiomatic Go shape for this hand-off (_examples/kolkov-uawk/internal/vm/
// parallel.go's goroutine/WaitGroup worker-pool plumbing style is reused
// for spawning and joining the worker pool itself).
package scatter

import (
	"sync"

	"github.com/GerHobbelt/tab/internal/typ"
	"github.com/GerHobbelt/tab/internal/value"
)

// LineSource is a shared, mutex-guarded producer of input lines. Every
// scatter worker pulls from the same LineSource, so each line is handed to
// exactly one worker — this is what makes scatter/gather a partition of
// the input, not a broadcast.
type LineSource struct {
	mu   sync.Mutex
	next func() (string, bool)
}

// NewLineSource wraps a pull function (e.g. a bufio.Scanner's Scan/Text
// pair) as a thread-safe LineSource.
func NewLineSource(pull func() (string, bool)) *LineSource {
	return &LineSource{next: pull}
}

func (s *LineSource) Next() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next()
}

// slot is one worker's hand-off point to the gather thread: syncvar_t in
// threaded.h, translated to a single mutex + condition variable guarding a
// tiny two-state protocol (produce then consume).
type slot struct {
	mu       sync.Mutex
	cond     *sync.Cond
	result   value.Value
	hasValue bool
	finished bool
}

func newSlot() *slot {
	s := &slot{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// publish is called by a worker goroutine once it has produced its next
// result (or decided it is finished); it blocks until the gather side has
// consumed the previous result, preserving the strict one-in-flight
// hand-off threaded.h's can_produce/can_consume pair enforces.
func (s *slot) publish(v value.Value, done bool) {
	s.mu.Lock()
	for s.hasValue {
		s.cond.Wait()
	}
	if done {
		s.finished = true
	} else {
		s.result = v
		s.hasValue = true
	}
	s.cond.Broadcast()
	s.mu.Unlock()
}

// consume is called by the gather goroutine; it blocks until the slot has
// a value or has finished, and returns (value, true) or (nil, false) on
// finish.
func (s *slot) consume() (value.Value, bool) {
	s.mu.Lock()
	for !s.hasValue && !s.finished {
		s.cond.Wait()
	}
	if s.finished && !s.hasValue {
		s.mu.Unlock()
		return nil, false
	}
	v := s.result
	s.hasValue = false
	s.result = nil
	s.cond.Broadcast()
	s.mu.Unlock()
	return v, true
}

// Group runs N scatter workers against a shared LineSource and exposes
// their combined output as a single value.Seq via strict round-robin
// multiplexing, exactly as threaded.h's ThreadGroupSeq.next() does:
// visit slots in order starting just after the last one served, skipping
// (and permanently removing) any slot whose worker has finished.
type Group struct {
	slots []*slot
	live  []int // indices into slots still producing, in round-robin order
	last  int
	wg    sync.WaitGroup
}

// WorkerFunc runs one scatter worker's compiled program against lines
// pulled from src, calling emit once per produced value and returning when
// the input is exhausted (or on error, which the driver that supplies fn
// records and reports once the workers are done).
type WorkerFunc func(src *LineSource, emit func(value.Value))

// NewGroup spawns n workers, each running fn against src, and returns a
// Group ready to be drained via Next.
func NewGroup(n int, src *LineSource, fn WorkerFunc) *Group {
	g := &Group{slots: make([]*slot, n)}
	for i := 0; i < n; i++ {
		s := newSlot()
		g.slots[i] = s
		g.live = append(g.live, i)
		g.wg.Add(1)
		go func(s *slot) {
			defer g.wg.Done()
			fn(src, func(v value.Value) { s.publish(v, false) })
			s.publish(nil, true)
		}(s)
	}
	return g
}

// Next returns the next gathered value in round-robin worker order,
// or (nil, false) once every worker has finished.
func (g *Group) Next() (value.Value, bool) {
	for len(g.live) > 0 {
		g.last = (g.last + 1) % len(g.live)
		idx := g.live[g.last]
		v, ok := g.slots[idx].consume()
		if ok {
			return v, true
		}
		// worker finished: remove it from rotation and retry from the same position
		g.live = append(g.live[:g.last], g.live[g.last+1:]...)
		if len(g.live) == 0 {
			break
		}
		g.last--
		if g.last < 0 {
			g.last = len(g.live) - 1
		}
	}
	return nil, false
}

// Wait blocks until every worker goroutine has returned. Call after Next
// has drained to exhaustion (or on early abandonment, to avoid leaking
// goroutines blocked on publish): any values not yet taken by Next are
// consumed and discarded so that every worker can finish.
func (g *Group) Wait() {
	for {
		if _, ok := g.Next(); !ok {
			break
		}
	}
	g.wg.Wait()
}

// Seq adapts Group to value.Seq so the gather half's compiled program can
// consume it exactly like any other sequence.
type Seq struct {
	g    *Group
	Elem typ.Type
}

func NewSeq(g *Group, elem typ.Type) *Seq { return &Seq{g: g, Elem: elem} }

func (s *Seq) Type() typ.Type { return typ.NewSeq(s.Elem) }

func (s *Seq) Next() (value.Value, bool) { return s.g.Next() }
