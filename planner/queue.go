// Queue is the motion planner's bounded SPSC ring buffer of blocks: the
// canonical machine enqueues on the main thread, the segment generator
// consumes from the other end, and every move enqueue triggers a backward/
// forward re-planning pass over the not-yet-ACTIVE blocks so junction
// velocities and jerk-limited phase splits stay mutually consistent.
package planner

import (
	"math"
	"sync/atomic"

	"tinyg/core"
)

// QueueSize is the ring depth, a lookahead-latency vs. RAM trade-off.
const QueueSize = 32

// MoveRequest is what the canonical machine hands the planner for one
// motion primitive: an already unit-converted, offset-applied target plus
// the geometry kinematics.Cartesian.Displacement derived from it.
type MoveRequest struct {
	Line uint32

	Target [NumAxes]float64
	Dir    [NumAxes]float64
	Length float64
	Steps  [NumAxes]int32

	RequestedCruise float64 // mm/s, already feed-mode resolved by canon
	ExactStop       bool    // path-control = EXACT_STOP for this block
}

// DwellRequest is a G4 dwell: a pure time hold with no motion.
type DwellRequest struct {
	Line    uint32
	Seconds float64
}

// Queue is the SPSC ring of planner blocks. The producer (canonical
// machine, main thread) calls Enqueue/FeedHold/Reset; the consumer
// (segment generator) calls Active/AdvanceComplete. Neither side touches
// the other's index: no READY block is modified by the consumer, no
// ACTIVE block by the producer.
type Queue struct {
	limits *Limits

	ring [QueueSize]Block
	head uint32 // consumer-owned
	tail uint32 // producer-owned

	emptySince   uint32
	wasEmpty     bool
	minLookahead int
}

// NewQueue returns an empty queue governed by limits. minLookahead is the
// number of planned-but-not-yet-active blocks the segment generator
// should prefer to have queued before starting execution (0 disables
// lookahead gating: the first block runs as soon as it is enqueued).
func NewQueue(limits *Limits, minLookahead int) *Queue {
	return &Queue{limits: limits, minLookahead: minLookahead, wasEmpty: true}
}

// Len reports the number of blocks currently queued (any non-empty state).
func (q *Queue) Len() int {
	tail := atomic.LoadUint32(&q.tail)
	head := atomic.LoadUint32(&q.head)
	return int(tail - head)
}

// Free reports free ring slots.
func (q *Queue) Free() int {
	return QueueSize - 1 - q.Len()
}

func (q *Queue) slot(i uint32) *Block {
	return &q.ring[i%QueueSize]
}

// predecessor returns the newest currently-queued block (before this
// enqueue), or nil if the queue is empty.
func (q *Queue) predecessor() *Block {
	tail := atomic.LoadUint32(&q.tail)
	head := atomic.LoadUint32(&q.head)
	if tail == head {
		return nil
	}
	return q.slot(tail - 1)
}

// Enqueue computes a move's junction velocity against the predecessor,
// appends it to the ring, and re-plans the backward/forward passes.
// Returns StatusEAgain if the ring is full; the caller retries, and the
// rejected attempt leaves no side effects.
func (q *Queue) Enqueue(req MoveRequest) core.Status {
	if q.Free() <= 0 {
		return core.StatusEAgain
	}

	accel := q.limits.JunctionAcceleration
	jerk := q.limits.minJerk(req.Dir)
	cruiseCap := q.limits.cruiseCap(req.Dir)
	cruise := req.RequestedCruise
	if cruise <= 0 || cruise > cruiseCap {
		cruise = cruiseCap
	}

	b := Block{
		Kind:      KindMove,
		Line:      req.Line,
		Target:    req.Target,
		Dir:       req.Dir,
		Length:    req.Length,
		Steps:     req.Steps,
		Cruise:    cruise,
		Accel:     accel,
		Jerk:      jerk,
		ExactStop: req.ExactStop,
		State:     StateReady,
	}

	prev := q.predecessor()
	if prev == nil {
		b.Entry = 0
	} else if req.ExactStop || prev.ExactStop {
		b.Entry = 0
	} else {
		vjunc := junctionVelocity(req.Dir, prev.Dir, accel, q.limits.JunctionDeviation)
		b.Entry = clampMin3(vjunc, cruise, prev.Cruise)
		if prev.State != StateActive && prev.State != StateRunningHead &&
			prev.State != StateRunningBody && prev.State != StateRunningTail {
			prev.Exit = b.Entry
		} else {
			// predecessor already executing: its exit is fixed, this
			// block's entry can be no higher than that.
			if b.Entry > prev.Exit {
				b.Entry = prev.Exit
			}
		}
	}
	b.Exit = 0 // tentative; raised by replan once a successor exists

	tail := atomic.LoadUint32(&q.tail)
	*q.slot(tail) = b
	atomic.StoreUint32(&q.tail, tail+1)

	q.replan()
	return core.StatusOK
}

// EnqueueDwell appends a pure time-hold block. Dwells never participate
// in junction-velocity cornering; the hold duration rides in BodyTicks so
// the segment generator paces it exactly like a zero-velocity cruise.
func (q *Queue) EnqueueDwell(req DwellRequest) core.Status {
	if q.Free() <= 0 {
		return core.StatusEAgain
	}
	b := Block{
		Kind:         KindDwell,
		Line:         req.Line,
		DwellSeconds: req.Seconds,
		BodyTicks:    secondsToTicks(req.Seconds),
		State:        StateReady,
	}
	tail := atomic.LoadUint32(&q.tail)
	*q.slot(tail) = b
	atomic.StoreUint32(&q.tail, tail+1)
	return core.StatusOK
}

func clampMin3(v, a, b float64) float64 {
	if v > a {
		v = a
	}
	if v > b {
		v = b
	}
	return v
}

// replan runs the backward pass (tighten entries so the predecessor can
// always decelerate to the successor's entry within its length) followed
// by the forward pass (set exits to what each block can accelerate to,
// lowering the successor's entry to match wherever the junction velocity
// is unreachable, preserving the A.exit == B.entry continuity invariant),
// then splits every touched block's jerk-limited phases.
//
// Only blocks in state READY are eligible: the walk stops the moment it
// reaches a block that has gone ACTIVE.
func (q *Queue) replan() {
	tail := atomic.LoadUint32(&q.tail)
	head := atomic.LoadUint32(&q.head)
	if tail <= head {
		return
	}

	// Find the oldest index still eligible for re-planning: the first
	// non-READY block from head stops the backward walk early, since an
	// ACTIVE block's entry must never change.
	oldest := head
	for i := head; i < tail; i++ {
		if q.slot(i).State != StateReady {
			oldest = i + 1
		} else {
			break
		}
	}

	if oldest >= tail {
		return
	}

	// Seed the backward pass: the newest block must be able to decelerate
	// from its junction entry to its own (tentative, zero) exit within its
	// length, or a short final block would carry an unreachable entry.
	newest := q.slot(tail - 1)
	if newest.Kind == KindMove {
		entryMax := maxEntry(newest.Exit, newest.Accel, newest.Length)
		if newest.Entry > entryMax {
			newest.Entry = entryMax
		}
	}

	// Backward pass: from the newest block down to oldest, tighten entry
	// against the already-finalized successor. i indexes the successor
	// (always a real, already-enqueued block; the newest block's exit
	// rises in the forward pass once a successor arrives); cur is its
	// predecessor at i-1, so the pairing (oldest, oldest+1) is included
	// and the newest block is never read as someone else's successor.
	for i := tail - 1; i > oldest; i-- {
		cur := q.slot(i - 1)
		succ := q.slot(i)
		if cur.Kind != KindMove || succ.Kind != KindMove {
			continue
		}
		cur.Exit = succ.Entry
		entryMax := maxEntry(cur.Exit, cur.Accel, cur.Length)
		if cur.Entry > entryMax {
			cur.Entry = entryMax
		}
	}

	// Forward pass: from oldest to newest, set each exit to what the
	// block can actually accelerate to, bounded by the successor's entry.
	// When a short block cannot reach the junction velocity within its
	// length, the reachable exit is propagated into the successor's entry
	// so the A.exit == B.entry continuity invariant survives; the backward
	// pass only guaranteed deceleration feasibility, not acceleration.
	for i := oldest; i < tail; i++ {
		cur := q.slot(i)
		if cur.Kind != KindMove {
			continue
		}
		if i+1 < tail {
			succ := q.slot(i + 1)
			if succ.Kind == KindMove {
				exitMax := maxEntry(cur.Entry, cur.Accel, cur.Length)
				exit := minF(exitMax, succ.Entry)
				cur.Exit = exit
				if succ.Entry > exit {
					succ.Entry = exit
				}
			}
		}
		q.splitBlock(cur)
	}
}

// maxEntry implements both the backward pass's entry_max and the forward
// pass's exit_max: sqrt(v² + 2·amax·L).
func maxEntry(v, amax, length float64) float64 {
	if amax <= 0 {
		return v
	}
	return sqrtNonNeg(v*v + 2*amax*length)
}

func sqrtNonNeg(v float64) float64 {
	if v < 0 {
		return 0
	}
	return math.Sqrt(v)
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func (q *Queue) splitBlock(b *Block) {
	headDur, bodyDur, tailDur, cruise := splitPhases(b.Entry, b.Cruise, b.Exit, b.Length, b.Accel, b.Jerk)
	b.Cruise = cruise
	b.HeadTicks = secondsToTicks(headDur)
	b.BodyTicks = secondsToTicks(bodyDur)
	b.TailTicks = secondsToTicks(tailDur)
}

func secondsToTicks(s float64) uint32 {
	if s <= 0 {
		return 0
	}
	return uint32(s * float64(core.TimerFreq))
}

// Active returns the block the segment generator should currently be
// executing, and whether the planner's lookahead policy (or a starvation
// timeout) allows it to start. A nil return with ok==false means "keep
// waiting."
func (q *Queue) Active(now uint32) (b *Block, ok bool) {
	head := atomic.LoadUint32(&q.head)
	tail := atomic.LoadUint32(&q.tail)
	if head == tail {
		if q.wasEmpty {
			q.emptySince = now
		}
		q.wasEmpty = true
		return nil, false
	}

	if q.wasEmpty {
		q.wasEmpty = false
		q.emptySince = now
	}

	blk := q.slot(head)
	starved := q.limits.StarvationTicks > 0 && now-q.emptySince >= q.limits.StarvationTicks
	if int(tail-head) < q.minLookahead && !starved {
		return nil, false
	}

	if starved && blk.State == StateReady {
		// Starved: begin executing before the lookahead window fills;
		// the block's exit is forced to 0 (safe stop). If a
		// later block arrives its entry is likewise forced to 0 by
		// Enqueue observing this block no longer eligible for backward
		// re-planning once it is ACTIVE.
		blk.Exit = 0
		q.splitBlock(blk)
	}

	if blk.State == StateReady {
		blk.State = StateActive
	}
	return blk, true
}

// AdvanceComplete marks the current head block COMPLETE and releases its
// slot, called by the segment generator once it has emitted every segment
// for that block.
func (q *Queue) AdvanceComplete() {
	head := atomic.LoadUint32(&q.head)
	tail := atomic.LoadUint32(&q.tail)
	if head == tail {
		return
	}
	q.slot(head).State = StateComplete
	atomic.StoreUint32(&q.head, head+1)
}

// FeedHold forces the in-flight block to EXACT_STOP semantics (so
// re-planning never assumes a nonzero cornering exit through it) and
// zeroes its exit, so it decelerates to a stop by the time the segment
// generator reaches its tail phase. Resume is implicit: the next Enqueue
// for the remaining program simply sees the halted block's exit as 0 and
// continues from there.
func (q *Queue) FeedHold() {
	head := atomic.LoadUint32(&q.head)
	tail := atomic.LoadUint32(&q.tail)
	if head == tail {
		return
	}
	blk := q.slot(head)
	blk.ExactStop = true
	blk.Exit = 0
	q.splitBlock(blk)
	core.RecordTiming(core.EvtFeedHold, 0, core.GetTime(), blk.Line, tail-head)
	for i := head + 1; i < tail; i++ {
		b := q.slot(i)
		if b.Kind == KindMove {
			b.Entry = 0
		}
	}
	q.replan()
}

// Reset drops every queued block regardless of state, for a hard reset.
func (q *Queue) Reset() {
	atomic.StoreUint32(&q.head, 0)
	atomic.StoreUint32(&q.tail, 0)
	q.wasEmpty = true
	q.emptySince = 0
}

// Snapshot returns a copy of the currently queued blocks, oldest first:
// a test/diagnostic helper, not used on the hot path.
func (q *Queue) Snapshot() []Block {
	head := atomic.LoadUint32(&q.head)
	tail := atomic.LoadUint32(&q.tail)
	out := make([]Block, 0, tail-head)
	for i := head; i < tail; i++ {
		out = append(out, *q.slot(i))
	}
	return out
}
