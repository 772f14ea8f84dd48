// Package segment implements the segment generator: decomposes the
// planner's active block into fixed-duration (~1 ms) segments,
// integrating whichever S-curve phase (head/body/tail) is current to
// produce a per-axis floating-point step increment, carried forward
// through a per-axis sub-step accumulator into the integer step deltas
// core.Segment expects.
package segment

import (
	"tinyg/core"
	"tinyg/planner"
)

// SegmentMillis is the segment generator's fixed window length; each
// emitted core.Segment spans this much time, expressed in core.TimerFreq
// ticks.
const SegmentMillis = 1

// Generator pulls the active planner block and feeds core.Segments to a
// *core.StepExecutor, one per SegmentMillis window, until the block
// completes, at which point it advances the planner queue, fetches the
// next READY block, and reports the completed target so the canonical
// machine can reconcile its position.
type Generator struct {
	queue *planner.Queue
	exec  *core.StepExecutor

	axes [planner.NumAxes]axisAccum

	elapsedTicks uint32 // time spent in the current phase
	phase        phaseKind
	current      *planner.Block
	onComplete   func(target [planner.NumAxes]float64)
}

type phaseKind uint8

const (
	phaseNone phaseKind = iota
	phaseHead
	phaseBody
	phaseTail
)

// axisAccum tracks one axis's fractional step position across segments so
// rounding error never accumulates.
type axisAccum struct {
	fractional float64 // steps owed but not yet emitted, carried across segments
	emitted    int32   // integer steps emitted so far this block
}

// segmentTicks is the core.TimerFreq tick count of one SegmentMillis window.
func segmentTicks() uint32 {
	return uint32(SegmentMillis * core.TimerFreq / 1000)
}

// New builds a Generator driving exec from queue. onComplete, if non-nil,
// is called with the completed block's target once SG has emitted its
// final segment, so the canonical machine can reconcile its position
// (normally a no-op since canon already advanced position optimistically
// at enqueue time, but useful after a feed-hold/resume where the executed
// trajectory may have stopped short).
func New(queue *planner.Queue, exec *core.StepExecutor, onComplete func(target [planner.NumAxes]float64)) *Generator {
	return &Generator{queue: queue, exec: exec, onComplete: onComplete}
}

// Tick is one cooperative scheduler invocation, called from the main
// loop or a low-priority timer. It emits at most one segment per call,
// backing off (returning false) when the step executor's queue is full.
func (g *Generator) Tick(now uint32) bool {
	if g.current == nil {
		blk, ok := g.queue.Active(now)
		if !ok || blk == nil {
			return false
		}
		g.startBlock(blk)
	}

	if g.exec.Free() <= 0 {
		return false
	}

	seg, done := g.buildSegment()
	if !g.exec.Enqueue(seg) {
		return false
	}
	if done {
		target := g.current.Target
		g.queue.AdvanceComplete()
		g.current = nil
		if g.onComplete != nil {
			g.onComplete(target)
		}
	}
	return true
}

func (g *Generator) startBlock(blk *planner.Block) {
	g.current = blk
	g.elapsedTicks = 0
	g.phase = firstNonEmptyPhase(blk)
	for i := range g.axes {
		g.axes[i] = axisAccum{}
	}
}

func firstNonEmptyPhase(b *planner.Block) phaseKind {
	switch {
	case b.HeadTicks > 0:
		return phaseHead
	case b.BodyTicks > 0:
		return phaseBody
	case b.TailTicks > 0:
		return phaseTail
	default:
		return phaseTail // zero-length-phase block: emit one empty/tiny segment and finish
	}
}

// phaseVelocities returns the current phase's boundary velocities (mm/s)
// and its length in ticks; callers interpolate linearly between them. The
// segment generator only needs the
// average velocity over each short window, so a per-segment linear
// approximation of the (already jerk-smoothed) velocity curve is
// sufficient here.
func (g *Generator) phaseVelocities() (v0, v1 float64, ticks uint32) {
	b := g.current
	switch g.phase {
	case phaseHead:
		return b.Entry, b.Cruise, b.HeadTicks
	case phaseBody:
		return b.Cruise, b.Cruise, b.BodyTicks
	default:
		return b.Cruise, b.Exit, b.TailTicks
	}
}

// buildSegment integrates the current phase over one segment window,
// producing the per-axis integer step deltas and advancing phase/elapsed
// state. The returned bool is true when this segment is the block's last.
func (g *Generator) buildSegment() (core.Segment, bool) {
	b := g.current
	ticksThisSeg := segmentTicks()

	v0, v1, phaseTotal := g.phaseVelocities()
	remaining := phaseTotal - g.elapsedTicks
	if ticksThisSeg > remaining && remaining > 0 {
		ticksThisSeg = remaining
	}
	if remaining == 0 {
		ticksThisSeg = 0
	}

	frac := 0.0
	if phaseTotal > 0 {
		frac = float64(ticksThisSeg) / float64(phaseTotal)
	}
	// Average velocity over this slice of the phase, by the same
	// linear-interpolation identity splitPhases relies on.
	t0 := float64(g.elapsedTicks) / float64(nonZero(phaseTotal))
	t1 := t0 + frac
	vAvg := lerp(v0, v1, (t0+t1)/2)

	distance := vAvg * float64(ticksThisSeg) / float64(core.TimerFreq)

	var seg core.Segment
	seg.Ticks = ticksThisSeg
	if seg.Ticks == 0 {
		seg.Ticks = 1 // always advance the ISR at least one tick
	}

	if b.Length > 0 {
		for i := 0; i < planner.NumAxes; i++ {
			want := distance / b.Length * float64(b.Steps[i])
			acc := &g.axes[i]
			acc.fractional += want
			whole := int32(acc.fractional)
			if whole != 0 {
				acc.fractional -= float64(whole)
			}
			// Clamp emission so rounding never overshoots the block's
			// exact target step count.
			if acc.emitted+whole > b.Steps[i] && b.Steps[i] >= 0 {
				whole = b.Steps[i] - acc.emitted
			} else if acc.emitted+whole < b.Steps[i] && b.Steps[i] < 0 {
				whole = b.Steps[i] - acc.emitted
			}
			acc.emitted += whole
			seg.Steps[i] = whole
		}
	}

	g.elapsedTicks += ticksThisSeg
	done := g.advancePhaseIfDone()
	if done {
		g.flushResidual(&seg)
	}
	return seg, done
}

func nonZero(v uint32) uint32 {
	if v == 0 {
		return 1
	}
	return v
}

func lerp(a, b, t float64) float64 {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return a + (b-a)*t
}

// advancePhaseIfDone moves head->body->tail->complete as each phase's
// ticks are exhausted, reporting true once the block has no phase left.
func (g *Generator) advancePhaseIfDone() bool {
	b := g.current
	_, _, phaseTotal := g.phaseVelocities()
	if g.elapsedTicks < phaseTotal {
		return false
	}
	g.elapsedTicks = 0
	switch g.phase {
	case phaseHead:
		if b.BodyTicks > 0 {
			g.phase = phaseBody
			return false
		}
		if b.TailTicks > 0 {
			g.phase = phaseTail
			return false
		}
	case phaseBody:
		if b.TailTicks > 0 {
			g.phase = phaseTail
			return false
		}
	case phaseTail:
		return true
	}
	return true
}

// flushResidual folds any steps still owed into the block's final segment:
// fractional carry that never reached a whole step, or integer shortfall
// left behind when a feed-hold re-split the in-flight block's phases under
// the generator. Forcing the delta here keeps the sum of a block's
// per-axis segment deltas exactly equal to its target step counts. The
// step executor stretches a segment whose pulse count exceeds its ISR
// slots, so a large flushed residue dilates time rather than losing steps.
func (g *Generator) flushResidual(seg *core.Segment) {
	b := g.current
	for i := 0; i < planner.NumAxes; i++ {
		acc := &g.axes[i]
		rem := b.Steps[i] - acc.emitted
		if rem == 0 {
			acc.fractional = 0
			continue
		}
		seg.Steps[i] += rem
		acc.emitted = b.Steps[i]
		acc.fractional = 0
	}
}
