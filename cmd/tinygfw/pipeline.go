// Command tinygfw is the controller: it owns the G-code parser, canonical
// machine, motion planner, segment generator and step executor, reading
// one line at a time off a transport and writing back its response for
// each (see Controller.Dispatch).
//
// This file holds the wiring shared between the real tinygo-hardware
// build (main_tinygo.go) and the native host-simulated build
// (main_native.go, used for development and testing without an attached
// controller board); both construct a Controller over their own
// transport and Backend set and drive it from their own main loop.
package main

import (
	"fmt"
	"strconv"
	"strings"

	"tinyg/canon"
	"tinyg/config"
	"tinyg/core"
	"tinyg/gcode"
	"tinyg/planner"
	"tinyg/segment"
)

// minLookahead is how many queued blocks the planner insists on holding
// before the segment generator starts draining them, once it has gone
// idle.
const minLookahead = 3

// maxLineLength is the input protocol's block size bound.
const maxLineLength = 255

// Controller wires one instance of the full pipeline: G-code parser (a
// pure function, not stateful) feeding a canon.Machine, which enqueues
// into a planner.Queue the segment.Generator drains into a
// core.StepExecutor.
type Controller struct {
	cfg   *config.Config
	queue *planner.Queue
	cm    *canon.Machine
	exec  *core.StepExecutor
	gen   *segment.Generator

	tickInterval uint32
	feedHeld     bool

	spindle   *core.DigitalOut
	enables   []*core.DigitalOut
	switches  [planner.NumAxes]*core.LimitSwitch
	spindleOn bool

	store core.NVStore
}

// NewController builds a Controller driving backends (one core.Backend per
// configured axis, in axis order) at tickInterval timer ticks between
// step-ISR invocations (10 kHz by default).
func NewController(cfg *config.Config, backends []core.Backend, tickInterval uint32) *Controller {
	limits := cfg.PlannerLimits()
	queue := planner.NewQueue(&limits, minLookahead)
	cm := canon.New(cfg, queue)
	exec := core.NewStepExecutor(backends, tickInterval)
	for i, a := range cfg.Axis {
		exec.SetDirectionInvert(i, a.InvertDirection)
	}
	core.SetActiveExecutor(exec)
	gen := segment.New(queue, exec, func(target [planner.NumAxes]float64) {
		// With blocks still queued, Position already sits at the end of
		// the queued motion; only the last block's target may reset it.
		if queue.Len() == 0 {
			cm.Position = target
		}
	})
	return &Controller{cfg: cfg, queue: queue, cm: cm, exec: exec, gen: gen, tickInterval: tickInterval}
}

// WireHoming registers the limit switches a hardware build constructed
// (one core.LimitSwitch per homed axis, nil for axes with none) so G30
// actually searches for them, and gives canon.Machine.HomingCycle a way
// to advance the clock while it waits: the same core.ProcessTimers +
// Controller.Tick step the main loop already performs once per line, run
// here in a tight loop instead of once per Dispatch.
func (c *Controller) WireHoming(switches [planner.NumAxes]*core.LimitSwitch) {
	c.switches = switches
	c.cm.SetAxisSwitches(switches)
	c.cm.SetMotionPump(func() {
		now := core.GetTime() + c.tickInterval
		core.SetTime(now)
		core.ProcessTimers()
		c.Tick(now)
	})
}

// WireOutputs registers the spindle relay output and the per-axis driver
// ENABLE outputs a hardware build constructed. The enables are asserted at
// Start and released only on a safe-state shutdown (core's DigitalOut
// default-state machinery); the spindle output tracks the canonical
// machine's M3/M4/M5 modal state after each block.
func (c *Controller) WireOutputs(spindle *core.DigitalOut, enables []*core.DigitalOut) {
	c.spindle = spindle
	c.enables = enables
}

// SetStore attaches the non-volatile config store; `$token=value` writes
// are persisted through it.
func (c *Controller) SetStore(store core.NVStore) {
	c.store = store
}

// Start arms the step executor's periodic ISR and energizes the axis
// drivers.
func (c *Controller) Start(now uint32) {
	for i, en := range c.enables {
		if en == nil {
			continue
		}
		en.SetNow(!c.cfg.Axis[i].InvertEnable)
	}
	c.exec.Start(now)
}

// Reset is the hard reset: flush every queue, drop the canonical machine
// back to its power-on modal defaults (rebuilt from the current config),
// and enter a safe state with the spindle off. The step ISR keeps
// running; with the segment queue flushed it emits no pulses.
func (c *Controller) Reset() {
	c.queue.Reset()
	c.exec.Flush()
	c.feedHeld = false
	c.spindleOn = false
	if c.spindle != nil {
		c.spindle.SetNow(false)
	}
	c.cm = canon.New(c.cfg, c.queue)
	c.WireHoming(c.switches)
}

// Tick drives the segment generator once; call it from the main loop (or
// a low-priority timer) alongside core.ProcessTimers.
func (c *Controller) Tick(now uint32) {
	c.gen.Tick(now)
}

// Dispatch handles exactly one input line and returns the response to
// write back: usually one newline-terminated status or report line; a `$`
// read puts its value (or the JSON dump) on lines before the status, a
// block's (MSG ...) text follows its status on lines of its own, and a
// blank line gets an empty response. A line is a `?` status
// request, a `$token[=value]` config command, a `!`/`~`/Ctrl-X control
// character, or a plain G-code block.
func (c *Controller) Dispatch(line string) string {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return ""
	case len(line) > maxLineLength:
		return core.StatusQueueFull.String() + "\n"
	case strings.HasPrefix(line, "?"):
		return c.statusReport()
	case strings.HasPrefix(line, "$"):
		return c.configCommand(line[1:])
	case line == "!":
		c.queue.FeedHold()
		c.feedHeld = true
		return core.StatusOK.String() + "\n"
	case line == "~":
		c.feedHeld = false
		return core.StatusOK.String() + "\n"
	case line == "\x18": // Ctrl-X: hard reset
		c.Reset()
		return core.StatusOK.String() + "\n"
	default:
		return c.runBlock(line)
	}
}

func (c *Controller) runBlock(line string) string {
	block, status := gcode.NextBlock(line)
	if status != core.StatusOK && status != core.StatusWarning {
		return status.String() + "\n"
	}
	// A Warning (unimplemented M-code) is non-fatal: the rest of the
	// block still executes, and the warning is reported only if nothing
	// worse happens.
	warned := status == core.StatusWarning
	status = c.cm.Execute(block)
	if status == core.StatusOK && warned {
		status = core.StatusWarning
	}
	c.updateSpindle()
	out := status.String()
	for _, msg := range c.cm.DrainMessages() {
		out += "\n(MSG, " + msg + ")"
	}
	return out + "\n"
}

func (c *Controller) statusReport() string {
	var b strings.Builder
	fmt.Fprintf(&b, "<%s,MPos:", c.runState())
	for i := 0; i < planner.NumAxes; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%.4f", c.cm.Position[i])
	}
	fmt.Fprintf(&b, ",FR:%.2f,Q:%d>\n", c.cm.FeedRate, c.queue.Len())
	return b.String()
}

func (c *Controller) runState() string {
	if c.feedHeld {
		return "Hold"
	}
	if c.queue.Len() == 0 {
		return "Idle"
	}
	return "Run"
}

// configCommand implements `$token` (read) and `$token=value` (write)
// against the live Config, persisting writes through to non-volatile
// storage when one is attached.
func (c *Controller) configCommand(rest string) string {
	if rest == "" {
		data, err := c.cfg.Save()
		if err != nil {
			return core.StatusInternalError.String() + "\n"
		}
		return string(data) + "\n" + core.StatusOK.String() + "\n"
	}

	token, value, hasValue := strings.Cut(rest, "=")
	field, ok := configTokens[token]
	if !ok {
		return core.StatusUnrecognizedCommand.String() + "\n"
	}

	if !hasValue {
		return strconv.FormatFloat(field.get(c.cfg), 'g', -1, 64) + "\n" + core.StatusOK.String() + "\n"
	}

	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return core.StatusBadNumberFormat.String() + "\n"
	}
	field.set(c.cfg, v)
	if c.store != nil {
		if err := c.cfg.WriteThrough(c.store); err != nil {
			return core.StatusInternalError.String() + "\n"
		}
	}
	return core.StatusOK.String() + "\n"
}

// updateSpindle drives the spindle relay output to match the canonical
// machine's modal spindle state, if a hardware build wired one in.
func (c *Controller) updateSpindle() {
	if c.spindle == nil {
		return
	}
	on := c.cm.Spindle == gcode.SpindleCW || c.cm.Spindle == gcode.SpindleCCW
	if on != c.spindleOn {
		c.spindleOn = on
		c.spindle.SetNow(on)
	}
}
