// Package rp2040 holds hardware backends specific to the Raspberry Pi
// Pico target: an analog touch-probe input read through an ADS1015 I2C
// ADC, exposed as a core.HoldSync-driven probe usable for Z-axis touch
// probing alongside the digital limit switches. A two-stage
// threshold-crossing debounce runs directly on core.Timer, the same way
// core/limitswitch.go debounces its digital inputs.
//
//go:build tinygo

package rp2040

import (
	"machine"

	"tinyg/core"

	"tinygo.org/x/drivers/ads1015"
)

// Probe debounces an analog touch-probe signal read through an ADS1015
// I2C ADC, triggering a core.HoldSync once the reading crosses Threshold
// for SampleCount consecutive samples, the same shape LimitSwitch uses for
// digital inputs.
type Probe struct {
	adc ads1015.Device
	ch  ads1015.Channel

	threshold    uint16
	triggerAbove bool

	sampleTime   uint32
	sampleCount  uint8
	triggerCount uint8
	restTime     uint32
	nextWake     uint32

	timer  core.Timer
	sync   *core.HoldSync
	reason uint8
}

// NewProbe configures an ADS1015 on bus at its default address and returns
// a Probe reading channel ch. threshold/triggerAbove set the trip
// condition (e.g. triggerAbove=true for a strain-gauge probe that reads
// higher when deflected, false for a break-beam style probe).
func NewProbe(bus *machine.I2C, ch ads1015.Channel, threshold uint16, triggerAbove bool) *Probe {
	dev := ads1015.New(bus)
	dev.Configure(ads1015.Config{
		Gain: ads1015.GAIN_ONE,
	})
	return &Probe{
		adc:          dev,
		ch:           ch,
		threshold:    threshold,
		triggerAbove: triggerAbove,
	}
}

// read returns the raw ADS1015 conversion for the configured channel.
func (p *Probe) read() uint16 {
	v, err := p.adc.ReadRaw(p.ch)
	if err != nil {
		return 0
	}
	if v < 0 {
		return 0
	}
	return uint16(v)
}

// triggered reports whether the current reading has crossed the threshold.
func (p *Probe) triggered() bool {
	v := p.read()
	if p.triggerAbove {
		return v > p.threshold
	}
	return v < p.threshold
}

// Arm starts watching for a threshold crossing, requiring sampleCount
// consecutive confirmations sampleTicks apart before sync is signalled
// with reason; mirrors core.LimitSwitch.Arm's debounce contract so the
// canonical machine's homing/probing code can treat both input kinds
// uniformly.
func (p *Probe) Arm(startClock, sampleTicks uint32, sampleCount uint8, restTicks uint32, sync *core.HoldSync, reason uint8) {
	p.timer.Next = nil
	if sampleCount == 0 {
		p.sync = nil
		return
	}
	p.sampleTime = sampleTicks
	p.sampleCount = sampleCount
	p.triggerCount = sampleCount
	p.restTime = restTicks
	p.sync = sync
	p.reason = reason

	p.timer.WakeTime = startClock
	p.timer.Handler = p.sampleEvent
	core.ScheduleTimer(&p.timer)
}

// Disarm cancels any pending debounce watch.
func (p *Probe) Disarm() {
	p.timer.Next = nil
	p.sync = nil
}

func (p *Probe) sampleEvent(t *core.Timer) uint8 {
	nextWake := t.WakeTime + p.restTime
	if !p.triggered() {
		t.WakeTime = nextWake
		return core.SF_RESCHEDULE
	}
	p.nextWake = nextWake
	t.Handler = p.oversampleEvent
	return p.oversampleEvent(t)
}

func (p *Probe) oversampleEvent(t *core.Timer) uint8 {
	if !p.triggered() {
		t.Handler = p.sampleEvent
		t.WakeTime = p.nextWake
		p.triggerCount = p.sampleCount
		return core.SF_RESCHEDULE
	}
	p.triggerCount--
	if p.triggerCount == 0 {
		if p.sync != nil {
			p.sync.Trigger(p.reason)
		}
		return core.SF_DONE
	}
	t.WakeTime = t.WakeTime + p.sampleTime
	return core.SF_RESCHEDULE
}
