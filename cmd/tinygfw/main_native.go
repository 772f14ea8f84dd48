//go:build !tinygo

// Native build of tinygfw: a host process that runs the exact same
// pipeline the tinygo firmware does, but reads/writes its line protocol
// over a host/serial.Port (a real USB-serial adapter looped back to a
// bench setup, or /dev/pts pair) instead of a hardware UART, and counts
// step pulses instead of toggling real GPIO. Useful for developing and
// exercising the G-code/planner/segment pipeline without a controller
// board attached.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"tinyg/config"
	"tinyg/core"
	"tinyg/planner"

	hostserial "tinyg/host/serial"
)

var (
	device = flag.String("device", "", "serial device to listen on (empty: use stdin/stdout)")
	baud   = flag.Int("baud", 115200, "baud rate, when -device is set")
	rate   = flag.Uint("rate-hz", 10000, "step executor ISR rate in Hz")
	debug  = flag.Bool("debug", false, "print scheduler/executor diagnostics to stderr")
	nvram  = flag.String("nvram", "", "path to a file backing the non-volatile config store")
)

// fileStore backs core.NVStore with a plain host file, standing in for the
// flash/EEPROM record a controller board would use.
type fileStore struct {
	path string
}

func (f *fileStore) ReadRecord() ([]byte, error) { return os.ReadFile(f.path) }
func (f *fileStore) WriteRecord(b []byte) error  { return os.WriteFile(f.path, b, 0o644) }

// countingBackend is a Backend that records pulses instead of driving real
// pins, standing in for hardware GPIO in the native build.
type countingBackend struct {
	name      string
	reversed  bool
	stepCount uint64
}

func (b *countingBackend) SetDirection(reverse bool) { b.reversed = reverse }
func (b *countingBackend) Step()                     { b.stepCount++ }

func main() {
	flag.Parse()

	if *debug {
		core.SetDebugWriter(func(s string) { fmt.Fprintln(os.Stderr, s) })
		core.SetDebugEnabled(true)
	}

	cfg := config.DefaultConfig()
	var store core.NVStore
	if *nvram != "" {
		store = &fileStore{path: *nvram}
		if loaded, err := config.ReadFrom(store); err == nil {
			cfg = loaded
		}
	}

	backends := make([]core.Backend, planner.NumAxes)
	names := []string{"X", "Y", "Z", "A", "B", "C"}
	for i := range backends {
		backends[i] = &countingBackend{name: names[i]}
	}

	tickInterval := core.TimerFreq / uint32(*rate)
	ctl := NewController(cfg, backends, tickInterval)
	if store != nil {
		ctl.SetStore(store)
	}

	core.TimerInit()
	ctl.Start(core.GetTime())

	go runClock(ctl)

	var in io.Reader = os.Stdin
	var out io.Writer = os.Stdout
	if *device != "" {
		cfg := hostserial.DefaultConfig(*device)
		cfg.Baud = *baud
		port, err := hostserial.Open(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "tinygfw: %v\n", err)
			os.Exit(1)
		}
		defer port.Close()
		in, out = port, port
		fmt.Fprintf(os.Stderr, "tinygfw (native): serving %s at %d Hz\n", *device, *rate)
	} else {
		fmt.Fprintf(os.Stderr, "tinygfw (native): serving stdin/stdout at %d Hz\n", *rate)
	}

	scanner := bufio.NewScanner(in)
	w := bufio.NewWriter(out)
	for scanner.Scan() {
		resp := ctl.Dispatch(scanner.Text())
		w.WriteString(resp)
		w.Flush()
	}
}

// runClock advances core's simulated tick counter from the host's real
// wall clock and drives the cooperative scheduler + segment generator,
// since the native build has no hardware timer interrupt to do it.
func runClock(ctl *Controller) {
	const period = time.Millisecond
	ticksPerPeriod := uint32(period.Seconds() * core.TimerFreq)
	for range time.Tick(period) {
		now := core.GetTime() + ticksPerPeriod
		core.SetTime(now)
		core.ProcessTimers()
		ctl.Tick(now)
	}
}
