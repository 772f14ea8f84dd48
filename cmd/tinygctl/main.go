// Command tinygctl is the interactive host console: it opens a serial link
// to a tinygfw controller and forwards typed lines to it, printing the
// single-line ok/error/status response each elicits. A flag-parsed
// device/baud entry point hands the open port to host/console's line
// REPL, or streams a file non-interactively with -stream.
package main

import (
	"flag"
	"fmt"
	"os"

	"tinyg/host/console"
	"tinyg/host/serial"
)

var (
	device = flag.String("device", "/dev/ttyACM0", "serial device path")
	baud   = flag.Int("baud", 115200, "baud rate")
	stream = flag.String("stream", "", "path to a G-code file to stream non-interactively, then exit")
)

func main() {
	flag.Parse()

	fmt.Printf("tinygctl: connecting to %s...\n", *device)
	cfg := serial.DefaultConfig(*device)
	cfg.Baud = *baud

	con, err := console.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer con.Close()
	fmt.Println("connected")

	if *stream != "" {
		f, err := os.Open(*stream)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := con.StreamFile(f); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := con.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
