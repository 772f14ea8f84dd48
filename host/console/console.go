// Package console implements the host-side interactive REPL that talks
// to the controller over a host/serial.Port, speaking its line-oriented
// protocol: plain G-code blocks, `?` status requests, and `$token=value`
// config reads/writes, one line in, one `ok`/`error` line back.
// github.com/google/shlex splits operator input to recognize the local
// meta-commands (help, quit); every other line goes to the controller
// verbatim.
package console

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/shlex"

	"tinyg/host/serial"
)

// Console drives one interactive session: it owns the transport to the
// controller and the stdin/stdout it converses with the operator on.
type Console struct {
	port   serial.Port
	reader *bufio.Reader // raw byte stream from the controller
	in     *bufio.Scanner
	out    io.Writer
}

// New wraps an already-open port for interactive use, reading operator
// input from in and writing output/echoes to out.
func New(port serial.Port, in io.Reader, out io.Writer) *Console {
	return &Console{
		port:   port,
		reader: bufio.NewReader(port),
		in:     bufio.NewScanner(in),
		out:    out,
	}
}

// Open opens device at the given config and returns a Console reading
// operator commands from stdin and writing to stdout.
func Open(cfg *serial.Config) (*Console, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	return New(port, os.Stdin, os.Stdout), nil
}

// Run is the REPL loop: read one operator line, dispatch it, repeat until
// stdin closes or "quit"/"exit" is entered.
func (c *Console) Run() error {
	fmt.Fprintln(c.out, "tinyg console - type 'help' for local commands, anything else is sent as a block")
	for {
		fmt.Fprint(c.out, "> ")
		if !c.in.Scan() {
			break
		}
		line := strings.TrimSpace(c.in.Text())
		if line == "" {
			continue
		}

		args, err := shlex.Split(line)
		if err != nil || len(args) == 0 {
			fmt.Fprintf(c.out, "error: could not parse input: %v\n", err)
			continue
		}

		switch args[0] {
		case "quit", "exit", "q":
			return nil
		case "help", "?help":
			c.printHelp()
		default:
			if err := c.sendAndPrint(line); err != nil {
				fmt.Fprintf(c.out, "error: %v\n", err)
			}
		}
	}
	return c.in.Err()
}

// sendAndPrint forwards line verbatim to the controller (it may be a
// G-code block, a `?` status request, or a `$token=value` config command)
// and prints the single response line it elicits.
func (c *Console) sendAndPrint(line string) error {
	if _, err := c.port.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	resp, err := c.reader.ReadString('\n')
	if err != nil && resp == "" {
		return fmt.Errorf("read: %w", err)
	}
	fmt.Fprint(c.out, resp)
	if !strings.HasSuffix(resp, "\n") {
		fmt.Fprintln(c.out)
	}
	return nil
}

// StreamFile sends a G-code program line by line, waiting for each line's
// response before sending the next, so the console self-paces rather
// than risking queue_full/eagain overruns.
func (c *Console) StreamFile(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		if err := c.sendAndPrint(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, "\nLocal commands:")
	fmt.Fprintln(c.out, "  help           show this message")
	fmt.Fprintln(c.out, "  quit/exit/q    close the console")
	fmt.Fprintln(c.out, "\nAnything else is sent to the controller as one line:")
	fmt.Fprintln(c.out, "  G1 X10 Y0 F300   a G-code block")
	fmt.Fprintln(c.out, "  ?                status report")
	fmt.Fprintln(c.out, "  $xvm=300         config read/write")
	fmt.Fprintln(c.out)
}

// Close releases the underlying transport.
func (c *Console) Close() error {
	return c.port.Close()
}
