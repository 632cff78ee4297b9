// Package interactive provides the interactive command-line interface
// for torq-enum.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/torqbus-protocol/torqbus-go/pkg/wire"
)

// Workflow exposes the enumeration steps to the console. This interface
// allows the interactive layer to drive the tool without depending on the
// main package's wiring.
type Workflow interface {
	// WaitOnline blocks until the set of online nodes settles.
	WaitOnline() error

	// Detect collects ESC status broadcasts and returns the ESC node set.
	Detect() ([]wire.NodeID, error)

	// Enumerate runs the enumeration rounds over the detected ESCs and
	// returns the assigned order.
	Enumerate() ([]wire.NodeID, error)

	// Status summarizes the current workflow state.
	Status() string
}

// Console handles interactive mode for torq-enum.
type Console struct {
	workflow Workflow
	rl       *readline.Instance
}

// New creates a new interactive console.
func New(w Workflow) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "torq-enum> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Console{
		workflow: w,
		rl:       rl,
	}, nil
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Run starts the interactive command loop. It returns when the operator
// quits or ctx is done.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		switch strings.ToLower(strings.Fields(input)[0]) {
		case "help", "?":
			c.printHelp()

		case "wait", "w":
			c.cmdWait()

		case "detect", "d":
			c.cmdDetect()

		case "enumerate", "enum", "e":
			c.cmdEnumerate()

		case "status", "s":
			fmt.Fprintln(c.rl.Stdout(), c.workflow.Status())

		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", input)
		}
	}
}

func (c *Console) cmdWait() {
	if err := c.workflow.WaitOnline(); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Wait failed: %v\n", err)
	}
}

func (c *Console) cmdDetect() {
	escs, err := c.workflow.Detect()
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Detection failed: %v\n", err)
		return
	}
	if len(escs) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "No ESC nodes detected")
	}
}

func (c *Console) cmdEnumerate() {
	order, err := c.workflow.Enumerate()
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Enumeration failed: %v\n", err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "Enumeration complete:")
	for i, id := range order {
		fmt.Fprintf(c.rl.Stdout(), "  index %d -> node %d\n", i, id)
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
torq-enum Commands:
  wait       - Wait for the set of online nodes to settle
  detect     - Collect ESC status broadcasts and list ESC nodes
  enumerate  - Run the enumeration rounds over the detected ESCs
  status     - Show online nodes, detected ESCs, and assigned order
  quit       - Exit`)
}
