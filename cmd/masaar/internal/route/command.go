package route

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/masaar/masaar-node/pkg/network"
	"github.com/masaar/masaar-node/pkg/routing"
)

// maxLine bounds one wire text read from stdin
const maxLine = 1 << 20

var (
	ErrUnexpectedOutcome = errors.New("unexpected outcome")
	ErrMissingOutcome    = errors.New("fewer outcomes than expected")
)

func NewRouteCommand() *cobra.Command {
	var stateful bool
	var id string
	var expect []string

	cmd := &cobra.Command{
		Use:   "route [wire...]",
		Short: "Decide the routing outcome of wire messages",
		Long: `Routes each argument, or each stdin line when no arguments are given,
and prints one outcome per input: DELIVER:<payload>, DROP:<reason> or
FORWARD:<dst>.`,
		Example: `  masaar route '{"type":"HELLO","src":"N1","version":"1.0"}'
  cat captured.log | masaar route --stateful
  masaar route --expect DROP:HELLO_TOP '{"type":"HELLO","src":"N1","version":"1.0"}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			check, err := newExpectations(expect)
			if err != nil {
				return err
			}

			decide := routing.HandleIncoming

			if stateful {
				n, err := network.NewNode(id, network.Options{})
				if err != nil {
					return err
				}
				decide = n.Receive
			}

			if len(expect) > 0 {
				decide = check.wrap(decide)
			}

			if len(args) > 0 {
				for _, wire := range args {
					if err := printOutcome(cmd.OutOrStdout(), decide(wire)); err != nil {
						return err
					}
					if check.err != nil {
						return check.err
					}
				}
				return check.done()
			}

			if err := routeLines(cmd.InOrStdin(), cmd.OutOrStdout(), decide, check); err != nil {
				return err
			}
			return check.done()
		},
	}

	cmd.Flags().BoolVar(&stateful, "stateful", false,
		"Suppress duplicate sequenced DATA and consume ACK/NACK like a running node")
	cmd.Flags().StringVar(&id, "id", "", "Node identifier used for replies in stateful mode")
	cmd.Flags().StringArrayVar(&expect, "expect", nil,
		"Outcome the next input must produce, e.g. DROP:DUPLICATE (repeatable, in input order)")

	return cmd
}

// routeLines routes every line of r, one wire text per line
func routeLines(r io.Reader, w io.Writer, decide func(string) routing.Outcome, check *expectations) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)

	for scanner.Scan() {
		if err := printOutcome(w, decide(scanner.Text())); err != nil {
			return err
		}
		if check.err != nil {
			return check.err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return nil
}

func printOutcome(w io.Writer, o routing.Outcome) error {
	_, err := fmt.Fprintln(w, o.String())
	return err
}

// expectations compares routed outcomes, in order, against --expect values
type expectations struct {
	want []routing.Outcome
	seen int
	err  error
}

func newExpectations(raw []string) (*expectations, error) {
	e := &expectations{}
	for _, s := range raw {
		o, err := routing.ParseOutcome(s)
		if err != nil {
			return nil, fmt.Errorf("invalid --expect %q: %w", s, err)
		}
		e.want = append(e.want, o)
	}
	return e, nil
}

func (e *expectations) wrap(decide func(string) routing.Outcome) func(string) routing.Outcome {
	return func(wire string) routing.Outcome {
		got := decide(wire)
		e.observe(got)
		return got
	}
}

// observe records the first mismatch. Outcomes past the last expectation
// are not checked.
func (e *expectations) observe(got routing.Outcome) {
	i := e.seen
	e.seen++
	if e.err != nil || i >= len(e.want) {
		return
	}
	// Compared in bridge form: a parsed FORWARD only carries dst
	if want := e.want[i]; got.String() != want.String() {
		e.err = fmt.Errorf("%w: input %d routed to %s, want %s", ErrUnexpectedOutcome, i+1, got, want)
	}
}

func (e *expectations) done() error {
	if e.err != nil {
		return e.err
	}
	if e.seen < len(e.want) {
		return fmt.Errorf("%w: got %d, want %d", ErrMissingOutcome, e.seen, len(e.want))
	}
	return nil
}
