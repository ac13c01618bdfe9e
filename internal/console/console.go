// Package console implements a line-oriented command interpreter
// that drives a single strq.Queue and checks its behavior against a
// shadow count and an allocation tracker.
package console

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"deedles.dev/strq"
	"deedles.dev/strq/internal/deadline"
	"deedles.dev/strq/internal/harness"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrLimit is returned by Run once the configured number of errors
// has been reported.
var ErrLimit = errors.New("error limit reached")

// Options configures a Console.
type Options struct {
	Verbose    int
	ErrorLimit int
	Malloc     int
	Length     int
	TimeLimit  time.Duration
	Seed       uint64
}

// A Console interprets commands against one queue.
type Console struct {
	log  *zap.Logger
	out  io.Writer
	opts Options

	tracker *harness.Tracker
	q       *strq.Queue
	count   int

	errors int
	quit   bool
	depth  int
	cmds   map[string]command

	// timedOut is set once a queue operation outlives the time limit.
	// The operation may still be running, so the queue and the tracker
	// must not be touched again.
	timedOut bool
}

// New returns a Console that writes its output to out. If log is nil,
// nothing is logged.
func New(log *zap.Logger, out io.Writer, opts Options) *Console {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.ErrorLimit < 1 {
		opts.ErrorLimit = 1
	}

	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	c := Console{
		log:     log,
		out:     out,
		opts:    opts,
		tracker: harness.NewTracker(seed),
		cmds:    commands(),
	}
	c.tracker.SetFailPercent(opts.Malloc)
	return &c
}

// Errors returns the number of errors reported so far.
func (c *Console) Errors() int {
	return c.errors
}

// Done reports whether a quit command has been executed.
func (c *Console) Done() bool {
	return c.quit
}

// Run executes every line read from r until the input ends, a quit
// command is executed or the error limit is reached. Blank lines and
// lines starting with # are ignored.
func (c *Console) Run(r io.Reader) error {
	s := bufio.NewScanner(r)
	for s.Scan() {
		if c.quit {
			return nil
		}

		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		err := c.Exec(line)
		if err != nil {
			return err
		}
	}

	return errors.Wrap(s.Err(), "read commands")
}

// Source executes the commands in the named file.
func (c *Console) Source(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %q", path)
	}
	defer file.Close()

	c.log.Debug("sourcing script", zap.String("path", path))
	return c.Run(file)
}

// Exec executes a single command line. Failures of the command are
// reported and counted rather than returned; the returned error is
// non-nil only when the run can not continue.
func (c *Console) Exec(line string) error {
	if c.timedOut {
		return errors.Wrap(deadline.ErrTimeout, "queue abandoned by an earlier command")
	}

	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}

	if c.opts.Verbose > 0 {
		fmt.Fprintf(c.out, "cmd> %v\n", line)
	}

	cmd, ok := c.cmds[args[0]]
	if !ok {
		return c.report(errors.Errorf("unknown command %q", args[0]))
	}

	c.log.Debug("executing command", zap.String("command", args[0]), zap.Strings("args", args[1:]))
	err := cmd.run(c, args[1:])
	if errors.Is(err, deadline.ErrTimeout) {
		c.errors++
		c.timedOut = true
		c.log.Error("queue operation timed out", zap.String("command", args[0]), zap.Duration("limit", c.opts.TimeLimit))
		fmt.Fprintf(c.out, "ERROR: %v: %v\n", args[0], err)
		c.quit = true
		return errors.Wrap(err, args[0])
	}
	if err != nil {
		return c.report(errors.Wrap(err, args[0]))
	}

	if cmd.mutates && c.opts.Verbose > 1 {
		c.show()
	}
	return nil
}

// Close frees the current queue, if any, and reports leaked storage.
// After a timed out operation the queue is left alone.
func (c *Console) Close() error {
	if c.q == nil || c.timedOut {
		return nil
	}

	if c.opts.Verbose > 0 {
		fmt.Fprintln(c.out, "Freeing queue")
	}
	err := c.free()
	if err != nil {
		return c.report(err)
	}
	return nil
}

func (c *Console) report(err error) error {
	c.errors++
	c.log.Warn("command failed", zap.Error(err), zap.Int("errors", c.errors))
	fmt.Fprintf(c.out, "ERROR: %v\n", err)

	if c.errors >= c.opts.ErrorLimit {
		fmt.Fprintln(c.out, "Error limit exceeded. Stopping command execution")
		c.quit = true
		return ErrLimit
	}
	return nil
}

func (c *Console) warn(format string, args ...any) {
	fmt.Fprintf(c.out, "Warning: "+format+"\n", args...)
}

// guard runs one queue operation under the configured time limit.
func (c *Console) guard(f func() error) error {
	return deadline.Run(c.opts.TimeLimit, f)
}

// verify compares the queue against the shadow count and the
// tracker.
func (c *Console) verify() error {
	if err := c.tracker.Err(); err != nil {
		c.log.Error("allocation misuse", zap.Error(err))
		return err
	}
	if c.q == nil {
		return nil
	}

	if err := c.q.Check(); err != nil {
		c.log.Error("queue invariant violated", zap.Error(err))
		return errors.Wrap(err, "invariant violated")
	}
	if size := c.q.Size(); size != c.count {
		return errors.Errorf("queue has %v elements but %v were expected", size, c.count)
	}

	return nil
}

func (c *Console) free() error {
	err := c.guard(func() error {
		c.q.Free()
		return nil
	})
	if err != nil {
		return err
	}
	c.q = nil
	c.count = 0

	if err := c.tracker.Err(); err != nil {
		c.log.Error("allocation misuse", zap.Error(err))
		return err
	}
	if err := c.tracker.Leak(); err != nil {
		c.log.Error("storage leaked", zap.Error(err))
		return errors.Wrap(err, "freed queue")
	}
	return nil
}

const showLimit = 30

func (c *Console) show() {
	if c.q == nil {
		fmt.Fprintln(c.out, "q = NULL")
		return
	}

	var b strings.Builder
	b.WriteString("q = [")
	var i int
	for v := range c.q.All() {
		if i >= showLimit {
			b.WriteString(" ...")
			break
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(v)
		i++
	}
	b.WriteByte(']')
	fmt.Fprintln(c.out, b.String())
}
