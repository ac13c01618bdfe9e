package console

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"deedles.dev/strq"
	"deedles.dev/strq/internal/deadline"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type command struct {
	run     func(c *Console, args []string) error
	usage   string
	help    string
	mutates bool
}

const maxSourceDepth = 16

// pad is the number of guard bytes placed after the buffer handed to
// RemoveHead.
const pad = 8

func commands() map[string]command {
	return map[string]command{
		"new":     {run: (*Console).cmdNew, usage: "new", help: "Create a new, empty queue", mutates: true},
		"free":    {run: (*Console).cmdFree, usage: "free", help: "Free the queue", mutates: true},
		"ih":      {run: (*Console).cmdInsertHead, usage: "ih str [n]", help: "Insert str at the head n times", mutates: true},
		"it":      {run: (*Console).cmdInsertTail, usage: "it str [n]", help: "Insert str at the tail n times", mutates: true},
		"rh":      {run: (*Console).cmdRemoveHead, usage: "rh [str]", help: "Remove from the head, optionally comparing with str", mutates: true},
		"rhq":     {run: (*Console).cmdRemoveHeadQuiet, usage: "rhq", help: "Remove from the head without reporting the value", mutates: true},
		"reverse": {run: (*Console).cmdReverse, usage: "reverse", help: "Reverse the queue", mutates: true},
		"sort":    {run: (*Console).cmdSort, usage: "sort", help: "Sort the queue in ascending order", mutates: true},
		"size":    {run: (*Console).cmdSize, usage: "size [n]", help: "Compute the size n times"},
		"show":    {run: (*Console).cmdShow, usage: "show", help: "Show the queue contents"},
		"option":  {run: (*Console).cmdOption, usage: "option [name val]", help: "Display or set options"},
		"source":  {run: (*Console).cmdSource, usage: "source file", help: "Read commands from file"},
		"help":    {run: (*Console).cmdHelp, usage: "help", help: "Show the available commands"},
		"quit":    {run: (*Console).cmdQuit, usage: "quit", help: "Exit the program"},
	}
}

func argCount(args []string, minArgs, maxArgs int) error {
	if len(args) < minArgs || len(args) > maxArgs {
		return errors.Errorf("expected between %v and %v arguments, got %v", minArgs, maxArgs, len(args))
	}
	return nil
}

func parseCount(args []string, i int) (int, error) {
	if len(args) <= i {
		return 1, nil
	}

	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, errors.Wrapf(err, "invalid count %q", args[i])
	}
	if n < 0 {
		return 0, errors.Errorf("count must not be negative, got %v", n)
	}
	return n, nil
}

func (c *Console) cmdNew(args []string) error {
	if err := argCount(args, 0, 0); err != nil {
		return err
	}

	if c.q != nil {
		if err := c.free(); err != nil {
			return err
		}
	}

	var q *strq.Queue
	err := c.guard(func() (err error) {
		q, err = strq.NewWithAllocator(c.tracker)
		return err
	})
	switch {
	case errors.Is(err, strq.ErrAlloc):
		c.warn("allocation of the queue failed")
		return nil
	case err != nil:
		return err
	}

	c.q = q
	c.count = 0
	return c.verify()
}

func (c *Console) cmdFree(args []string) error {
	if err := argCount(args, 0, 0); err != nil {
		return err
	}

	if c.q == nil {
		c.warn("calling free on null queue")
		return nil
	}
	return c.free()
}

func (c *Console) cmdInsertHead(args []string) error {
	return c.insert(args, (*strq.Queue).InsertHead, "insert head")
}

func (c *Console) cmdInsertTail(args []string) error {
	return c.insert(args, (*strq.Queue).InsertTail, "insert tail")
}

func (c *Console) insert(args []string, op func(*strq.Queue, string) error, name string) error {
	if err := argCount(args, 1, 2); err != nil {
		return err
	}
	n, err := parseCount(args, 1)
	if err != nil {
		return err
	}

	if c.q == nil {
		c.warn("calling %v on null queue", name)
	}

	v := args[0]
	for range n {
		err := c.guard(func() error { return op(c.q, v) })
		switch {
		case err == nil:
			if c.q == nil {
				return errors.Errorf("%v succeeded on null queue", name)
			}
			c.count++

		case errors.Is(err, strq.ErrInvalidHandle):
			if c.q != nil {
				return errors.Wrapf(err, "%v rejected a valid queue", name)
			}
			return nil

		case errors.Is(err, strq.ErrAlloc):
			c.log.Info("insertion refused by allocator", zap.String("op", name))
			c.warn("%v failed to allocate", name)

		default:
			return err
		}
	}

	return c.verify()
}

func (c *Console) cmdRemoveHead(args []string) error {
	if err := argCount(args, 0, 1); err != nil {
		return err
	}

	var expect *string
	if len(args) > 0 {
		expect = &args[0]
	}
	return c.remove(expect, true)
}

func (c *Console) cmdRemoveHeadQuiet(args []string) error {
	if err := argCount(args, 0, 0); err != nil {
		return err
	}
	return c.remove(nil, false)
}

func (c *Console) remove(expect *string, copyOut bool) error {
	if c.q == nil {
		c.warn("calling remove head on null queue")
	}

	var buf, guard []byte
	if copyOut {
		all := bytes.Repeat([]byte{'X'}, c.opts.Length+pad)
		buf, guard = all[:c.opts.Length], all[c.opts.Length:]
	}

	var n int
	err := c.guard(func() (err error) {
		n, err = c.q.RemoveHead(buf)
		return err
	})
	switch {
	case errors.Is(err, strq.ErrInvalidHandle):
		if c.q != nil {
			return errors.Wrap(err, "remove head rejected a valid queue")
		}
		return nil

	case errors.Is(err, strq.ErrEmpty):
		if c.count != 0 {
			return errors.Errorf("remove head reported an empty queue holding %v elements", c.count)
		}
		c.warn("calling remove head on empty queue")
		return c.verify()

	case err != nil:
		return err
	}

	if c.q == nil {
		return errors.New("remove head succeeded on null queue")
	}
	if c.count == 0 {
		return errors.New("remove head succeeded on empty queue")
	}
	c.count--

	if copyOut {
		if bytes.ContainsFunc(guard, func(r rune) bool { return r != 'X' }) {
			return errors.New("remove head overwrote bytes past the end of the buffer")
		}

		if len(buf) > 0 {
			if n > len(buf)-1 || buf[n] != 0 {
				return errors.Errorf("remove head did not terminate the copied value at %v", n)
			}
		}

		got := string(buf[:n])
		fmt.Fprintf(c.out, "Removed %v from queue\n", got)

		if expect != nil {
			want := *expect
			if len(buf) == 0 {
				want = ""
			} else if len(want) > len(buf)-1 {
				want = want[:len(buf)-1]
			}
			if got != want {
				return errors.Errorf("removed value %q does not match expected value %q", got, want)
			}
		}
	}

	return c.verify()
}

func (c *Console) cmdReverse(args []string) error {
	return c.rearrange(args, (*strq.Queue).Reverse, "reverse", nil)
}

func (c *Console) cmdSort(args []string) error {
	return c.rearrange(args, (*strq.Queue).Sort, "sort", checkSorted)
}

// rearrange runs an operation that must only relink the existing
// elements.
func (c *Console) rearrange(args []string, op func(*strq.Queue), name string, check func(*strq.Queue) error) error {
	if err := argCount(args, 0, 0); err != nil {
		return err
	}

	if c.q == nil {
		c.warn("calling %v on null queue", name)
	}

	before := slices.Sorted(c.q.All())
	calls := c.tracker.Calls()

	err := c.guard(func() error {
		op(c.q)
		return nil
	})
	if err != nil {
		return err
	}

	if c.tracker.Calls() != calls {
		return errors.Errorf("%v allocated or released storage", name)
	}
	if err := c.verify(); err != nil {
		return err
	}
	if !slices.Equal(before, slices.Sorted(c.q.All())) {
		return errors.Errorf("%v changed the set of elements", name)
	}
	if check != nil {
		return check(c.q)
	}
	return nil
}

func checkSorted(q *strq.Queue) error {
	var prev string
	var i int
	for v := range q.All() {
		if i > 0 && strings.Compare(prev, v) > 0 {
			return errors.Errorf("sort left %q before %q", prev, v)
		}
		prev = v
		i++
	}
	return nil
}

func (c *Console) cmdSize(args []string) error {
	if err := argCount(args, 0, 1); err != nil {
		return err
	}
	n, err := parseCount(args, 0)
	if err != nil {
		return err
	}

	if c.q == nil {
		c.warn("calling size on null queue")
	}

	var size int
	for range n {
		err := c.guard(func() error {
			size = c.q.Size()
			return nil
		})
		if err != nil {
			return err
		}
	}
	if size != c.count && n > 0 {
		return errors.Errorf("computed queue size as %v, but correct value is %v", size, c.count)
	}

	fmt.Fprintf(c.out, "Queue size = %v\n", c.count)
	return c.verify()
}

func (c *Console) cmdShow(args []string) error {
	if err := argCount(args, 0, 0); err != nil {
		return err
	}

	c.show()
	return c.verify()
}

func (c *Console) cmdOption(args []string) error {
	switch len(args) {
	case 0:
		fmt.Fprintf(c.out, "Options:\n")
		fmt.Fprintf(c.out, "\tverbose\t%v\tverbosity level\n", c.opts.Verbose)
		fmt.Fprintf(c.out, "\tfail\t%v\tnumber of errors before stopping\n", c.opts.ErrorLimit)
		fmt.Fprintf(c.out, "\tmalloc\t%v\tpercentage of refused allocations\n", c.tracker.FailPercent())
		fmt.Fprintf(c.out, "\tlength\t%v\tcapacity of the rh buffer\n", c.opts.Length)
		fmt.Fprintf(c.out, "\ttime\t%v\ttime limit for each queue operation\n", c.opts.TimeLimit)
		return nil

	case 2:
	default:
		return errors.New("usage: option [name val]")
	}

	if args[0] == "time" {
		limit, err := time.ParseDuration(args[1])
		if err != nil {
			return errors.Wrapf(err, "invalid value for %v", args[0])
		}
		if limit < 0 {
			return errors.Errorf("time must not be negative, got %v", limit)
		}
		c.opts.TimeLimit = limit
		c.log.Info("option changed", zap.String("name", args[0]), zap.Duration("value", limit))
		return nil
	}

	val, err := strconv.Atoi(args[1])
	if err != nil {
		return errors.Wrapf(err, "invalid value for %v", args[0])
	}

	switch args[0] {
	case "verbose":
		if val < 0 {
			return errors.Errorf("verbose must not be negative, got %v", val)
		}
		c.opts.Verbose = val
	case "fail":
		if val < 1 {
			return errors.Errorf("fail must be at least 1, got %v", val)
		}
		c.opts.ErrorLimit = val
	case "malloc":
		if val < 0 || val > 100 {
			return errors.Errorf("malloc must be between 0 and 100, got %v", val)
		}
		c.opts.Malloc = val
		c.tracker.SetFailPercent(val)
	case "length":
		if val < 0 {
			return errors.Errorf("length must not be negative, got %v", val)
		}
		c.opts.Length = val
	default:
		return errors.Errorf("unknown option %q", args[0])
	}

	c.log.Info("option changed", zap.String("name", args[0]), zap.Int("value", val))
	return nil
}

func (c *Console) cmdSource(args []string) error {
	if err := argCount(args, 1, 1); err != nil {
		return err
	}
	if c.depth >= maxSourceDepth {
		return errors.Errorf("scripts nested more than %v deep", maxSourceDepth)
	}

	c.depth++
	defer func() { c.depth-- }()

	err := c.Source(args[0])
	if errors.Is(err, ErrLimit) || errors.Is(err, deadline.ErrTimeout) {
		// Already reported by the nested run.
		return nil
	}
	return err
}

func (c *Console) cmdHelp(args []string) error {
	names := slices.Sorted(maps.Keys(c.cmds))
	fmt.Fprintln(c.out, "Commands:")
	for _, name := range names {
		cmd := c.cmds[name]
		fmt.Fprintf(c.out, "\t%-18v| %v\n", cmd.usage, cmd.help)
	}
	return nil
}

func (c *Console) cmdQuit(args []string) error {
	c.quit = true
	return nil
}
