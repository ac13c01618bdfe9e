package strq_test

import (
	"slices"
	"strings"
	"testing"

	"deedles.dev/strq"
	"deedles.dev/strq/internal/harness"
	"github.com/stretchr/testify/require"
)

func newQueue(t *testing.T, tr *harness.Tracker) *strq.Queue {
	t.Helper()
	q, err := strq.NewWithAllocator(tr)
	require.NoError(t, err)
	return q
}

func contents(q *strq.Queue) []string {
	return slices.Collect(q.All())
}

func TestNew(t *testing.T) {
	q, err := strq.New()
	require.NoError(t, err)
	require.Equal(t, 0, q.Size())
	require.Empty(t, contents(q))
	require.NoError(t, q.Check())
	q.Free()

	tr := harness.NewTracker(1)
	tr.SetFailPercent(100)
	q, err = strq.NewWithAllocator(tr)
	require.ErrorIs(t, err, strq.ErrAlloc)
	require.Nil(t, q)
	require.NoError(t, tr.Leak())
}

func TestInsert(t *testing.T) {
	t.Run("Tail", func(t *testing.T) {
		q, _ := strq.New()
		require.NoError(t, q.InsertTail("a"))
		require.NoError(t, q.InsertTail("b"))
		require.NoError(t, q.InsertTail("c"))
		require.Equal(t, []string{"a", "b", "c"}, contents(q))
		require.Equal(t, 3, q.Size())
		require.NoError(t, q.Check())
	})

	t.Run("Head", func(t *testing.T) {
		q, _ := strq.New()
		require.NoError(t, q.InsertHead("a"))
		require.NoError(t, q.InsertHead("b"))
		require.NoError(t, q.InsertHead("c"))
		require.Equal(t, []string{"c", "b", "a"}, contents(q))
		require.NoError(t, q.Check())
	})

	t.Run("Mixed", func(t *testing.T) {
		q, _ := strq.New()
		require.NoError(t, q.InsertHead("middle"))
		require.NoError(t, q.InsertTail("back"))
		require.NoError(t, q.InsertHead("front"))
		require.NoError(t, q.InsertTail(""))
		require.Equal(t, []string{"front", "middle", "back", ""}, contents(q))
		require.Equal(t, 4, q.Size())
		require.NoError(t, q.Check())
	})

	t.Run("Reserves", func(t *testing.T) {
		tr := harness.NewTracker(1)
		q := newQueue(t, tr)
		b0, n0 := tr.Live()

		require.NoError(t, q.InsertTail(""))
		b1, n1 := tr.Live()
		require.Equal(t, 2, b1-b0)

		require.NoError(t, q.InsertHead("hello"))
		b2, n2 := tr.Live()
		require.Equal(t, 2, b2-b1)
		require.Equal(t, 5, (n2-n1)-(n1-n0))

		q.Free()
		require.NoError(t, tr.Leak())
	})

	t.Run("NilQueue", func(t *testing.T) {
		var q *strq.Queue
		require.ErrorIs(t, q.InsertHead("a"), strq.ErrInvalidHandle)
		require.ErrorIs(t, q.InsertTail("a"), strq.ErrInvalidHandle)
		require.Equal(t, 0, q.Size())
	})

	t.Run("Refused", func(t *testing.T) {
		tr := harness.NewTracker(7)
		q := newQueue(t, tr)
		require.NoError(t, q.InsertTail("kept"))
		blocks, bytes := tr.Live()

		tr.SetFailPercent(100)
		require.ErrorIs(t, q.InsertHead("lost"), strq.ErrAlloc)
		require.ErrorIs(t, q.InsertTail("lost"), strq.ErrAlloc)
		require.Equal(t, []string{"kept"}, contents(q))
		require.NoError(t, q.Check())

		b, n := tr.Live()
		require.Equal(t, blocks, b)
		require.Equal(t, bytes, n)
	})
}

// failSecond refuses every second reservation, which makes the value
// reservation of each insertion fail after its node reservation
// succeeded.
type failSecond struct {
	calls, live int
}

func (a *failSecond) Alloc(int) bool {
	a.calls++
	if a.calls%2 == 0 {
		return false
	}
	a.live++
	return true
}

func (a *failSecond) Free(int) {
	a.live--
}

func TestInsertRollback(t *testing.T) {
	a := new(failSecond)
	q, err := strq.NewWithAllocator(a)
	require.NoError(t, err)
	require.Equal(t, 1, a.live)

	// The queue took the first reservation, so the node reservation
	// of this insertion is refused.
	require.ErrorIs(t, q.InsertTail("x"), strq.ErrAlloc)
	require.Equal(t, 1, a.live)

	// Node succeeds, value is refused and the node is rolled back.
	require.ErrorIs(t, q.InsertTail("x"), strq.ErrAlloc)
	require.Equal(t, 1, a.live)
	require.Equal(t, 0, q.Size())
	require.NoError(t, q.Check())

	q.Free()
	require.Equal(t, 0, a.live)
}

func TestRemoveHead(t *testing.T) {
	t.Run("Order", func(t *testing.T) {
		q, _ := strq.New()
		for _, v := range []string{"one", "two", "three"} {
			require.NoError(t, q.InsertTail(v))
		}

		buf := make([]byte, 16)
		for _, want := range []string{"one", "two", "three"} {
			n, err := q.RemoveHead(buf)
			require.NoError(t, err)
			require.Equal(t, want, string(buf[:n]))
			require.Equal(t, byte(0), buf[n])
			require.NoError(t, q.Check())
		}
		require.Equal(t, 0, q.Size())

		require.NoError(t, q.InsertTail("again"))
		require.Equal(t, []string{"again"}, contents(q))
		require.NoError(t, q.Check())
	})

	t.Run("Empty", func(t *testing.T) {
		q, _ := strq.New()
		_, err := q.RemoveHead(make([]byte, 8))
		require.ErrorIs(t, err, strq.ErrEmpty)
		require.Equal(t, 0, q.Size())
	})

	t.Run("NilQueue", func(t *testing.T) {
		var q *strq.Queue
		_, err := q.RemoveHead(nil)
		require.ErrorIs(t, err, strq.ErrInvalidHandle)
	})

	t.Run("Truncate", func(t *testing.T) {
		q, _ := strq.New()
		require.NoError(t, q.InsertTail("hello"))

		buf := []byte("XXXXX")
		n, err := q.RemoveHead(buf[:3])
		require.NoError(t, err)
		require.Equal(t, 2, n)
		require.Equal(t, []byte("he\x00XX"), buf)
	})

	t.Run("ExactFit", func(t *testing.T) {
		q, _ := strq.New()
		require.NoError(t, q.InsertTail("hello"))

		buf := make([]byte, 6)
		n, err := q.RemoveHead(buf)
		require.NoError(t, err)
		require.Equal(t, 5, n)
		require.Equal(t, []byte("hello\x00"), buf)
	})

	t.Run("NoBuffer", func(t *testing.T) {
		q, _ := strq.New()
		require.NoError(t, q.InsertTail("a"))
		require.NoError(t, q.InsertTail("b"))
		require.NoError(t, q.InsertTail("c"))

		n, err := q.RemoveHead(nil)
		require.NoError(t, err)
		require.Equal(t, 0, n)

		buf := make([]byte, 0, 4)
		n, err = q.RemoveHead(buf)
		require.NoError(t, err)
		require.Equal(t, 0, n)

		one := []byte{'X'}
		n, err = q.RemoveHead(one)
		require.NoError(t, err)
		require.Equal(t, 0, n)
		require.Equal(t, []byte{0}, one)
		require.Equal(t, 0, q.Size())
	})

	t.Run("RoundTrip", func(t *testing.T) {
		q, _ := strq.New()
		values := []string{"", "x", "hello world", strings.Repeat("long", 100)}
		for _, v := range values {
			for capacity := range len(v) + 3 {
				require.NoError(t, q.InsertHead(v))
				buf := make([]byte, capacity)
				n, err := q.RemoveHead(buf)
				require.NoError(t, err)

				want := v
				if capacity == 0 {
					want = ""
				} else if len(want) > capacity-1 {
					want = want[:capacity-1]
				}
				require.Equal(t, want, string(buf[:n]))
			}
		}
		require.Equal(t, 0, q.Size())
	})
}

func TestSize(t *testing.T) {
	var nilQueue *strq.Queue
	require.Equal(t, 0, nilQueue.Size())

	q, _ := strq.New()
	var inserted, removed int
	for i := range 50 {
		switch i % 3 {
		case 0, 1:
			require.NoError(t, q.InsertTail("v"))
			inserted++
		case 2:
			_, err := q.RemoveHead(nil)
			require.NoError(t, err)
			removed++
		}
		require.Equal(t, inserted-removed, q.Size())
	}
}

func TestReverse(t *testing.T) {
	t.Run("Scenario", func(t *testing.T) {
		q, _ := strq.New()
		require.NoError(t, q.InsertHead("a"))
		require.NoError(t, q.InsertHead("b"))
		require.NoError(t, q.InsertHead("c"))
		q.Reverse()
		require.Equal(t, []string{"a", "b", "c"}, contents(q))
		require.NoError(t, q.Check())

		require.NoError(t, q.InsertTail("d"))
		require.Equal(t, []string{"a", "b", "c", "d"}, contents(q))
	})

	t.Run("Involution", func(t *testing.T) {
		for size := range 6 {
			q, _ := strq.New()
			var want []string
			for i := range size {
				v := string(rune('a' + i))
				require.NoError(t, q.InsertTail(v))
				want = append(want, v)
			}

			q.Reverse()
			q.Reverse()
			require.Equal(t, want, nilIfEmpty(contents(q)))
			require.NoError(t, q.Check())
		}
	})

	t.Run("NilQueue", func(t *testing.T) {
		var q *strq.Queue
		q.Reverse()
		require.Equal(t, 0, q.Size())
	})

	t.Run("NoAllocation", func(t *testing.T) {
		tr := harness.NewTracker(1)
		q := newQueue(t, tr)
		for _, v := range []string{"x", "y", "z"} {
			require.NoError(t, q.InsertTail(v))
		}

		calls := tr.Calls()
		q.Reverse()
		require.Equal(t, calls, tr.Calls())
	})
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

func TestSort(t *testing.T) {
	t.Run("Scenario", func(t *testing.T) {
		q, _ := strq.New()
		require.NoError(t, q.InsertTail("banana"))
		require.NoError(t, q.InsertTail("apple"))
		require.NoError(t, q.InsertTail("cherry"))
		q.Sort()
		require.Equal(t, []string{"apple", "banana", "cherry"}, contents(q))
		require.Equal(t, 3, q.Size())
		require.NoError(t, q.Check())

		require.NoError(t, q.InsertTail("date"))
		require.Equal(t, []string{"apple", "banana", "cherry", "date"}, contents(q))
	})

	t.Run("ByteOrder", func(t *testing.T) {
		in := []string{"b", "B", "a", "", "ab", "A", "aa", "\xff", "a"}
		q, _ := strq.New()
		for _, v := range in {
			require.NoError(t, q.InsertTail(v))
		}
		q.Sort()

		want := slices.Sorted(slices.Values(in))
		require.Equal(t, want, contents(q))
		require.NoError(t, q.Check())

		q.Sort()
		require.Equal(t, want, contents(q))
	})

	t.Run("Short", func(t *testing.T) {
		var nilQueue *strq.Queue
		nilQueue.Sort()

		q, _ := strq.New()
		q.Sort()
		require.Equal(t, 0, q.Size())

		require.NoError(t, q.InsertTail("only"))
		q.Sort()
		require.Equal(t, []string{"only"}, contents(q))
		require.NoError(t, q.Check())
	})

	t.Run("NoAllocation", func(t *testing.T) {
		tr := harness.NewTracker(1)
		q := newQueue(t, tr)
		for i := range 200 {
			require.NoError(t, q.InsertHead(strings.Repeat("z", i%17)))
		}

		calls := tr.Calls()
		blocks, bytes := tr.Live()
		q.Sort()
		require.Equal(t, calls, tr.Calls())

		b, n := tr.Live()
		require.Equal(t, blocks, b)
		require.Equal(t, bytes, n)
		require.NoError(t, q.Check())
	})
}

func TestFree(t *testing.T) {
	tr := harness.NewTracker(1)
	q := newQueue(t, tr)
	for i := range 100 {
		if i%2 == 0 {
			require.NoError(t, q.InsertHead(strings.Repeat("h", i)))
		} else {
			require.NoError(t, q.InsertTail(strings.Repeat("t", i)))
		}
	}
	for range 10 {
		_, err := q.RemoveHead(nil)
		require.NoError(t, err)
	}

	q.Free()
	require.NoError(t, tr.Leak())
	require.NoError(t, tr.Err())

	q.Free()
	require.NoError(t, tr.Err())
	require.Equal(t, 0, q.Size())
	require.ErrorIs(t, q.InsertTail("late"), strq.ErrInvalidHandle)
	_, err := q.RemoveHead(nil)
	require.ErrorIs(t, err, strq.ErrInvalidHandle)

	var nilQueue *strq.Queue
	nilQueue.Free()
}

func TestFailureInjection(t *testing.T) {
	tr := harness.NewTracker(42)
	q := newQueue(t, tr)
	tr.SetFailPercent(30)

	var size int
	for i := range 1000 {
		var err error
		if i%4 == 3 {
			_, err = q.RemoveHead(nil)
			if size == 0 {
				require.ErrorIs(t, err, strq.ErrEmpty)
				continue
			}
			require.NoError(t, err)
			size--
		} else {
			err = q.InsertTail("value")
			if err != nil {
				require.ErrorIs(t, err, strq.ErrAlloc)
			} else {
				size++
			}
		}
		require.Equal(t, size, q.Size())
		require.NoError(t, q.Check())
	}
	require.NotZero(t, tr.Failed())

	q.Free()
	require.NoError(t, tr.Leak())
	require.NoError(t, tr.Err())
}

func BenchmarkInsertRemove(b *testing.B) {
	q, _ := strq.New()
	buf := make([]byte, 16)
	for range b.N {
		q.InsertTail("benchmark")
		q.RemoveHead(buf)
	}
}

func BenchmarkSort(b *testing.B) {
	words := strings.Fields("the quick brown fox jumps over the lazy dog while five boxing wizards jump quickly")
	for range b.N {
		b.StopTimer()
		q, _ := strq.New()
		for i := range 10000 {
			q.InsertTail(words[i%len(words)] + words[(i*7)%len(words)])
		}
		b.StartTimer()
		q.Sort()
	}
}
