package strq

import (
	"iter"
	"strings"

	"deedles.dev/strq/internal/list"
)

// A Queue holds an ordered sequence of strings. Every value is an
// independent copy of the string that was inserted.
//
// A nil Queue is valid for Size, Free, Reverse, Sort and All, which
// treat it as empty. Insertions and removals on a nil Queue return
// ErrInvalidHandle. After Free, a Queue behaves exactly like a nil
// one.
type Queue struct {
	alloc Allocator
	ls    list.Single[string]
}

// New returns a new, empty Queue whose storage is not limited.
func New() (*Queue, error) {
	return NewWithAllocator(nil)
}

// NewWithAllocator returns a new, empty Queue that reserves all of
// its storage from a. If a is nil, storage is never refused. If the
// storage for the Queue itself can not be reserved, it returns
// ErrAlloc and no Queue.
func NewWithAllocator(a Allocator) (*Queue, error) {
	if a == nil {
		a = heapAllocator{}
	}
	if !a.Alloc(queueSize) {
		return nil, ErrAlloc
	}

	return &Queue{alloc: a}, nil
}

func (q *Queue) live() bool {
	return q != nil && q.alloc != nil
}

// Free releases every element of the Queue and then the Queue
// itself. It is a no-op on a nil or already freed Queue.
func (q *Queue) Free() {
	if !q.live() {
		return
	}

	for {
		v, ok := q.ls.PopFront()
		if !ok {
			break
		}
		q.release(v)
	}

	q.alloc.Free(queueSize)
	q.alloc = nil
}

// InsertHead inserts a copy of s at the head of the Queue.
func (q *Queue) InsertHead(s string) error {
	v, err := q.reserve(s)
	if err != nil {
		return err
	}

	q.ls.PushFront(v)
	return nil
}

// InsertTail inserts a copy of s at the tail of the Queue.
func (q *Queue) InsertTail(s string) error {
	v, err := q.reserve(s)
	if err != nil {
		return err
	}

	q.ls.PushBack(v)
	return nil
}

// reserve obtains storage for one node holding a copy of s. On
// failure nothing stays reserved.
func (q *Queue) reserve(s string) (string, error) {
	if !q.live() {
		return "", ErrInvalidHandle
	}

	if !q.alloc.Alloc(nodeSize) {
		return "", ErrAlloc
	}
	if !q.alloc.Alloc(len(s)) {
		q.alloc.Free(nodeSize)
		return "", ErrAlloc
	}

	return strings.Clone(s), nil
}

func (q *Queue) release(v string) {
	q.alloc.Free(len(v))
	q.alloc.Free(nodeSize)
}

// RemoveHead removes the element at the head of the Queue.
//
// If buf is not empty, the removed value is copied into it followed
// by a zero byte. At most len(buf)-1 bytes of the value are copied,
// so a value that does not fit is silently truncated and nothing is
// ever written past the end of buf. The number of value bytes copied,
// not counting the zero byte, is returned. A nil or empty buf
// discards the value.
func (q *Queue) RemoveHead(buf []byte) (int, error) {
	if !q.live() {
		return 0, ErrInvalidHandle
	}

	v, ok := q.ls.PopFront()
	if !ok {
		return 0, ErrEmpty
	}

	var n int
	if len(buf) > 0 {
		n = copy(buf[:len(buf)-1], v)
		buf[n] = 0
	}

	q.release(v)
	return n, nil
}

// Size returns the number of elements in the Queue.
func (q *Queue) Size() int {
	if !q.live() {
		return 0
	}
	return q.ls.Len()
}

// Reverse reverses the order of the elements in place.
func (q *Queue) Reverse() {
	if !q.live() {
		return
	}
	q.ls.Reverse()
}

// Sort sorts the elements into ascending byte-wise order in place.
// Equal elements keep their relative order.
func (q *Queue) Sort() {
	if !q.live() {
		return
	}
	q.ls.SortFunc(strings.Compare)
}

// All returns an iterator over the elements of the Queue from head
// to tail. The Queue must not be modified during iteration.
func (q *Queue) All() iter.Seq[string] {
	if !q.live() {
		return func(func(string) bool) {}
	}
	return q.ls.All()
}

// Check verifies the Queue's internal bookkeeping and returns a
// description of the first inconsistency found, if any.
func (q *Queue) Check() error {
	if !q.live() {
		return nil
	}
	return q.ls.Check()
}
