package strq

import (
	"unsafe"

	"deedles.dev/strq/internal/list"
)

// An Allocator accounts for the storage a Queue obtains for itself,
// its nodes and its values. Every successful Alloc made by a Queue is
// matched by exactly one Free of the same size, either when the
// element is removed or when the Queue is freed.
type Allocator interface {
	// Alloc reserves size bytes. It returns false if the reservation
	// can not be satisfied.
	Alloc(size int) bool

	// Free releases a reservation previously made with Alloc.
	Free(size int)
}

var (
	queueSize = int(unsafe.Sizeof(Queue{}))
	nodeSize  = int(unsafe.Sizeof(list.SingleNode[string]{}))
)

type heapAllocator struct{}

func (heapAllocator) Alloc(int) bool { return true }

func (heapAllocator) Free(int) {}
