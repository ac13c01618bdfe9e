// Package strq implements a FIFO queue of strings backed by a
// singly-linked chain of owned nodes. Besides insertion at either end
// and removal at the head, a Queue can be reversed and sorted in
// place without creating or copying any element.
//
// A Queue is meant for sequential use by a single goroutine. Calling
// its methods concurrently is a precondition violation and is not
// detected.
package strq

import "errors"

var (
	// ErrInvalidHandle is returned by operations on a nil or freed
	// Queue.
	ErrInvalidHandle = errors.New("invalid queue handle")

	// ErrAlloc is returned when the Queue's Allocator refuses storage
	// for the queue, a node or a value.
	ErrAlloc = errors.New("allocation failed")

	// ErrEmpty is returned when removing from an empty Queue.
	ErrEmpty = errors.New("queue is empty")
)
