package list

import (
	"errors"
	"fmt"
	"iter"
)

// Single is a singly-linked list that also contains a reference to
// the last node for quick inserts at both ends and removals at the
// head. The zero value is an empty list ready to use.
//
// The head owns the chain through each node's next link. The tail is
// only a cursor to the last node and is updated whenever the end of
// the chain changes.
type Single[T any] struct {
	head, tail *SingleNode[T]
	size       int
}

// PushFront adds v as a new node at the head of the list.
func (ls *Single[T]) PushFront(v T) {
	n := &SingleNode[T]{Val: v, next: ls.head}
	ls.head = n
	if ls.tail == nil {
		ls.tail = n
	}
	ls.size++
}

// PushBack adds v as a new node at the tail of the list.
func (ls *Single[T]) PushBack(v T) {
	n := &SingleNode[T]{Val: v}
	if ls.tail == nil {
		ls.head = n
	} else {
		ls.tail.next = n
	}
	ls.tail = n
	ls.size++
}

// PopFront detaches the head node and returns its value. It returns
// false if the list was already empty.
func (ls *Single[T]) PopFront() (v T, ok bool) {
	if ls.head == nil {
		return v, false
	}

	n := ls.head
	ls.head = n.next
	if ls.head == nil {
		ls.tail = nil
	}
	ls.size--

	n.next = nil
	return n.Val, true
}

// Len returns the number of nodes in the list.
func (ls *Single[T]) Len() int {
	return ls.size
}

// Reverse reverses the order of the list by relinking its existing
// nodes. It neither creates nor discards any node.
func (ls *Single[T]) Reverse() {
	if ls.head == nil || ls.head.next == nil {
		return
	}

	var prev *SingleNode[T]
	cur := ls.head
	for cur != nil {
		next := cur.next
		cur.next = prev
		prev, cur = cur, next
	}

	ls.head, ls.tail = ls.tail, ls.head
}

// SortFunc sorts the list in ascending order as determined by cmp,
// which should return a negative number when a < b, a positive
// number when a > b and zero when they are equal. The sort is stable
// and works by relinking the existing nodes.
func (ls *Single[T]) SortFunc(cmp func(a, b T) int) {
	if ls.head == nil || ls.head.next == nil {
		return
	}

	ls.head, ls.tail = mergeSort(ls.head, cmp)
}

// All returns an iterator over the elements of the list.
func (ls *Single[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		cur := ls.head
		for cur != nil {
			if !yield(cur.Val) {
				return
			}
			cur = cur.next
		}
	}
}

// Check walks the list and reports the first inconsistency found
// between the chain, the tail reference and the recorded length.
func (ls *Single[T]) Check() error {
	if ls.head == nil || ls.tail == nil || ls.size == 0 {
		if ls.head != nil || ls.tail != nil || ls.size != 0 {
			return fmt.Errorf("inconsistent empty state: head set %v, tail set %v, size %v", ls.head != nil, ls.tail != nil, ls.size)
		}
		return nil
	}

	if ls.tail.next != nil {
		return errors.New("tail is not the end of the chain")
	}

	var count int
	var last *SingleNode[T]
	for cur := ls.head; cur != nil; cur = cur.next {
		count++
		if count > ls.size {
			return fmt.Errorf("chain is longer than size %v", ls.size)
		}
		last = cur
	}
	if count != ls.size {
		return fmt.Errorf("chain has %v nodes but size is %v", count, ls.size)
	}
	if last != ls.tail {
		return errors.New("tail does not reference the last node")
	}

	return nil
}

// SingleNode is a node of a [Single].
type SingleNode[T any] struct {
	Val  T
	next *SingleNode[T]
}

// mergeSort sorts the detached chain starting at head and returns its
// new first and last nodes.
func mergeSort[T any](head *SingleNode[T], cmp func(a, b T) int) (first, last *SingleNode[T]) {
	if head.next == nil {
		return head, head
	}

	mid := split(head)
	left, leftLast := mergeSort(head, cmp)
	right, rightLast := mergeSort(mid, cmp)
	return merge(left, leftLast, right, rightLast, cmp)
}

// split cuts the chain after its middle node and returns the first
// node of the second half. The chain must have at least two nodes.
func split[T any](head *SingleNode[T]) *SingleNode[T] {
	slow, fast := head, head.next
	for fast != nil && fast.next != nil {
		slow = slow.next
		fast = fast.next.next
	}

	mid := slow.next
	slow.next = nil
	return mid
}

func merge[T any](left, leftLast, right, rightLast *SingleNode[T], cmp func(a, b T) int) (first, last *SingleNode[T]) {
	link := &first
	for left != nil && right != nil {
		if cmp(right.Val, left.Val) < 0 {
			*link = right
			link = &right.next
			right = right.next
			continue
		}

		*link = left
		link = &left.next
		left = left.next
	}

	if left != nil {
		*link = left
		return first, leftLast
	}
	*link = right
	return first, rightLast
}
