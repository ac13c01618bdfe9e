// Package harness provides an allocation tracker for exercising code
// that reserves its storage through an allocator interface. It
// detects leaks and double releases and can inject allocation
// failures.
package harness

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// ErrDoubleFree is recorded when more storage is released than is
// currently reserved.
var ErrDoubleFree = errors.New("released storage that was not reserved")

// Tracker counts live reservations. A Tracker with a zero failure
// percentage never refuses a reservation.
//
// A Tracker is not safe for concurrent use.
type Tracker struct {
	rng  *rand.Rand
	fail int

	blocks, bytes int
	calls, failed uint64
	err           error
}

// NewTracker returns a Tracker whose injected failures are drawn
// from a source seeded with seed.
func NewTracker(seed uint64) *Tracker {
	return &Tracker{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// SetFailPercent sets the probability, in percent, that a call to
// Alloc is refused. Values are clamped to [0, 100].
func (t *Tracker) SetFailPercent(p int) {
	t.fail = min(max(p, 0), 100)
}

// FailPercent returns the current failure probability in percent.
func (t *Tracker) FailPercent() int {
	return t.fail
}

// Alloc reserves size bytes unless a failure is injected.
func (t *Tracker) Alloc(size int) bool {
	t.calls++
	if t.fail > 0 && t.rng.IntN(100) < t.fail {
		t.failed++
		return false
	}

	t.blocks++
	t.bytes += size
	return true
}

// Free releases a reservation of size bytes.
func (t *Tracker) Free(size int) {
	t.calls++
	if t.blocks == 0 || t.bytes < size {
		if t.err == nil {
			t.err = fmt.Errorf("%w: %v bytes with %v blocks and %v bytes live", ErrDoubleFree, size, t.blocks, t.bytes)
		}
		return
	}

	t.blocks--
	t.bytes -= size
}

// Live returns the number of reservations and bytes currently held.
func (t *Tracker) Live() (blocks, bytes int) {
	return t.blocks, t.bytes
}

// Calls returns the total number of Alloc and Free calls made,
// including refused ones.
func (t *Tracker) Calls() uint64 {
	return t.calls
}

// Failed returns the number of refused Alloc calls.
func (t *Tracker) Failed() uint64 {
	return t.failed
}

// Err returns the first misuse detected, if any.
func (t *Tracker) Err() error {
	return t.err
}

// Leak returns an error describing any reservations still held.
func (t *Tracker) Leak() error {
	if t.blocks == 0 && t.bytes == 0 {
		return nil
	}
	return fmt.Errorf("%v blocks totaling %v bytes still reserved", t.blocks, t.bytes)
}
