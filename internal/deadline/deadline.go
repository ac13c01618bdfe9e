// Package deadline runs a function under a wall-clock time limit.
package deadline

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrTimeout is returned by Run when the limit elapses before the
// function returns.
var ErrTimeout = errors.New("time limit exceeded")

// A result holds the error of a call that might not have returned
// yet.
type result struct {
	done chan struct{}
	err  error
}

func start(f func() error) *result {
	r := result{done: make(chan struct{})}
	var once sync.Once
	complete := func(err error) {
		once.Do(func() {
			r.err = err
			close(r.done)
		})
	}

	go func() {
		defer func() {
			switch p := recover().(type) {
			case nil:
			case error:
				complete(fmt.Errorf("panic: %w", p))
			default:
				complete(fmt.Errorf("panic: %v", p))
			}
		}()
		complete(f())
	}()

	return &r
}

// Run calls f and waits at most limit for it to return. A limit of
// zero or less waits for as long as f takes.
//
// If the limit elapses first, Run returns ErrTimeout and f keeps
// running in the background; anything f touches must be considered
// unusable afterwards. A panic in f is recovered and returned as an
// error.
func Run(limit time.Duration, f func() error) error {
	r := start(f)
	if limit <= 0 {
		<-r.done
		return r.err
	}

	timer := time.NewTimer(limit)
	defer timer.Stop()

	select {
	case <-r.done:
		return r.err
	case <-timer.C:
		return ErrTimeout
	}
}
