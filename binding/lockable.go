package qbind

import (
	"context"
	"sync"
)

type channelLocker struct {
	L chan struct{}
	U chan struct{}
}

func newChannelLocker() *channelLocker {
	return &channelLocker{
		L: make(chan struct{}),
		U: make(chan struct{}),
	}
}

func (cl *channelLocker) Lock() {
	cl.L <- struct{}{}
}

func (cl *channelLocker) Unlock() {
	cl.U <- struct{}{}
}

// RunLockable executes Run in a separate goroutine and returns a
// sync.Locker, which can be used for mutually exclusive execution with
// Process. That is, locking guarantees that Process is not and will not run
// until unlocked.
//
// While holding the lock, the caller is the engine's logical thread: it may
// mutate bound data, call Changed, and create or dispose bindings.
//
// RunLockable also returns a channel, which will receive one error value
// and close when ctx is done.
func (e *Engine) RunLockable(ctx context.Context) (sync.Locker, <-chan error) {
	lock := newChannelLocker()
	errChannel := make(chan error, 1)

	go func() {
		defer close(errChannel)
		for {
			select {
			case <-ctx.Done():
				errChannel <- ctx.Err()
				return
			case <-e.processSignal:
				e.Process()
			case <-lock.L:
				<-lock.U
			}
		}
	}()

	return lock, errChannel
}
