package feed

import (
	"context"
	"sync"
	"time"
)

// Scheduler runs controller code on a single goroutine. Work passed to Go
// runs elsewhere; the continuation it returns is run back on the loop.
type Scheduler interface {
	Go(work func() (resume func()))
	Post(fn func())
	Every(d time.Duration, fn func()) (stop func())
}

// EventLoop is a Scheduler backed by a queue drained by Run.
type EventLoop struct {
	queue chan func()
	done  chan struct{}
	once  sync.Once
}

// NewEventLoop creates a loop with room for size queued callbacks.
func NewEventLoop(size int) *EventLoop {
	if size <= 0 {
		size = 64
	}
	return &EventLoop{
		queue: make(chan func(), size),
		done:  make(chan struct{}),
	}
}

// Run drains the queue until ctx is done.
func (l *EventLoop) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.done) })
	for {
		select {
		case fn := <-l.queue:
			fn()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Post queues fn. It is dropped once the loop has stopped.
func (l *EventLoop) Post(fn func()) {
	select {
	case l.queue <- fn:
	case <-l.done:
	}
}

// Go runs work on its own goroutine and posts the continuation.
func (l *EventLoop) Go(work func() func()) {
	go func() {
		if resume := work(); resume != nil {
			l.Post(resume)
		}
	}()
}

// Every posts fn every d until stop is called.
func (l *EventLoop) Every(d time.Duration, fn func()) func() {
	ticker := time.NewTicker(d)
	quit := make(chan struct{})
	var once sync.Once

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Post(fn)
			case <-quit:
				return
			case <-l.done:
				return
			}
		}
	}()

	return func() { once.Do(func() { close(quit) }) }
}
