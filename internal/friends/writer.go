package friends

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Makepad-fr/friends/internal/model"
)

// writer persists snapshots off the caller's path. Dispatched snapshots are
// written in order; when several are waiting only the newest is written.
type writer struct {
	adapter Adapter
	key     string
	log     *zap.Logger

	mu      sync.Mutex
	pending model.Collection
	queued  uint64 // sequence of the newest dispatched snapshot
	written uint64 // sequence of the newest attempted write
	lastErr error
	waiters []flushWaiter
	closed  bool

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
}

type flushWaiter struct {
	seq uint64
	ch  chan error
}

func newWriter(adapter Adapter, key string, log *zap.Logger) *writer {
	w := &writer{
		adapter: adapter,
		key:     key,
		log:     log,
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// dispatch queues c for writing and returns immediately. c must not be mutated afterwards.
func (w *writer) dispatch(c model.Collection) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.log.Warn("save dispatched after close, dropped", zap.String("key", w.key))
		return
	}
	w.pending = c
	w.queued++
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *writer) run() {
	defer close(w.done)
	for {
		select {
		case <-w.wake:
			w.writePending()
		case <-w.quit:
			w.writePending()
			return
		}
	}
}

func (w *writer) writePending() {
	w.mu.Lock()
	if w.written == w.queued {
		w.mu.Unlock()
		return
	}
	snap, seq := w.pending, w.queued
	w.pending = nil
	w.mu.Unlock()

	// A dispatched save always runs to completion.
	err := w.adapter.Save(context.Background(), w.key, snap)
	if err != nil {
		w.log.Warn("save failed, keeping in-memory state",
			zap.String("key", w.key), zap.Int("items", len(snap)), zap.Error(err))
	}

	w.mu.Lock()
	w.written = seq
	w.lastErr = err
	kept := w.waiters[:0]
	for _, fw := range w.waiters {
		if fw.seq <= seq {
			fw.ch <- err
			continue
		}
		kept = append(kept, fw)
	}
	w.waiters = kept
	w.mu.Unlock()
}

// flush waits until every snapshot dispatched before the call has been written
// and returns the error of that write.
func (w *writer) flush(ctx context.Context) error {
	w.mu.Lock()
	if w.written == w.queued {
		err := w.lastErr
		w.mu.Unlock()
		return err
	}
	fw := flushWaiter{seq: w.queued, ch: make(chan error, 1)}
	w.waiters = append(w.waiters, fw)
	w.mu.Unlock()

	select {
	case err := <-fw.ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close drains the pending snapshot and stops the goroutine.
func (w *writer) close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.quit)
	<-w.done

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}
