package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

const defaultQueueLen = 256

// asyncWriter fans log lines out to several sinks from one goroutine. Lines are buffered
// and flushed whenever the queue runs dry, so bursts cost one flush per sink.
type asyncWriter struct {
	queue   chan []byte
	flushCh chan chan error
	done    chan struct{}
	closeMu sync.RWMutex
	closed  bool

	sinks []*bufio.Writer
	errMu sync.Mutex
	err   error
}

var _ io.Writer = (*asyncWriter)(nil)

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	w := &asyncWriter{
		queue:   make(chan []byte, defaultQueueLen),
		flushCh: make(chan chan error),
		done:    make(chan struct{}),
	}
	for _, sink := range writers {
		if sink != nil {
			w.sinks = append(w.sinks, bufio.NewWriterSize(sink, bufSize))
		}
	}
	go w.run()
	return w
}

func (w *asyncWriter) run() {
	defer close(w.done)
	for {
		select {
		case line, ok := <-w.queue:
			if !ok {
				w.record(w.flushSinks())
				return
			}
			w.record(w.writeSinks(line))
			if len(w.queue) == 0 {
				w.record(w.flushSinks())
			}
		case ack := <-w.flushCh:
			open := w.drain()
			ack <- w.flushSinks()
			if !open {
				return
			}
		}
	}
}

// drain writes whatever is queued right now and reports whether the queue is still open.
func (w *asyncWriter) drain() bool {
	for {
		select {
		case line, ok := <-w.queue:
			if !ok {
				return false
			}
			w.record(w.writeSinks(line))
		default:
			return true
		}
	}
}

// Write queues a copy of p. It blocks while the queue is full rather than drop lines.
// After Close it reports io.ErrClosedPipe.
func (w *asyncWriter) Write(p []byte) (int, error) {
	if err := w.firstErr(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	line := append([]byte(nil), p...)

	w.closeMu.RLock()
	defer w.closeMu.RUnlock()
	if w.closed {
		return 0, io.ErrClosedPipe
	}
	w.queue <- line
	return len(p), nil
}

// Flush blocks until everything queued before the call reached the sinks.
func (w *asyncWriter) Flush() error {
	w.closeMu.RLock()
	closed := w.closed
	w.closeMu.RUnlock()
	if closed {
		return w.firstErr()
	}
	ack := make(chan error, 1)
	select {
	case w.flushCh <- ack:
		return <-ack
	case <-w.done:
		return w.firstErr()
	}
}

// Close drains the queue and returns the first write error seen.
func (w *asyncWriter) Close() error {
	w.closeMu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.closeMu.Unlock()
	<-w.done
	return w.firstErr()
}

func (w *asyncWriter) writeSinks(line []byte) error {
	var errs []error
	for _, sink := range w.sinks {
		if _, err := sink.Write(line); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) flushSinks() error {
	var errs []error
	for _, sink := range w.sinks {
		if err := sink.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) record(err error) {
	if err == nil {
		return
	}
	w.errMu.Lock()
	defer w.errMu.Unlock()
	if w.err == nil {
		w.err = err
	}
}

func (w *asyncWriter) firstErr() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}
