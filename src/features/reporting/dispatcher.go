package reporting

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/contre95/dropsort/src/triage"
)

type message struct {
	result *triage.MoveResult
	line   string
}

// Dispatcher is a triage.Sink that queues outcomes and fans them out to other sinks
// on its own goroutine. Report and Log never block: when the queue is full the
// message is dropped with a warning.
type Dispatcher struct {
	queue   chan message
	sinks   []triage.Sink
	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	dropped atomic.Uint64
}

// NewDispatcher creates a dispatcher with a queue of the given size and starts delivering.
func NewDispatcher(size int, sinks ...triage.Sink) *Dispatcher {
	if size <= 0 {
		size = 1
	}
	d := &Dispatcher{
		queue: make(chan message, size),
		sinks: sinks,
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

// Report queues a result for delivery.
func (d *Dispatcher) Report(result triage.MoveResult) {
	d.enqueue(message{result: &result})
}

// Log queues a text line for delivery.
func (d *Dispatcher) Log(line string) {
	d.enqueue(message{line: line})
}

// AddSink registers another sink for messages delivered from now on.
func (d *Dispatcher) AddSink(sink triage.Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, sink)
}

// Dropped returns how many messages were discarded because the queue was full.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Close stops accepting messages and waits until the queued ones are delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) enqueue(msg message) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.queue <- msg:
	default:
		d.dropped.Add(1)
		if msg.result != nil {
			slog.Warn("Report queue full, dropping result", "file", msg.result.Name)
		} else {
			slog.Warn("Report queue full, dropping log line", "line", msg.line)
		}
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for msg := range d.queue {
		d.mu.RLock()
		sinks := d.sinks
		d.mu.RUnlock()
		for _, sink := range sinks {
			deliver(sink, msg)
		}
	}
}

// deliver isolates the dispatcher from a misbehaving sink.
func deliver(sink triage.Sink, msg message) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("Report sink panicked", "panic", p)
		}
	}()
	if msg.result != nil {
		sink.Report(*msg.result)
		return
	}
	sink.Log(msg.line)
}
