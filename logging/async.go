package logging

import (
	"context"
	"maps"
	"sync/atomic"
)

type entry struct {
	level  Level
	err    error
	msg    string
	fields Fields
}

// AsyncLogger hands log entries to a bounded queue that a non-realtime
// goroutine drains with Run. Every call returns immediately; when the queue
// is full the entry is dropped and counted.
//
// Fatal is downgraded to Error: the audio callback must never exit the
// process.
type AsyncLogger struct {
	next    Logger
	queue   chan entry
	fields  Fields
	level   *atomic.Int32
	dropped *atomic.Uint64
}

// NewAsyncLogger wraps next with a queue of the given capacity
func NewAsyncLogger(next Logger, capacity int) *AsyncLogger {
	if next == nil {
		next = &NoOpLogger{}
	}
	if capacity < 1 {
		capacity = 1
	}
	level := new(atomic.Int32)
	level.Store(int32(DebugLevel))
	return &AsyncLogger{
		next:    next,
		queue:   make(chan entry, capacity),
		level:   level,
		dropped: new(atomic.Uint64),
	}
}

// Run forwards queued entries until ctx is done, then flushes what is left
func (a *AsyncLogger) Run(ctx context.Context) {
	for {
		select {
		case e := <-a.queue:
			a.forward(e)
		case <-ctx.Done():
			a.Drain()
			return
		}
	}
}

// Drain forwards everything currently queued without waiting for more
func (a *AsyncLogger) Drain() int {
	n := 0
	for {
		select {
		case e := <-a.queue:
			a.forward(e)
			n++
		default:
			return n
		}
	}
}

// Dropped reports how many entries were discarded because the queue was full
func (a *AsyncLogger) Dropped() uint64 {
	return a.dropped.Load()
}

func (a *AsyncLogger) forward(e entry) {
	switch e.level {
	case DebugLevel:
		a.next.Debug(e.msg, e.fields)
	case InfoLevel:
		a.next.Info(e.msg, e.fields)
	case WarnLevel:
		a.next.Warn(e.msg, e.fields)
	default:
		a.next.Error(e.err, e.msg, e.fields)
	}
}

func (a *AsyncLogger) enqueue(level Level, err error, msg string, fields []Fields) {
	if level < Level(a.level.Load()) {
		return
	}

	merged := a.fields
	if len(fields) > 0 {
		merged = make(Fields, len(a.fields)+len(fields[0]))
		maps.Copy(merged, a.fields)
		for _, f := range fields {
			maps.Copy(merged, f)
		}
	}

	select {
	case a.queue <- entry{level: level, err: err, msg: msg, fields: merged}:
	default:
		a.dropped.Add(1)
	}
}

func (a *AsyncLogger) Debug(msg string, fields ...Fields) {
	a.enqueue(DebugLevel, nil, msg, fields)
}

func (a *AsyncLogger) Info(msg string, fields ...Fields) {
	a.enqueue(InfoLevel, nil, msg, fields)
}

func (a *AsyncLogger) Warn(msg string, fields ...Fields) {
	a.enqueue(WarnLevel, nil, msg, fields)
}

func (a *AsyncLogger) Error(err error, msg string, fields ...Fields) {
	a.enqueue(ErrorLevel, err, msg, fields)
}

func (a *AsyncLogger) Fatal(err error, msg string, fields ...Fields) {
	a.enqueue(ErrorLevel, err, msg, fields)
}

// WithFields shares the queue and counters with the parent
func (a *AsyncLogger) WithFields(fields Fields) Logger {
	newFields := make(Fields, len(a.fields)+len(fields))
	maps.Copy(newFields, a.fields)
	maps.Copy(newFields, fields)

	return &AsyncLogger{
		next:    a.next,
		queue:   a.queue,
		fields:  newFields,
		level:   a.level,
		dropped: a.dropped,
	}
}

func (a *AsyncLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := fieldsFromContext(ctx); ok {
		return a.WithFields(fields)
	}
	return a
}

// SetLevel filters entries before they are queued
func (a *AsyncLogger) SetLevel(level Level) {
	a.level.Store(int32(level))
}
