// Package logging implements the off-critical-path async logger: each hot
// thread owns a Producer that pushes formatted records onto an MPSC channel,
// and a single drain goroutine formats and writes them through zap. A full
// channel drops the record rather than blocking the producer, matching the
// source's logger.h contract ("Producer::log is wait-free on success and
// drops on overflow"). Grounded on the teacher's
// services/common/logging.go StructuredLogger, adapted from a synchronous
// wrapper into the source's async producer/drain design.
package logging

import (
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultQueueCapacity = 16384

type record struct {
	level  zapcore.Level
	msg    string
	fields []zap.Field
}

// Logger owns the MPSC drain goroutine and the zap core it formats through.
type Logger struct {
	core    *zap.Logger
	queue   chan record
	done    chan struct{}
	dropped dropCounter
}

type dropCounter struct {
	count atomic.Uint64
}

// New builds a Logger at the given level ("debug", "info", "warn", "error"),
// backed by a zap production JSON encoder.
func New(serviceName, level string) (*Logger, error) {
	cfg := zap.NewProductionConfig()
	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.InitialFields = map[string]interface{}{
		"service": serviceName,
		"pid":     os.Getpid(),
	}

	core, err := cfg.Build()
	if err != nil {
		core, _ = zap.NewDevelopment()
	}

	l := &Logger{
		core:  core,
		queue: make(chan record, defaultQueueCapacity),
		done:  make(chan struct{}),
	}
	go l.drain()
	return l, nil
}

func (l *Logger) drain() {
	for rec := range l.queue {
		switch rec.level {
		case zapcore.DebugLevel:
			l.core.Debug(rec.msg, rec.fields...)
		case zapcore.WarnLevel:
			l.core.Warn(rec.msg, rec.fields...)
		case zapcore.ErrorLevel:
			l.core.Error(rec.msg, rec.fields...)
		default:
			l.core.Info(rec.msg, rec.fields...)
		}
	}
	close(l.done)
}

// Close stops accepting new records and waits for the drain goroutine to
// flush what's already queued.
func (l *Logger) Close() error {
	close(l.queue)
	<-l.done
	return l.core.Sync()
}

// DroppedRecords returns the number of records dropped because the drain
// queue was full when Producer.Log was called.
func (l *Logger) DroppedRecords() uint64 {
	return l.dropped.count.Load()
}

// Producer is a per-thread handle onto the shared Logger. Each hot-path
// goroutine should hold its own Producer (constructed once, outside the
// loop) so that field slices aren't shared across goroutines.
type Producer struct {
	owner *Logger
	token string
}

// MakeProducer returns a new Producer tagged with token (e.g. "md-consumer",
// "resp-consumer", a symbol name) for log correlation.
func (l *Logger) MakeProducer(token string) Producer {
	return Producer{owner: l, token: token}
}

func (p Producer) enqueue(level zapcore.Level, msg string, fields ...zap.Field) {
	fields = append(fields, zap.String("producer", p.token))
	select {
	case p.owner.queue <- record{level: level, msg: msg, fields: fields}:
	default:
		p.owner.dropped.count.Add(1)
	}
}

// Debug is non-blocking: a full drain queue silently drops the record.
func (p Producer) Debug(msg string, fields ...zap.Field) { p.enqueue(zapcore.DebugLevel, msg, fields...) }

// Info is non-blocking: a full drain queue silently drops the record.
func (p Producer) Info(msg string, fields ...zap.Field) { p.enqueue(zapcore.InfoLevel, msg, fields...) }

// Warn is non-blocking: a full drain queue silently drops the record.
func (p Producer) Warn(msg string, fields ...zap.Field) { p.enqueue(zapcore.WarnLevel, msg, fields...) }

// Error is non-blocking: a full drain queue silently drops the record.
func (p Producer) Error(msg string, fields ...zap.Field) { p.enqueue(zapcore.ErrorLevel, msg, fields...) }
