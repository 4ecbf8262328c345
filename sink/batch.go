package sink

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jeffrom/syslogger/config"
	"github.com/jeffrom/syslogger/internal"
	"github.com/jeffrom/syslogger/protocol"
)

// BatchingSink decouples Emit from network I/O. Emit enqueues onto a bounded
// queue and never blocks; a single worker goroutine drains the queue and
// flushes batches to the transport, either when BatchLimit records have
// accumulated or when FlushInterval elapses. Once the queue is full, new
// records are dropped.
type BatchingSink struct {
	conf      *config.Config
	transport Transport
	fmtr      protocol.Formatter
	diag      DiagnosticFunc
	stats     *internal.Stats

	// identity fields, computed once at construction
	hostname string
	appName  string
	procID   int

	queue     chan *protocol.Record
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewBatching returns a new batching sink wrapping transport and starts its
// worker.
func NewBatching(conf *config.Config, transport Transport) *BatchingSink {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	appName := conf.AppName
	if appName == "" {
		appName = filepath.Base(os.Args[0])
	}

	s := &BatchingSink{
		conf:      conf,
		transport: transport,
		fmtr:      conf.Formatter(),
		diag:      defaultDiagnostics,
		stats:     internal.NewStats(),
		hostname:  hostname,
		appName:   appName,
		procID:    os.Getpid(),
		queue:     make(chan *protocol.Record, conf.QueueLimit),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}

	go s.loop()
	return s
}

type diagnosable interface {
	setDiagnostics(DiagnosticFunc)
}

// WithDiagnostics sets the diagnostic side channel on the sink and its
// transport. It should be called as part of initialization.
func (s *BatchingSink) WithDiagnostics(diag DiagnosticFunc) *BatchingSink {
	s.diag = diag
	if d, ok := s.transport.(diagnosable); ok {
		d.setDiagnostics(diag)
	}
	return s
}

// Stats exposes the sink's internal counters.
func (s *BatchingSink) Stats() *internal.Stats {
	return s.stats
}

// Emit enqueues a record for delivery. It never blocks and never returns an
// error: records emitted while the queue is full or after Close are dropped.
func (s *BatchingSink) Emit(r *protocol.Record) error {
	select {
	case <-s.done:
		s.stats.Incr("dropped")
		return nil
	default:
	}

	rec := *r
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}
	if rec.Hostname == "" {
		rec.Hostname = s.hostname
	}
	if rec.AppName == "" {
		rec.AppName = s.appName
	}
	if rec.ProcID == 0 {
		rec.ProcID = s.procID
	}

	select {
	case s.queue <- &rec:
		s.stats.Incr("emitted")
	default:
		s.stats.Incr("dropped")
		internal.Debugf(s.conf, "queue full, dropping record")
	}
	return nil
}

// Close stops intake, waits for one bounded best-effort final flush, and
// closes the transport. Emit calls made after Close are dropped.
func (s *BatchingSink) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})

	select {
	case <-s.stopped:
	case <-time.After(s.closeTimeout()):
		internal.Debugf(s.conf, "gave up waiting for final flush")
	}
	return nil
}

func (s *BatchingSink) closeTimeout() time.Duration {
	return s.conf.GetTimeout() + s.conf.GetWriteTimeout()
}

func (s *BatchingSink) loop() {
	defer close(s.stopped)

	var tickC <-chan time.Time
	if s.conf.FlushInterval > 0 {
		ticker := time.NewTicker(s.conf.FlushInterval)
		defer ticker.Stop()
		tickC = ticker.C
	}

	batch := make([]*protocol.Record, 0, s.conf.BatchLimit)
	for {
		select {
		case r := <-s.queue:
			batch = append(batch, r)
			if len(batch) >= s.conf.BatchLimit {
				s.flush(batch)
				batch = batch[:0]
			}

		case <-tickC:
			if len(batch) > 0 {
				s.flush(batch)
				batch = batch[:0]
			}

		case <-s.done:
			batch = s.drain(batch)
			if len(batch) > 0 {
				s.flush(batch)
			}
			if err := s.transport.Close(); err != nil {
				s.diag(err)
			}
			return
		}
	}
}

// drain empties whatever is left on the queue at shutdown, flushing full
// batches along the way.
func (s *BatchingSink) drain(batch []*protocol.Record) []*protocol.Record {
	for {
		select {
		case r := <-s.queue:
			batch = append(batch, r)
			if len(batch) >= s.conf.BatchLimit {
				s.flush(batch)
				batch = batch[:0]
			}
		default:
			return batch
		}
	}
}

func (s *BatchingSink) flush(batch []*protocol.Record) {
	internal.Debugf(s.conf, "flushing %d records", len(batch))
	msgs := make([]string, len(batch))
	for i, r := range batch {
		msgs[i] = s.fmtr.Format(r)
	}

	s.stats.Incr("flushes")
	n, err := s.transport.Send(msgs)
	s.stats.Add("sent", int64(n))
	if err != nil {
		s.stats.Incr("flush_errors")
		s.diag(err)
	}
}
