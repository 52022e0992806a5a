package engine

import (
	"bufio"
	"context"
	"io"
	"log"
	"sync/atomic"
	"time"

	"github.com/proteindock/api/internal/fasc"
	"github.com/proteindock/api/internal/model"
)

// Monitor derives progress for one running job from two independent signals:
// the score table (authoritative, polled at a fixed interval) and the
// engine's output lines (best-effort score events, lower latency). Progress
// is monotonic and emitted only when the completed count changes.
type Monitor struct {
	fascPath     string
	total        int
	pollInterval time.Duration
	startupGrace time.Duration

	events  chan model.Event
	current atomic.Int64

	fileSeen bool
	started  time.Time
	records  []model.ScoreRecord
}

func NewMonitor(fascPath string, total int, pollInterval, startupGrace time.Duration) *Monitor {
	return &Monitor{
		fascPath:     fascPath,
		total:        total,
		pollInterval: pollInterval,
		startupGrace: startupGrace,
		events:       make(chan model.Event, 64),
	}
}

// Events is the ordered stream of progress and score events. Closed when
// Run returns. The channel is buffered; when the consumer falls behind,
// events are dropped rather than back-pressuring the monitor.
func (m *Monitor) Events() <-chan model.Event { return m.events }

// Current is the last authoritative completed count.
func (m *Monitor) Current() int { return int(m.current.Load()) }

// Records returns the score records observed on the output stream, in
// arrival order. Stable once Run has returned.
func (m *Monitor) Records() []model.ScoreRecord { return m.records }

// Run drives both signal sources until the output stream ends or ctx is
// cancelled. Every output line is teed to logw. The caller owns the child
// process; Run never blocks it.
func (m *Monitor) Run(ctx context.Context, stdout io.Reader, logw io.Writer) {
	defer close(m.events)

	m.started = time.Now()

	// Baseline so observers have a non-empty stream before any replicate
	// completes.
	m.emit(model.NewProgressEvent(0, m.total))

	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		m.scan(stdout, logw)
	}()

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Cancelled: progress observed so far is retained by the caller;
			// wait for the stream to drain once the process is torn down.
			<-scanDone
			return
		case <-scanDone:
			// Process exited. One final poll so rows written just before
			// exit are never missed.
			m.poll()
			return
		case <-ticker.C:
			m.poll()
		}
	}
}

// poll reads the authoritative completed count from the score table.
func (m *Monitor) poll() {
	n := fasc.CountCompleted(m.fascPath)
	if n > 0 {
		m.fileSeen = true
	}
	if m.total > 0 && n > m.total {
		n = m.total
	}
	cur := int(m.current.Load())
	if n > cur {
		m.current.Store(int64(n))
		m.emit(model.NewProgressEvent(n, m.total))
		return
	}
	// The table may legitimately never appear (N <= 0, or an engine that
	// buffers aggressively). Past the startup grace period, keep a periodic
	// zero baseline flowing instead of failing.
	if !m.fileSeen && cur == 0 && time.Since(m.started) > m.startupGrace {
		m.emit(model.NewProgressEvent(0, m.total))
	}
}

// scan tees every output line to the log and surfaces score lines
// immediately, without waiting for the next table poll.
func (m *Monitor) scan(stdout io.Reader, logw io.Writer) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if logw != nil {
			if _, err := io.WriteString(logw, line+"\n"); err != nil {
				log.Printf("monitor: log write failed: %v", err)
				logw = nil
			}
		}
		rec, ok := fasc.ParseScoreLine(line)
		if !ok {
			continue
		}
		m.records = append(m.records, rec)
		m.emit(model.NewScoreEvent(rec.Score, rec.Desc, line))
	}
	if err := scanner.Err(); err != nil {
		log.Printf("monitor: output scan ended: %v", err)
	}
}

func (m *Monitor) emit(ev model.Event) {
	select {
	case m.events <- ev:
	default:
		log.Printf("monitor: dropping %s event, consumer too slow", ev.Kind())
	}
}
