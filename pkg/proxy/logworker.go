package proxy

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MisreadableMind/word-to-site-ai/pkg/models"
)

const (
	// defaultLogBuffer is how many accounting rows can queue before the
	// worker starts dropping. Accounting is advisory; the request path
	// never blocks on it.
	defaultLogBuffer = 1024

	insertTimeout = 5 * time.Second
)

// LogStore is the slice of persistence the worker needs.
type LogStore interface {
	InsertRequestLog(ctx context.Context, entry models.RequestLogEntry) error
}

// LogWorker drains request-log entries onto the store without blocking
// the request path. Entries are dropped (and counted) when the buffer is
// full or the worker is stopped.
type LogWorker struct {
	store    LogStore
	entries  chan models.RequestLogEntry
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  bool

	dropped atomic.Int64
	written atomic.Int64
	failed  atomic.Int64
}

// NewLogWorker builds a worker with the given buffer size; non-positive
// means the default.
func NewLogWorker(store LogStore, buffer int) *LogWorker {
	if buffer <= 0 {
		buffer = defaultLogBuffer
	}
	return &LogWorker{
		store:   store,
		entries: make(chan models.RequestLogEntry, buffer),
		stopCh:  make(chan struct{}),
	}
}

// Start spawns the drain goroutine. It is safe to call multiple times;
// subsequent calls are no-ops.
func (w *LogWorker) Start() {
	if w.started {
		slog.Warn("Request log worker already started, ignoring duplicate Start call")
		return
	}
	w.started = true

	w.wg.Add(1)
	go w.run()
	slog.Info("Request log worker started", "buffer", cap(w.entries))
}

// Log enqueues one accounting row. Never blocks: a full buffer drops the
// entry and bumps the drop counter.
func (w *LogWorker) Log(entry models.RequestLogEntry) {
	entry.ErrorMessage = RedactSecrets(entry.ErrorMessage)
	select {
	case w.entries <- entry:
	default:
		total := w.dropped.Add(1)
		slog.Warn("Request log buffer full, dropping entry",
			"site_id", entry.SiteID,
			"dropped_total", total)
	}
}

// Stop drains whatever is buffered, then stops the worker. Log calls
// arriving after Stop are dropped.
func (w *LogWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
	slog.Info("Request log worker stopped",
		"written", w.written.Load(),
		"dropped", w.dropped.Load(),
		"failed", w.failed.Load())
}

// Stats reports the worker's counters and backlog for health checks.
type LogWorkerStats struct {
	Buffered int   `json:"buffered"`
	Written  int64 `json:"written"`
	Dropped  int64 `json:"dropped"`
	Failed   int64 `json:"failed"`
}

func (w *LogWorker) Stats() LogWorkerStats {
	return LogWorkerStats{
		Buffered: len(w.entries),
		Written:  w.written.Load(),
		Dropped:  w.dropped.Load(),
		Failed:   w.failed.Load(),
	}
}

func (w *LogWorker) run() {
	defer w.wg.Done()
	for {
		select {
		case entry := <-w.entries:
			w.insert(entry)
		case <-w.stopCh:
			for {
				select {
				case entry := <-w.entries:
					w.insert(entry)
				default:
					return
				}
			}
		}
	}
}

func (w *LogWorker) insert(entry models.RequestLogEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()

	if err := w.store.InsertRequestLog(ctx, entry); err != nil {
		w.failed.Add(1)
		slog.Error("Failed to insert request log entry",
			"site_id", entry.SiteID,
			"model", entry.Model,
			"error", err)
		return
	}
	w.written.Add(1)
}
