// Package journal appends tab activity to daily JSON-lines files. Writes are
// queued and flushed by a background goroutine; a full queue drops entries
// rather than blocking the caller.
package journal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Entry is one journal line.
type Entry struct {
	Time    time.Time `json:"ts"`
	Source  string    `json:"source"`
	Kind    string    `json:"kind"`
	TabID   int64     `json:"tab_id,omitempty"`
	Outcome string    `json:"outcome"`
	Error   string    `json:"error,omitempty"`
}

// Writer is safe for concurrent use. A nil *Writer discards everything.
type Writer struct {
	dir       string
	maxSizeMB int
	clock     clockwork.Clock

	queue chan Entry
	done  chan struct{}
	wg    sync.WaitGroup

	mu          sync.Mutex
	currentDate string
	out         *lumberjack.Logger
}

func New(dir string, bufferSize, maxSizeMB int, clock clockwork.Clock) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal dir: %w", err)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	w := &Writer{
		dir:       dir,
		maxSizeMB: maxSizeMB,
		clock:     clock,
		queue:     make(chan Entry, bufferSize),
		done:      make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Record queues e, stamping it with the current time when unset.
func (w *Writer) Record(e Entry) {
	if w == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = w.clock.Now().UTC()
	}
	select {
	case <-w.done:
		return
	default:
	}
	select {
	case w.queue <- e:
	default:
		slog.Warn("journal queue full, dropping entry", "kind", e.Kind, "tab_id", e.TabID)
	}
}

// Close flushes queued entries and closes the current file.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	close(w.done)
	w.wg.Wait()

	timeout := time.After(5 * time.Second)
drain:
	for {
		select {
		case e := <-w.queue:
			w.write(e)
		case <-timeout:
			slog.Warn("journal close timeout, some entries may be lost")
			break drain
		default:
			break drain
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.out != nil {
		return w.out.Close()
	}
	return nil
}

func (w *Writer) loop() {
	defer w.wg.Done()
	for {
		select {
		case e := <-w.queue:
			w.write(e)
		case <-w.done:
			return
		}
	}
}

func (w *Writer) write(e Entry) {
	data, err := json.Marshal(e)
	if err != nil {
		slog.Error("journal marshal failed", "error", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	date := e.Time.UTC().Format("2006-01-02")
	if w.out == nil || date != w.currentDate {
		w.openForDate(date)
	}
	if _, err := w.out.Write(append(data, '\n')); err != nil {
		slog.Error("journal write failed", "error", err)
	}
}

func (w *Writer) openForDate(date string) {
	if w.out != nil {
		_ = w.out.Close()
	}
	w.out = &lumberjack.Logger{
		Filename:   filepath.Join(w.dir, date+".jsonl"),
		MaxSize:    w.maxSizeMB,
		MaxBackups: 30,
		MaxAge:     30,
	}
	w.currentDate = date
	slog.Debug("journal file opened", "file", w.out.Filename)
}
