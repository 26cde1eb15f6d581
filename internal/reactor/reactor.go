// Package reactor applies tab lifecycle events to the persisted recency
// list. Every handler runs its read-modify-write cycle under the gate and
// contains its own failures: errors are logged, never returned.
package reactor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgnsrekt/tabcycle/internal/gate"
	"github.com/dgnsrekt/tabcycle/internal/journal"
	"github.com/dgnsrekt/tabcycle/internal/metrics"
	"github.com/dgnsrekt/tabcycle/internal/recency"
	"github.com/dgnsrekt/tabcycle/internal/relay"
	"github.com/dgnsrekt/tabcycle/internal/types"
	"github.com/jonboulle/clockwork"
)

// Notifier receives the list after each persisted change.
type Notifier interface {
	PublishJSON(feed string, v any)
}

type Reactor struct {
	store    *recency.Store
	tabs     types.TabGetter
	gate     *gate.Gate
	clock    clockwork.Clock
	notifier Notifier
	metrics  *metrics.Metrics
	journal  *journal.Writer

	wg sync.WaitGroup
}

type Option func(*Reactor)

// WithGate replaces gate.Default.
func WithGate(g *gate.Gate) Option { return func(r *Reactor) { r.gate = g } }

func WithClock(c clockwork.Clock) Option { return func(r *Reactor) { r.clock = c } }

func WithNotifier(n Notifier) Option { return func(r *Reactor) { r.notifier = n } }

func WithMetrics(m *metrics.Metrics) Option { return func(r *Reactor) { r.metrics = m } }

// WithJournal records every handled event.
func WithJournal(j *journal.Writer) Option { return func(r *Reactor) { r.journal = j } }

func New(store *recency.Store, tabs types.TabGetter, opts ...Option) *Reactor {
	r := &Reactor{
		store: store,
		tabs:  tabs,
		gate:  gate.Default,
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnActivated moves the activated tab to the front of the list with a fresh
// snapshot and enforces the list cap.
func (r *Reactor) OnActivated(ctx context.Context, tabID int64) {
	err := r.gate.Do(ctx, func(ctx context.Context) error {
		tab, err := r.tabs.GetTab(ctx, tabID)
		if err != nil {
			return fmt.Errorf("get tab: %w", err)
		}
		rec := recency.TabRecord{
			ID:       tab.ID,
			Title:    tab.Title,
			URL:      tab.URL,
			Time:     r.clock.Now().UnixMilli(),
			WindowID: tab.WindowID,
		}

		list, err := r.store.List(ctx)
		if err != nil {
			return err
		}
		max, err := r.store.MaxTrackedTabs(ctx)
		if err != nil {
			return err
		}
		list, err = recency.Touch(list, rec, max)
		if err != nil {
			return fmt.Errorf("max tracked tabs %d: %w", max, err)
		}
		return r.persist(ctx, list)
	})
	r.finish(types.EventActivated, tabID, err, "error tracking activated tab")
}

// OnUpdated refreshes title, url and time of an already tracked tab once its
// navigation completes. Untracked tabs and in-progress navigations are
// ignored.
func (r *Reactor) OnUpdated(ctx context.Context, tabID int64, change types.ChangeInfo, tab types.Tab) {
	if change.Status != types.StatusComplete {
		r.metrics.ObserveEvent(string(types.EventUpdated), "ignored")
		return
	}

	var found bool
	err := r.gate.Do(ctx, func(ctx context.Context) error {
		list, err := r.store.List(ctx)
		if err != nil {
			return err
		}
		list, found = recency.Refresh(list, tabID, tab.Title, tab.URL, r.clock.Now())
		if !found {
			return nil
		}
		return r.persist(ctx, list)
	})
	if err == nil && !found {
		r.metrics.ObserveEvent(string(types.EventUpdated), "ignored")
		return
	}
	r.finish(types.EventUpdated, tabID, err, "error updating tab info")
}

// OnRemoved drops every record of the tab. The list is written even when
// nothing changed.
func (r *Reactor) OnRemoved(ctx context.Context, tabID int64) {
	err := r.gate.Do(ctx, func(ctx context.Context) error {
		list, err := r.store.List(ctx)
		if err != nil {
			return err
		}
		return r.persist(ctx, recency.Without(list, tabID))
	})
	r.finish(types.EventRemoved, tabID, err, "error removing tab")
}

// Handle dispatches one event to its handler.
func (r *Reactor) Handle(ctx context.Context, evt types.TabEvent) {
	switch evt.Kind {
	case types.EventActivated:
		r.OnActivated(ctx, evt.TabID)
	case types.EventUpdated:
		r.OnUpdated(ctx, evt.TabID, evt.Change, evt.Tab)
	case types.EventRemoved:
		r.OnRemoved(ctx, evt.TabID)
	default:
		slog.Debug("reactor ignoring unknown event", "kind", evt.Kind, "tab_id", evt.TabID)
	}
}

// Dispatch handles evt on its own goroutine. Concurrent handlers are
// serialized by the gate but their order is not kept, so only independent
// events should go through it.
func (r *Reactor) Dispatch(ctx context.Context, evt types.TabEvent) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.Handle(ctx, evt)
	}()
}

// Run handles events in arrival order until events is closed or ctx ends,
// then waits for handlers started with Dispatch.
func (r *Reactor) Run(ctx context.Context, events <-chan types.TabEvent) {
	defer r.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			r.Handle(ctx, evt)
		}
	}
}

// Wait blocks until every dispatched handler has returned.
func (r *Reactor) Wait() {
	r.wg.Wait()
}

func (r *Reactor) persist(ctx context.Context, list recency.List) error {
	if err := r.store.SetList(ctx, list); err != nil {
		return err
	}
	r.metrics.SetTrackedTabs(len(list))
	if r.notifier != nil {
		r.notifier.PublishJSON(relay.FeedTabs, list)
	}
	return nil
}

func (r *Reactor) finish(kind types.EventKind, tabID int64, err error, msg string) {
	entry := journal.Entry{Source: "reactor", Kind: string(kind), TabID: tabID, Outcome: "ok"}
	if err != nil {
		slog.Error(msg, "tab_id", tabID, "error", err)
		r.metrics.ObserveEvent(string(kind), "error")
		entry.Outcome, entry.Error = "error", err.Error()
		r.journal.Record(entry)
		return
	}
	slog.Info("tab "+string(kind), "tab_id", tabID)
	r.metrics.ObserveEvent(string(kind), "ok")
	r.journal.Record(entry)
}
