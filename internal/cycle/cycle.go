// Package cycle advances a cursor through the recency list on each cycle
// command and activates the tab under it.
//
// The controller is not gated by default, so a cycle may race with a
// concurrent reactor write and lose one of the two updates. WithGate makes
// it take the same gate as the reactor.
package cycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgnsrekt/tabcycle/internal/gate"
	"github.com/dgnsrekt/tabcycle/internal/journal"
	"github.com/dgnsrekt/tabcycle/internal/metrics"
	"github.com/dgnsrekt/tabcycle/internal/recency"
	"github.com/dgnsrekt/tabcycle/internal/relay"
	"github.com/dgnsrekt/tabcycle/internal/types"
)

type Outcome string

const (
	OutcomeEmpty       Outcome = "empty"
	OutcomeActivated   Outcome = "activated"
	OutcomePruned      Outcome = "pruned"
	OutcomeCursorReset Outcome = "cursor_reset"
)

// Result describes what one cycle did.
type Result struct {
	Outcome   Outcome `json:"outcome"`
	TabID     int64   `json:"tab_id,omitempty"`
	Index     int     `json:"index"`
	NextIndex int     `json:"next_index"`
}

// Notifier receives the list after a prune.
type Notifier interface {
	PublishJSON(feed string, v any)
}

type Controller struct {
	store     *recency.Store
	activator types.TabActivator
	gate      *gate.Gate
	notifier  Notifier
	metrics   *metrics.Metrics
	journal   *journal.Writer
}

type Option func(*Controller)

// WithGate serializes cycles with reactor writes.
func WithGate(g *gate.Gate) Option { return func(c *Controller) { c.gate = g } }

func WithNotifier(n Notifier) Option { return func(c *Controller) { c.notifier = n } }

func WithMetrics(m *metrics.Metrics) Option { return func(c *Controller) { c.metrics = m } }

func WithJournal(j *journal.Writer) Option { return func(c *Controller) { c.journal = j } }

func New(store *recency.Store, activator types.TabActivator, opts ...Option) *Controller {
	c := &Controller{store: store, activator: activator}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HandleCommand runs a cycle for the cycle command and ignores any other
// name. Failures are logged only.
func (c *Controller) HandleCommand(ctx context.Context, name string) {
	if name != types.CycleCommand {
		slog.Debug("ignoring command", "command", name)
		return
	}
	if _, err := c.Cycle(ctx); err != nil {
		slog.Error("failed to cycle tabs", "error", err)
	}
}

// Cycle activates the tab under the cursor and advances the cursor.
func (c *Controller) Cycle(ctx context.Context) (Result, error) {
	var res Result
	run := func(ctx context.Context) error {
		var err error
		res, err = c.cycle(ctx)
		return err
	}

	var err error
	if c.gate != nil {
		err = c.gate.Do(ctx, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		c.metrics.ObserveCycle("error")
		c.journal.Record(journal.Entry{Source: "cycle", Kind: types.CycleCommand, Outcome: "error", Error: err.Error()})
		return Result{}, err
	}
	c.metrics.ObserveCycle(string(res.Outcome))
	c.journal.Record(journal.Entry{Source: "cycle", Kind: types.CycleCommand, TabID: res.TabID, Outcome: string(res.Outcome)})
	return res, nil
}

func (c *Controller) cycle(ctx context.Context) (Result, error) {
	st, err := c.store.CycleState(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(st.Tabs) == 0 {
		return Result{Outcome: OutcomeEmpty, Index: st.Index, NextIndex: st.Index}, nil
	}

	index := st.Index
	if index < 0 || index >= len(st.Tabs) {
		// The list shrank under the cursor; restart from the front.
		slog.Warn("cycle cursor out of range, resetting", "index", index, "tracked", len(st.Tabs))
		if err := c.store.SetCycleIndex(ctx, 0); err != nil {
			return Result{}, err
		}
		return Result{Outcome: OutcomeCursorReset, Index: index, NextIndex: 0}, nil
	}

	rec := st.Tabs[index]
	if err := c.activate(ctx, rec); err != nil {
		if !types.HasCode(err, types.CodeTabNotFound, types.CodeWindowNotFound) {
			// Browser unreachable or ctx done: the tab may still exist.
			return Result{}, err
		}
		slog.Warn("tab no longer exists, removing", "tab_id", rec.ID, "index", index, "error", err)
		pruned := recency.RemoveAt(st.Tabs, index)
		if err := c.store.SetList(ctx, pruned); err != nil {
			return Result{}, err
		}
		if err := c.store.SetCycleIndex(ctx, 0); err != nil {
			return Result{}, err
		}
		if c.notifier != nil {
			c.notifier.PublishJSON(relay.FeedTabs, pruned)
		}
		return Result{Outcome: OutcomePruned, TabID: rec.ID, Index: index, NextIndex: 0}, nil
	}

	next := NextIndex(index, st.TabCycleLimit)
	if err := c.store.SetCycleIndex(ctx, next); err != nil {
		return Result{}, err
	}
	slog.Info("cycled to tab", "tab_id", rec.ID, "index", index, "next_index", next)
	return Result{Outcome: OutcomeActivated, TabID: rec.ID, Index: index, NextIndex: next}, nil
}

func (c *Controller) activate(ctx context.Context, rec recency.TabRecord) error {
	if err := c.activator.ActivateTab(ctx, rec.ID); err != nil {
		return fmt.Errorf("activate tab %d: %w", rec.ID, err)
	}
	if err := c.activator.FocusWindow(ctx, rec.WindowID); err != nil {
		return fmt.Errorf("focus window %d: %w", rec.WindowID, err)
	}
	return nil
}

// NextIndex advances the cursor modulo limit and never lands on 0.
// A non-positive limit falls back to the default.
func NextIndex(index, limit int) int {
	if limit <= 0 {
		limit = recency.DefaultTabCycleLimit
	}
	next := (index + 1) % limit
	if next == 0 {
		next = 1
	}
	return next
}
