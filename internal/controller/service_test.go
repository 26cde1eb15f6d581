package controller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgnsrekt/tabcycle/internal/cycle"
	"github.com/dgnsrekt/tabcycle/internal/gate"
	"github.com/dgnsrekt/tabcycle/internal/kv"
	"github.com/dgnsrekt/tabcycle/internal/recency"
	"github.com/dgnsrekt/tabcycle/internal/types"
	"github.com/jonboulle/clockwork"
)

type stubTabs struct {
	activated []int64
	focused   []int64
	fail      error
}

func (s *stubTabs) ActivateTab(ctx context.Context, id int64) error {
	if s.fail != nil {
		return s.fail
	}
	s.activated = append(s.activated, id)
	return nil
}

func (s *stubTabs) FocusWindow(ctx context.Context, id int64) error {
	s.focused = append(s.focused, id)
	return nil
}

type recordingSink struct {
	events []types.TabEvent
}

func (r *recordingSink) Handle(ctx context.Context, evt types.TabEvent) {
	r.events = append(r.events, evt)
}

type countingNotifier struct {
	n int
}

func (c *countingNotifier) PublishJSON(feed string, v any) { c.n++ }

func newTestService(t *testing.T) (*Service, *recency.Store, *stubTabs, *recordingSink) {
	t.Helper()
	store := recency.NewStore(kv.NewMemory())
	tabs := &stubTabs{}
	sink := &recordingSink{}
	clock := clockwork.NewFakeClockAt(time.UnixMilli(10 * 60 * 1000))
	svc := NewService(store, tabs, cycle.New(store, tabs), sink, WithGate(gate.New()), WithClock(clock))
	return svc, store, tabs, sink
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	var got *types.CodedError
	if !errors.As(err, &got) {
		t.Fatalf("error type = %T (%v); want *types.CodedError", err, err)
	}
	if got.Code != code {
		t.Fatalf("code = %q; want %q", got.Code, code)
	}
}

func TestRequireRange(t *testing.T) {
	s := &Service{}
	if err := s.requireRange(20, 5, 50, "maxTrackedTabs"); err != nil {
		t.Fatalf("requireRange() = %v; want nil", err)
	}
	err := s.requireRange(4, 5, 50, "maxTrackedTabs")
	wantCode(t, err, types.CodeValidation)
	if got := err.(*types.CodedError).Message; got != "maxTrackedTabs must be between 5 and 50" {
		t.Fatalf("message = %q", got)
	}
}

func TestListTabsDecoratesRecords(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()
	_ = store.SetList(ctx, recency.List{
		{ID: 1, Title: "", URL: "https://go.dev", Time: 7 * 60 * 1000, WindowID: 2},
	})

	views, err := svc.ListTabs(ctx)
	if err != nil {
		t.Fatalf("ListTabs() = %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("len = %d; want 1", len(views))
	}
	v := views[0]
	if v.Title != "Untitled Tab" || v.Ago != "3 mins ago" || v.FaviconURL != "https://www.google.com/s2/favicons?domain=https%3A%2F%2Fgo.dev" {
		t.Fatalf("view = %+v", v)
	}
}

func TestUpdateSettingsValidation(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()

	bad := 51
	limit := 3
	_, err := svc.UpdateSettings(ctx, SettingsUpdate{MaxTrackedTabs: &bad, TabCycleLimit: &limit})
	wantCode(t, err, types.CodeValidation)
	if got, _ := store.Settings(ctx); got.TabCycleLimit != recency.DefaultTabCycleLimit {
		t.Fatalf("TabCycleLimit = %d; nothing should be written on validation failure", got.TabCycleLimit)
	}

	zero := 0
	_, err = svc.UpdateSettings(ctx, SettingsUpdate{TabCycleLimit: &zero})
	wantCode(t, err, types.CodeValidation)

	max := 10
	got, err := svc.UpdateSettings(ctx, SettingsUpdate{MaxTrackedTabs: &max, TabCycleLimit: &limit})
	if err != nil {
		t.Fatalf("UpdateSettings() = %v", err)
	}
	if got.MaxTrackedTabs != 10 || got.TabCycleLimit != 3 {
		t.Fatalf("settings = %+v", got)
	}
	st, _ := store.CycleState(ctx)
	if st.Index != 1 {
		t.Fatalf("cursor = %d; want 1 after saving the cycle limit", st.Index)
	}
}

func TestOpenTab(t *testing.T) {
	svc, store, tabs, _ := newTestService(t)
	ctx := context.Background()
	_ = store.SetList(ctx, recency.List{{ID: 4, WindowID: 9}})

	if err := svc.OpenTab(ctx, 4); err != nil {
		t.Fatalf("OpenTab() = %v", err)
	}
	if len(tabs.activated) != 1 || tabs.focused[0] != 9 {
		t.Fatalf("activated %v focused %v", tabs.activated, tabs.focused)
	}

	wantCode(t, svc.OpenTab(ctx, 5), types.CodeTabNotFound)

	tabs.fail = types.NewError(types.CodeTabNotFound, "gone", nil)
	wantCode(t, svc.OpenTab(ctx, 4), types.CodeTabNotFound)
}

func TestClearTabsPublishes(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	n := &countingNotifier{}
	svc.notifier = n
	ctx := context.Background()
	_ = store.SetList(ctx, recency.List{{ID: 1}})

	if err := svc.ClearTabs(ctx); err != nil {
		t.Fatalf("ClearTabs() = %v", err)
	}
	if list, _ := store.List(ctx); len(list) != 0 {
		t.Fatalf("list = %v; want empty", list)
	}
	if n.n != 1 {
		t.Fatalf("publishes = %d; want 1", n.n)
	}
}

func TestRunCommand(t *testing.T) {
	svc, store, tabs, _ := newTestService(t)
	ctx := context.Background()
	_ = store.SetList(ctx, recency.List{{ID: 1}, {ID: 2}})

	_, err := svc.RunCommand(ctx, "toggle-popup")
	wantCode(t, err, types.CodeValidation)

	res, err := svc.RunCommand(ctx, types.CycleCommand)
	if err != nil {
		t.Fatalf("RunCommand() = %v", err)
	}
	if res.Outcome != cycle.OutcomeActivated || tabs.activated[0] != 1 {
		t.Fatalf("result = %+v activated %v", res, tabs.activated)
	}
}

func TestIngestEvent(t *testing.T) {
	svc, _, _, sink := newTestService(t)
	ctx := context.Background()

	wantCode(t, svc.IngestEvent(ctx, types.TabEvent{Kind: "moved", TabID: 1}), types.CodeValidation)
	wantCode(t, svc.IngestEvent(ctx, types.TabEvent{Kind: types.EventRemoved}), types.CodeValidation)

	err := svc.IngestEvent(ctx, types.TabEvent{
		Kind:   types.EventUpdated,
		TabID:  3,
		Change: types.ChangeInfo{Status: types.StatusComplete},
		Tab:    types.Tab{Title: "t"},
	})
	if err != nil {
		t.Fatalf("IngestEvent() = %v", err)
	}
	if len(sink.events) != 1 || sink.events[0].Tab.ID != 3 {
		t.Fatalf("events = %+v", sink.events)
	}
}
