package controller

import (
	"context"
	"fmt"

	"github.com/dgnsrekt/tabcycle/internal/cycle"
	"github.com/dgnsrekt/tabcycle/internal/gate"
	"github.com/dgnsrekt/tabcycle/internal/recency"
	"github.com/dgnsrekt/tabcycle/internal/relay"
	"github.com/dgnsrekt/tabcycle/internal/types"
	"github.com/jonboulle/clockwork"
)

// EventSink applies one tab event synchronously.
type EventSink interface {
	Handle(ctx context.Context, evt types.TabEvent)
}

type Notifier interface {
	PublishJSON(feed string, v any)
}

// TabView is a recency record decorated for display.
type TabView struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	Time       int64  `json:"time" doc:"Last activation, unix milliseconds"`
	WindowID   int64  `json:"windowId"`
	Ago        string `json:"ago" example:"3 mins ago"`
	FaviconURL string `json:"faviconUrl"`
}

// SettingsUpdate carries the settings to change; nil fields are kept.
type SettingsUpdate struct {
	MaxTrackedTabs *int
	TabCycleLimit  *int
}

// Service backs the HTTP API with the recency store, the cycle controller
// and the event reactor.
type Service struct {
	store    *recency.Store
	tabs     types.TabActivator
	cycler   *cycle.Controller
	events   EventSink
	gate     *gate.Gate
	clock    clockwork.Clock
	notifier Notifier
}

type Option func(*Service)

func WithGate(g *gate.Gate) Option { return func(s *Service) { s.gate = g } }

func WithClock(c clockwork.Clock) Option { return func(s *Service) { s.clock = c } }

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

func NewService(store *recency.Store, tabs types.TabActivator, cycler *cycle.Controller, events EventSink, opts ...Option) *Service {
	s := &Service{
		store:  store,
		tabs:   tabs,
		cycler: cycler,
		events: events,
		gate:   gate.Default,
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) requireRange(value, lo, hi int, fieldName string) error {
	if value < lo || value > hi {
		return &types.CodedError{Code: types.CodeValidation, Message: fmt.Sprintf("%s must be between %d and %d", fieldName, lo, hi)}
	}
	return nil
}

func (s *Service) requirePositive(value int, fieldName string) error {
	if value <= 0 {
		return &types.CodedError{Code: types.CodeValidation, Message: fieldName + " must be greater than 0"}
	}
	return nil
}

// ListTabs returns the recency list, most recent first.
func (s *Service) ListTabs(ctx context.Context) ([]TabView, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	out := make([]TabView, 0, len(list))
	for _, r := range list {
		out = append(out, TabView{
			ID:         r.ID,
			Title:      recency.DisplayTitle(r.Title),
			URL:        r.URL,
			Time:       r.Time,
			WindowID:   r.WindowID,
			Ago:        recency.FormatAgo(now, r.At()),
			FaviconURL: recency.FaviconURL(r.URL),
		})
	}
	return out, nil
}

// ClearTabs drops the recency list. Settings and the cursor are kept.
func (s *Service) ClearTabs(ctx context.Context) error {
	err := s.gate.Do(ctx, func(ctx context.Context) error {
		return s.store.Clear(ctx)
	})
	if err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.PublishJSON(relay.FeedTabs, recency.List{})
	}
	return nil
}

// OpenTab activates a tracked tab and focuses its window. Unlike cycling, a
// failure is reported and the entry is left for the reactor to clean up.
func (s *Service) OpenTab(ctx context.Context, tabID int64) error {
	list, err := s.store.List(ctx)
	if err != nil {
		return err
	}
	i := recency.IndexOf(list, tabID)
	if i < 0 {
		return &types.CodedError{Code: types.CodeTabNotFound, Message: fmt.Sprintf("tab %d is not tracked", tabID)}
	}
	if err := s.tabs.ActivateTab(ctx, tabID); err != nil {
		return err
	}
	return s.tabs.FocusWindow(ctx, list[i].WindowID)
}

func (s *Service) GetSettings(ctx context.Context) (recency.Settings, error) {
	return s.store.Settings(ctx)
}

// UpdateSettings validates and saves the given settings. Saving a cycle
// limit resets the cursor to 1. Nothing is written when any field is
// invalid.
func (s *Service) UpdateSettings(ctx context.Context, upd SettingsUpdate) (recency.Settings, error) {
	if upd.MaxTrackedTabs != nil {
		if err := s.requireRange(*upd.MaxTrackedTabs, recency.MinMaxTrackedTabs, recency.MaxMaxTrackedTabs, "maxTrackedTabs"); err != nil {
			return recency.Settings{}, err
		}
	}
	if upd.TabCycleLimit != nil {
		if err := s.requirePositive(*upd.TabCycleLimit, "tabCycleLimit"); err != nil {
			return recency.Settings{}, err
		}
	}

	if upd.MaxTrackedTabs != nil {
		if err := s.store.SaveMaxTrackedTabs(ctx, *upd.MaxTrackedTabs); err != nil {
			return recency.Settings{}, err
		}
	}
	if upd.TabCycleLimit != nil {
		if err := s.store.SaveTabCycleLimit(ctx, *upd.TabCycleLimit); err != nil {
			return recency.Settings{}, err
		}
	}
	return s.store.Settings(ctx)
}

// RunCommand executes a named command. Only the cycle command exists.
func (s *Service) RunCommand(ctx context.Context, name string) (cycle.Result, error) {
	if name != types.CycleCommand {
		return cycle.Result{}, &types.CodedError{Code: types.CodeValidation, Message: fmt.Sprintf("unknown command %q", name)}
	}
	return s.cycler.Cycle(ctx)
}

// IngestEvent applies an event reported by an external source. Tab ids must
// come from the same id space as the browser surface.
func (s *Service) IngestEvent(ctx context.Context, evt types.TabEvent) error {
	switch evt.Kind {
	case types.EventActivated, types.EventUpdated, types.EventRemoved:
	default:
		return &types.CodedError{Code: types.CodeValidation, Message: fmt.Sprintf("unknown event kind %q", evt.Kind)}
	}
	if err := s.requirePositive(int(evt.TabID), "tab_id"); err != nil {
		return err
	}
	if evt.Kind == types.EventUpdated && evt.Tab.ID == 0 {
		evt.Tab.ID = evt.TabID
	}
	s.events.Handle(ctx, evt)
	return nil
}
