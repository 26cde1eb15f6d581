package recency

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/dgnsrekt/tabcycle/internal/kv"
	"github.com/dgnsrekt/tabcycle/internal/types"
)

type failingKV struct{ err error }

func (f failingKV) Get(context.Context, ...string) (map[string]json.RawMessage, error) {
	return nil, f.err
}
func (f failingKV) Set(context.Context, map[string]any) error { return f.err }
func (f failingKV) Remove(context.Context, ...string) error   { return f.err }
func (f failingKV) Close() error                              { return nil }

func TestStoreDefaults(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kv.NewMemory())

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() = %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Fatalf("List() = %#v; want empty non-nil list", list)
	}

	max, err := s.MaxTrackedTabs(ctx)
	if err != nil || max != DefaultMaxTrackedTabs {
		t.Fatalf("MaxTrackedTabs() = %d, %v; want %d", max, err, DefaultMaxTrackedTabs)
	}

	st, err := s.CycleState(ctx)
	if err != nil {
		t.Fatalf("CycleState() = %v", err)
	}
	if st.Index != 0 || st.TabCycleLimit != DefaultTabCycleLimit || len(st.Tabs) != 0 {
		t.Fatalf("CycleState() = %+v; want index 0, limit 5, no tabs", st)
	}
}

func TestStoreRoundTripUsesPersistedFieldNames(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	s := NewStore(mem)

	want := List{{ID: 4, Title: "Go", URL: "https://go.dev", Time: 1700000000000, WindowID: 2}}
	if err := s.SetList(ctx, want); err != nil {
		t.Fatalf("SetList() = %v", err)
	}

	raw, _ := mem.Get(ctx, KeyClickedTabs)
	var generic []map[string]any
	if err := json.Unmarshal(raw[KeyClickedTabs], &generic); err != nil {
		t.Fatalf("stored list not JSON: %v", err)
	}
	for _, field := range []string{"id", "title", "url", "time", "windowId"} {
		if _, ok := generic[0][field]; !ok {
			t.Fatalf("stored record missing field %q: %v", field, generic[0])
		}
	}

	got, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() = %v", err)
	}
	if len(got) != 1 || got[0] != want[0] {
		t.Fatalf("List() = %+v; want %+v", got, want)
	}
}

func TestStoreMalformedValuesFallBack(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	_ = mem.Set(ctx, map[string]any{
		KeyClickedTabs:     "not a list",
		KeyMaxTrackedTabs:  "lots",
		KeyTabCycleLimit:   nil,
		KeyClickedTabIndex: 2,
	})
	s := NewStore(mem)

	list, err := s.List(ctx)
	if err != nil || len(list) != 0 {
		t.Fatalf("List() = %v, %v; want empty", list, err)
	}
	max, _ := s.MaxTrackedTabs(ctx)
	if max != DefaultMaxTrackedTabs {
		t.Fatalf("MaxTrackedTabs() = %d; want default", max)
	}
	st, _ := s.CycleState(ctx)
	if st.TabCycleLimit != DefaultTabCycleLimit || st.Index != 2 {
		t.Fatalf("CycleState() = %+v", st)
	}
}

func TestSaveTabCycleLimitResetsCursor(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kv.NewMemory())
	_ = s.SetCycleIndex(ctx, 3)

	if err := s.SaveTabCycleLimit(ctx, 8); err != nil {
		t.Fatalf("SaveTabCycleLimit() = %v", err)
	}
	st, _ := s.CycleState(ctx)
	if st.Index != 1 || st.TabCycleLimit != 8 {
		t.Fatalf("CycleState() = %+v; want index 1 limit 8", st)
	}

	if err := s.SaveMaxTrackedTabs(ctx, 12); err != nil {
		t.Fatalf("SaveMaxTrackedTabs() = %v", err)
	}
	settings, _ := s.Settings(ctx)
	if settings != (Settings{MaxTrackedTabs: 12, TabCycleLimit: 8}) {
		t.Fatalf("Settings() = %+v", settings)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kv.NewMemory())
	_ = s.SetList(ctx, List{{ID: 1}})
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear() = %v", err)
	}
	list, _ := s.List(ctx)
	if len(list) != 0 {
		t.Fatalf("List() after Clear = %v", list)
	}
}

func TestStorageFailureIsCoded(t *testing.T) {
	s := NewStore(failingKV{err: errors.New("disk full")})
	_, err := s.List(context.Background())
	var coded *types.CodedError
	if !errors.As(err, &coded) || coded.Code != types.CodeStorageFailure {
		t.Fatalf("List() err = %v; want STORAGE_FAILURE", err)
	}
	if err := s.SetList(context.Background(), nil); !errors.As(err, &coded) {
		t.Fatalf("SetList() err = %v; want coded error", err)
	}
}
