package recency

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dgnsrekt/tabcycle/internal/kv"
	"github.com/dgnsrekt/tabcycle/internal/types"
)

// Persisted keys.
const (
	KeyClickedTabs     = "clickedTabs"
	KeyMaxTrackedTabs  = "maxTrackedTabs"
	KeyTabCycleLimit   = "tabCycleLimit"
	KeyClickedTabIndex = "clickedTabIndex"
)

const (
	DefaultMaxTrackedTabs = 20
	DefaultTabCycleLimit  = 5

	// Bounds enforced by the settings surface only; the store accepts any
	// value.
	MinMaxTrackedTabs = 5
	MaxMaxTrackedTabs = 50
)

// CycleState is everything the cycle controller reads in one call.
type CycleState struct {
	Tabs          List
	Index         int
	TabCycleLimit int
}

// Settings are the user-adjustable values.
type Settings struct {
	MaxTrackedTabs int `json:"maxTrackedTabs"`
	TabCycleLimit  int `json:"tabCycleLimit"`
}

// Store is the accessor over the key-value layer. It caches nothing.
type Store struct {
	kv kv.Store
}

func NewStore(store kv.Store) *Store {
	return &Store{kv: store}
}

// List reads the recency list; absent or malformed data is an empty list.
func (s *Store) List(ctx context.Context) (List, error) {
	vals, err := s.get(ctx, KeyClickedTabs)
	if err != nil {
		return nil, err
	}
	return decodeList(vals[KeyClickedTabs]), nil
}

// SetList overwrites the persisted list.
func (s *Store) SetList(ctx context.Context, list List) error {
	if list == nil {
		list = List{}
	}
	return s.set(ctx, map[string]any{KeyClickedTabs: list})
}

// MaxTrackedTabs reads the list cap, default 20.
func (s *Store) MaxTrackedTabs(ctx context.Context) (int, error) {
	vals, err := s.get(ctx, KeyMaxTrackedTabs)
	if err != nil {
		return 0, err
	}
	return decodeInt(KeyMaxTrackedTabs, vals[KeyMaxTrackedTabs], DefaultMaxTrackedTabs), nil
}

// CycleState reads the list, cursor and cycle limit together.
func (s *Store) CycleState(ctx context.Context) (CycleState, error) {
	vals, err := s.get(ctx, KeyClickedTabs, KeyClickedTabIndex, KeyTabCycleLimit)
	if err != nil {
		return CycleState{}, err
	}
	return CycleState{
		Tabs:          decodeList(vals[KeyClickedTabs]),
		Index:         decodeInt(KeyClickedTabIndex, vals[KeyClickedTabIndex], 0),
		TabCycleLimit: decodeInt(KeyTabCycleLimit, vals[KeyTabCycleLimit], DefaultTabCycleLimit),
	}, nil
}

// SetCycleIndex persists the cycle cursor.
func (s *Store) SetCycleIndex(ctx context.Context, index int) error {
	return s.set(ctx, map[string]any{KeyClickedTabIndex: index})
}

// Settings reads the user settings with defaults.
func (s *Store) Settings(ctx context.Context) (Settings, error) {
	vals, err := s.get(ctx, KeyMaxTrackedTabs, KeyTabCycleLimit)
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		MaxTrackedTabs: decodeInt(KeyMaxTrackedTabs, vals[KeyMaxTrackedTabs], DefaultMaxTrackedTabs),
		TabCycleLimit:  decodeInt(KeyTabCycleLimit, vals[KeyTabCycleLimit], DefaultTabCycleLimit),
	}, nil
}

// SaveMaxTrackedTabs stores the list cap. The existing list is not
// truncated until the next activation.
func (s *Store) SaveMaxTrackedTabs(ctx context.Context, n int) error {
	return s.set(ctx, map[string]any{KeyMaxTrackedTabs: n})
}

// SaveTabCycleLimit stores the cycle limit and resets the cursor to 1.
func (s *Store) SaveTabCycleLimit(ctx context.Context, n int) error {
	return s.set(ctx, map[string]any{KeyTabCycleLimit: n, KeyClickedTabIndex: 1})
}

// Clear drops the recency list.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Remove(ctx, KeyClickedTabs); err != nil {
		return types.NewError(types.CodeStorageFailure, "remove "+KeyClickedTabs, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	vals, err := s.kv.Get(ctx, keys...)
	if err != nil {
		return nil, types.NewError(types.CodeStorageFailure, fmt.Sprintf("read %v", keys), err)
	}
	return vals, nil
}

func (s *Store) set(ctx context.Context, values map[string]any) error {
	if err := s.kv.Set(ctx, values); err != nil {
		return types.NewError(types.CodeStorageFailure, "write", err)
	}
	return nil
}

func decodeList(raw json.RawMessage) List {
	if len(raw) == 0 {
		return List{}
	}
	var list List
	if err := json.Unmarshal(raw, &list); err != nil {
		slog.Warn("stored recency list malformed, using empty list", "error", err)
		return List{}
	}
	if list == nil {
		return List{}
	}
	return list
}

func decodeInt(key string, raw json.RawMessage, def int) int {
	if len(raw) == 0 || string(raw) == "null" {
		return def
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		slog.Warn("stored value malformed, using default", "key", key, "default", def, "error", err)
		return def
	}
	return n
}
