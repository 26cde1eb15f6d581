// Package recency holds the recency list model, its pure transformations,
// and the accessor that reads and writes it through the key-value store.
package recency

import (
	"errors"
	"time"
)

// ErrInvalidCap is returned when a negative list cap is applied.
var ErrInvalidCap = errors.New("recency: negative list cap")

// TabRecord is a snapshot of an activated tab. Time is Unix epoch
// milliseconds.
type TabRecord struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Time     int64  `json:"time"`
	WindowID int64  `json:"windowId"`
}

// At returns the record timestamp as a time.Time.
func (r TabRecord) At() time.Time {
	return time.UnixMilli(r.Time)
}

// List is ordered most-recent-first.
type List []TabRecord

// IndexOf returns the position of id, or -1.
func IndexOf(list List, id int64) int {
	for i, r := range list {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// Without returns a copy of list with every record for id removed.
func Without(list List, id int64) List {
	out := make(List, 0, len(list))
	for _, r := range list {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

// Touch moves rec to the front, dropping any earlier record with the same
// id, then truncates the tail to max entries.
func Touch(list List, rec TabRecord, max int) (List, error) {
	if max < 0 {
		return list, ErrInvalidCap
	}
	out := make(List, 0, len(list)+1)
	out = append(out, rec)
	for _, r := range list {
		if r.ID != rec.ID {
			out = append(out, r)
		}
	}
	if len(out) > max {
		out = out[:max]
	}
	return out, nil
}

// Refresh updates title, url and time of the record for id in place. It
// reports false, leaving list untouched, when id is not present.
func Refresh(list List, id int64, title, url string, now time.Time) (List, bool) {
	i := IndexOf(list, id)
	if i < 0 {
		return list, false
	}
	out := make(List, len(list))
	copy(out, list)
	out[i].Title = title
	out[i].URL = url
	out[i].Time = now.UnixMilli()
	return out, true
}

// RemoveAt returns a copy of list without the entry at index i. Out-of-range
// indexes return list unchanged.
func RemoveAt(list List, i int) List {
	if i < 0 || i >= len(list) {
		return list
	}
	out := make(List, 0, len(list)-1)
	out = append(out, list[:i]...)
	return append(out, list[i+1:]...)
}
