package recency

import (
	"fmt"
	"net/url"
	"time"
)

// FormatAgo renders the age of t relative to now the way the popup shows it.
func FormatAgo(now, t time.Time) string {
	diff := now.Sub(t)
	seconds := int64(diff / time.Second)
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	switch {
	case days > 0:
		return fmt.Sprintf("%d day%s ago", days, plural(days))
	case hours > 0:
		return fmt.Sprintf("%d hr%s ago", hours, plural(hours))
	case minutes > 0:
		return fmt.Sprintf("%d min%s ago", minutes, plural(minutes))
	default:
		return "Just now"
	}
}

func plural(n int64) string {
	if n > 1 {
		return "s"
	}
	return ""
}

// FaviconURL returns the favicon service URL for a page.
func FaviconURL(pageURL string) string {
	return "https://www.google.com/s2/favicons?domain=" + url.QueryEscape(pageURL)
}

// DisplayTitle falls back to a placeholder for untitled tabs.
func DisplayTitle(title string) string {
	if title == "" {
		return "Untitled Tab"
	}
	return title
}
