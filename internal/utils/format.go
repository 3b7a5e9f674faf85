package utils

import (
	"fmt"
	"strings"
	"time"
)

// HumanizeSeconds renders a second count as a compact human string such as
// "1d 3h", "30m" or "45s".  Zero and negative values render as "0s" so
// remaining-time messages never show negative durations.
func HumanizeSeconds(secs int64) string {
	if secs <= 0 {
		return "0s"
	}
	days := secs / 86400
	hours := (secs % 86400) / 3600
	mins := (secs % 3600) / 60
	rem := secs % 60

	parts := make([]string, 0, 3)
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if mins > 0 {
		parts = append(parts, fmt.Sprintf("%dm", mins))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%ds", rem)
	}
	return strings.Join(parts, " ")
}

// FormatUnix renders a unix-seconds timestamp in UTC for user-facing
// messages.
func FormatUnix(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("Mon 15:04 MST")
}
