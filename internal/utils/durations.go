package utils

import (
	"regexp"
	"strconv"
	"strings"
)

// Duration parsing for the command surface.  Accepts inputs such as
// "90m", "2h", "1d 3h", "2hours", "45min" and the ISO-like "PT2H",
// "PT1H30M".  A bare positive number is treated as minutes.  The parser
// is a pure function so it can be fuzzed in isolation from the engine.

var (
	isoRe  = regexp.MustCompile(`(?i)^p?t?(\d+h)?(\d+m)?(\d+s)?$`)
	unitRe = regexp.MustCompile(`(\d+)\s*(d|day|days|h|hr|hour|hours|m|min|mins|minute|minutes|s|sec|secs|second|seconds)`)
	digits = regexp.MustCompile(`\d+`)
)

// ParseDurationSeconds converts free-form duration text into whole
// seconds.  It returns (0, false) when the input does not describe a
// positive duration.
func ParseDurationSeconds(input string) (int64, bool) {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return 0, false
	}

	// ISO-like pattern first: PT2H, PT30M, PT1H30M.  The regex also
	// matches the empty string, so require at least one captured part.
	if m := isoRe.FindStringSubmatch(s); m != nil && (m[1] != "" || m[2] != "" || m[3] != "") {
		total := isoPart(m[1])*3600 + isoPart(m[2])*60 + isoPart(m[3])
		if total > 0 {
			return total, true
		}
		return 0, false
	}

	// General pattern: one or more number+unit groups.
	var total int64
	for _, m := range unitRe.FindAllStringSubmatch(s, -1) {
		v, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue // overflow; skip the group rather than fail the whole input
		}
		switch m[2][0] {
		case 'd':
			total += v * 86400
		case 'h':
			total += v * 3600
		case 'm':
			total += v * 60
		case 's':
			total += v
		}
	}
	if total > 0 {
		return total, true
	}

	// Fallback: a plain number is read as minutes.
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
		return n * 60, true
	}
	return 0, false
}

// isoPart extracts the numeric prefix of an ISO segment like "2h" or "30m".
func isoPart(part string) int64 {
	if part == "" {
		return 0
	}
	n, err := strconv.ParseInt(digits.FindString(part), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
