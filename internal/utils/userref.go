package utils

import (
	"regexp"
	"strings"
)

// Commands reference users and channels the way chat clients expand them:
// "<@U123>", "@U123" or a bare "U123".  These helpers reduce any of those
// forms to the raw identifier.

var (
	mentionRe = regexp.MustCompile(`(?i)^<@([A-Z0-9._-]+)(?:\|[^>]*)?>$`)
	bareRe    = regexp.MustCompile(`(?i)^@?([A-Z0-9._-]+)$`)
	channelRe = regexp.MustCompile(`(?i)^<#([A-Z0-9]+)(?:\|[^>]*)?>$`)
)

// ParseUserRef extracts a user ID from a mention or bare reference.  It
// returns "" when the input is not a recognizable reference.
func ParseUserRef(input string) string {
	s := strings.TrimSpace(input)
	if s == "" {
		return ""
	}
	if m := mentionRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	if m := bareRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

// ParseChannelRef extracts a channel ID from "<#C123|name>" or a bare
// "C123".  Returns "" when the input is not a recognizable reference.
func ParseChannelRef(input string) string {
	s := strings.TrimSpace(input)
	if s == "" {
		return ""
	}
	if m := channelRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	if m := bareRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}
