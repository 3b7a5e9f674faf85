package utils

import (
	"errors"
	"regexp"
	"strings"
)

// Environment names are normalized before every lookup or insert so that
// "QA 1" and "qa-1" address the same row: lowercase, whitespace collapsed
// to hyphens, restricted charset, at most 40 characters.

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	disallowedRe = regexp.MustCompile(`[^a-z0-9_-]`)
)

// ErrBadEnvName is returned when a name normalizes to nothing usable.
var ErrBadEnvName = errors.New("environment name must contain letters or numbers")

// NormalizeEnvName returns the canonical form of an environment name or an
// error when the input is empty, strips to nothing, or exceeds 40 characters.
func NormalizeEnvName(input string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return "", errors.New("environment name is required")
	}
	s = whitespaceRe.ReplaceAllString(s, "-")
	s = disallowedRe.ReplaceAllString(s, "")
	if s == "" {
		return "", ErrBadEnvName
	}
	if len(s) > 40 {
		return "", errors.New("environment name must be 40 characters or fewer")
	}
	return s, nil
}
