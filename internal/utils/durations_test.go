package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDurationSeconds(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"2h", 7200, true},
		{"30m", 1800, true},
		{"45s", 45, true},
		{"1d", 86400, true},
		{"1d 3h", 97200, true},
		{"1h30m", 5400, true},
		{"2hours", 7200, true},
		{"45min", 2700, true},
		{"10 minutes", 600, true},
		{"PT2H", 7200, true},
		{"pt1h30m", 5400, true},
		{"T30M", 1800, true},
		{"90", 5400, true}, // bare numbers read as minutes
		{"  2h  ", 7200, true},
		{"", 0, false},
		{"0", 0, false},
		{"0m", 0, false},
		{"-5m", 300, true}, // sign is not part of the grammar; digits win
		{"soon", 0, false},
		{"h", 0, false},
		{"pt", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseDurationSeconds(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		if tc.ok {
			assert.Equal(t, tc.want, got, "input %q", tc.in)
		}
	}
}

func FuzzParseDurationSeconds(f *testing.F) {
	for _, seed := range []string{"2h", "1d 3h", "PT1H30M", "90", "", "soon", "999999999999999999999h"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, input string) {
		secs, ok := ParseDurationSeconds(input)
		if ok && secs <= 0 {
			t.Fatalf("accepted %q with non-positive seconds %d", input, secs)
		}
		if !ok && secs != 0 {
			t.Fatalf("rejected %q but returned seconds %d", input, secs)
		}
	})
}
