package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEnvName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"staging", "staging"},
		{"STAGING", "staging"},
		{"QA 1", "qa-1"},
		{"  qa   2  ", "qa-2"},
		{"perf_test", "perf_test"},
		{"demo!@#env", "demoenv"},
	}
	for _, tc := range cases {
		got, err := NormalizeEnvName(tc.in)
		assert.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestNormalizeEnvNameRejects(t *testing.T) {
	for _, in := range []string{"", "   ", "!!!", strings.Repeat("a", 41)} {
		_, err := NormalizeEnvName(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestHumanizeSeconds(t *testing.T) {
	assert.Equal(t, "0s", HumanizeSeconds(0))
	assert.Equal(t, "0s", HumanizeSeconds(-30))
	assert.Equal(t, "45s", HumanizeSeconds(45))
	assert.Equal(t, "30m", HumanizeSeconds(1800))
	assert.Equal(t, "2h", HumanizeSeconds(7200))
	assert.Equal(t, "1h 30m", HumanizeSeconds(5400))
	assert.Equal(t, "1d 3h", HumanizeSeconds(97200))
}

func TestParseUserRef(t *testing.T) {
	assert.Equal(t, "U123ABC", ParseUserRef("<@U123ABC>"))
	assert.Equal(t, "U123ABC", ParseUserRef("<@U123ABC|mona>"))
	assert.Equal(t, "U123ABC", ParseUserRef("@U123ABC"))
	assert.Equal(t, "U123ABC", ParseUserRef("U123ABC"))
	assert.Equal(t, "", ParseUserRef("not a user"))
}

func TestParseChannelRef(t *testing.T) {
	assert.Equal(t, "C42", ParseChannelRef("<#C42|deploys>"))
	assert.Equal(t, "C42", ParseChannelRef("<#C42>"))
	assert.Equal(t, "", ParseChannelRef("#general"))
}
