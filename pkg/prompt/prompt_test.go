package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcherRecognisesPrompts(t *testing.T) {
	hosts := []string{"core-sw1", "R1", "edge.router-01", "a+b[c]"}
	for _, h := range hosts {
		t.Run(h, func(t *testing.T) {
			m, err := NewMatcher(h)
			require.NoError(t, err)

			assert.True(t, m.Matches(h+"(config-if)# "))
			assert.True(t, m.Matches(h+"# "))
			assert.True(t, m.Matches(h+"#"))
			assert.True(t, m.Matches(h+" #"))
			assert.True(t, m.Matches(h+"#show version"), "text after the prompt is ignored")
			assert.False(t, m.Matches("otherhost#"))
			assert.False(t, m.Matches(h+">"), "user exec prompt is not privileged")
			assert.False(t, m.Matches(" "+h+"#"), "prompt must start the line")
		})
	}
}

func TestMatcherEscapesRegexCharacters(t *testing.T) {
	m, err := NewMatcher("sw.1")
	require.NoError(t, err)
	assert.False(t, m.Matches("swX1#"))
}

func TestMatcherRejectsEmptyHostname(t *testing.T) {
	_, err := NewMatcher("  ")
	assert.Error(t, err)
}

func TestMatcherTruncatesLongHostnames(t *testing.T) {
	a, err := NewMatcher("distribution-switch-building-a")
	require.NoError(t, err)
	b, err := NewMatcher("distribution-switch-building-b")
	require.NoError(t, err)

	line := "distribution-switch-#"
	assert.Equal(t, "distribution-switch-", a.Prefix())
	assert.Equal(t, a.Prefix(), b.Prefix())
	assert.True(t, a.Matches(line))
	assert.True(t, b.Matches(line))
}

func TestMatchBufferScansEveryLine(t *testing.T) {
	m, err := NewMatcher("core-sw1")
	require.NoError(t, err)

	buffer := "show version\r\nCisco IOS Software, C2960\r\ncore-sw1#"
	assert.True(t, m.MatchBuffer(buffer))
	assert.True(t, m.MatchBuffer("core-sw1#\r\nmore output after"), "an earlier prompt line still counts")
	assert.False(t, m.MatchBuffer("show version\r\nCisco IOS Software\r\n"))
	assert.False(t, m.MatchBuffer(""))
}

func TestScannerMatchesAcrossChunks(t *testing.T) {
	m, err := NewMatcher("core-sw1")
	require.NoError(t, err)
	s := NewScanner(m)

	assert.False(t, s.Feed("show version\r\nCisco IOS"))
	assert.False(t, s.Feed(" Software\r\ncore-"))
	assert.True(t, s.Feed("sw1#"))
	assert.True(t, s.Matched())
	assert.True(t, s.Feed("anything"), "scanner stays matched")
}

func TestScannerAgreesWithFullRescan(t *testing.T) {
	m, err := NewMatcher("core-sw1")
	require.NoError(t, err)

	stream := "show run | inc aaa\r\naaa new-model\r\nnot-core-sw1#\r\ncore-sw1(config)#\r\n"
	for size := 1; size <= len(stream); size++ {
		s := NewScanner(m)
		var seen strings.Builder
		for i := 0; i < len(stream); i += size {
			end := min(i+size, len(stream))
			seen.WriteString(stream[i:end])
			assert.Equal(t, m.MatchBuffer(seen.String()), s.Feed(stream[i:end]), "chunk size %d at %d", size, i)
		}
	}
}
