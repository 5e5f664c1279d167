// Package prompt recognises the privileged-exec prompt of an IOS-style device in streamed shell output.
package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

// HostnamePrefixLength is how much of the hostname is used for matching. IOS truncates the hostname
// shown in its prompt to this many characters, so longer names only match on the prefix.
const HostnamePrefixLength = 20

// Matcher matches lines of the form "host#", "host #" or "host(config-if)#". Anything after the
// '#' is ignored.
type Matcher struct {
	prefix string
	re     *regexp.Regexp
}

func NewMatcher(hostname string) (*Matcher, error) {
	hostname = strings.TrimSpace(hostname)
	if hostname == "" {
		return nil, fmt.Errorf("cannot build prompt matcher from an empty hostname")
	}
	prefix := Truncate(hostname)
	re, err := regexp.Compile(`^` + regexp.QuoteMeta(prefix) + `(?:\([^)\r\n]*\))? ?#`)
	if err != nil {
		return nil, fmt.Errorf("failed to compile prompt pattern for %q: %w", prefix, err)
	}
	return &Matcher{prefix: prefix, re: re}, nil
}

// Truncate cuts a hostname down to HostnamePrefixLength characters.
func Truncate(hostname string) string {
	runes := []rune(hostname)
	if len(runes) > HostnamePrefixLength {
		return string(runes[:HostnamePrefixLength])
	}
	return hostname
}

func (m *Matcher) Prefix() string {
	return m.prefix
}

func (m *Matcher) String() string {
	return m.re.String()
}

func (m *Matcher) Matches(line string) bool {
	return m.re.MatchString(line)
}

// MatchBuffer reports whether any line of buffer is a prompt. Every line is evaluated and the last
// evaluated result is kept, which for a boolean scan means "any line matched".
func (m *Matcher) MatchBuffer(buffer string) bool {
	found := false
	for _, line := range SplitLines(buffer) {
		if m.Matches(line) {
			found = true
		}
	}
	return found
}

// SplitLines splits on CR and LF, dropping empty lines. Devices terminate lines with CRLF and
// sometimes emit bare CRs before redrawing the prompt.
func SplitLines(buffer string) []string {
	return strings.FieldsFunc(buffer, func(r rune) bool {
		return r == '\n' || r == '\r'
	})
}
