package prompt

import "strings"

// Scanner feeds streamed chunks through a Matcher one line at a time. Completed lines that did not
// match are discarded, so only the trailing partial line is rescanned when the next chunk arrives.
type Scanner struct {
	matcher *Matcher
	tail    strings.Builder
	matched bool
}

func NewScanner(m *Matcher) *Scanner {
	return &Scanner{matcher: m}
}

// Feed appends chunk and reports whether a prompt line has been seen so far.
func (s *Scanner) Feed(chunk string) bool {
	if s.matched {
		return true
	}
	s.tail.WriteString(chunk)
	pending := s.tail.String()

	// everything up to the last line break is complete
	cut := strings.LastIndexAny(pending, "\r\n")
	complete, rest := "", pending
	if cut >= 0 {
		complete, rest = pending[:cut], pending[cut+1:]
	}
	if complete != "" && s.matcher.MatchBuffer(complete) {
		s.matched = true
		return true
	}

	s.tail.Reset()
	s.tail.WriteString(rest)
	// a prompt has no line ending after it, so the partial line must be checked too
	if rest != "" && s.matcher.Matches(rest) {
		s.matched = true
	}
	return s.matched
}

func (s *Scanner) Matched() bool {
	return s.matched
}
