// Package display holds the console presentation: styled messages and the spinner.
package display

import (
	"io"
	"time"

	"github.com/briandowns/spinner"

	"github.com/offalexp/ceSSHar/pkg/logger"
)

// NewSpinner creates and starts a spinner on w. A quiet console gets no spinner; Stop on the
// returned value is always safe.
func NewSpinner(w io.Writer, message string, quiet bool) *spinner.Spinner {
	l := logger.Get()
	l.Debugf("Creating spinner: %s", message)

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Prefix = message + " "
	_ = s.Color("green")
	if !quiet {
		s.Start()
	}
	return s
}
