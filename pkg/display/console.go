package display

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/offalexp/ceSSHar/pkg/models"
	"github.com/offalexp/ceSSHar/pkg/safety"
)

// ClockLayout renders wall-clock times on the console, e.g. 14:05:07 (24-03-09).
const ClockLayout = "15:04:05 (06-01-02)"

const bannerRule = " ********************************** "

// Console writes operator-facing messages. It is safe for concurrent use; each message is
// written in one piece. Quiet suppresses routine chatter but never failures.
type Console struct {
	Out   io.Writer
	Err   io.Writer
	Quiet bool

	mu      sync.Mutex
	info    lipgloss.Style
	success lipgloss.Style
	warn    lipgloss.Style
	fail    lipgloss.Style
	dim     lipgloss.Style
}

func NewConsole(out, errOut io.Writer, quiet bool) *Console {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	r := lipgloss.NewRenderer(out)
	return &Console{
		Out:     out,
		Err:     errOut,
		Quiet:   quiet,
		info:    r.NewStyle().Foreground(lipgloss.Color("39")),
		success: r.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		warn:    r.NewStyle().Foreground(lipgloss.Color("214")),
		fail:    r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		dim:     r.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

func (c *Console) write(w io.Writer, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(w, text)
}

func (c *Console) chatter(text string) {
	if c.Quiet {
		return
	}
	c.write(c.Out, text)
}

func (c *Console) Notice(msg string) {
	c.write(c.Err, c.warn.Render(msg))
}

func (c *Console) Running(hostname, command string) {
	c.chatter(fmt.Sprintf("%s: Running: %s", hostname, command))
}

// Output echoes captured command output; printing was explicitly requested so Quiet does not apply.
func (c *Console) Output(text string) {
	c.write(c.Out, text)
}

func (c *Console) Bailed(command string, timeout time.Duration) {
	c.write(c.Err, c.warn.Render(fmt.Sprintf("\n Command %s took %s to run, bailing!", command, timeout)))
}

func (c *Console) ConnectionFailed(err error) {
	var connErr *models.ConnectionError
	kind := models.FailureUnknown
	if errors.As(err, &connErr) {
		kind = connErr.Kind
	}
	var label string
	switch kind {
	case models.FailureAuthentication:
		label = "Authentication Error"
	case models.FailureProtocol:
		label = "SSH Error"
	case models.FailureNetwork:
		label = "Connection Failed"
	case models.FailureHostnameDiscovery:
		label = "Hostname Lookup Failed"
	default:
		label = "Unexpected error"
	}
	c.write(c.Err, c.fail.Render(fmt.Sprintf("%s: %v", label, err)))
}

func (c *Console) TryingBackup(address string) {
	c.write(c.Err, c.warn.Render(fmt.Sprintf("Trying backup credentials for %s", address)))
}

// HarmfulCommand reports a tripped safety rule. aborting selects the message for a run that stops.
func (c *Console) HarmfulCommand(v safety.Verdict, aborting bool) {
	var b strings.Builder
	b.WriteString("\n")
	if aborting {
		b.WriteString("Harmful Command found - Aborting!\n")
	} else {
		b.WriteString("Harmful Command found - Skipping!\n")
	}
	fmt.Fprintf(&b, "  %s\n", v.Reason)
	fmt.Fprintf(&b, "\n To force the use of dangerous things, use %s", safety.OverrideFlag)
	c.write(c.Err, c.fail.Render(b.String()))
}

func (c *Console) SafetyDisabled() {
	c.write(c.Err, c.warn.Render("\n--\n Do no Harm checking DISABLED! \n--\n"))
}

func (c *Console) Estimate(start, finish time.Time) {
	c.chatter(fmt.Sprintf(" Start Time: %s\n Estimated Completion Time: %s",
		start.Format(ClockLayout), finish.Format(ClockLayout)))
}

// Progress prints a completion milestone. A zero eta is omitted.
func (c *Console) Progress(percent int, eta time.Time) {
	text := fmt.Sprintf("\n  %d%% Complete", percent)
	if !eta.IsZero() {
		text += fmt.Sprintf("\n  Estimated Completion Time: %s", eta.Format(ClockLayout))
	}
	c.chatter(c.info.Render(text) + "\n")
}

func (c *Console) DeviceDone(address, outputFile string) {
	if outputFile != "" {
		c.chatter(c.success.Render(fmt.Sprintf("Switch %s done, output: %s", address, outputFile)))
		return
	}
	c.chatter(c.success.Render(fmt.Sprintf("Switch %s done", address)))
}

// Finished prints the closing banner with the files written and, when known, the finish time.
func (c *Console) Finished(files []string, finish time.Time, elapsed time.Duration) {
	var b strings.Builder
	b.WriteString("\n\n" + bannerRule + "\n")
	if len(files) > 0 {
		b.WriteString("  Output files: \n")
		for _, f := range files {
			fmt.Fprintf(&b, "   - %s\n", f)
		}
		b.WriteString(" ---------------------------------- \n")
	}
	b.WriteString(" Run FINISHED ! \n")
	if !finish.IsZero() {
		fmt.Fprintf(&b, " Finish Time: %s\n", finish.Format(ClockLayout))
	}
	fmt.Fprintf(&b, " Elapsed: %s\n", elapsed.Round(time.Millisecond))
	b.WriteString(bannerRule)
	c.write(c.Out, b.String())
}

func (c *Console) Dim(text string) {
	c.chatter(c.dim.Render(text))
}
