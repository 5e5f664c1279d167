package testutil

import (
	"bufio"
	"io"
	"strings"
	"sync"
	"time"
)

// FakeIOS answers shell lines the way a Cisco IOS device would, enough to drive a session through
// bootstrap and a handful of commands.
type FakeIOS struct {
	Hostname     string
	Banner       string
	EnableSecret string
	// Outputs maps a command to the text printed between its echo and the next prompt.
	Outputs map[string]string
	// Hang lists commands that print their output but never return to the prompt.
	Hang map[string]bool
	// HideHostname makes "show run | include hostname" return nothing.
	HideHostname bool
	// Delays holds how long the device thinks before answering a line, the enable secret included.
	Delays map[string]time.Duration

	mu             sync.Mutex
	enabled        bool
	awaitingSecret bool
	started        bool
	received       []string
}

func (d *FakeIOS) init() {
	if !d.started {
		d.started = true
		d.enabled = d.EnableSecret == ""
	}
}

func (d *FakeIOS) prompt() string {
	if d.enabled {
		return d.Hostname + "#"
	}
	return d.Hostname + ">"
}

// Greeting is what the device prints when the shell opens.
func (d *FakeIOS) Greeting() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.init()
	return d.Banner + "\r\n\r\n" + d.prompt()
}

// Received returns every line the device was sent, secrets included.
func (d *FakeIOS) Received() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string{}, d.received...)
}

func (d *FakeIOS) Handle(line string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.init()
	line = strings.TrimRight(line, "\r")
	d.received = append(d.received, line)

	if d.awaitingSecret {
		d.awaitingSecret = false
		if line == d.EnableSecret {
			d.enabled = true
			return "\r\n" + d.prompt()
		}
		return "\r\n% Access denied\r\n\r\n" + d.prompt()
	}

	echo := line + "\r\n"
	switch {
	case line == "enable" && !d.enabled:
		d.awaitingSecret = true
		return echo + "Password: "
	case line == "terminal length 0":
		return echo + d.prompt()
	case strings.HasPrefix(line, "show run") && strings.HasSuffix(line, "hostname"):
		if d.HideHostname {
			return echo + d.prompt()
		}
		return echo + "hostname " + d.Hostname + "\r\n" + d.prompt()
	case d.Hang[line]:
		return echo + d.Outputs[line]
	}
	if out, ok := d.Outputs[line]; ok {
		return echo + out + "\r\n" + d.prompt()
	}
	return echo + "                ^\r\n% Invalid input detected at '^' marker.\r\n\r\n" + d.prompt()
}

// Serve writes the greeting and answers every line read from in until in is exhausted.
func (d *FakeIOS) Serve(in io.Reader, out io.Writer) error {
	if _, err := io.WriteString(out, d.Greeting()); err != nil {
		return err
	}
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		if delay := d.Delays[strings.TrimRight(line, "\r")]; delay > 0 {
			time.Sleep(delay)
		}
		if _, err := io.WriteString(out, d.Handle(line)); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// PipeDevice connects d to a pair of in-memory pipes and returns the shell side of them.
func PipeDevice(d *FakeIOS) (stdin io.WriteCloser, stdout io.Reader) {
	deviceIn, shellIn := io.Pipe()
	shellOut, deviceOut := io.Pipe()
	go func() {
		err := d.Serve(deviceIn, deviceOut)
		_ = deviceOut.CloseWithError(err)
	}()
	return shellIn, shellOut
}
