// Package output names and writes the per-device capture files.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

const TimestampLayout = "060102-150405"

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Namer hands out file paths that are unique for the lifetime of the Namer, even when two
// devices report the same hostname within the same second.
type Namer struct {
	Dir string
	Now func() time.Time

	mu   sync.Mutex
	used map[string]bool
}

func NewNamer(dir string) *Namer {
	return &Namer{Dir: dir, Now: time.Now, used: make(map[string]bool)}
}

func (n *Namer) stamp() string {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	return now().Format(TimestampLayout)
}

// Capture returns the path for a device's command output: <hostname>-<YYMMDD-HHMMSS>.txt.
func (n *Namer) Capture(hostname string) string {
	return n.reserve(Sanitize(hostname)+"-"+n.stamp(), ".txt")
}

// Fetch returns the path for a file pulled from host: <host>-<remote path>-<YYMMDD-HHMMSS>.
func (n *Namer) Fetch(host, remotePath string) string {
	return n.reserve(Sanitize(host)+"-"+Sanitize(remotePath)+"-"+n.stamp(), "")
}

func (n *Namer) reserve(base, ext string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.used == nil {
		n.used = make(map[string]bool)
	}
	name := base + ext
	for i := 2; n.used[name]; i++ {
		name = fmt.Sprintf("%s-%d%s", base, i, ext)
	}
	n.used[name] = true
	return filepath.Join(n.Dir, name)
}

// Sanitize makes s usable as a single path element.
func Sanitize(s string) string {
	s = unsafeChars.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_.")
	if s == "" {
		return "unnamed"
	}
	return s
}

// Writer appends command output to a capture file as it arrives.
type Writer struct {
	path string
	f    *os.File
}

func Create(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return &Writer{path: path, f: f}, nil
}

func (w *Writer) Path() string { return w.path }

// WriteOutput appends text exactly as received, so the file is the raw concatenation of every
// command's output.
func (w *Writer) WriteOutput(text string) error {
	if _, err := w.f.WriteString(text); err != nil {
		return fmt.Errorf("failed to write %s: %w", w.path, err)
	}
	return nil
}

func (w *Writer) Close() error {
	return w.f.Close()
}
