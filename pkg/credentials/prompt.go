package credentials

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var ErrNotTerminal = errors.New("stdin is not a terminal")

type Prompter interface {
	Prompt(label string) (string, error)
	PromptSecret(label string) (string, error)
}

// TerminalPrompter asks on Out and reads from In. Secrets are read without echo.
type TerminalPrompter struct {
	In     *os.File
	Out    io.Writer
	reader *bufio.Reader
}

func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{In: os.Stdin, Out: os.Stderr}
}

func (p *TerminalPrompter) Prompt(label string) (string, error) {
	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}
	fmt.Fprint(p.Out, label)
	line, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read %s: %w", strings.TrimSpace(label), err)
	}
	return strings.TrimSpace(line), nil
}

func (p *TerminalPrompter) PromptSecret(label string) (string, error) {
	fd := int(p.In.Fd())
	if !term.IsTerminal(fd) {
		return "", ErrNotTerminal
	}
	fmt.Fprint(p.Out, label)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(p.Out)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", strings.TrimSpace(label), err)
	}
	return string(secret), nil
}
