// Package credentials reads the per-user credential file and falls back to interactive prompts.
package credentials

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"

	"github.com/offalexp/ceSSHar/pkg/logger"
)

const DefaultAuthFile = "~/.cesshar"

var ErrInsecurePermissions = errors.New("credential file is readable by group or others")

// FileCredentials is what a credential file yielded. Password is empty when PasswordWithheld is set.
type FileCredentials struct {
	Path             string
	Username         string
	Password         string
	PasswordWithheld bool
	WithheldReason   string
}

// LoadFile parses "key: value" lines. Only the username and password keys are recognised, and the
// value is everything after the first colon. The password is never returned from a file that is
// group or world readable.
func LoadFile(path string) (*FileCredentials, error) {
	l := logger.Get()
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand %s: %w", path, err)
	}

	info, err := os.Stat(expanded)
	if err != nil {
		return nil, fmt.Errorf("cannot read credential file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("credential file %s is not a regular file", expanded)
	}

	f, err := os.Open(expanded)
	if err != nil {
		return nil, fmt.Errorf("cannot read credential file: %w", err)
	}
	defer f.Close()

	creds := &FileCredentials{Path: expanded}
	if reason := insecureReason(info.Mode()); reason != "" {
		creds.PasswordWithheld = true
		creds.WithheldReason = reason
		l.Warnf("Password not read from %s - file is %s readable", expanded, reason)
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		switch key {
		case "username":
			creds.Username = value
		case "password":
			if !creds.PasswordWithheld {
				creds.Password = value
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read credential file %s: %w", expanded, err)
	}
	return creds, nil
}

func insecureReason(mode fs.FileMode) string {
	perm := mode.Perm()
	switch {
	case perm&0o040 != 0:
		return "GROUP"
	case perm&0o004 != 0:
		return "WORLD"
	default:
		return ""
	}
}

// CheckPermissions returns ErrInsecurePermissions for a file a password must not be read from.
func CheckPermissions(path string) error {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		return err
	}
	if reason := insecureReason(info.Mode()); reason != "" {
		return fmt.Errorf("%s is %s readable: %w", expanded, reason, ErrInsecurePermissions)
	}
	return nil
}
