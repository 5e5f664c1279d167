package credentials

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/offalexp/ceSSHar/pkg/logger"
	"github.com/offalexp/ceSSHar/pkg/models"
)

// Resolver fills in credentials from, in order: explicit values, the credential file, a prompt.
type Resolver struct {
	AuthFile string
	// AuthFileExplicit makes a missing credential file an error instead of a silent skip.
	AuthFileExplicit bool
	Prompter         Prompter
	// Notices receives operator-facing messages, such as a withheld password.
	Notices func(msg string)
}

func NewResolver(authFile string, explicit bool, prompter Prompter) *Resolver {
	if authFile == "" {
		authFile = DefaultAuthFile
	}
	return &Resolver{AuthFile: authFile, AuthFileExplicit: explicit, Prompter: prompter}
}

func (r *Resolver) notice(format string, args ...interface{}) {
	if r.Notices != nil {
		r.Notices(fmt.Sprintf(format, args...))
	}
}

func (r *Resolver) Resolve(explicit models.Credentials) (models.Credentials, error) {
	l := logger.Get()
	creds := explicit
	if creds.IsComplete() {
		return creds, nil
	}

	fileCreds, err := LoadFile(r.AuthFile)
	switch {
	case err == nil:
		l.Debugf("Read credentials from %s", fileCreds.Path)
		if creds.Username == "" {
			creds.Username = fileCreds.Username
		}
		if creds.Password == "" {
			creds.Password = fileCreds.Password
		}
		if fileCreds.PasswordWithheld {
			r.notice("** Password not read from %s - file is %s readable **", fileCreds.Path, fileCreds.WithheldReason)
		}
	case errors.Is(err, fs.ErrNotExist) && !r.AuthFileExplicit:
		l.Debugf("No credential file at %s", r.AuthFile)
	default:
		return creds, err
	}

	if creds.Username == "" {
		if creds.Username, err = r.ask("Enter Username: ", false); err != nil {
			return creds, err
		}
	}
	if creds.Password == "" {
		if creds.Password, err = r.ask("Enter Password: ", true); err != nil {
			return creds, err
		}
	}
	return creds, nil
}

// Secret returns value when set, otherwise prompts for it without echo.
func (r *Resolver) Secret(value, label string) (string, error) {
	if value != "" {
		return value, nil
	}
	return r.ask(label, true)
}

func (r *Resolver) ask(label string, secret bool) (string, error) {
	if r.Prompter == nil {
		return "", fmt.Errorf("no value for %q and no prompt available", label)
	}
	if secret {
		return r.Prompter.PromptSecret(label)
	}
	return r.Prompter.Prompt(label)
}
