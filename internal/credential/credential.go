// Package credential supplies DSS credentials from the terminal, the
// environment, or a fixed value.
package credential

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"chainexpand/internal/dss"

	"golang.org/x/term"
)

// Source yields the credentials for one authentication call.
type Source interface {
	Credentials(ctx context.Context) (dss.Credentials, error)
}

// ErrUnavailable is returned by a source that has nothing to offer.
var ErrUnavailable = errors.New("credentials unavailable")

// Static always returns the same credentials.
type Static dss.Credentials

func (s Static) Credentials(context.Context) (dss.Credentials, error) {
	return dss.Credentials(s), nil
}

// Environment variable names read by Env.
const (
	EnvUsername = "DSS_USERNAME"
	EnvPassword = "DSS_PASSWORD"
)

// Env reads credentials from DSS_USERNAME and DSS_PASSWORD.
type Env struct{}

func (Env) Credentials(context.Context) (dss.Credentials, error) {
	u, p := os.Getenv(EnvUsername), os.Getenv(EnvPassword)
	if u == "" || p == "" {
		return dss.Credentials{}, fmt.Errorf("%w: %s and %s must both be set", ErrUnavailable, EnvUsername, EnvPassword)
	}
	return dss.Credentials{Username: u, Password: p}, nil
}

// Terminal prompts for a username (echoed) and a password (masked when In
// is a terminal).
type Terminal struct {
	In  *os.File
	Out io.Writer
}

// NewTerminal prompts on stdin/stderr.
func NewTerminal() *Terminal {
	return &Terminal{In: os.Stdin, Out: os.Stderr}
}

func (t *Terminal) Credentials(ctx context.Context) (dss.Credentials, error) {
	if err := ctx.Err(); err != nil {
		return dss.Credentials{}, err
	}
	r := bufio.NewReader(t.In)

	fmt.Fprint(t.Out, "Enter DSS Username:")
	username, err := readLine(r)
	if err != nil {
		return dss.Credentials{}, fmt.Errorf("reading username: %w", err)
	}

	fmt.Fprint(t.Out, "Enter DSS Password:")
	var password string
	if fd := int(t.In.Fd()); term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(t.Out)
		if err != nil {
			return dss.Credentials{}, fmt.Errorf("reading password: %w", err)
		}
		password = string(b)
	} else {
		// Piped input; nothing is echoed anyway.
		password, err = readLine(r)
		if err != nil {
			return dss.Credentials{}, fmt.Errorf("reading password: %w", err)
		}
	}

	if username == "" || password == "" {
		return dss.Credentials{}, fmt.Errorf("%w: empty username or password", ErrUnavailable)
	}
	return dss.Credentials{Username: username, Password: password}, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// FirstOf tries each source in order and returns the first credentials
// obtained. Errors other than ErrUnavailable stop the search.
func FirstOf(sources ...Source) Source {
	return chain(sources)
}

type chain []Source

func (c chain) Credentials(ctx context.Context) (dss.Credentials, error) {
	errs := make([]error, 0, len(c))
	for _, s := range c {
		creds, err := s.Credentials(ctx)
		if err == nil {
			return creds, nil
		}
		if !errors.Is(err, ErrUnavailable) {
			return dss.Credentials{}, err
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return dss.Credentials{}, ErrUnavailable
	}
	return dss.Credentials{}, errors.Join(errs...)
}
