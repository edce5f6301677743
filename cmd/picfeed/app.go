package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"picfeed/client"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	accessKey   = "access"
	protected   = "protected"
	publicOnly  = "public-only"
	defaultHost = "http://localhost:8080"
)

var errAlreadyLoggedIn = errors.New("already logged in")

type app struct {
	server      string
	sessionPath string

	in  *bufio.Reader
	out io.Writer
	// tty is the stdin descriptor when it is a terminal, otherwise -1.
	tty int

	api *client.Client
}

func newApp(stdin io.Reader, stdout io.Writer) *app {
	server := os.Getenv("PICFEED_SERVER")
	if server == "" {
		server = defaultHost
	}
	tty := -1
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		tty = int(f.Fd())
	}
	return &app{
		server: server,
		in:     bufio.NewReader(stdin),
		out:    stdout,
		tty:    tty,
	}
}

func (a *app) session() client.Session {
	return a.api.Session()
}

// setSession swaps in a new session value and persists it.
func (a *app) setSession(s client.Session) error {
	if err := client.SaveSession(a.sessionPath, s); err != nil {
		return err
	}
	a.api = a.api.WithSession(s)
	return nil
}

// loadSession reads the saved session and, when validate is set, asks the
// server whether it is still good. A rejected token is dropped.
func (a *app) loadSession(ctx context.Context, validate bool) error {
	if a.sessionPath == "" {
		path, err := client.SessionPath()
		if err != nil {
			return err
		}
		a.sessionPath = path
	}

	s, err := client.LoadSession(a.sessionPath)
	if err != nil {
		return err
	}
	a.api = client.New(a.server, s)
	if !s.LoggedIn() || !validate {
		return nil
	}

	identity, err := a.api.Me(ctx)
	if client.IsUnauthorized(err) {
		a.api = a.api.WithSession(client.Session{})
		return client.ClearSession(a.sessionPath)
	}
	if err != nil {
		return err
	}

	s.User = identity
	a.api = a.api.WithSession(s)
	return nil
}

// guard enforces the command's access annotation. Protected commands run an
// interactive login first when there is no session and then carry on.
func (a *app) guard(cmd *cobra.Command) error {
	switch cmd.Annotations[accessKey] {
	case protected:
		if a.session().LoggedIn() {
			return nil
		}
		fmt.Fprintln(a.out, "You need to log in first.")
		return a.interactiveLogin(cmd.Context(), "", "")
	case publicOnly:
		if s := a.session(); s.LoggedIn() {
			return fmt.Errorf("%w as @%s; run 'picfeed logout' first", errAlreadyLoggedIn, s.User.Username)
		}
	}
	return nil
}

func (a *app) interactiveLogin(ctx context.Context, email, password string) error {
	var err error
	if email, err = a.ask("Email", email); err != nil {
		return err
	}
	if password, err = a.askSecret("Password", password); err != nil {
		return err
	}

	s, err := a.api.Login(ctx, email, password)
	if err != nil {
		return err
	}
	if err := a.setSession(s); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as @%s\n", s.User.Username)
	return nil
}

// ask returns value unchanged when set, otherwise prompts for it on stdin.
func (a *app) ask(label, value string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Fprintf(a.out, "%s: ", label)
	line, err := a.in.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return "", fmt.Errorf("%s is required", strings.ToLower(label))
	}
	return line, nil
}

// askSecret is ask without echo when stdin is a terminal.
func (a *app) askSecret(label, value string) (string, error) {
	if value != "" || a.tty < 0 {
		return a.ask(label, value)
	}
	fmt.Fprintf(a.out, "%s: ", label)
	b, err := term.ReadPassword(a.tty)
	fmt.Fprintln(a.out)
	if err != nil {
		return "", err
	}
	secret := strings.TrimSpace(string(b))
	if secret == "" {
		return "", fmt.Errorf("%s is required", strings.ToLower(label))
	}
	return secret, nil
}
