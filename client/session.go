package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"picfeed/models"
)

// Session is the logged-in state of the CLI. It is a plain value: logging in
// produces a new Session, logging out discards it.
type Session struct {
	Token string          `json:"token"`
	User  models.Identity `json:"user"`
}

func (s Session) LoggedIn() bool {
	return s.Token != ""
}

// SessionPath is $PICFEED_HOME/session.json, or ~/.picfeed/session.json.
func SessionPath() (string, error) {
	if dir := os.Getenv("PICFEED_HOME"); dir != "" {
		return filepath.Join(dir, "session.json"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("find home directory: %w", err)
	}
	return filepath.Join(home, ".picfeed", "session.json"), nil
}

// LoadSession reads a saved session. A missing file is an empty session.
func LoadSession(path string) (Session, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Session{}, nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("read session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		// A corrupt file is treated like no session at all.
		return Session{}, nil
	}
	return s, nil
}

func SaveSession(path string, s Session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

func ClearSession(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
