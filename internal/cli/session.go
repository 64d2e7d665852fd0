package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Session struct {
	AccessToken string    `json:"access_token"`
	Username    string    `json:"username"`
	PlayerID    int64     `json:"player_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the token has passed its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Dir resolves the client state directory, creating it when missing.
// An empty home falls back to ~/.realm.
func Dir(home string) (string, error) {
	dir := strings.TrimSpace(home)
	if dir == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(userHome, ".realm")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

func sessionPath(dir string) string {
	return filepath.Join(dir, "session.json")
}

func SaveSession(dir string, s Session) error {
	body, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(sessionPath(dir), body, 0o600)
}

func LoadSession(dir string) (Session, error) {
	body, err := os.ReadFile(sessionPath(dir))
	if err != nil {
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal(body, &s); err != nil {
		return Session{}, err
	}
	if strings.TrimSpace(s.AccessToken) == "" {
		return Session{}, fmt.Errorf("no access token found in session")
	}
	if s.Expired(time.Now()) {
		return Session{}, fmt.Errorf("session expired at %s", s.ExpiresAt.Format(time.RFC3339))
	}
	return s, nil
}

func ClearSession(dir string) error {
	path := sessionPath(dir)
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return os.Remove(path)
}
