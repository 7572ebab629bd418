package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// FileStore persists a session between runs of a CLI.
type FileStore struct {
	Path string
}

type storedSession struct {
	Profile      Profile   `json:"profile"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
}

// Load restores the saved session into s. A missing file leaves s inactive.
func (fs FileStore) Load(s *Session) error {
	data, err := os.ReadFile(fs.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "reading session file")
	}
	var stored storedSession
	if err := json.Unmarshal(data, &stored); err != nil {
		return errors.Wrap(err, "decoding session file")
	}
	if stored.AccessToken == "" {
		return nil
	}
	s.Begin(stored.Profile, &oauth2.Token{
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       stored.Expiry,
	})
	return nil
}

// Save writes the session, or removes the file when the session is inactive.
func (fs FileStore) Save(s *Session) error {
	tok := s.Token()
	p, ok := s.Profile()
	if tok == nil || !ok {
		return fs.Clear()
	}
	data, err := json.MarshalIndent(storedSession{
		Profile:      p,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding session")
	}
	if err := os.MkdirAll(filepath.Dir(fs.Path), 0o700); err != nil {
		return errors.Wrap(err, "creating session dir")
	}
	return errors.Wrap(os.WriteFile(fs.Path, data, 0o600), "writing session file")
}

func (fs FileStore) Clear() error {
	if err := os.Remove(fs.Path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing session file")
	}
	return nil
}
