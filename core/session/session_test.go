package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestSession_Lifecycle(t *testing.T) {
	s := New()
	assert.False(t, s.Active())
	assert.Nil(t, s.Token())

	var ended int
	s.OnEnd(func() { ended++ })

	s.End() // inactive: hooks do not run
	assert.Equal(t, 0, ended)

	s.Begin(Profile{ID: 3, Username: "teacher", Roles: []string{"teacher:"}}, &oauth2.Token{AccessToken: "a", RefreshToken: "r"})
	assert.True(t, s.Active())
	assert.True(t, s.HasAnyRole("admin:super", "teacher:"))
	assert.False(t, s.HasAnyRole("student:"))

	tok := s.Token()
	tok.AccessToken = "mutated"
	assert.Equal(t, "a", s.Token().AccessToken, "Token() must return a copy")

	exp := time.Now().Add(time.Minute)
	require.True(t, s.SetAccessToken("b", exp))
	assert.Equal(t, "b", s.Token().AccessToken)
	assert.Equal(t, "r", s.Token().RefreshToken)

	s.End()
	assert.False(t, s.Active())
	_, ok := s.Profile()
	assert.False(t, ok)
	assert.Equal(t, 1, ended)
	assert.False(t, s.SetAccessToken("c", exp))
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	fs := FileStore{Path: path}

	s := New()
	require.NoError(t, fs.Load(s), "missing file is not an error")
	assert.False(t, s.Active())

	exp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	s.Begin(Profile{ID: 1, Username: "t"}, &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: exp})
	require.NoError(t, fs.Save(s))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	restored := New()
	require.NoError(t, fs.Load(restored))
	assert.True(t, restored.Active())
	p, _ := restored.Profile()
	assert.Equal(t, "t", p.Username)
	assert.Equal(t, "r", restored.Token().RefreshToken)
	assert.True(t, exp.Equal(restored.Token().Expiry))

	s.End()
	require.NoError(t, fs.Save(s))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
