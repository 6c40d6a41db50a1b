package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tourneyq/internal/batch"
)

// createTestStore creates a new file-backed store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// newTestQueue returns a queue over s with the tournament registry and no log output.
func newTestQueue(s *Store, opts ...batch.Option) *batch.Queue {
	base := []batch.Option{
		batch.WithRegistry(NewRegistry()),
		batch.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return batch.New(s, append(base, opts...)...)
}

// withSession runs fn inside a session and commits it.
func withSession(t *testing.T, s *Store, fn func(sess batch.Session)) {
	t.Helper()
	sess, err := s.OpenSession(context.Background())
	require.NoError(t, err)
	fn(sess)
	require.NoError(t, sess.Commit())
}

func seedPlayer(t *testing.T, s *Store, id, tag string) {
	t.Helper()
	_, err := s.db.Exec("INSERT INTO players (id, tag) VALUES (?, ?)", id, tag)
	require.NoError(t, err)
}

func seedTournament(t *testing.T, s *Store, id, name string) {
	t.Helper()
	_, err := s.db.Exec("INSERT INTO tournaments (id, name) VALUES (?, ?)", id, name)
	require.NoError(t, err)
}

func seedMatch(t *testing.T, s *Store, id, tournamentID, p1, p2 string) {
	t.Helper()
	_, err := s.db.Exec(
		"INSERT INTO matches (id, tournament_id, round, player1_id, player2_id) VALUES (?, ?, 1, ?, ?)",
		id, tournamentID, nullable(p1), nullable(p2),
	)
	require.NoError(t, err)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// playerRecord reads a player row straight from the database.
func playerRecord(t *testing.T, s *Store, id string) Row {
	t.Helper()
	row, found, err := s.Get(context.Background(), Players, id)
	require.NoError(t, err)
	require.True(t, found, "player %s not found", id)
	return row
}
