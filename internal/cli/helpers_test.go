package cli

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/spf13/cobra"
)

var fixedNow = time.Date(2026, 10, 16, 19, 0, 0, 0, time.UTC)

// newTestOptions returns text-format options over a fresh database with a frozen queue clock.
func newTestOptions(t *testing.T) (*RootOptions, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	return &RootOptions{
		Format:   "text",
		Database: dbPath,
		Now:      func() time.Time { return fixedNow },
	}, dbPath
}

// execute runs cmd with args and returns what it wrote to stdout and stderr.
func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}
