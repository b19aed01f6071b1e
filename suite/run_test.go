package suite

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-substrate/line-canon/lcverify"
)

// upperRunner stands in for an external command: it upper-cases its input
// bytes, or fails when argv[0] is "fail".
type upperRunner struct {
	calls []string
}

func (u *upperRunner) Run(_ context.Context, argv []string, _ map[string]string, stdin io.Reader, stdout io.Writer) error {
	u.calls = append(u.calls, argv[0])
	if argv[0] == "fail" {
		return errors.New("exit status 3")
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return err
	}
	_, err = stdout.Write(bytes.ToUpper(b))
	return err
}

func fixedNow() time.Time {
	return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
}

func runSuite(t *testing.T, s *Suite) *Evidence {
	t.Helper()
	e, err := Run(context.Background(), s, RunOptions{
		Runner: &upperRunner{},
		Now:    fixedNow,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return e
}

func TestRunRecordsOutcomes(t *testing.T) {
	s := validSuite()
	s.Cases = append(s.Cases, CaseSpec{Name: "broken", Command: []string{"fail"}, Expected: []string{"X"}})

	e := runSuite(t, s)
	require.Len(t, e.Cases, 3)
	assert.False(t, e.Passed)
	assert.Equal(t, "2026-01-02T03:04:05Z", e.GeneratedAtUTC)
	assert.Equal(t, "line-canon", e.Orchestrator)

	assert.Equal(t, lcverify.Success.String(), e.Cases[0].State)
	assert.Equal(t, -1, e.Cases[0].OffendingIndex)

	assert.Equal(t, lcverify.Failure.String(), e.Cases[1].State)
	assert.Equal(t, 1, e.Cases[1].OffendingIndex)

	assert.Equal(t, lcverify.Error.String(), e.Cases[2].State)
	assert.Contains(t, e.Cases[2].Message, "exit status 3")

	require.NoError(t, ValidateEvidence(e, s))
}

func TestRunIsDeterministic(t *testing.T) {
	a := runSuite(t, validSuite())
	b := runSuite(t, validSuite())
	assert.Equal(t, a.AggregateSHA256, b.AggregateSHA256)
	assert.Equal(t, a.SuiteSHA256, b.SuiteSHA256)
	assert.Len(t, a.AggregateSHA256, 64)
}

func TestRunRejectsInvalidSuite(t *testing.T) {
	s := validSuite()
	s.Version = ""
	_, err := Run(context.Background(), s, RunOptions{Runner: &upperRunner{}})
	require.Error(t, err)
}

func TestRunLogs(t *testing.T) {
	var buf bytes.Buffer
	s := validSuite()
	_, err := Run(context.Background(), s, RunOptions{
		Runner: &upperRunner{},
		Logger: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
	})
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "suite started")
	assert.Contains(t, out, "case passed")
	assert.Contains(t, out, "case failed")
	assert.True(t, strings.Contains(out, "suite=sample"))
}

func TestEvidenceFileRoundTrip(t *testing.T) {
	s := validSuite()
	e := runSuite(t, s)
	path := filepath.Join(t.TempDir(), "evidence.json")
	require.NoError(t, WriteEvidence(path, e))

	got, err := LoadEvidence(path)
	require.NoError(t, err)
	assert.Equal(t, e, got)
	require.NoError(t, ValidateEvidence(got, s))
}
