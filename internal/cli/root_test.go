package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandlight/sacnd/internal/store"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sacnd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

// TestRoot_RejectsUnknownFormat tests the global format flag guard.
func TestRoot_RejectsUnknownFormat(t *testing.T) {
	_, err := execute(t, "--format", "xml", "checkconfig", "whatever.yaml")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

// TestCheckConfig_Text tests the human-readable settings dump.
func TestCheckConfig_Text(t *testing.T) {
	path := writeConfig(t, "universe: 7\nmax_sources: 3\n")

	out, err := execute(t, "checkconfig", path)

	require.NoError(t, err)
	assert.Contains(t, out, "Configuration OK")
	assert.Contains(t, out, "Universe: 7")
	assert.Contains(t, out, "Max sources: 3")
	assert.Contains(t, out, "Data loss timeout: 2.5s")
	assert.Contains(t, out, "Device: (log only)")
}

// TestCheckConfig_JSON tests the machine-readable settings dump.
func TestCheckConfig_JSON(t *testing.T) {
	path := writeConfig(t, "universe: 7\noutput:\n  device: /dev/spidev0.0\n")

	out, err := execute(t, "--format", "json", "checkconfig", path)

	require.NoError(t, err)
	var resp struct {
		Status string          `json:"status"`
		Data   effectiveConfig `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, uint16(7), resp.Data.Universe)
	assert.Equal(t, 8, resp.Data.MaxSources)
	assert.Equal(t, "2.5s", resp.Data.DataLossTimeout)
	assert.Equal(t, "/dev/spidev0.0", resp.Data.Device)
}

// TestCheckConfig_InvalidFileExitCode tests the command-error exit code
// on a broken config.
func TestCheckConfig_InvalidFileExitCode(t *testing.T) {
	path := writeConfig(t, "universe: 0\n")

	_, err := execute(t, "checkconfig", path)

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

// TestHistory_ListsSeededEvents tests the history listing against a
// database seeded the way a running receiver writes it.
func TestHistory_ListsSeededEvents(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	at := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	require.NoError(t, st.Record(context.Background(), store.SourceEvent{
		At:       at,
		Universe: 1,
		Kind:     "source_added",
		CID:      "11111111-1111-1111-1111-111111111111",
		Priority: 100,
		Winning:  100,
		Sources:  1,
	}))
	require.NoError(t, st.Close())

	t.Run("text", func(t *testing.T) {
		out, err := execute(t, "history", "--db", dbPath)

		require.NoError(t, err)
		assert.Contains(t, out, "SEQ")
		assert.Contains(t, out, "source_added")
		assert.Contains(t, out, "11111111-1111-1111-1111-111111111111")
	})

	t.Run("json", func(t *testing.T) {
		out, err := execute(t, "--format", "json", "history", "--db", dbPath)

		require.NoError(t, err)
		var resp struct {
			Status string         `json:"status"`
			Data   []historyEntry `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		require.Len(t, resp.Data, 1)
		assert.Equal(t, "source_added", resp.Data[0].Kind)
		assert.Equal(t, uint8(100), resp.Data[0].Winning)
	})
}

// TestHistory_MissingDatabase tests the exit code when the database
// path does not exist.
func TestHistory_MissingDatabase(t *testing.T) {
	_, err := execute(t, "history", "--db", filepath.Join(t.TempDir(), "absent.db"))

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

// TestExitError_Codes tests exit code extraction.
func TestExitError_Codes(t *testing.T) {
	inner := errors.New("boom")
	err := WrapExitError(ExitCommandError, "context", inner)

	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "context: boom", err.Error())
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}
