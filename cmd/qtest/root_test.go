package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"deedles.dev/strq/internal/console"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func newConsole(out *bytes.Buffer) *console.Console {
	return console.New(nil, out, console.Options{ErrorLimit: 3, Length: 16, Seed: 1})
}

func TestRunStdin(t *testing.T) {
	var out bytes.Buffer
	cmd := new(cobra.Command)
	cmd.SetIn(strings.NewReader("new\nit b\nit a\nsort\nrh a\n"))

	require.NoError(t, run(newConsole(&out), cmd, nil))

	cmd.SetIn(strings.NewReader("new\nit a\nrh b\n"))
	require.ErrorContains(t, run(newConsole(&out), cmd, nil), "1 errors reported")
}

func TestRunScripts(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.cmd")
	second := filepath.Join(dir, "second.cmd")
	require.NoError(t, os.WriteFile(first, []byte("new\nih x 3\n"), 0o600))
	require.NoError(t, os.WriteFile(second, []byte("size\nreverse\nrh x\n"), 0o600))

	var out bytes.Buffer
	require.NoError(t, run(newConsole(&out), new(cobra.Command), []string{first, second}))
	require.Contains(t, out.String(), "Queue size = 3")

	err := run(newConsole(&out), new(cobra.Command), []string{filepath.Join(dir, "missing.cmd")})
	require.Error(t, err)
}

func TestSetupLogger(t *testing.T) {
	logger, err := setupLogger("debug")
	require.NoError(t, err)
	require.NotNil(t, logger)

	_, err = setupLogger("loud")
	require.Error(t, err)
}
