package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlSnapshot = `tasks:
  - title: Revise
    dueDate: "2025-03-12"
    points: 15
rewards:
  - title: Nap
    cost: 20
pointHistory:
  - date: "2025-03-08 08:00:00"
    amount: 25
    reason: Imported
`

// setupWorkspace points the commands at a fresh database in a temp dir.
func setupWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATABASE_URL", filepath.Join(dir, "garden.db"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("TIMEZONE", "UTC")
	configPath = ""
	return dir
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImportYAMLForNewUser(t *testing.T) {
	dir := setupWorkspace(t)
	path := writeFile(t, dir, "snapshot.yaml", yamlSnapshot)

	out, err := runCommand(t, "import", "--telegram-id", "77", path)
	require.NoError(t, err)
	assert.Equal(t, "imported 1 tasks, 1 rewards, 1 history entries\n", out)

	out, err = runCommand(t, "balance", "--telegram-id", "77")
	require.NoError(t, err)
	assert.Equal(t, "25 points, level 1 (25/100)\n", out)
}

func TestImportUnreadableRestoresDefaults(t *testing.T) {
	dir := setupWorkspace(t)
	path := writeFile(t, dir, "snapshot.json", "null")

	out, err := runCommand(t, "import", "--telegram-id", "78", path)
	require.NoError(t, err)
	assert.Contains(t, out, "defaults restored")

	out, err = runCommand(t, "balance", "--telegram-id", "78")
	require.NoError(t, err)
	assert.Equal(t, "120 points, level 2 (120/200)\n", out)
}

func TestImportMissingFile(t *testing.T) {
	dir := setupWorkspace(t)

	_, err := runCommand(t, "import", "--telegram-id", "79", filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestBalanceUnknownUser(t *testing.T) {
	setupWorkspace(t)

	_, err := runCommand(t, "balance", "--telegram-id", "80")
	assert.Error(t, err)
}
