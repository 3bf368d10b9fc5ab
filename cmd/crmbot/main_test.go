package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath = ""
	cmd := rootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "crmbot dev")
}

func TestConfigCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
telegram:
  token: "1:x"
crm:
  base_url: "http://localhost:8080"
  secret: "s"
`), 0o600))

	out, err := execute(t, "config", "check", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "journal:  disabled")
	assert.Contains(t, out, "run mode: longpoll")
}

func TestConfigCheckReportsErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("telegram:\n  token: \"1:x\"\n"), 0o600))

	_, err := execute(t, "config", "check", "-c", path)
	require.ErrorContains(t, err, "crm.base_url")
}

func TestMigrateRequiresDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
telegram:
  token: "1:x"
crm:
  base_url: "http://localhost:8080"
  secret: "s"
`), 0o600))

	_, err := execute(t, "migrate", "-c", path)
	require.ErrorContains(t, err, "journal is disabled")
}
