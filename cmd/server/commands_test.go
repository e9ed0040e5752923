package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanjeevkumarraob/ipc-search-service/internal/auth"
	"github.com/sanjeevkumarraob/ipc-search-service/internal/search"
)

const testCorpusJSON = `[
	{"Section": 302, "section_title": "Punishment for murder", "section_desc": "Whoever commits murder shall be punished."},
	{"Section": "379", "section_title": "Punishment for theft", "section_desc": "Whoever commits theft shall be punished."}
]`

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ipc_data.json"), []byte(testCorpusJSON), 0o644))
	return dir
}

func TestSearchCommand(t *testing.T) {
	dir := writeCorpus(t)
	t.Setenv("EMBEDDING_PROVIDER", "local")

	t.Run("json", func(t *testing.T) {
		out, err := runCLI(t, "search", "--base-dir", dir, "--log-level", "error", "--json", "section", "302")
		require.NoError(t, err)

		var matches []search.Match
		require.NoError(t, json.Unmarshal([]byte(out), &matches), out)
		require.Len(t, matches, 1)
		assert.Equal(t, "302", matches[0].SectionID)
		assert.Equal(t, search.MatchExact, matches[0].Kind)
	})

	t.Run("table", func(t *testing.T) {
		out, err := runCLI(t, "search", "--base-dir", dir, "--log-level", "error", "379")
		require.NoError(t, err)
		assert.Contains(t, out, "steps: exact=found")
		assert.Contains(t, out, "Punishment for theft")
	})

	t.Run("no match", func(t *testing.T) {
		out, err := runCLI(t, "search", "--base-dir", dir, "--log-level", "error", "9999")
		require.NoError(t, err)
		assert.Contains(t, out, "no matching section")
	})

	t.Run("requires a query", func(t *testing.T) {
		_, err := runCLI(t, "search", "--base-dir", dir)
		assert.Error(t, err)
	})
}

func TestIndexCommand(t *testing.T) {
	dir := writeCorpus(t)
	t.Setenv("EMBEDDING_PROVIDER", "local")
	t.Setenv("EMBEDDING_DIMS", "64")

	out, err := runCLI(t, "index", "--base-dir", dir, "--log-level", "error")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "index computed: 2 vectors of 64 dims"), out)

	_, err = os.Stat(filepath.Join(dir, "ipc_embeddings.bin"))
	require.NoError(t, err)

	out, err = runCLI(t, "index", "--base-dir", dir, "--log-level", "error")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "index cache: 2 vectors"), out)

	out, err = runCLI(t, "index", "--base-dir", dir, "--log-level", "error", "--force")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "index computed:"), out)
}

func TestIndexCommandMissingCorpus(t *testing.T) {
	_, err := runCLI(t, "index", "--base-dir", t.TempDir(), "--log-level", "error")
	assert.Error(t, err)
}

func TestTokenCommand(t *testing.T) {
	t.Run("mints a valid token", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "cli-secret")

		out, err := runCLI(t, "token", "frontend", "--ttl", "1h")
		require.NoError(t, err)

		m, err := auth.NewJWTManager("cli-secret", time.Hour)
		require.NoError(t, err)
		claims, err := m.ValidateToken(strings.TrimSpace(out))
		require.NoError(t, err)
		assert.Equal(t, "frontend", claims.Subject)
	})

	t.Run("requires a secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		_, err := runCLI(t, "token", "frontend")
		assert.ErrorIs(t, err, auth.ErrNoSecret)
	})
}

func TestInvalidConfiguration(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "bert")
	_, err := runCLI(t, "search", "theft")
	assert.ErrorContains(t, err, "EMBEDDING_PROVIDER")
}
