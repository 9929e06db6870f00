package cli

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/bookshelf/internal/catalogstore"
	"github.com/mesh-intelligence/bookshelf/internal/codec"
	"github.com/mesh-intelligence/bookshelf/internal/contentstest"
	"github.com/mesh-intelligence/bookshelf/pkg/bookshelf"
	"github.com/mesh-intelligence/bookshelf/pkg/types"
)

type result struct {
	stdout string
	stderr string
	code   int
}

// runCLI executes a fresh root command with args and stdin.
func runCLI(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	code := run(t.Context(), root, &errOut)
	return result{stdout: out.String(), stderr: errOut.String(), code: code}
}

// clearEnv keeps the caller's SHELF_* variables out of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SHELF_CONFIG_DIR", "SHELF_DATA_DIR", "SHELF_BACKEND",
		"SHELF_GITHUB_OWNER", "SHELF_GITHUB_REPO", "SHELF_GITHUB_TOKEN",
		"SHELF_GITHUB_API_URL", "SHELF_GITHUB_BRANCH", "SHELF_GITHUB_REQUESTS_PER_SECOND",
		"SHELF_LOG_LEVEL", "SHELF_LOG_FILE",
	} {
		t.Setenv(k, "")
	}
}

// sqliteShelf initializes a sqlite-backed shelf and returns its config dir.
func sqliteShelf(t *testing.T) string {
	t.Helper()
	clearEnv(t)
	dir := t.TempDir()
	configDir := filepath.Join(dir, "config")
	dataDir := filepath.Join(dir, "data")

	r := runCLI(t, "", "--config-dir", configDir, "--data-dir", dataDir, "init", "--backend", "sqlite")
	require.Equal(t, exitSuccess, r.code, r.stderr)
	require.FileExists(t, filepath.Join(dataDir, "shelf.db"))
	return configDir
}

func TestVersion(t *testing.T) {
	r := runCLI(t, "", "version")
	require.Equal(t, exitSuccess, r.code)
	assert.Contains(t, r.stdout, "shelf v"+bookshelf.Version)
	assert.Contains(t, r.stdout, modulePath)
}

func TestInitWritesConfigOnce(t *testing.T) {
	clearEnv(t)
	configDir := filepath.Join(t.TempDir(), "config")

	r := runCLI(t, "", "--config-dir", configDir, "init", "--owner", "acme", "--repo", "books")
	require.Equal(t, exitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "Shelf initialized")

	data, err := os.ReadFile(filepath.Join(configDir, "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "backend: github")
	assert.Contains(t, string(data), "owner: acme")
	assert.NotContains(t, string(data), "token")

	r = runCLI(t, "", "--config-dir", configDir, "init", "--backend", "sqlite")
	require.Equal(t, exitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "already exists")

	after, err := os.ReadFile(filepath.Join(configDir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, data, after)
}

func TestInitRejectsUnknownBackend(t *testing.T) {
	clearEnv(t)
	r := runCLI(t, "", "--config-dir", t.TempDir(), "init", "--backend", "s3")
	assert.Equal(t, exitUserError, r.code)
	assert.Contains(t, r.stderr, "unknown backend")
}

func TestConfigSetGetMasksToken(t *testing.T) {
	clearEnv(t)
	configDir := t.TempDir()

	r := runCLI(t, "", "--config-dir", configDir, "config", "set", "github.token", "ghp_secret")
	require.Equal(t, exitSuccess, r.code, r.stderr)
	assert.NotContains(t, r.stdout, "ghp_secret")

	r = runCLI(t, "", "--config-dir", configDir, "config", "get", "github.token")
	require.Equal(t, exitSuccess, r.code, r.stderr)
	assert.Equal(t, maskedValue+"\n", r.stdout)

	r = runCLI(t, "", "--config-dir", configDir, "config", "get", "github.token", "--reveal")
	require.Equal(t, exitSuccess, r.code, r.stderr)
	assert.Equal(t, "ghp_secret\n", r.stdout)

	r = runCLI(t, "", "--config-dir", configDir, "config", "get", "backend")
	require.Equal(t, exitSuccess, r.code, r.stderr)
	assert.Equal(t, "github\n", r.stdout)
}

func TestConfigUnknownKey(t *testing.T) {
	clearEnv(t)
	r := runCLI(t, "", "--config-dir", t.TempDir(), "config", "set", "colour", "blue")
	assert.Equal(t, exitUserError, r.code)
	assert.Contains(t, r.stderr, "unknown config key")
}

func TestConfigListJSON(t *testing.T) {
	clearEnv(t)
	configDir := t.TempDir()
	require.Equal(t, exitSuccess, runCLI(t, "", "--config-dir", configDir, "config", "set", "github.token", "x").code)

	r := runCLI(t, "", "--config-dir", configDir, "--json", "config", "list")
	require.Equal(t, exitSuccess, r.code, r.stderr)

	var values map[string]string
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &values))
	assert.Equal(t, maskedValue, values["github.token"])
	assert.Equal(t, "warn", values["log_level"])
}

func TestBookLifecycleSQLite(t *testing.T) {
	configDir := sqliteShelf(t)
	cli := func(stdin string, args ...string) result {
		return runCLI(t, stdin, append([]string{"--config-dir", configDir}, args...)...)
	}

	r := cli("", "list")
	require.Equal(t, exitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "No books")

	r = cli("", "add", "--name", "Rust Guide", "--repo", "org/rust-guide")
	require.Equal(t, exitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "Rust Guide /rust-guide/ [mdbook] org/rust-guide")

	r = cli("", "add", "--name", "Cookbook", "--slug", "cookbook", "--repo", "org/cookbook", "--branch", "dev")
	require.Equal(t, exitSuccess, r.code, r.stderr)

	r = cli("", "--json", "list")
	require.Equal(t, exitSuccess, r.code, r.stderr)
	var books []types.Book
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &books))
	require.Len(t, books, 2)
	assert.Equal(t, "rust-guide", books[0].Slug)
	assert.Equal(t, "dev", books[1].Branch)
	assert.Equal(t, types.DefaultPath, books[1].Path)

	r = cli("n\n", "remove", "rust-guide")
	require.Equal(t, exitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "Aborted")

	r = cli("y\n", "remove", "rust-guide")
	require.Equal(t, exitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "Removed Rust Guide")

	r = cli("", "list")
	require.Equal(t, exitSuccess, r.code, r.stderr)
	assert.Equal(t, "0  Cookbook /cookbook/ [mdbook] org/cookbook\n", r.stdout)

	r = cli("", "log")
	require.Equal(t, exitSuccess, r.code, r.stderr)
	lines := strings.Split(strings.TrimSpace(r.stdout), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "Remove book: Rust Guide")
	assert.Contains(t, lines[2], "Add book: Rust Guide")

	r = cli("", "check")
	require.Equal(t, exitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "1 book(s)")
	assert.NotContains(t, r.stdout, "canonical")
}

func TestAddValidationExitCode(t *testing.T) {
	configDir := sqliteShelf(t)

	r := runCLI(t, "", "--config-dir", configDir, "add", "--name", "Guide")
	assert.Equal(t, exitUserError, r.code)
	assert.Contains(t, r.stderr, "repo is required")

	r = runCLI(t, "", "--config-dir", configDir, "add", "--name", "Guide", "--slug", "Bad Slug", "--repo", "o/r")
	assert.Equal(t, exitUserError, r.code)
	assert.Contains(t, r.stderr, "lowercase")

	require.Equal(t, exitSuccess, runCLI(t, "", "--config-dir", configDir, "add", "--name", "Guide", "--repo", "o/r").code)
	r = runCLI(t, "", "--config-dir", configDir, "add", "--name", "Guide", "--repo", "o/other")
	assert.Equal(t, exitUserError, r.code)
	assert.Contains(t, r.stderr, "already exists")
}

func TestRemoveUnknown(t *testing.T) {
	configDir := sqliteShelf(t)

	r := runCLI(t, "", "--config-dir", configDir, "remove", "--yes", "3")
	assert.Equal(t, exitUserError, r.code)
	assert.Contains(t, r.stderr, "out of range")

	r = runCLI(t, "", "--config-dir", configDir, "remove", "--yes", "missing")
	assert.Equal(t, exitUserError, r.code)
	assert.Contains(t, r.stderr, `no book with slug "missing"`)
}

func TestMissingGitHubSettings(t *testing.T) {
	clearEnv(t)
	r := runCLI(t, "", "--config-dir", t.TempDir(), "list")
	assert.Equal(t, exitUserError, r.code)
	assert.Contains(t, r.stderr, "owner")
}

func TestBadLogLevel(t *testing.T) {
	clearEnv(t)
	r := runCLI(t, "", "--config-dir", t.TempDir(), "--log-level", "loud", "config", "list")
	assert.Equal(t, exitUserError, r.code)
	assert.Contains(t, r.stderr, "unknown log level")
}

// githubShelf points the CLI at a fake contents API through SHELF_* env vars.
func githubShelf(t *testing.T) (*contentstest.Server, string) {
	t.Helper()
	clearEnv(t)
	fake := contentstest.New("acme", "catalog", "tok")
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	t.Setenv("SHELF_GITHUB_OWNER", "acme")
	t.Setenv("SHELF_GITHUB_REPO", "catalog")
	t.Setenv("SHELF_GITHUB_TOKEN", "tok")
	t.Setenv("SHELF_GITHUB_API_URL", srv.URL)
	t.Setenv("SHELF_GITHUB_REQUESTS_PER_SECOND", "0")
	return fake, t.TempDir()
}

func TestGitHubBackend(t *testing.T) {
	fake, configDir := githubShelf(t)

	r := runCLI(t, "", "--config-dir", configDir, "add", "--name", "Guide", "--repo", "acme/guide")
	require.Equal(t, exitSuccess, r.code, r.stderr)

	doc, err := fake.Store.Get(t.Context(), catalogstore.DocumentPath)
	require.NoError(t, err)
	assert.Equal(t, codec.Header+"books:\n"+
		"  - name: \"Guide\"\n"+
		"    slug: \"guide\"\n"+
		"    repo: \"acme/guide\"\n"+
		"    type: \"mdbook\"\n"+
		"    branch: \"main\"\n"+
		"    path: \".\"\n", string(doc.Content))

	commits := fake.Store.History()
	require.Len(t, commits, 1)
	assert.Equal(t, "Add book: Guide", commits[0].Message)

	r = runCLI(t, "", "--config-dir", configDir, "log")
	assert.Equal(t, exitUserError, r.code)
	assert.Contains(t, r.stderr, "sqlite backend")
}

func TestGitHubBadCredentials(t *testing.T) {
	_, configDir := githubShelf(t)
	t.Setenv("SHELF_GITHUB_TOKEN", "wrong")

	r := runCLI(t, "", "--config-dir", configDir, "list")
	assert.Equal(t, exitSysError, r.code)
	assert.Contains(t, r.stderr, "Bad credentials")
}

func TestCheckReportsSkippedLines(t *testing.T) {
	fake, configDir := githubShelf(t)
	fake.Store.Seed(catalogstore.DocumentPath, []byte("books:\n"+
		"  - name: \"Guide\"\n"+
		"    slug: \"guide\"\n"+
		"    repo: \"acme/guide\"\n"+
		"    colour: \"blue\"\n"))

	r := runCLI(t, "", "--config-dir", configDir, "--json", "check")
	assert.Equal(t, exitSysError, r.code)
	assert.Contains(t, r.stderr, "line(s) skipped")

	var report checkReport
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &report))
	assert.True(t, report.Exists)
	assert.Equal(t, 1, report.Books)
	assert.False(t, report.Canonical)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, 5, report.Issues[0].Line)
}

func TestCheckMissingDocument(t *testing.T) {
	_, configDir := githubShelf(t)

	r := runCLI(t, "", "--config-dir", configDir, "check")
	require.Equal(t, exitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "does not exist yet")
}

func TestUnknownFlagIsUserError(t *testing.T) {
	clearEnv(t)
	r := runCLI(t, "", "--config-dir", t.TempDir(), "list", "--colour")
	assert.Equal(t, exitUserError, r.code)
	assert.Contains(t, r.stderr, "unknown flag")
}

func TestResolveIndexPrefersSlug(t *testing.T) {
	catalog := types.Catalog{Books: []types.Book{{Slug: "guide"}, {Slug: "2024"}}}

	tests := []struct {
		arg     string
		want    int
		wantErr bool
	}{
		{arg: "2024", want: 1},
		{arg: "guide", want: 0},
		{arg: "0", want: 0},
		{arg: "7", want: 7},
		{arg: "missing", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := resolveIndex(catalog.IndexOf, tt.arg)
			if tt.wantErr {
				assert.ErrorIs(t, err, types.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRemoveDigitSlug(t *testing.T) {
	configDir := sqliteShelf(t)
	require.Equal(t, exitSuccess, runCLI(t, "", "--config-dir", configDir, "add", "--name", "Guide", "--repo", "o/guide").code)
	require.Equal(t, exitSuccess, runCLI(t, "", "--config-dir", configDir, "add", "--name", "Yearbook", "--slug", "2024", "--repo", "o/yb").code)

	r := runCLI(t, "", "--config-dir", configDir, "remove", "--yes", "2024")
	require.Equal(t, exitSuccess, r.code, r.stderr)
	assert.Contains(t, r.stdout, "Removed Yearbook")
}

func TestFormatBookDefaultsType(t *testing.T) {
	b := types.Book{Name: "Guide", Slug: "guide", Repo: "o/guide"}
	assert.Equal(t, "Guide /guide/ [mdbook] o/guide", formatBook(b))
}
