package commands

import (
	"bytes"
	"context"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdbcx/jdbcx-sub006/cli/internal/config"
	"github.com/jdbcx/jdbcx-sub006/cli/internal/ui"
)

const testConfig = `
on_error: abort
variables:
  table: users
datasources:
  lite:
    url: "file:commands_test?mode=memory&cache=shared"
    driver: sqlite3
    max_open_conns: 1
    health_check_interval: 1m
`

// run executes the root command with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	oldOut, oldErr := ui.Out, ui.Err
	ui.Out, ui.Err = &out, &out
	t.Cleanup(func() { ui.Out, ui.Err = oldOut, oldErr })
	ui.DisableColor()

	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append([]string{"--config", "/cfg/.jdbcx.yaml"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func setupFs(t *testing.T) afero.Fs {
	t.Helper()
	old := config.AppFs
	fs := afero.NewMemMapFs()
	config.AppFs = fs
	t.Cleanup(func() { config.AppFs = old })
	t.Setenv("HOME", "/nowhere")

	require.NoError(t, fs.MkdirAll("/cfg", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/cfg/.jdbcx.yaml", []byte(testConfig), 0o644))
	return fs
}

func TestResolveCommand(t *testing.T) {
	fs := setupFs(t)

	out, err := run(t, "resolve", "insert into ${table} values {{ values: 1, 'a'; 2, 'b' }}")
	require.NoError(t, err)
	assert.Equal(t, "insert into users values (1,'a'),(2,'b')\n", out)

	out, err = run(t, "resolve", "--var", "table=orders", "select * from ${table}")
	require.NoError(t, err)
	assert.Equal(t, "select * from orders\n", out)

	require.NoError(t, afero.WriteFile(fs, "/q.sql", []byte("{% var: n=3 %}select ${n}"), 0o644))
	out, err = run(t, "resolve", "-f", "/q.sql")
	require.NoError(t, err)
	assert.Equal(t, "select 3\n", out)

	_, err = run(t, "resolve", "--var", "novalue", "x")
	assert.Error(t, err)

	_, err = run(t, "resolve", "select {{ nope: 1 }}")
	assert.Error(t, err)

	_, err = run(t, "resolve", "select {{ values: 1,,2 }}")
	assert.Error(t, err)

	out, err = run(t, "--on-error", "warn", "resolve", "select {{ values: 1,,2 }}")
	require.NoError(t, err)
	assert.Equal(t, "select \n", out)
}

func TestParseCommand(t *testing.T) {
	setupFs(t)

	out, err := run(t, "parse", "select {{ db.lite(result.quote=literal): select 1 }} from t")
	require.NoError(t, err)
	assert.Contains(t, out, "Parts")
	assert.Contains(t, out, "Blocks")
	assert.Contains(t, out, "db.lite")
	assert.Contains(t, out, "result.quote='literal'")

	out, err = run(t, "parse", "plain text")
	require.NoError(t, err)
	assert.Contains(t, out, "no executable blocks")

	_, err = run(t, "parse", "{{ x(a='b): c }}")
	assert.Error(t, err)
}

func TestExecCommand(t *testing.T) {
	setupFs(t)

	out, err := run(t, "exec", "--dry-run", "select {{ values: 1 }}")
	require.NoError(t, err)
	assert.Equal(t, "select (1)\n", out)

	_, err = run(t, "exec", "select 1")
	assert.ErrorContains(t, err, "lite")

	out, err = run(t, "exec", "-d", "lite", "select 1 as a, {{ db.lite(result.quote=literal): select 'x' }} as b")
	if err != nil && strings.Contains(err.Error(), "CGO") {
		t.Skip("sqlite3 unavailable")
	}
	require.NoError(t, err)
	assert.Contains(t, out, "a")
	assert.Contains(t, out, "1 row(s)")

	_, err = run(t, "exec", "-d", "missing", "select 1")
	assert.Error(t, err)
}

func TestExtensionsCommand(t *testing.T) {
	setupFs(t)

	out, err := run(t, "extensions")
	require.NoError(t, err)
	for _, name := range []string{"db", "prql", "shell", "values", "web"} {
		assert.Contains(t, out, name)
	}

	_, err = run(t, "extensions", "nope")
	assert.Error(t, err)
}

func TestConfigInitCommand(t *testing.T) {
	fs := setupFs(t)

	out, err := run(t, "config", "init", "-o", "/new/.jdbcx.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote /new/.jdbcx.yaml")

	exists, err := afero.Exists(fs, "/new/.jdbcx.yaml")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = run(t, "config", "init", "-o", "/new/.jdbcx.yaml")
	assert.Error(t, err)
}

func TestConfigShowCommand(t *testing.T) {
	fs := setupFs(t)

	out, err := run(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "/cfg/.jdbcx.yaml")
	assert.NotContains(t, out, "Last check")

	out, err = run(t, "config", "show", "--check")
	if err != nil && strings.Contains(out, "CGO") {
		t.Skip("sqlite3 unavailable")
	}
	require.NoError(t, err)
	assert.Contains(t, out, "Last check")
	assert.Contains(t, out, "lite")
	assert.Contains(t, out, "sqlite3")

	broken := testConfig + `
  down:
    url: "nope://x"
`
	require.NoError(t, afero.WriteFile(fs, "/cfg/.jdbcx.yaml", []byte(broken), 0o644))
	out, err = run(t, "config", "show", "--check")
	assert.ErrorContains(t, err, "1 datasource(s) unreachable")
	assert.Contains(t, out, "datasource down")
}

func TestVersionCommand(t *testing.T) {
	fs := setupFs(t)

	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "jdbcx version")

	require.NoError(t, afero.WriteFile(fs, "/cfg/.jdbcx.yaml", []byte("required_version: '>= 99'\n"), 0o644))
	_, err = run(t, "version")
	assert.ErrorContains(t, err, "required_version")
}

func TestParseVars(t *testing.T) {
	vars, err := parseVars([]string{"a=1", " b =x=y", "c="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "x=y", "c": ""}, vars)

	_, err = parseVars([]string{"=1"})
	assert.Error(t, err)
}
