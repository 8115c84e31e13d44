package shell

import (
	"context"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdbcx/jdbcx-sub006/query/parser"
)

func requireSh(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	if _, err := exec.LookPath("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
}

func TestShellExecute(t *testing.T) {
	requireSh(t)
	s := New()

	out, err := s.Execute(context.Background(), parser.Properties{}, "echo hello; echo world", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld", out)

	_, err = s.Execute(context.Background(), parser.Properties{}, "echo oops >&2; exit 3", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code 3")
	assert.Contains(t, err.Error(), "oops")
}

func TestShellProperties(t *testing.T) {
	requireSh(t)
	s := New()

	props := parser.NewProperties(PropPath, "/bin/sh", PropArgs, "-e -c")
	out, err := s.Execute(context.Background(), props, "printf '%s' abc", nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", out)

	props = parser.NewProperties(PropTimeout, "50")
	start := time.Now()
	_, err = s.Execute(context.Background(), props, "sleep 5", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 4*time.Second)

	_, err = s.Execute(context.Background(), parser.NewProperties(PropTimeout, "soon"), "true", nil)
	assert.Error(t, err)
}

func TestRunStdin(t *testing.T) {
	requireSh(t)
	out, err := Run(context.Background(), "/bin/sh", []string{"-c", "cat"}, "from stdin\n\n", 0)
	require.NoError(t, err)
	assert.Equal(t, "from stdin", out)

	_, err = Run(context.Background(), "/definitely/not/here", nil, "", 0)
	assert.Error(t, err)
}
