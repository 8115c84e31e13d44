// Package shell runs block content with a command interpreter.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/jdbcx/jdbcx-sub006/extension"
	"github.com/jdbcx/jdbcx-sub006/query/parser"
)

// Property names understood by the shell extension.
const (
	PropPath    = "cli.path"
	PropArgs    = "cli.args"
	PropTimeout = "cli.timeout"
)

// Name is the tag the extension is registered under.
const Name = "shell"

// Shell executes block content as a script. The zero value uses the
// platform shell.
type Shell struct {
	// Path overrides the default interpreter.
	Path string
	// Args overrides the arguments placed before the script.
	Args []string
}

// New creates a shell extension with the platform defaults.
func New() *Shell {
	return &Shell{}
}

func (s *Shell) defaults() (string, []string) {
	if s.Path != "" {
		return s.Path, s.Args
	}
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/c"}
	}
	return "/bin/sh", []string{"-c"}
}

// Execute runs content and returns its standard output.
func (s *Shell) Execute(ctx context.Context, props parser.Properties, content string, ec *extension.Context) (string, error) {
	path, args := s.defaults()
	if p, ok := props.Get(PropPath); ok && p != "" {
		path = p
	}
	if a, ok := props.Get(PropArgs); ok {
		args = strings.Fields(a)
	}
	timeout, err := Timeout(props)
	if err != nil {
		return "", err
	}

	ec.Log().Debug("running shell", "path", path, "args", args)
	return Run(ctx, path, append(append([]string(nil), args...), content), "", timeout)
}

// Description explains the extension.
func (s *Shell) Description() string {
	return `# shell

Runs the block content with a shell and returns its standard output,
trailing newlines removed.

| Property | Default | Meaning |
|---|---|---|
| ` + "`cli.path`" + ` | ` + "`/bin/sh`" + ` | interpreter |
| ` + "`cli.args`" + ` | ` + "`-c`" + ` | arguments before the script |
| ` + "`cli.timeout`" + ` | none | milliseconds before the process is killed |

    select {{ shell: date +%Y }}
`
}

// Timeout reads cli.timeout in milliseconds. Zero means no limit.
func Timeout(props parser.Properties) (time.Duration, error) {
	v, ok := props.Get(PropTimeout)
	if !ok || strings.TrimSpace(v) == "" {
		return 0, nil
	}
	ms, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || ms < 0 {
		return 0, fmt.Errorf("invalid %s %q", PropTimeout, v)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// Run executes path with args, feeding stdin when not empty, and returns
// stdout without trailing newlines. A non-zero exit is reported together
// with the command's standard error.
func Run(ctx context.Context, path string, args []string, stdin string, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, path, args...)
	// children of a killed shell may hold the output pipes open
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%s: %w", path, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				return "", fmt.Errorf("%s exited with code %d", path, exitErr.ExitCode())
			}
			return "", fmt.Errorf("%s exited with code %d: %s", path, exitErr.ExitCode(), msg)
		}
		return "", fmt.Errorf("failed to run %s: %w", path, err)
	}
	return strings.TrimRight(stdout.String(), "\r\n"), nil
}
