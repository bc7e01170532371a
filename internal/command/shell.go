package command

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

const (
	shellTimeout   = 10 * time.Second
	maxShellOutput = 8 * 1024
)

// shellMetaChars are rejected outright: the runner executes the
// command directly, never through a shell, so none of these can ever
// be meaningful, only dangerous.
const shellMetaChars = ";|&$`<>(){}\n\\"

// ShellRunner executes remote shell commands against an explicit
// allow-list of command prefixes. Anything not matching a prefix is
// refused with a result listing the allowed prefixes.
type ShellRunner struct {
	allow  []string
	logger Logger
}

// NewShellRunner creates a runner with the given allowed prefixes.
func NewShellRunner(allow []string) *ShellRunner {
	return &ShellRunner{allow: allow, logger: noopLogger{}}
}

// SetLogger sets the logger for the runner.
func (r *ShellRunner) SetLogger(logger Logger) {
	r.logger = logger
}

// Run executes cmdline if it matches the allow-list.
func (r *ShellRunner) Run(ctx context.Context, cmdline string) Result {
	cmdline = strings.TrimSpace(cmdline)
	if cmdline == "" {
		return Fail("Missing command parameter")
	}
	if strings.ContainsAny(cmdline, shellMetaChars) {
		return Fail("Command contains forbidden characters")
	}
	if !r.allowed(cmdline) {
		return Failf("Command not allowed. Allowed prefixes: %s", strings.Join(r.allow, ", "))
	}

	ctx, cancel := context.WithTimeout(ctx, shellTimeout)
	defer cancel()

	fields := strings.Fields(cmdline)
	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)

	output, err := cmd.CombinedOutput()
	if len(output) > maxShellOutput {
		output = output[:maxShellOutput]
	}
	if err != nil {
		r.logger.Warn("shell command failed", "command", cmdline, "error", err)
		return Result{
			Success: false,
			Message: "Command failed: " + err.Error(),
			Data:    map[string]any{"output": string(output)},
		}
	}

	return OKData("Command executed", map[string]any{"output": string(output)})
}

// allowed reports whether cmdline matches one of the allowed
// prefixes. A match is the full prefix followed by end of string, a
// space, or a path continuation (for prefixes like "cat /proc").
func (r *ShellRunner) allowed(cmdline string) bool {
	for _, prefix := range r.allow {
		if !strings.HasPrefix(cmdline, prefix) {
			continue
		}
		if len(cmdline) == len(prefix) {
			return true
		}
		switch cmdline[len(prefix)] {
		case ' ', '/':
			return true
		}
	}
	return false
}
