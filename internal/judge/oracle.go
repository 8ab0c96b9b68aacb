// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package judge

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Oracle answers a free-text prompt. It is the only capability the judge
// and the summarizer need from a language model, which keeps both
// testable with an in-memory fake.
type Oracle interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// executor abstracts subprocess execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, name string, args, env []string) (stdout, stderr []byte, err error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (osExecutor) Run(ctx context.Context, name string, args, env []string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	cmd.WaitDelay = 5 * time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// cliBinary is the default judge executable name.
const cliBinary = "claude"

// commonCLIPaths are checked when the binary is not on PATH, which is the
// usual situation under cron.
var commonCLIPaths = []string{
	"~/.local/bin/claude",
	"/usr/local/bin/claude",
	"~/.claude/local/claude",
	"/opt/homebrew/bin/claude",
}

// maxStderr bounds how much subprocess stderr ends up in an error.
const maxStderr = 400

// CLIOracle runs a prompt through a command-line model client
// ("claude -p <prompt>").
type CLIOracle struct {
	path  string
	model string
	exec  executor
}

// NewCLIOracle locates the CLI. An empty path searches PATH and then the
// common install locations. A missing binary is a configuration problem
// the caller should surface before any paper is judged.
func NewCLIOracle(path, model string) (*CLIOracle, error) {
	return newCLIOracle(osExecutor{}, path, model)
}

func newCLIOracle(ex executor, path, model string) (*CLIOracle, error) {
	resolved, err := findCLI(ex, path)
	if err != nil {
		return nil, err
	}
	return &CLIOracle{path: resolved, model: model, exec: ex}, nil
}

func findCLI(ex executor, path string) (string, error) {
	if path != "" {
		if p, err := ex.LookPath(expandHome(path)); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("judge CLI %s not found or not executable", path)
	}
	if p, err := ex.LookPath(cliBinary); err == nil {
		return p, nil
	}
	for _, candidate := range commonCLIPaths {
		if p, err := ex.LookPath(expandHome(candidate)); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("judge CLI %q not found on PATH or in %s", cliBinary, strings.Join(commonCLIPaths, ", "))
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}

// Name returns the resolved executable path.
func (o *CLIOracle) Name() string { return o.path }

// Complete runs the CLI in print mode. The subprocess is killed when ctx
// ends. CLAUDECODE is cleared so the CLI accepts being started from
// inside another session.
func (o *CLIOracle) Complete(ctx context.Context, prompt string) (string, error) {
	args := []string{"-p", prompt}
	if o.model != "" {
		args = append([]string{"--model", o.model}, args...)
	}

	stdout, stderr, err := o.exec.Run(ctx, o.path, args, []string{"CLAUDECODE="})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if err != nil {
		msg := strings.TrimSpace(string(stderr))
		if len(msg) > maxStderr {
			msg = msg[:maxStderr] + "..."
		}
		if msg == "" {
			return "", fmt.Errorf("running %s: %w", o.path, err)
		}
		return "", fmt.Errorf("running %s: %w: %s", o.path, err, msg)
	}

	out := strings.TrimSpace(string(stdout))
	if out == "" {
		return "", fmt.Errorf("%s returned empty output", o.path)
	}
	return out, nil
}
