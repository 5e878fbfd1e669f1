package ghidra

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"vxextract/internal/services"
)

// Environment variables read by the pre-script.
const (
	EnvFamily = "VX_FAMILY"
	EnvSource = "VX_SOURCE"
	EnvURL    = "VX_URL"
)

// Request describes one analyzeHeadless run over a directory of imports.
type Request struct {
	ProjectDir     string
	ProjectName    string
	RecursionDepth int
	CommitMessage  string
	ScriptDir      string
	PreScript      string
	ImportPath     string
	// Env is appended to the parent environment.
	Env map[string]string
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args, env []string, onOutput func(string)) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithTimeout bounds each run. Zero disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// Client wraps analyzeHeadless invocations.
type Client struct {
	installDir string
	timeout    time.Duration
	exec       Executor
}

// New constructs a client for the Ghidra install at installDir.
func New(installDir string, opts ...Option) (*Client, error) {
	installDir = strings.TrimSpace(installDir)
	if installDir == "" {
		return nil, services.Wrap(services.ErrConfiguration, "analyze", "init ghidra", "install directory required", nil)
	}
	c := &Client{installDir: installDir, exec: commandExecutor{}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Binary returns the analyzeHeadless launcher path.
func (c *Client) Binary() string {
	return filepath.Join(c.installDir, "support", "analyzeHeadless")
}

// Args builds the analyzeHeadless argument list for req.
func Args(req Request) []string {
	return []string{
		req.ProjectDir,
		req.ProjectName,
		"-recursive", strconv.Itoa(req.RecursionDepth),
		"-commit", req.CommitMessage,
		"-scriptPath", req.ScriptDir,
		"-preScript", req.PreScript,
		"-import", req.ImportPath,
	}
}

// Environ returns the parent environment extended with req.Env. Later entries
// win, so request values override inherited ones.
func Environ(req Request) []string {
	env := os.Environ()
	keys := make([]string, 0, len(req.Env))
	for k := range req.Env {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		env = append(env, k+"="+req.Env[k])
	}
	return env
}

// AnalyzeHeadless runs the launcher for req, forwarding each output line to
// onOutput. A non-zero exit is reported with its status; it is never retried.
func (c *Client) AnalyzeHeadless(ctx context.Context, req Request, onOutput func(string)) error {
	if req.ProjectDir == "" || req.ProjectName == "" || req.ImportPath == "" {
		return services.Wrap(services.ErrValidation, "analyze", "build command", "project directory, project name, and import path are required", nil)
	}
	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	err := c.exec.Run(runCtx, c.Binary(), Args(req), Environ(req), onOutput)
	if err == nil {
		return nil
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return services.Wrap(services.ErrExternalTool, "analyze", "analyzeHeadless", fmt.Sprintf("timed out after %s", c.timeout), err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return services.Wrap(services.ErrExternalTool, "analyze", "analyzeHeadless", fmt.Sprintf("exit status %d", exitErr.ExitCode()), err)
	}
	return services.Wrap(services.ErrExternalTool, "analyze", "analyzeHeadless", "", err)
}
