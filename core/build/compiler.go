package build

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Invocation describes one run of the build tool.
type Invocation struct {
	Dir  string
	Name string
	Args []string
	Env  []string
}

// Runner executes an invocation to completion and returns its combined output
// lines and exit code. err is reserved for failures to start the process.
type Runner func(inv Invocation) (lines []string, exitCode int, err error)

// Result is the outcome of a finished build.
type Result struct {
	ExitCode int
	Output   []string
	Errors   []string
	Artifact string
	Duration time.Duration
}

// Success reports whether the build produced a usable artifact.
func (r Result) Success() bool {
	return r.ExitCode == 0 && len(r.Errors) == 0
}

// Compiler runs the build tool asynchronously, one build at a time.
type Compiler struct {
	root   string
	cfg    Config
	runner Runner
	logger *zap.Logger

	mu       sync.Mutex
	building bool
	done     chan struct{}
	result   Result
	finished int
}

// Option customizes a Compiler.
type Option func(*Compiler)

// WithRunner replaces the process runner, mainly for tests.
func WithRunner(r Runner) Option {
	return func(c *Compiler) {
		if r != nil {
			c.runner = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Compiler) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCompiler creates a compiler for the project rooted at root.
func NewCompiler(root string, cfg Config, opts ...Option) *Compiler {
	c := &Compiler{
		root:   root,
		cfg:    cfg,
		runner: ExecRunner,
		logger: zap.NewNop(),
		done:   make(chan struct{}),
	}
	close(c.done)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Artifact returns the absolute path the build writes the module to.
func (c *Compiler) Artifact() string {
	name := c.cfg.ModuleName
	if name == "" {
		name = "module"
	}
	return filepath.Join(c.resolve(c.cfg.OutputDir), name+".wasm")
}

// Build starts a build on a worker goroutine and reports whether one was
// started. It is a no-op while a build is running. ctx only guards the start;
// a running build is never cancelled.
func (c *Compiler) Build(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	c.mu.Lock()
	if c.building {
		c.mu.Unlock()
		return false, nil
	}
	inv, err := c.invocation()
	if err != nil {
		c.mu.Unlock()
		return false, err
	}
	c.building = true
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	c.logger.Info("Building code module",
		zap.String("dir", inv.Dir),
		zap.String("command", inv.Name+" "+strings.Join(inv.Args, " ")))

	go c.run(inv, done)
	return true, nil
}

func (c *Compiler) run(inv Invocation, done chan struct{}) {
	start := time.Now()
	lines, code, err := c.runner(inv)
	if err != nil {
		lines = append(lines, err.Error())
		if code == 0 {
			code = -1
		}
	}

	res := Result{
		ExitCode: code,
		Output:   lines,
		Errors:   ParseErrors(lines, c.cfg.ErrorMarker),
		Artifact: c.Artifact(),
		Duration: time.Since(start),
	}
	if code != 0 && len(res.Errors) == 0 {
		res.Errors = []string{fmt.Sprintf("build failed with exit code %d", code)}
	}

	if res.Success() {
		c.logger.Info("Code module built",
			zap.String("artifact", res.Artifact),
			zap.Duration("duration", res.Duration))
	} else {
		c.logger.Warn("Code module build failed",
			zap.Int("exit_code", code),
			zap.Strings("errors", res.Errors))
	}

	c.mu.Lock()
	c.result = res
	c.building = false
	c.finished++
	c.mu.Unlock()
	close(done)
}

func (c *Compiler) invocation() (Invocation, error) {
	command := c.cfg.Command
	env := []string(nil)
	if command == "" {
		command = DefaultCommand
		env = DefaultEnv
	}
	fields := strings.Fields(strings.ReplaceAll(command, "{output}", c.Artifact()))
	if len(fields) == 0 {
		return Invocation{}, errors.New("build command is empty")
	}
	if err := os.MkdirAll(c.resolve(c.cfg.OutputDir), 0o755); err != nil {
		return Invocation{}, fmt.Errorf("create build output dir: %w", err)
	}
	return Invocation{
		Dir:  c.resolve(c.cfg.SourceDir),
		Name: fields[0],
		Args: fields[1:],
		Env:  env,
	}, nil
}

// resolve returns p as an absolute path. Relative paths are taken from the
// root, or from the working directory when the root is empty, so the build tool
// and the readers of Artifact agree on the same file whatever the tool's
// working directory.
func (c *Compiler) resolve(p string) string {
	if !filepath.IsAbs(p) {
		p = filepath.Join(c.root, p)
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// Wait blocks until the current build finishes or ctx is done.
func (c *Compiler) Wait(ctx context.Context) (Result, error) {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	select {
	case <-done:
		r, _ := c.Result()
		return r, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// IsBuilding reports whether a build is running.
func (c *Compiler) IsBuilding() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.building
}

// Result returns the outcome of the last finished build. ok is false when no
// build has finished yet.
func (c *Compiler) Result() (res Result, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result, c.finished > 0
}

// Finished returns the number of builds that have completed.
func (c *Compiler) Finished() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finished
}

// IsSuccess reports whether the last finished build succeeded.
func (c *Compiler) IsSuccess() bool {
	r, ok := c.Result()
	return ok && r.Success()
}

// Errors returns the parsed error lines of the last finished build.
func (c *Compiler) Errors() []string {
	r, _ := c.Result()
	return r.Errors
}

// Output returns every output line of the last finished build.
func (c *Compiler) Output() []string {
	r, _ := c.Result()
	return r.Output
}

// ExecRunner runs the invocation as a child process.
func ExecRunner(inv Invocation) ([]string, int, error) {
	cmd := exec.Command(inv.Name, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Env = append(os.Environ(), inv.Env...)

	out, err := cmd.CombinedOutput()
	lines := splitLines(out)

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return lines, 0, nil
	case errors.As(err, &exitErr):
		return lines, exitErr.ExitCode(), nil
	default:
		return lines, -1, fmt.Errorf("run %s: %w", inv.Name, err)
	}
}

func splitLines(out []byte) []string {
	var lines []string
	s := bufio.NewScanner(bytes.NewReader(out))
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for s.Scan() {
		lines = append(lines, s.Text())
	}
	return lines
}
