package sandbox

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

//go:embed harness.py
var harnessSource []byte

// ContainerConfig holds configuration for the container executor
type ContainerConfig struct {
	// Runtime is the container CLI, docker or podman
	Runtime  string
	Image    string
	MemoryMB int
	Timeout  time.Duration

	Builtins       []string
	FigureWidth    float64
	FigureHeight   float64
	MaxOutputBytes int
}

// ContainerExecutor runs snippets with a real Python stack inside a
// throwaway container. The job directory holding the dataset, the snippet
// and the harness is mounted read-only and the harness replies on stdout
// with a single JSON document.
type ContainerExecutor struct {
	logger    *zap.Logger
	config    ContainerConfig
	guard     *Guard
	cmdRunner CommandRunner
	fs        FileSystem
}

// ContainerOption defines a functional option for ContainerExecutor
type ContainerOption func(*ContainerExecutor)

// WithCommandRunner sets the CommandRunner for ContainerExecutor
func WithCommandRunner(cmdRunner CommandRunner) ContainerOption {
	return func(c *ContainerExecutor) {
		c.cmdRunner = cmdRunner
	}
}

// WithFileSystem sets the FileSystem for ContainerExecutor
func WithFileSystem(fs FileSystem) ContainerOption {
	return func(c *ContainerExecutor) {
		c.fs = fs
	}
}

// WithContainerGuard replaces the default guard
func WithContainerGuard(g *Guard) ContainerOption {
	return func(c *ContainerExecutor) {
		c.guard = g
	}
}

// NewContainerExecutor creates a ContainerExecutor with real command and
// file system implementations unless options replace them
func NewContainerExecutor(logger *zap.Logger, config ContainerConfig, opts ...ContainerOption) *ContainerExecutor {
	if config.Runtime == "" {
		config.Runtime = "docker"
	}
	if config.Builtins == nil {
		config.Builtins = DefaultBuiltins
	}
	if config.FigureWidth <= 0 || config.FigureHeight <= 0 {
		config.FigureWidth, config.FigureHeight = DefaultFigureWidth, DefaultFigureHeight
	}

	executor := &ContainerExecutor{
		logger:    logger,
		config:    config,
		guard:     NewGuard(nil),
		cmdRunner: &RealCommandRunner{},
		fs:        &RealFileSystem{},
	}

	for _, opt := range opts {
		opt(executor)
	}
	executor.guard = executor.guard.Strict()

	return executor
}

type harnessReply struct {
	Output string `json:"output"`
	Error  string `json:"error"`
	Image  string `json:"image"`
}

// Execute guards the snippet, stages the job directory and runs the harness
//
//nolint:funlen // linear staging, run and decode steps
func (c *ContainerExecutor) Execute(ctx context.Context, req ExecuteRequest) (result ExecuteResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			c.logger.Error("container execution panicked", zap.Any("panic", p))
			result, err = faulted(fmt.Sprintf("internal error: %v", p)), nil
		}
	}()

	if err := c.guard.Check(req.Code); err != nil {
		c.logger.Info("snippet rejected", zap.Error(err))
		return rejected(), nil
	}
	if req.Dataset == nil {
		return ExecuteResult{}, ErrNoDataset
	}

	jobDir, err := c.fs.MkdirTemp("", "dataagent-job-*")
	if err != nil {
		return ExecuteResult{}, fmt.Errorf("failed to create job dir: %w", err)
	}
	defer func() {
		if rmErr := c.fs.RemoveAll(jobDir); rmErr != nil {
			c.logger.Error("failed to remove job directory", zap.String("path", jobDir), zap.Error(rmErr))
		}
	}()
	// MkdirTemp creates 0700; the container user must traverse the mount
	if err := c.fs.Chmod(jobDir, DirPermission); err != nil {
		return ExecuteResult{}, fmt.Errorf("failed to set job dir permissions: %w", err)
	}

	var data bytes.Buffer
	if err := req.Dataset.WriteCSV(&data); err != nil {
		return ExecuteResult{}, fmt.Errorf("failed to encode dataset: %w", err)
	}
	files := map[string][]byte{
		FilenameDataset: data.Bytes(),
		FilenameSnippet: []byte(req.Code),
		FilenameHarness: harnessSource,
	}
	for name, content := range files {
		if err := c.fs.WriteFile(filepath.Join(jobDir, name), content, FilePermission); err != nil {
			return ExecuteResult{}, fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	containerName := "dataagent-exec-" + uuid.NewString()
	cmdArgs := c.runArgs(containerName, jobDir)

	runCtx := ctx
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	stdout, stderr, exitCode, err := c.cmdRunner.RunCommand(runCtx, cmdArgs)

	if ctxErr := runCtx.Err(); ctxErr != nil {
		c.stop(containerName)
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return faulted("execution timed out"), nil
		}
		return faulted("execution cancelled"), nil
	}

	if err != nil {
		return ExecuteResult{}, fmt.Errorf("failed to execute container: %w", err)
	}

	var reply harnessReply
	if err := json.Unmarshal([]byte(strings.TrimSpace(stdout)), &reply); err != nil {
		c.logger.Error("container returned no reply",
			zap.Int("exit_code", exitCode),
			zap.String("stderr", stderr),
		)
		return ExecuteResult{}, fmt.Errorf("malformed harness reply (exit code %d): %w", exitCode, err)
	}

	if reply.Error != "" {
		return faulted(reply.Error), nil
	}

	result = ExecuteResult{State: StateSucceeded, Output: reply.Output}
	if reply.Image != "" {
		img, err := base64.StdEncoding.DecodeString(reply.Image)
		if err != nil {
			return ExecuteResult{}, fmt.Errorf("malformed harness image: %w", err)
		}
		result.Image = img
	}
	return result, nil
}

func (c *ContainerExecutor) runArgs(containerName, jobDir string) []string {
	return []string{
		c.config.Runtime, "run",
		"--name", containerName,
		"--rm",
		"-v", jobDir + ":/job:ro",
		"--workdir", "/job",
		"--memory", fmt.Sprintf("%dm", c.config.MemoryMB),
		"--network", "none",
		"--read-only",
		"--tmpfs", "/tmp",
		"--ulimit", "fsize=100000000",
		"--security-opt", "no-new-privileges:true",
		"--user", "nobody",
		"--cap-drop", "ALL",
		"-e", "MPLCONFIGDIR=/tmp",
		"-e", "DATAAGENT_BUILTINS=" + strings.Join(c.config.Builtins, ","),
		"-e", "DATAAGENT_FIGURE_WIDTH=" + strconv.FormatFloat(c.config.FigureWidth, 'g', -1, 64),
		"-e", "DATAAGENT_FIGURE_HEIGHT=" + strconv.FormatFloat(c.config.FigureHeight, 'g', -1, 64),
		"-e", "DATAAGENT_MAX_OUTPUT=" + strconv.Itoa(c.config.MaxOutputBytes),
		c.config.Image,
		"python", "/job/" + FilenameHarness,
	}
}

// stop kills a container that outlived its context
func (c *ContainerExecutor) stop(containerName string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, stderr, _, err := c.cmdRunner.RunCommand(ctx, []string{c.config.Runtime, "stop", containerName}); err != nil {
		c.logger.Warn("failed to stop container",
			zap.String("container", containerName),
			zap.String("stderr", stderr),
			zap.Error(err),
		)
	}
}
