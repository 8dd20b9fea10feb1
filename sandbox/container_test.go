package sandbox

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockResult struct {
	stdout   string
	stderr   string
	exitCode int
	err      error
}

// MockCommandRunner implements CommandRunner for testing. Results are keyed
// by the runtime subcommand, e.g. "run" or "stop".
type MockCommandRunner struct {
	mu      sync.Mutex
	results map[string]mockResult
	block   bool
	calls   [][]string
}

func (m *MockCommandRunner) RunCommand(ctx context.Context, args []string) (stdout, stderr string, exitCode int, err error) {
	m.mu.Lock()
	m.calls = append(m.calls, args)
	result := m.results[args[1]]
	block := m.block && args[1] == "run"
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", "", -1, ctx.Err()
	}
	return result.stdout, result.stderr, result.exitCode, result.err
}

func (m *MockCommandRunner) recorded() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.calls...)
}

// MockFileSystem implements FileSystem for testing
type MockFileSystem struct {
	mu            sync.Mutex
	mkdirTempErr  error
	writeFileErrs map[string]error
	writeFileData map[string][]byte
	chmodErr      error
	modes         map[string]os.FileMode
	removed       []string
}

func (m *MockFileSystem) MkdirTemp(_, _ string) (string, error) {
	if m.mkdirTempErr != nil {
		return "", m.mkdirTempErr
	}
	return "/tmp/job", nil
}

func (m *MockFileSystem) WriteFile(filename string, data []byte, _ os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, exists := m.writeFileErrs[filename]; exists {
		return err
	}
	if m.writeFileData == nil {
		m.writeFileData = make(map[string][]byte)
	}
	m.writeFileData[filename] = data
	return nil
}

func (m *MockFileSystem) Chmod(name string, mode os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.chmodErr != nil {
		return m.chmodErr
	}
	if m.modes == nil {
		m.modes = make(map[string]os.FileMode)
	}
	m.modes[name] = mode
	return nil
}

func (m *MockFileSystem) RemoveAll(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, path)
	return nil
}

func reply(output, errMsg string, image []byte) string {
	return `{"output":` + quote(output) + `,"error":` + quote(errMsg) + `,"image":"` + base64.StdEncoding.EncodeToString(image) + `"}` + "\n"
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(strings.ReplaceAll(s, `"`, `\"`), "\n", `\n`) + `"`
}

func newTestContainer(t *testing.T, runner *MockCommandRunner, fs *MockFileSystem, cfg ContainerConfig) *ContainerExecutor {
	t.Helper()
	if cfg.Image == "" {
		cfg.Image = "dataagent-python:test"
	}
	if cfg.MemoryMB == 0 {
		cfg.MemoryMB = 256
	}
	return NewContainerExecutor(zaptest.NewLogger(t), cfg, WithCommandRunner(runner), WithFileSystem(fs))
}

func TestContainerExecutorConstructor(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("Defaults", func(t *testing.T) {
		executor := NewContainerExecutor(logger, ContainerConfig{Image: "img"})
		require.NotNil(t, executor)
		assert.Equal(t, "docker", executor.config.Runtime)
		assert.Equal(t, DefaultBuiltins, executor.config.Builtins)
		assert.InDelta(t, DefaultFigureWidth, executor.config.FigureWidth, 0)
		assert.IsType(t, &RealCommandRunner{}, executor.cmdRunner)
		assert.IsType(t, &RealFileSystem{}, executor.fs)
	})

	t.Run("WithOptions", func(t *testing.T) {
		runner := &MockCommandRunner{}
		fs := &MockFileSystem{}
		guard := NewGuard([]string{"corr("})

		executor := NewContainerExecutor(logger, ContainerConfig{Runtime: "podman"},
			WithCommandRunner(runner),
			WithFileSystem(fs),
			WithContainerGuard(guard),
		)
		assert.Equal(t, "podman", executor.config.Runtime)
		assert.Equal(t, runner, executor.cmdRunner)
		assert.Equal(t, fs, executor.fs)
		assert.Equal(t, guard.denylist, executor.guard.denylist)
		assert.True(t, executor.guard.strict)
		assert.False(t, guard.strict)
	})
}

func TestContainerExecutorExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		runner := &MockCommandRunner{results: map[string]mockResult{"run": {stdout: reply("10\n", "", nil)}}}
		fs := &MockFileSystem{}
		executor := newTestContainer(t, runner, fs, ContainerConfig{MaxOutputBytes: 1024})

		result, err := executor.Execute(ctx, ExecuteRequest{Code: "print(len(df))", Dataset: salesTable(t)})
		require.NoError(t, err)
		assert.Equal(t, StateSucceeded, result.State)
		assert.Equal(t, "10\n", result.Output)
		assert.False(t, result.HasImage())

		assert.Equal(t, "print(len(df))", string(fs.writeFileData["/tmp/job/"+FilenameSnippet]))
		assert.True(t, strings.HasPrefix(string(fs.writeFileData["/tmp/job/"+FilenameDataset]), "region,units,price"))
		assert.Contains(t, string(fs.writeFileData["/tmp/job/"+FilenameHarness]), "redirect_stdout")
		assert.Equal(t, []string{"/tmp/job"}, fs.removed)
		assert.Equal(t, os.FileMode(DirPermission), fs.modes["/tmp/job"])

		calls := runner.recorded()
		require.Len(t, calls, 1)
		args := strings.Join(calls[0], " ")
		assert.True(t, strings.HasPrefix(args, "docker run --name dataagent-exec-"))
		assert.Contains(t, args, "-v /tmp/job:/job:ro")
		assert.Contains(t, args, "--network none")
		assert.Contains(t, args, "--memory 256m")
		assert.Contains(t, args, "--cap-drop ALL")
		assert.Contains(t, args, "DATAAGENT_BUILTINS=print,len,sum,min,max,abs,round,int,float")
		assert.Contains(t, args, "DATAAGENT_MAX_OUTPUT=1024")
		assert.True(t, strings.HasSuffix(args, "dataagent-python:test python /job/harness.py"))
	})

	t.Run("Image", func(t *testing.T) {
		runner := &MockCommandRunner{results: map[string]mockResult{"run": {stdout: reply("", "", pngMagic)}}}
		executor := newTestContainer(t, runner, &MockFileSystem{}, ContainerConfig{})

		result, err := executor.Execute(ctx, ExecuteRequest{Code: "sns.histplot(data=df, x='price', ax=ax)", Dataset: salesTable(t)})
		require.NoError(t, err)
		assert.Equal(t, StateSucceeded, result.State)
		assert.Equal(t, pngMagic, result.Image)
		assert.Nil(t, result.Figure)
	})

	t.Run("Faulted", func(t *testing.T) {
		runner := &MockCommandRunner{results: map[string]mockResult{"run": {stdout: reply("partial\n", "division by zero", nil)}}}
		executor := newTestContainer(t, runner, &MockFileSystem{}, ContainerConfig{})

		result, err := executor.Execute(ctx, ExecuteRequest{Code: "print(1/0)", Dataset: salesTable(t)})
		require.NoError(t, err)
		assert.Equal(t, StateFaulted, result.State)
		assert.Equal(t, ErrorPrefix+"division by zero", result.Output)
	})

	t.Run("RejectedBeforeContainer", func(t *testing.T) {
		runner := &MockCommandRunner{}
		executor := newTestContainer(t, runner, &MockFileSystem{}, ContainerConfig{})

		result, err := executor.Execute(ctx, ExecuteRequest{Code: "import os", Dataset: salesTable(t)})
		require.NoError(t, err)
		assert.Equal(t, StateRejected, result.State)
		assert.Empty(t, runner.recorded())
	})

	t.Run("PythonOnlySyntaxRejected", func(t *testing.T) {
		runner := &MockCommandRunner{}
		executor := newTestContainer(t, runner, &MockFileSystem{}, ContainerConfig{})

		code := "try:\n    c = ().__class__.__base__.__subclasses__()\nexcept Exception:\n    pass"
		result, err := executor.Execute(ctx, ExecuteRequest{Code: code, Dataset: salesTable(t)})
		require.NoError(t, err)
		assert.Equal(t, StateRejected, result.State)
		assert.Empty(t, runner.recorded())
	})

	t.Run("WhileLoopReachesContainer", func(t *testing.T) {
		runner := &MockCommandRunner{results: map[string]mockResult{"run": {stdout: reply("3\n", "", nil)}}}
		executor := newTestContainer(t, runner, &MockFileSystem{}, ContainerConfig{})

		result, err := executor.Execute(ctx, ExecuteRequest{Code: "i = 0\nwhile i < 3:\n    i += 1\nprint(i)", Dataset: salesTable(t)})
		require.NoError(t, err)
		assert.Equal(t, StateSucceeded, result.State)
		assert.Len(t, runner.recorded(), 1)
	})

	t.Run("PodmanRuntime", func(t *testing.T) {
		runner := &MockCommandRunner{results: map[string]mockResult{"run": {stdout: reply("", "", nil)}}}
		executor := newTestContainer(t, runner, &MockFileSystem{}, ContainerConfig{Runtime: "podman"})

		_, err := executor.Execute(ctx, ExecuteRequest{Code: "x = 1", Dataset: salesTable(t)})
		require.NoError(t, err)
		assert.Equal(t, "podman", runner.recorded()[0][0])
	})

	t.Run("Timeout", func(t *testing.T) {
		runner := &MockCommandRunner{block: true}
		executor := newTestContainer(t, runner, &MockFileSystem{}, ContainerConfig{Timeout: 20 * time.Millisecond})

		result, err := executor.Execute(ctx, ExecuteRequest{Code: "while True:\n    pass", Dataset: salesTable(t)})
		require.NoError(t, err)
		assert.Equal(t, StateFaulted, result.State)
		assert.Contains(t, result.Output, "execution timed out")

		calls := runner.recorded()
		require.Len(t, calls, 2)
		assert.Equal(t, "stop", calls[1][1])
		assert.Equal(t, calls[0][3], calls[1][2])
	})
}

func TestContainerExecutorErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		runner  *MockCommandRunner
		fs      *MockFileSystem
		req     func(t *testing.T) ExecuteRequest
		wantErr string
	}{
		{
			name:    "NoDataset",
			runner:  &MockCommandRunner{},
			fs:      &MockFileSystem{},
			req:     func(*testing.T) ExecuteRequest { return ExecuteRequest{Code: "print(1)"} },
			wantErr: ErrNoDataset.Error(),
		},
		{
			name:    "TempDirFailure",
			runner:  &MockCommandRunner{},
			fs:      &MockFileSystem{mkdirTempErr: errors.New("disk full")},
			wantErr: "failed to create job dir",
		},
		{
			name:    "ChmodFailure",
			runner:  &MockCommandRunner{},
			fs:      &MockFileSystem{chmodErr: errors.New("operation not permitted")},
			wantErr: "failed to set job dir permissions",
		},
		{
			name:    "WriteFailure",
			runner:  &MockCommandRunner{},
			fs:      &MockFileSystem{writeFileErrs: map[string]error{"/tmp/job/" + FilenameSnippet: errors.New("read-only")}},
			wantErr: "failed to write snippet.py",
		},
		{
			name:    "RuntimeMissing",
			runner:  &MockCommandRunner{results: map[string]mockResult{"run": {err: errors.New("executable file not found")}}},
			fs:      &MockFileSystem{},
			wantErr: "failed to execute container",
		},
		{
			name:    "MalformedReply",
			runner:  &MockCommandRunner{results: map[string]mockResult{"run": {stdout: "Traceback", exitCode: 1}}},
			fs:      &MockFileSystem{},
			wantErr: "malformed harness reply (exit code 1)",
		},
		{
			name:    "MalformedImage",
			runner:  &MockCommandRunner{results: map[string]mockResult{"run": {stdout: `{"output":"","error":"","image":"%%%"}`}}},
			fs:      &MockFileSystem{},
			wantErr: "malformed harness image",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executor := newTestContainer(t, tt.runner, tt.fs, ContainerConfig{})
			req := ExecuteRequest{Code: "print(1)", Dataset: salesTable(t)}
			if tt.req != nil {
				req = tt.req(t)
			}
			_, err := executor.Execute(ctx, req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
