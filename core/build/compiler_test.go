package build_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"asset-bank/core/build"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		output []string
		marker string
		want   []string
	}{
		{
			name:   "GoToolchain",
			output: []string{"# game", "./player.go:12:3: undefined: speed", "./main.go:4: syntax error", "note: module requires go 1.24"},
			want:   []string{"./player.go:12:3: undefined: speed", "./main.go:4: syntax error"},
		},
		{
			name:   "MarkerStripsBracketSuffix",
			output: []string{"Player.cs(10,5): error CS1002: ; expected [/src/Game.csproj]", "Build FAILED."},
			marker: "error CS",
			want:   []string{"Player.cs(10,5): error CS1002: ; expected"},
		},
		{
			name:   "MarkerStripsLineColumnSuffix",
			output: []string{"error: unexpected token (12,4)", "warning: unused (3,1)"},
			marker: "error:",
			want:   []string{"error: unexpected token"},
		},
		{
			name:   "NoErrors",
			output: []string{"", "ok"},
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, build.ParseErrors(tt.output, tt.marker))
		})
	}
}

func newCompiler(t *testing.T, runner build.Runner, cfg build.Config) *build.Compiler {
	t.Helper()
	return build.NewCompiler(t.TempDir(), cfg, build.WithRunner(runner))
}

func waitBuild(t *testing.T, c *build.Compiler) build.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := c.Wait(ctx)
	require.NoError(t, err)
	return res
}

func TestCompiler_FailureWithMarker(t *testing.T) {
	runner := func(build.Invocation) ([]string, int, error) {
		return []string{"compiling", "Foo.cs(1,1): error CS0103: name missing [game.csproj]", "done"}, 1, nil
	}
	c := newCompiler(t, runner, build.Config{ErrorMarker: "error CS", ModuleName: "game"})

	started, err := c.Build(context.Background())
	require.NoError(t, err)
	require.True(t, started)

	res := waitBuild(t, c)
	assert.False(t, c.IsBuilding())
	assert.False(t, c.IsSuccess())
	assert.Equal(t, []string{"Foo.cs(1,1): error CS0103: name missing"}, c.Errors())
	assert.Len(t, c.Output(), 3)
	assert.Equal(t, 1, res.ExitCode)
}

func TestCompiler_NonZeroWithoutDiagnostics(t *testing.T) {
	runner := func(build.Invocation) ([]string, int, error) {
		return []string{"killed"}, 2, nil
	}
	c := newCompiler(t, runner, build.Config{})

	_, err := c.Build(context.Background())
	require.NoError(t, err)
	waitBuild(t, c)

	assert.False(t, c.IsSuccess())
	assert.Equal(t, []string{"build failed with exit code 2"}, c.Errors())
}

func TestCompiler_StartFailure(t *testing.T) {
	runner := func(build.Invocation) ([]string, int, error) {
		return nil, -1, errors.New("executable not found")
	}
	c := newCompiler(t, runner, build.Config{})

	_, err := c.Build(context.Background())
	require.NoError(t, err)
	res := waitBuild(t, c)

	assert.False(t, res.Success())
	assert.Contains(t, res.Output, "executable not found")
}

func TestCompiler_Success(t *testing.T) {
	var got build.Invocation
	runner := func(inv build.Invocation) ([]string, int, error) {
		got = inv
		return nil, 0, nil
	}
	c := newCompiler(t, runner, build.Config{SourceDir: "scripts", OutputDir: "out", ModuleName: "game"})

	_, err := c.Build(context.Background())
	require.NoError(t, err)
	res := waitBuild(t, c)

	assert.True(t, c.IsSuccess())
	assert.Empty(t, c.Errors())
	assert.Equal(t, "game.wasm", filepath.Base(res.Artifact))
	assert.Equal(t, "go", got.Name)
	assert.Contains(t, got.Args, res.Artifact)
	assert.Equal(t, "scripts", filepath.Base(got.Dir))
	assert.Equal(t, build.DefaultEnv, got.Env)
}

func TestCompiler_CustomCommand(t *testing.T) {
	var got build.Invocation
	runner := func(inv build.Invocation) ([]string, int, error) {
		got = inv
		return nil, 0, nil
	}
	c := newCompiler(t, runner, build.Config{Command: "tinygo build -target wasip1 -o {output}", ModuleName: "m"})

	_, err := c.Build(context.Background())
	require.NoError(t, err)
	waitBuild(t, c)

	assert.Equal(t, "tinygo", got.Name)
	assert.Equal(t, c.Artifact(), got.Args[len(got.Args)-1])
	assert.Nil(t, got.Env)
}

func TestCompiler_SecondBuildIsNoop(t *testing.T) {
	release := make(chan struct{})
	var runs atomic.Int32
	runner := func(build.Invocation) ([]string, int, error) {
		runs.Add(1)
		<-release
		return nil, 0, nil
	}
	c := newCompiler(t, runner, build.Config{})

	started, err := c.Build(context.Background())
	require.NoError(t, err)
	assert.True(t, started)
	assert.True(t, c.IsBuilding())

	started, err = c.Build(context.Background())
	require.NoError(t, err)
	assert.False(t, started)

	_, ok := c.Result()
	assert.False(t, ok)

	close(release)
	waitBuild(t, c)
	assert.Equal(t, int32(1), runs.Load())
	assert.Equal(t, 1, c.Finished())
}

func TestCompiler_CancelledContext(t *testing.T) {
	c := newCompiler(t, func(build.Invocation) ([]string, int, error) { return nil, 0, nil }, build.Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	started, err := c.Build(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, started)
}

func TestCompiler_ArtifactIsAbsolute(t *testing.T) {
	t.Chdir(t.TempDir())
	c := build.NewCompiler("", build.Config{SourceDir: "scripts", OutputDir: ".build", ModuleName: "game"})

	artifact := c.Artifact()
	assert.True(t, filepath.IsAbs(artifact))
	assert.Equal(t, filepath.Join(".build", "game.wasm"), filepath.Join(filepath.Base(filepath.Dir(artifact)), filepath.Base(artifact)))

	var got build.Invocation
	c = build.NewCompiler("", build.Config{SourceDir: "scripts", OutputDir: ".build", ModuleName: "game", Command: "cp mod.wasm {output}"},
		build.WithRunner(func(inv build.Invocation) ([]string, int, error) {
			got = inv
			return nil, 0, nil
		}))
	_, err := c.Build(context.Background())
	require.NoError(t, err)
	waitBuild(t, c)

	assert.True(t, filepath.IsAbs(got.Dir))
	assert.Equal(t, c.Artifact(), got.Args[len(got.Args)-1])
}
