package project

import (
	"fmt"
	"path/filepath"
	"time"

	"asset-bank/core/build"
)

// Config holds configuration for the asset project.
type Config struct {
	// Root is the asset directory.
	Root string `mapstructure:"root" default:"assets"`
	// SourceDir is the directory of the code module sources.
	SourceDir string `mapstructure:"source_dir" default:"scripts"`
	// SourceExtensions are the code file extensions that trigger a rebuild and
	// never become assets.
	SourceExtensions []string `mapstructure:"source_extensions" default:".go"`
	// OutputDir receives the compiled module.
	OutputDir string `mapstructure:"output_dir" default:".build"`
	// ModuleName is the name of the code module.
	ModuleName string `mapstructure:"module_name" default:"game"`
	// BuildCommand overrides the default build command.
	BuildCommand string `mapstructure:"build_command" default:""`
	// ErrorMarker classifies build output lines as errors.
	ErrorMarker string `mapstructure:"error_marker" default:""`
	// TickMs is the main loop period in milliseconds.
	TickMs int `mapstructure:"tick_ms" default:"100"`
	// QueueSize is the capacity of the file mark queue.
	QueueSize int `mapstructure:"queue_size" default:"4096"`
	// Watch enables file system watching on start.
	Watch bool `mapstructure:"watch" default:"true"`
}

// Build returns the compiler configuration.
func (c Config) Build() build.Config {
	return build.Config{
		SourceDir:   c.SourceDir,
		OutputDir:   c.OutputDir,
		ModuleName:  c.ModuleName,
		Command:     c.BuildCommand,
		ErrorMarker: c.ErrorMarker,
	}
}

// TickInterval returns the main loop period.
func (c Config) TickInterval() time.Duration {
	if c.TickMs <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(c.TickMs) * time.Millisecond
}

// absolute returns c with Root, SourceDir and OutputDir made absolute.
func (c Config) absolute() (Config, error) {
	for _, dir := range []*string{&c.Root, &c.SourceDir, &c.OutputDir} {
		if *dir == "" {
			continue
		}
		abs, err := filepath.Abs(*dir)
		if err != nil {
			return c, fmt.Errorf("resolve %q: %w", *dir, err)
		}
		*dir = abs
	}
	return c, nil
}
