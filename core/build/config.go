package build

// Config describes how to build the code module. Relative directories are
// resolved against the compiler root.
type Config struct {
	// SourceDir is the directory of the package to compile.
	SourceDir string
	// OutputDir receives the compiled module.
	OutputDir string
	// ModuleName is the base name of the artifact.
	ModuleName string
	// Command overrides the build command. {output} is replaced with the
	// artifact path.
	Command string
	// ErrorMarker classifies output lines containing it as errors.
	ErrorMarker string
}

// DefaultCommand is used when Config.Command is empty.
const DefaultCommand = "go build -buildmode=c-shared -o {output} ."

// DefaultEnv is appended to the process environment of the default command.
var DefaultEnv = []string{"GOOS=wasip1", "GOARCH=wasm"}
