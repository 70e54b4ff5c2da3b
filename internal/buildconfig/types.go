package buildconfig

import "fmt"

// Mode controls optimisation and debug behaviour in downstream build stages.
// The zero value is not a valid mode.
type Mode uint8

const (
	ModeDevelopment Mode = iota + 1
	ModeProduction
)

var modeNames = map[string]Mode{
	"development": ModeDevelopment,
	"production":  ModeProduction,
}

// ParseMode decodes the external spelling of a mode. Unrecognised values are
// rejected with ErrInvalidConfig rather than defaulted.
func ParseMode(raw string) (Mode, error) {
	mode, ok := modeNames[raw]
	if !ok {
		return 0, fmt.Errorf("%w: mode must be one of development, production; got %q", ErrInvalidConfig, raw)
	}
	return mode, nil
}

// String returns the external spelling of the mode.
func (m Mode) String() string {
	switch m {
	case ModeDevelopment:
		return "development"
	case ModeProduction:
		return "production"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// BuildConfig is the fully resolved configuration of a single build invocation.
// It is constructed once by Resolve and must not be mutated afterwards; every
// downstream stage may read it concurrently.
type BuildConfig struct {
	EntryPoints   map[string]string
	Output        OutputSettings
	RootDirectory string
	Mode          Mode
	Resolution    ResolutionSettings
	Externals     []string
	Runtime       RuntimeSettings
}

// OutputSettings is consumed by the output emitter.
type OutputSettings struct {
	Path       string
	PublicPath string
	// FilenameTemplate may contain [name], [contenthash] and [ext]; the emitter
	// substitutes them.
	FilenameTemplate string
}

// ResolutionSettings is consumed by the module-resolution engine. All slices
// are priority ordered.
type ResolutionSettings struct {
	Alias          map[string]string
	MainFields     []string
	MainFiles      []string
	Extensions     []string
	Conditions     []string
	FollowSymlinks bool
}

// RuntimeSettings is consumed by the runtime-injection subsystem.
type RuntimeSettings struct {
	// RuntimePath points at the compiled runtime artifact required for module
	// loading and hot updates. Empty means no runtime is injected.
	RuntimePath string
	// Plugins are applied to the runtime in order.
	Plugins []string
}
