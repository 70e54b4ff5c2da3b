package buildconfig

const (
	defaultOutputPath       = "dist"
	defaultPublicPath       = "/"
	defaultFilenameTemplate = "[name].[contenthash].[ext]"
	defaultRuntimePath      = ""
)

var (
	defaultMainFields = []string{"browser", "module", "main"}
	defaultMainFiles  = []string{"index"}
	defaultExtensions = []string{"tsx", "ts", "jsx", "mjs", "js", "json", "html", "css"}
	defaultConditions = []string{"import", "require", "browser", "development", "production", "default"}
)

// DefaultOutputSettings returns the output settings used when the document omits them.
func DefaultOutputSettings() OutputSettings {
	return OutputSettings{
		Path:             defaultOutputPath,
		PublicPath:       defaultPublicPath,
		FilenameTemplate: defaultFilenameTemplate,
	}
}

// DefaultResolutionSettings returns a fresh copy of the default resolution settings.
func DefaultResolutionSettings() ResolutionSettings {
	return ResolutionSettings{
		Alias:          map[string]string{},
		MainFields:     cloneStrings(defaultMainFields),
		MainFiles:      cloneStrings(defaultMainFiles),
		Extensions:     cloneStrings(defaultExtensions),
		Conditions:     cloneStrings(defaultConditions),
		FollowSymlinks: true,
	}
}

// DefaultRuntimeSettings returns the runtime settings used when the document omits them.
func DefaultRuntimeSettings() RuntimeSettings {
	return RuntimeSettings{
		RuntimePath: defaultRuntimePath,
		Plugins:     []string{},
	}
}

// Defaults returns the configuration an empty document resolves to for the
// given root directory.
func Defaults(rootDirectory string) BuildConfig {
	return BuildConfig{
		EntryPoints:   map[string]string{},
		Output:        DefaultOutputSettings(),
		RootDirectory: rootDirectory,
		Mode:          ModeDevelopment,
		Resolution:    DefaultResolutionSettings(),
		Externals:     []string{},
		Runtime:       DefaultRuntimeSettings(),
	}
}

func cloneStrings(src []string) []string {
	out := make([]string, len(src))
	copy(out, src)
	return out
}

func cloneMap(src map[string]string) map[string]string {
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
