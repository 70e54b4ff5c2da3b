package buildconfig

import (
	"fmt"
	"path/filepath"
)

// Resolve merges the document against the defaults and returns a fully
// populated BuildConfig. workingDirectory must be captured once by the caller
// and is used when the document omits rootDirectory or gives a relative one.
// Resolve reads no process state, so identical inputs yield identical results.
func Resolve(doc Document, workingDirectory string) (BuildConfig, error) {
	root, err := resolveRootDirectory(doc.RootDirectory, workingDirectory)
	if err != nil {
		return BuildConfig{}, err
	}

	cfg := Defaults(root)

	if doc.Mode != nil {
		mode, err := ParseMode(*doc.Mode)
		if err != nil {
			return BuildConfig{}, err
		}
		cfg.Mode = mode
	}

	if doc.EntryPoints != nil {
		cfg.EntryPoints = cloneMap(doc.EntryPoints)
	}
	if doc.Externals != nil {
		cfg.Externals = cloneStrings(*doc.Externals)
	}

	applyOutput(&cfg.Output, doc.Output)
	applyResolution(&cfg.Resolution, doc.Resolution)
	applyRuntime(&cfg.Runtime, doc.Runtime)

	return cfg, nil
}

func resolveRootDirectory(root *string, workingDirectory string) (string, error) {
	if root != nil {
		if *root == "" {
			return "", fmt.Errorf("%w: rootDirectory must not be empty", ErrInvalidConfig)
		}
		if filepath.IsAbs(*root) {
			return filepath.Clean(*root), nil
		}
	}

	if workingDirectory == "" {
		return "", fmt.Errorf("%w: working directory is required to resolve rootDirectory", ErrInvalidConfig)
	}
	if !filepath.IsAbs(workingDirectory) {
		return "", fmt.Errorf("%w: working directory must be absolute, got %q", ErrInvalidConfig, workingDirectory)
	}

	if root == nil {
		return filepath.Clean(workingDirectory), nil
	}
	return filepath.Join(workingDirectory, *root), nil
}

func applyOutput(dst *OutputSettings, src *OutputDocument) {
	if src == nil {
		return
	}
	if src.Path != nil {
		dst.Path = *src.Path
	}
	if src.PublicPath != nil {
		dst.PublicPath = *src.PublicPath
	}
	if src.FilenameTemplate != nil {
		dst.FilenameTemplate = *src.FilenameTemplate
	}
}

func applyResolution(dst *ResolutionSettings, src *ResolutionDocument) {
	if src == nil {
		return
	}
	if src.Alias != nil {
		dst.Alias = cloneMap(src.Alias)
	}
	if src.MainFields != nil {
		dst.MainFields = cloneStrings(*src.MainFields)
	}
	if src.MainFiles != nil {
		dst.MainFiles = cloneStrings(*src.MainFiles)
	}
	if src.Extensions != nil {
		dst.Extensions = cloneStrings(*src.Extensions)
	}
	if src.Conditions != nil {
		dst.Conditions = cloneStrings(*src.Conditions)
	}
	if src.FollowSymlinks != nil {
		dst.FollowSymlinks = *src.FollowSymlinks
	}
}

func applyRuntime(dst *RuntimeSettings, src *RuntimeDocument) {
	if src == nil {
		return
	}
	if src.RuntimePath != nil {
		dst.RuntimePath = *src.RuntimePath
	}
	if src.Plugins != nil {
		dst.Plugins = cloneStrings(*src.Plugins)
	}
}
